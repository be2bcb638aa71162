package trend

import "fmt"

// NoArtifactsError reports a weekly build over a range containing no
// stored daily artifacts.
type NoArtifactsError struct {
	Start string
	End   string
}

func (e NoArtifactsError) Error() string {
	return fmt.Sprintf("trend %s..%s: no daily artifacts in range", e.Start, e.End)
}
