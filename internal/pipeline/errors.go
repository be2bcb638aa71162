package pipeline

import (
	"fmt"
	"strings"

	"github.com/sipboard/sipboard/pkg/models"
)

// NoInputError means the inbox holds no advice documents for a date.
type NoInputError struct {
	Date string
	Dir  string
}

func (e NoInputError) Error() string {
	return fmt.Sprintf("pipeline: no advice documents for %s under %s", e.Date, e.Dir)
}

// MissingSourcesError refuses a strict run when expected sources have
// no document. Partial runs downgrade this to a warning.
type MissingSourcesError struct {
	Date    string
	Missing []string
}

func (e MissingSourcesError) Error() string {
	return fmt.Sprintf("pipeline: %s is missing expected sources: %s", e.Date, strings.Join(e.Missing, ", "))
}

// TaxonomyMismatchError refuses a build whose inputs drifted from the
// reference taxonomy. The full diff rides along for display.
type TaxonomyMismatchError struct {
	Date string
	Diff *models.TaxonomyDiff
}

func (e TaxonomyMismatchError) Error() string {
	drifted := 0
	for i := range e.Diff.PerSource {
		if !e.Diff.PerSource[i].Clean() {
			drifted++
		}
	}
	return fmt.Sprintf("pipeline: taxonomy mismatch on %s in %d of %d sources", e.Date, drifted, len(e.Diff.PerSource))
}
