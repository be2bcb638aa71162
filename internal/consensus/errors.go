package consensus

import "fmt"

// InsufficientInputError reports a build attempt with no usable source
// reports for the date.
type InsufficientInputError struct {
	Date string
}

func (e InsufficientInputError) Error() string {
	return fmt.Sprintf("consensus %s: no usable source reports", e.Date)
}

// DateMismatchError reports a source document dated differently from
// the run date it was supplied for.
type DateMismatchError struct {
	Date   string
	Source string
	Found  string
}

func (e DateMismatchError) Error() string {
	return fmt.Sprintf("consensus %s: report from %s is dated %s", e.Date, e.Source, e.Found)
}
