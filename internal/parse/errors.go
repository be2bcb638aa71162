package parse

import "fmt"

// MissingSectionError reports a document lacking one of the required
// template sections. Fatal to that document's parse only.
type MissingSectionError struct {
	Date    string
	Source  string
	Section string
}

func (e MissingSectionError) Error() string {
	return fmt.Sprintf("report %s/%s: missing required section %q", e.Date, e.Source, e.Section)
}

// EmptyDocumentError reports a document with no parseable content.
type EmptyDocumentError struct {
	Date   string
	Source string
}

func (e EmptyDocumentError) Error() string {
	return fmt.Sprintf("report %s/%s: document is empty", e.Date, e.Source)
}
