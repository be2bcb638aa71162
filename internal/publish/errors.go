package publish

import (
	"fmt"
	"strings"
)

// NotRepoError reports a publish target that is not a git work tree.
type NotRepoError struct {
	Dir string
}

func (e NotRepoError) Error() string {
	return fmt.Sprintf("publish: %s is not inside a git work tree", e.Dir)
}

// DirtyIndexError reports files already staged before the publish
// started. Publishing would sweep them into the commit.
type DirtyIndexError struct {
	Files []string
}

func (e DirtyIndexError) Error() string {
	return fmt.Sprintf("publish: staged area is not clean: %s", strings.Join(e.Files, ", "))
}
