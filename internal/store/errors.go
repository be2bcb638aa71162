package store

import "fmt"

// ExistsError reports a write to a key that already holds an artifact.
// The caller must force to replace it.
type ExistsError struct {
	Key string
}

func (e ExistsError) Error() string {
	return fmt.Sprintf("store: artifact %s already exists (use force to replace)", e.Key)
}

// NotFoundError reports a missing artifact.
type NotFoundError struct {
	Key string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("store: no artifact for %s", e.Key)
}
