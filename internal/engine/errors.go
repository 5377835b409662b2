package engine

import (
	"errors"
	"fmt"
)

// ErrMerge is matched by *MergeError via errors.Is.
var ErrMerge = errors.New("merge rejected")

// MergeError is returned when a commit would corrupt the store.
type MergeError struct {
	Source string
	Reason string
}

func (e *MergeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%v: %s", ErrMerge, e.Reason)
	}
	return fmt.Sprintf("%v: source %s: %s", ErrMerge, e.Source, e.Reason)
}

func (e *MergeError) Is(target error) bool { return target == ErrMerge }

// SourceError wraps any failure of one source: reading, extraction,
// reconstruction or merge.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
