package queue

import (
	"errors"
	"fmt"
)

// ErrClaimMissed signals that a claim lost the race: the entry was no longer
// in the inbox when the rename ran. This is a benign outcome, not a failure;
// callers skip the candidate.
var ErrClaimMissed = errors.New("claim missed: entry no longer in inbox")

// ErrDuplicate signals that an entry with the same job id already exists.
var ErrDuplicate = errors.New("job id already exists")

// WriteError reports a failed create: a duplicate id or an I/O fault while
// writing or renaming. It is fatal to the create caller and never retried.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write queue entry %s: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
