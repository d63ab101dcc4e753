package matcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPatterns is returned when Compile is invoked with an empty pattern list
	ErrNoPatterns = errors.New("no patterns specified")
	// ErrDuplicateID is returned when two patterns share an identifier
	ErrDuplicateID = errors.New("duplicate pattern identifier")
	// ErrEmptyPattern is returned for a pattern with no text
	ErrEmptyPattern = errors.New("empty pattern text")
	// ErrInvalidPattern is returned for pattern text the engine cannot accept
	ErrInvalidPattern = errors.New("invalid pattern text")
	// ErrScratchMismatch is returned when a scratch was not allocated for the database being scanned
	ErrScratchMismatch = errors.New("scratch does not belong to database")
	// ErrDatabaseClosed is returned when a closed database is used
	ErrDatabaseClosed = errors.New("database closed")
	// ErrScratchFreed is returned when a freed scratch is used
	ErrScratchFreed = errors.New("scratch freed")
)

// CompileError reports which pattern failed to compile and why.
// Index is -1 when the failure is not tied to a single pattern.
type CompileError struct {
	Index  int
	ID     uint
	Reason string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("compile patterns: %s", e.Reason)
	}
	return fmt.Sprintf("compile pattern %d (id %d): %s", e.Index, e.ID, e.Reason)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// AllocError reports a failure to allocate scratch space.
type AllocError struct {
	Err error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("allocate scratch: %v", e.Err)
}

func (e *AllocError) Unwrap() error {
	return e.Err
}

// ScanError reports a failed scan call. Only the current call is affected.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan: %v", e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
