package matcher

import (
	"errors"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// Database is an immutable compiled pattern set.
// It is safe for concurrent use as long as every goroutine scans with its own Scratch.
type Database interface {
	// Backend names the matching engine ("automaton", "hyperscan").
	Backend() string

	// PatternCount returns the number of compiled patterns.
	PatternCount() int

	// ScratchSize returns the size in bytes of a compatible Scratch.
	// It is deterministic for a given pattern list.
	ScratchSize() int

	// Fingerprint identifies the compiled pattern list.
	Fingerprint() uint64

	// NewScratch allocates scratch space sized for this database.
	NewScratch() (Scratch, error)

	// Scan reports every match in data to h, in end-offset order with
	// ties broken by ascending pattern identifier.
	Scan(data []byte, scratch Scratch, h Handler) (ScanResult, error)

	// Close releases the database.
	Close() error
}

// Scratch is per-scan working memory paired with one Database.
// A Scratch must never be used by two scans at the same time.
type Scratch interface {
	// Size returns the scratch size in bytes.
	Size() int

	// Fingerprint returns the fingerprint of the database this scratch serves.
	Fingerprint() uint64

	// Clone allocates an independent scratch for the same database.
	Clone() (Scratch, error)

	// Realloc resizes the scratch for db.
	Realloc(db Database) error

	// Free releases the scratch.
	Free() error
}

// Action tells the scanner whether to keep going after a match.
type Action int

const (
	// Continue scanning the current buffer
	Continue Action = iota
	// Stop scanning the current buffer. This is not an error.
	Stop
)

// Handler receives matches during a scan.
type Handler interface {
	OnMatch(ev types.MatchEvent) Action
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev types.MatchEvent) Action

// OnMatch calls f(ev).
func (f HandlerFunc) OnMatch(ev types.MatchEvent) Action {
	return f(ev)
}

// ScanResult is the outcome of one scan call.
type ScanResult struct {
	Matches int  // matches delivered to the handler
	Stopped bool // handler asked to stop
}

// Collector is a Handler that records events, stopping after Limit (0 = unlimited).
type Collector struct {
	Events []types.MatchEvent
	Limit  int
}

// OnMatch records ev.
func (c *Collector) OnMatch(ev types.MatchEvent) Action {
	c.Events = append(c.Events, ev)
	if c.Limit > 0 && len(c.Events) >= c.Limit {
		return Stop
	}
	return Continue
}

// Reset clears recorded events, keeping capacity.
func (c *Collector) Reset() {
	c.Events = c.Events[:0]
}

// AllocScratch allocates scratch space for db, wrapping failures in AllocError.
func AllocScratch(db Database) (Scratch, error) {
	s, err := db.NewScratch()
	if err != nil {
		var allocErr *AllocError
		if errors.As(err, &allocErr) {
			return nil, err
		}
		return nil, &AllocError{Err: err}
	}
	return s, nil
}
