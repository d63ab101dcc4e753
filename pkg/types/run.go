package types

import "time"

// Run is the persisted summary of one scan session.
type Run struct {
	ID          string         // UUID
	StartedAt   time.Time      // when the scan began (UTC)
	Input       string         // input name (path or "-")
	Backend     string         // matcher backend name
	Fingerprint string         // hex fingerprint of the compiled pattern database
	Stats       ScanStatistics // session statistics
	PatternHits map[uint]int64 // matches per pattern identifier
}
