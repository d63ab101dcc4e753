package types

// MatchEvent is a single match delivered to a handler during a scan.
// It is not retained after the handler returns.
type MatchEvent struct {
	ID    uint   // pattern identifier
	From  uint64 // start offset, 0 when the backend does not track it
	To    uint64 // end offset (exclusive)
	Flags Flag   // flags of the matching pattern
}
