//go:build cgo && hyperscan

package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// HyperscanBackend is the Backend() name of HyperscanDatabase.
const HyperscanBackend = "hyperscan"

// HyperscanDatabase implements Database using Hyperscan block mode.
//
// Patterns are compiled as escaped literals. Hyperscan's pattern ID is the
// index into the pattern list; the caller's identifier is restored before
// events reach the handler. Hyperscan does not promise an order for matches
// sharing an end offset, so events are collected into the scratch and
// delivered sorted by (end offset, identifier).
type HyperscanDatabase struct {
	db          hyperscan.BlockDatabase
	proto       *hyperscan.Scratch // cloned by NewScratch
	protoMu     sync.Mutex
	patterns    []types.Pattern
	scratchSize int
	fingerprint uint64
	closed      atomic.Bool
}

// NewHyperscan compiles patterns into a Hyperscan block database.
func NewHyperscan(patterns []types.Pattern) (*HyperscanDatabase, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}
	compiled := append([]types.Pattern(nil), patterns...)

	hsPatterns := make([]*hyperscan.Pattern, len(compiled))
	for i, p := range compiled {
		var flags hyperscan.CompileFlag
		if p.Flags.Has(types.SingleMatch) {
			flags |= hyperscan.SingleMatch
		}
		hp := hyperscan.NewPattern(regexp.QuoteMeta(p.Text), flags)
		hp.Id = i
		hsPatterns[i] = hp
	}

	db, err := hyperscan.NewBlockDatabase(hsPatterns...)
	if err != nil {
		return nil, &CompileError{Index: -1, Reason: err.Error(), Err: err}
	}

	proto, err := hyperscan.NewScratch(db)
	if err != nil {
		db.Close()
		return nil, &AllocError{Err: fmt.Errorf("failed to allocate Hyperscan scratch: %w", err)}
	}
	size, err := proto.Size()
	if err != nil {
		proto.Free()
		db.Close()
		return nil, &AllocError{Err: fmt.Errorf("failed to size Hyperscan scratch: %w", err)}
	}

	return &HyperscanDatabase{
		db:          db,
		proto:       proto,
		patterns:    compiled,
		scratchSize: size,
		fingerprint: fingerprint(HyperscanBackend, compiled),
	}, nil
}

// Backend returns HyperscanBackend.
func (m *HyperscanDatabase) Backend() string {
	return HyperscanBackend
}

// PatternCount returns the number of compiled patterns.
func (m *HyperscanDatabase) PatternCount() int {
	return len(m.patterns)
}

// ScratchSize returns the size of Hyperscan scratch for this database.
func (m *HyperscanDatabase) ScratchSize() int {
	return m.scratchSize
}

// Fingerprint identifies the compiled pattern list.
func (m *HyperscanDatabase) Fingerprint() uint64 {
	return m.fingerprint
}

// NewScratch clones the prototype scratch allocated at compile time.
func (m *HyperscanDatabase) NewScratch() (Scratch, error) {
	if m.closed.Load() {
		return nil, &AllocError{Err: ErrDatabaseClosed}
	}
	m.protoMu.Lock()
	if m.proto == nil {
		m.protoMu.Unlock()
		return nil, &AllocError{Err: ErrDatabaseClosed}
	}
	hs, err := m.proto.Clone()
	m.protoMu.Unlock()
	if err != nil {
		return nil, &AllocError{Err: fmt.Errorf("failed to clone Hyperscan scratch: %w", err)}
	}
	return &hyperscanScratch{
		hs:          hs,
		size:        m.scratchSize,
		fingerprint: m.fingerprint,
		seen:        make([]uint64, bitsetWords(len(m.patterns))),
	}, nil
}

// rawEvent holds a Hyperscan match before ordering.
type rawEvent struct {
	idx int
	to  uint64
}

// Scan scans data with Hyperscan and delivers ordered events to h.
func (m *HyperscanDatabase) Scan(data []byte, scratch Scratch, h Handler) (ScanResult, error) {
	var res ScanResult
	if m.closed.Load() {
		return res, &ScanError{Err: ErrDatabaseClosed}
	}
	s, err := m.scratchFor(scratch)
	if err != nil {
		return res, &ScanError{Err: err}
	}
	s.events = s.events[:0]
	clear(s.seen)
	if len(data) == 0 {
		return res, nil
	}

	onMatch := func(id uint, from, to uint64, flags uint, context interface{}) error {
		if int(id) >= len(m.patterns) {
			return fmt.Errorf("invalid pattern ID from Hyperscan: %d", id)
		}
		s.events = append(s.events, rawEvent{idx: int(id), to: to})
		return nil
	}

	if err := m.db.Scan(data, s.hs, onMatch, nil); err != nil {
		return res, &ScanError{Err: fmt.Errorf("Hyperscan scan failed: %w", err)}
	}

	sort.Slice(s.events, func(a, b int) bool {
		ea, eb := s.events[a], s.events[b]
		if ea.to != eb.to {
			return ea.to < eb.to
		}
		return m.patterns[ea.idx].ID < m.patterns[eb.idx].ID
	})

	for _, raw := range s.events {
		p := &m.patterns[raw.idx]
		if p.Flags.Has(types.SingleMatch) {
			word, bit := raw.idx/64, uint64(1)<<(raw.idx%64)
			if s.seen[word]&bit != 0 {
				continue
			}
			s.seen[word] |= bit
		}
		res.Matches++
		if h == nil {
			continue
		}
		ev := types.MatchEvent{
			ID:    p.ID,
			From:  raw.to - uint64(len(p.Text)),
			To:    raw.to,
			Flags: p.Flags,
		}
		if h.OnMatch(ev) == Stop {
			res.Stopped = true
			return res, nil
		}
	}

	return res, nil
}

// scratchFor checks that scratch was allocated for this database.
func (m *HyperscanDatabase) scratchFor(scratch Scratch) (*hyperscanScratch, error) {
	s, ok := scratch.(*hyperscanScratch)
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: got %T", ErrScratchMismatch, scratch)
	}
	if s.hs == nil {
		return nil, ErrScratchFreed
	}
	if s.fingerprint != m.fingerprint || s.size != m.scratchSize {
		return nil, fmt.Errorf("%w: fingerprint %016x, want %016x", ErrScratchMismatch, s.fingerprint, m.fingerprint)
	}
	return s, nil
}

// Close releases the prototype scratch and the database.
func (m *HyperscanDatabase) Close() error {
	if m.closed.Swap(true) {
		return nil
	}

	m.protoMu.Lock()
	proto := m.proto
	m.proto = nil
	m.protoMu.Unlock()

	if proto != nil {
		if err := proto.Free(); err != nil {
			return fmt.Errorf("failed to free scratch: %w", err)
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		m.db = nil
	}
	return nil
}

// hyperscanScratch wraps Hyperscan scratch plus the event ordering buffer.
type hyperscanScratch struct {
	hs          *hyperscan.Scratch
	size        int
	fingerprint uint64
	events      []rawEvent
	seen        []uint64
}

func (s *hyperscanScratch) Size() int {
	return s.size
}

func (s *hyperscanScratch) Fingerprint() uint64 {
	return s.fingerprint
}

func (s *hyperscanScratch) Clone() (Scratch, error) {
	if s.hs == nil {
		return nil, &AllocError{Err: ErrScratchFreed}
	}
	hs, err := s.hs.Clone()
	if err != nil {
		return nil, &AllocError{Err: fmt.Errorf("failed to clone Hyperscan scratch: %w", err)}
	}
	return &hyperscanScratch{
		hs:          hs,
		size:        s.size,
		fingerprint: s.fingerprint,
		seen:        make([]uint64, len(s.seen)),
	}, nil
}

func (s *hyperscanScratch) Realloc(db Database) error {
	hdb, ok := db.(*HyperscanDatabase)
	if !ok {
		return &AllocError{Err: fmt.Errorf("%w: cannot serve %s database", ErrScratchMismatch, db.Backend())}
	}
	if s.hs == nil {
		hs, err := hyperscan.NewScratch(hdb.db)
		if err != nil {
			return &AllocError{Err: err}
		}
		s.hs = hs
	} else if err := s.hs.Realloc(hdb.db); err != nil {
		return &AllocError{Err: err}
	}
	s.size = hdb.scratchSize
	s.fingerprint = hdb.fingerprint
	s.seen = make([]uint64, bitsetWords(len(hdb.patterns)))
	return nil
}

func (s *hyperscanScratch) Free() error {
	if s.hs == nil {
		return nil
	}
	err := s.hs.Free()
	s.hs = nil
	return err
}
