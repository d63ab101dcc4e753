package matcher

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// AutomatonBackend is the Backend() name of AutomatonDatabase.
const AutomatonBackend = "automaton"

// AutomatonDatabase implements Database with an Aho-Corasick automaton.
//
// The goto/failure functions are folded into a dense transition table at
// compile time, so scanning costs one table lookup per input byte. Bytes
// that occur in no pattern share equivalence class 0, which keeps the
// table narrow for typical ASCII pattern sets.
//
// Thread Safety: the database is read-only after NewAutomaton returns.
type AutomatonDatabase struct {
	patterns    []types.Pattern // compiled order; outputs index into this
	classes     [256]uint16     // byte -> equivalence class
	stride      int             // number of equivalence classes
	delta       []int32         // delta[state*stride+class] -> next state
	outStart    []int32         // outputs of s are outputs[outStart[s]:outStart[s+1]]
	outputs     []int32         // pattern indices, ascending pattern ID per state
	fingerprint uint64
	closed      atomic.Bool
}

// NewAutomaton compiles patterns into an AutomatonDatabase.
func NewAutomaton(patterns []types.Pattern) (*AutomatonDatabase, error) {
	if err := validatePatterns(patterns); err != nil {
		return nil, err
	}

	db := &AutomatonDatabase{
		patterns: append([]types.Pattern(nil), patterns...),
	}
	db.buildClasses()
	db.buildTable()
	db.fingerprint = fingerprint(AutomatonBackend, db.patterns)

	return db, nil
}

// buildClasses assigns one class per byte value used by some pattern.
func (db *AutomatonDatabase) buildClasses() {
	var used [256]bool
	for _, p := range db.patterns {
		for i := 0; i < len(p.Text); i++ {
			used[p.Text[i]] = true
		}
	}
	next := uint16(1)
	for b := 0; b < 256; b++ {
		if used[b] {
			db.classes[b] = next
			next++
		}
	}
	db.stride = int(next)
}

// buildTable builds the trie, then converts it in BFS order into a DFA.
// A state's failure target is shallower than the state, so its row is
// final by the time the state is processed.
func (db *AutomatonDatabase) buildTable() {
	stride := db.stride
	table := newRow(nil, stride)
	outs := [][]int32{nil}

	for i, p := range db.patterns {
		state := int32(0)
		for j := 0; j < len(p.Text); j++ {
			idx := int(state)*stride + int(db.classes[p.Text[j]])
			next := table[idx]
			if next < 0 {
				next = int32(len(outs))
				table[idx] = next
				table = newRow(table, stride)
				outs = append(outs, nil)
			}
			state = next
		}
		outs[state] = append(outs[state], int32(i))
	}

	fail := make([]int32, len(outs))
	queue := make([]int32, 0, len(outs))
	for c := 0; c < stride; c++ {
		next := table[c]
		if next < 0 {
			table[c] = 0
			continue
		}
		queue = append(queue, next)
	}

	for head := 0; head < len(queue); head++ {
		state := queue[head]
		outs[state] = append(outs[state], outs[fail[state]]...)
		base := int(state) * stride
		failBase := int(fail[state]) * stride
		for c := 0; c < stride; c++ {
			next := table[base+c]
			if next < 0 {
				table[base+c] = table[failBase+c]
				continue
			}
			fail[next] = table[failBase+c]
			queue = append(queue, next)
		}
	}

	db.delta = table
	db.outStart = make([]int32, len(outs)+1)
	for state, out := range outs {
		sort.Slice(out, func(a, b int) bool {
			return db.patterns[out[a]].ID < db.patterns[out[b]].ID
		})
		db.outputs = append(db.outputs, out...)
		db.outStart[state+1] = int32(len(db.outputs))
	}
}

// newRow appends one row of missing transitions to table.
func newRow(table []int32, stride int) []int32 {
	for c := 0; c < stride; c++ {
		table = append(table, -1)
	}
	return table
}

// Backend returns AutomatonBackend.
func (db *AutomatonDatabase) Backend() string {
	return AutomatonBackend
}

// PatternCount returns the number of compiled patterns.
func (db *AutomatonDatabase) PatternCount() int {
	return len(db.patterns)
}

// StateCount returns the number of automaton states.
func (db *AutomatonDatabase) StateCount() int {
	return len(db.outStart) - 1
}

// ScratchSize returns the size of the single-match suppression bitset.
func (db *AutomatonDatabase) ScratchSize() int {
	return bitsetWords(len(db.patterns)) * 8
}

// Fingerprint identifies the compiled pattern list.
func (db *AutomatonDatabase) Fingerprint() uint64 {
	return db.fingerprint
}

// NewScratch allocates scratch space for this database.
func (db *AutomatonDatabase) NewScratch() (Scratch, error) {
	if db.closed.Load() {
		return nil, &AllocError{Err: ErrDatabaseClosed}
	}
	return &automatonScratch{
		fingerprint: db.fingerprint,
		seen:        make([]uint64, bitsetWords(len(db.patterns))),
	}, nil
}

// Scan runs data through the automaton, reporting matches to h.
func (db *AutomatonDatabase) Scan(data []byte, scratch Scratch, h Handler) (ScanResult, error) {
	var res ScanResult
	if db.closed.Load() {
		return res, &ScanError{Err: ErrDatabaseClosed}
	}
	s, err := db.scratchFor(scratch)
	if err != nil {
		return res, &ScanError{Err: err}
	}
	clear(s.seen)

	stride := db.stride
	state := int32(0)
	for i, b := range data {
		state = db.delta[int(state)*stride+int(db.classes[b])]
		lo, hi := db.outStart[state], db.outStart[state+1]
		if lo == hi {
			continue
		}
		end := uint64(i + 1)
		for _, pi := range db.outputs[lo:hi] {
			p := &db.patterns[pi]
			if p.Flags.Has(types.SingleMatch) {
				word, bit := pi/64, uint64(1)<<(pi%64)
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
				From:  end - uint64(len(p.Text)),
				To:    end,
				Flags: p.Flags,
			}
			if h.OnMatch(ev) == Stop {
				res.Stopped = true
				return res, nil
			}
		}
	}

	return res, nil
}

// scratchFor checks that scratch was allocated for db.
func (db *AutomatonDatabase) scratchFor(scratch Scratch) (*automatonScratch, error) {
	s, ok := scratch.(*automatonScratch)
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: got %T", ErrScratchMismatch, scratch)
	}
	if s.freed {
		return nil, ErrScratchFreed
	}
	if s.fingerprint != db.fingerprint || len(s.seen) != bitsetWords(len(db.patterns)) {
		return nil, fmt.Errorf("%w: fingerprint %016x, want %016x", ErrScratchMismatch, s.fingerprint, db.fingerprint)
	}
	return s, nil
}

// Close marks the database closed. Further scans fail.
func (db *AutomatonDatabase) Close() error {
	db.closed.Store(true)
	return nil
}

// automatonScratch holds the per-call single-match suppression bitset.
type automatonScratch struct {
	fingerprint uint64
	seen        []uint64
	freed       bool
}

func (s *automatonScratch) Size() int {
	return len(s.seen) * 8
}

func (s *automatonScratch) Fingerprint() uint64 {
	return s.fingerprint
}

func (s *automatonScratch) Clone() (Scratch, error) {
	if s.freed {
		return nil, &AllocError{Err: ErrScratchFreed}
	}
	return &automatonScratch{
		fingerprint: s.fingerprint,
		seen:        make([]uint64, len(s.seen)),
	}, nil
}

func (s *automatonScratch) Realloc(db Database) error {
	adb, ok := db.(*AutomatonDatabase)
	if !ok {
		return &AllocError{Err: fmt.Errorf("%w: cannot serve %s database", ErrScratchMismatch, db.Backend())}
	}
	words := bitsetWords(len(adb.patterns))
	if cap(s.seen) >= words {
		s.seen = s.seen[:words]
	} else {
		s.seen = make([]uint64, words)
	}
	s.fingerprint = adb.fingerprint
	s.freed = false
	return nil
}

func (s *automatonScratch) Free() error {
	s.seen = nil
	s.freed = true
	return nil
}
