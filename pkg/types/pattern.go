package types

import (
	"fmt"
	"sort"
	"strings"
)

// Flag is a set of per-pattern compile flags.
type Flag uint

const (
	// SingleMatch reports at most one match per pattern per scan call.
	SingleMatch Flag = 1 << iota
)

var flagNames = map[Flag]string{
	SingleMatch: "single_match",
}

// Has reports whether every bit of o is set in f.
func (f Flag) Has(o Flag) bool {
	return f&o == o
}

// String returns the flag names joined with '|', or "none".
func (f Flag) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for bit, name := range flagNames {
		if f.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// ParseFlag parses a single flag name as written in pattern files.
func ParseFlag(name string) (Flag, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for bit, n := range flagNames {
		if n == normalized {
			return bit, nil
		}
	}
	return 0, fmt.Errorf("unknown pattern flag %q", name)
}

// Pattern is a literal search term tagged with a caller-chosen identifier.
type Pattern struct {
	ID    uint   // unique within a PatternSet
	Text  string // literal bytes to search for
	Flags Flag
}

// PatternSet is an ordered, caller-supplied list of patterns.
// It doubles as the identifier -> text lookup for match consumers.
type PatternSet struct {
	patterns []Pattern
	byID     map[uint]int
}

// NewPatternSet copies patterns into a set. Duplicate identifiers are
// kept so that compilation can report them with their position.
func NewPatternSet(patterns ...Pattern) *PatternSet {
	ps := &PatternSet{
		patterns: make([]Pattern, 0, len(patterns)),
		byID:     make(map[uint]int, len(patterns)),
	}
	for _, p := range patterns {
		ps.Add(p)
	}
	return ps
}

// Add appends a pattern. The first pattern registered for an ID wins lookups.
func (ps *PatternSet) Add(p Pattern) {
	if _, ok := ps.byID[p.ID]; !ok {
		ps.byID[p.ID] = len(ps.patterns)
	}
	ps.patterns = append(ps.patterns, p)
}

// AddLiterals appends texts with identifiers continuing from the current length.
func (ps *PatternSet) AddLiterals(flags Flag, texts ...string) {
	for _, text := range texts {
		ps.Add(Pattern{ID: uint(len(ps.patterns)), Text: text, Flags: flags})
	}
}

// Patterns returns the patterns in registration order.
func (ps *PatternSet) Patterns() []Pattern {
	return ps.patterns
}

// Len returns the number of registered patterns.
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

// Lookup returns the pattern registered under id.
func (ps *PatternSet) Lookup(id uint) (Pattern, bool) {
	idx, ok := ps.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return ps.patterns[idx], true
}

// Text returns the pattern text for id, or "" if unknown.
func (ps *PatternSet) Text(id uint) string {
	p, _ := ps.Lookup(id)
	return p.Text
}
