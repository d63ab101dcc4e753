// Package sieve provides a multi-pattern literal scanner.
//
// Sieve compiles a set of literal patterns into a single matcher and reports
// every occurrence (pattern identifier and end offset) in scanned content.
//
// # Basic Usage
//
// Create a scanner with the builtin patterns and scan content:
//
//	scanner, err := sieve.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanString("this is a test")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, m := range matches {
//	    fmt.Printf("Found %q at offset %d\n", scanner.PatternText(m.ID), m.To)
//	}
//
// # Streaming
//
// ScanReader splits input into newline-delimited records and scans each one,
// truncating records longer than the configured maximum:
//
//	stats, err := scanner.ScanReader(ctx, os.Stdin, matcher.HandlerFunc(func(ev sieve.Match) matcher.Action {
//	    return matcher.Continue
//	}))
package sieve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/pattern"
	"github.com/praetorian-inc/sieve/pkg/stream"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/sieve" without subpackages.
type (
	// Match is a single pattern occurrence.
	Match = types.MatchEvent

	// Pattern is a literal with its identifier and flags.
	Pattern = types.Pattern

	// Statistics summarizes a streamed scan.
	Statistics = types.ScanStatistics
)

// SingleMatch reports a pattern at most once per scanned buffer.
const SingleMatch = types.SingleMatch

// Scanner scans content against a compiled pattern set.
// It is safe for concurrent use.
type Scanner struct {
	db      matcher.Database
	set     *types.PatternSet
	config  *scannerConfig
	mu      sync.RWMutex
	freeMu  sync.Mutex
	free    []matcher.Scratch // idle scratches, freed by Close
	closed  bool
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	patterns      []types.Pattern
	patternsSet   bool
	maxRecordSize int
	logger        *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithPatterns uses the given patterns instead of the builtin set.
func WithPatterns(patterns ...Pattern) Option {
	return func(c *scannerConfig) {
		c.patterns = patterns
		c.patternsSet = true
	}
}

// WithMaxRecordSize sets the record length limit used by ScanReader.
// Default is 1024 bytes.
func WithMaxRecordSize(n int) Option {
	return func(c *scannerConfig) {
		c.maxRecordSize = n
	}
}

// WithLogger sets the logger receiving truncation warnings from ScanReader.
func WithLogger(l *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = l
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses the builtin pattern set
//   - Truncates streamed records at 1024 bytes
//   - Discards log output
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		maxRecordSize: stream.DefaultMaxRecordSize,
	}

	for _, opt := range opts {
		opt(config)
	}

	// Load patterns if not provided
	if !config.patternsSet {
		set, err := pattern.NewLoader().LoadBuiltin(pattern.DefaultBuiltin)
		if err != nil {
			return nil, fmt.Errorf("loading builtin patterns: %w", err)
		}
		config.patterns = set.Patterns()
	}

	db, err := matcher.Compile(config.patterns)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		db:     db,
		set:    types.NewPatternSet(config.patterns...),
		config: config,
	}, nil
}

// ScanString scans a string as one buffer and returns all matches.
func (s *Scanner) ScanString(content string) ([]Match, error) {
	return s.ScanBytes([]byte(content))
}

// ScanBytes scans content as one buffer and returns all matches in
// end-offset order. Newlines are not treated as record boundaries.
func (s *Scanner) ScanBytes(content []byte) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scratch, err := s.getScratch()
	if err != nil {
		return nil, err
	}
	defer s.putScratch(scratch)

	var c matcher.Collector
	if _, err := s.db.Scan(content, scratch, &c); err != nil {
		return nil, err
	}
	return c.Events, nil
}

// ScanReader scans r record by record, reporting matches to h.
// Match offsets are relative to the start of their record.
func (s *Scanner) ScanReader(ctx context.Context, r io.Reader, h matcher.Handler) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scratch, err := s.getScratch()
	if err != nil {
		return Statistics{}, err
	}
	defer s.putScratch(scratch)

	var opts []stream.Option
	if s.config.logger != nil {
		opts = append(opts, stream.WithLogger(s.config.logger))
	}
	driver := stream.New(stream.Config{MaxRecordSize: s.config.maxRecordSize}, opts...)
	return driver.Run(ctx, s.db, scratch, r, h)
}

// ScanFile opens path and scans it with ScanReader.
func (s *Scanner) ScanFile(ctx context.Context, path string, h matcher.Handler) (Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Statistics{}, &stream.InputError{Err: err}
	}
	defer f.Close()
	return s.ScanReader(ctx, f, h)
}

// Close releases scanner resources.
// Always call Close when done with the scanner.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.freeMu.Lock()
	if s.closed {
		s.freeMu.Unlock()
		return nil
	}
	s.closed = true
	idle := s.free
	s.free = nil
	s.freeMu.Unlock()

	var firstErr error
	for _, scratch := range idle {
		if err := scratch.Free(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// PatternCount returns the number of compiled patterns.
func (s *Scanner) PatternCount() int {
	return s.db.PatternCount()
}

// Patterns returns a copy of the compiled patterns.
func (s *Scanner) Patterns() []Pattern {
	return slices.Clone(s.set.Patterns())
}

// PatternText returns the text of the pattern with the given identifier.
func (s *Scanner) PatternText(id uint) string {
	return s.set.Text(id)
}

// getScratch takes an idle scratch, allocating one when none is left.
func (s *Scanner) getScratch() (matcher.Scratch, error) {
	s.freeMu.Lock()
	if n := len(s.free); n > 0 {
		scratch := s.free[n-1]
		s.free = s.free[:n-1]
		s.freeMu.Unlock()
		return scratch, nil
	}
	s.freeMu.Unlock()
	return matcher.AllocScratch(s.db)
}

// putScratch returns scratch to the idle list, or frees it once the
// scanner is closed.
func (s *Scanner) putScratch(scratch matcher.Scratch) {
	s.freeMu.Lock()
	defer s.freeMu.Unlock()

	if s.closed {
		scratch.Free()
		return
	}
	s.free = append(s.free, scratch)
}

// idleScratches returns the number of scratches kept for reuse.
func (s *Scanner) idleScratches() int {
	s.freeMu.Lock()
	defer s.freeMu.Unlock()
	return len(s.free)
}

// LoadPatternsFromFile loads patterns from a YAML file.
// Use this with WithPatterns to create a scanner with custom patterns.
func LoadPatternsFromFile(path string) ([]Pattern, error) {
	set, err := pattern.NewLoader().LoadFile(path)
	if err != nil {
		return nil, err
	}
	return set.Patterns(), nil
}
