package sieve

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScanner(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	// Should have loaded the builtin patterns
	assert.Equal(t, 3, scanner.PatternCount())
	assert.Equal(t, "test", scanner.PatternText(2))
}

func TestNewScanner_EmptyPatterns(t *testing.T) {
	var none []Pattern

	tests := []struct {
		name string
		opt  Option
	}{
		{"no arguments", WithPatterns()},
		{"nil slice", WithPatterns(none...)},
		{"empty slice", WithPatterns([]Pattern{}...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner, err := NewScanner(tt.opt)
			require.Error(t, err)
			assert.Nil(t, scanner)

			var compileErr *matcher.CompileError
			assert.ErrorAs(t, err, &compileErr)
			assert.ErrorIs(t, err, matcher.ErrNoPatterns)
		})
	}
}

func TestScanString(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	matches, err := scanner.ScanString("this is a test of a test")
	require.NoError(t, err)

	// "test" is single-match in the builtin set
	require.Len(t, matches, 1)
	assert.Equal(t, uint(2), matches[0].ID)
	assert.Equal(t, uint64(14), matches[0].To)
	assert.Equal(t, uint64(10), matches[0].From)
}

func TestScanBytes_CustomPatterns(t *testing.T) {
	scanner, err := NewScanner(WithPatterns(
		Pattern{ID: 10, Text: "he"},
		Pattern{ID: 20, Text: "she", Flags: SingleMatch},
	))
	require.NoError(t, err)
	defer scanner.Close()

	matches, err := scanner.ScanBytes([]byte("she said he\nshe"))
	require.NoError(t, err)

	var got [][2]uint64
	for _, m := range matches {
		got = append(got, [2]uint64{uint64(m.ID), m.To})
	}
	assert.Equal(t, [][2]uint64{{10, 3}, {20, 3}, {10, 11}, {10, 15}}, got)
}

func TestScanBytes_Concurrent(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				matches, err := scanner.ScanString("another test line")
				assert.NoError(t, err)
				assert.Len(t, matches, 1)
			}
		}()
	}
	wg.Wait()
}

func TestScanReader(t *testing.T) {
	scanner, err := NewScanner(WithMaxRecordSize(8))
	require.NoError(t, err)
	defer scanner.Close()

	var c matcher.Collector
	stats, err := scanner.ScanReader(context.Background(), strings.NewReader("test\n0123456789test\nxtest"), &c)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Records)
	assert.Equal(t, int64(1), stats.Truncated)
	require.Len(t, c.Events, 2)
	assert.Equal(t, uint64(4), c.Events[0].To)
	assert.Equal(t, uint64(5), c.Events[1].To)
}

func TestScanFile(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("a test\nno match\n"), 0644))

	var c matcher.Collector
	stats, err := scanner.ScanFile(context.Background(), path, &c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Matches)

	_, err = scanner.ScanFile(context.Background(), filepath.Join(t.TempDir(), "missing"), &c)
	var inputErr *stream.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestLoadPatternsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - id: 5\n    text: needle\n"), 0644))

	patterns, err := LoadPatternsFromFile(path)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	scanner, err := NewScanner(WithPatterns(patterns...))
	require.NoError(t, err)
	defer scanner.Close()

	matches, err := scanner.ScanString("haystack needle")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint(5), matches[0].ID)
}

func TestPatterns_ReturnsCopy(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)
	defer scanner.Close()

	patterns := scanner.Patterns()
	patterns[0].Text = "changed"
	assert.Equal(t, "does not exist", scanner.PatternText(0))
}

func TestClose_FreesIdleScratches(t *testing.T) {
	scanner, err := NewScanner()
	require.NoError(t, err)

	_, err = scanner.ScanString("a test")
	require.NoError(t, err)
	_, err = scanner.ScanString("another test")
	require.NoError(t, err)

	// Sequential calls reuse one scratch
	assert.Equal(t, 1, scanner.idleScratches())

	require.NoError(t, scanner.Close())
	assert.Equal(t, 0, scanner.idleScratches())
	assert.NoError(t, scanner.Close())

	_, err = scanner.ScanString("test")
	assert.ErrorIs(t, err, matcher.ErrDatabaseClosed)
}
