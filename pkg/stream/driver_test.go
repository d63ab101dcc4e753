package stream

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, patterns ...types.Pattern) (matcher.Database, matcher.Scratch) {
	t.Helper()
	db, err := matcher.Compile(patterns)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	scratch, err := matcher.AllocScratch(db)
	require.NoError(t, err)
	t.Cleanup(func() { scratch.Free() })
	return db, scratch
}

func TestRun_SingleMatchScenario(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 2, Text: "test", Flags: types.SingleMatch})

	var c matcher.Collector
	stats, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader("this is a test of test\n"), &c)
	require.NoError(t, err)

	require.Len(t, c.Events, 1)
	assert.Equal(t, uint(2), c.Events[0].ID)
	assert.Equal(t, uint64(14), c.Events[0].To)
	assert.Equal(t, int64(1), stats.Records)
	assert.Equal(t, int64(23), stats.BytesScanned)
	assert.Equal(t, int64(1), stats.Matches)
}

func TestRun_SingleMatchResetsPerRecord(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "test", Flags: types.SingleMatch})

	var c matcher.Collector
	stats, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader("test test\ntest\n"), &c)
	require.NoError(t, err)

	assert.Len(t, c.Events, 2)
	assert.Equal(t, int64(2), stats.Matches)
}

func TestRun_FooBarScenario(t *testing.T) {
	db, scratch := compile(t,
		types.Pattern{ID: 0, Text: "foo"},
		types.Pattern{ID: 1, Text: "bar"},
	)

	var c matcher.Collector
	_, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader("foobar"), &c)
	require.NoError(t, err)

	require.Len(t, c.Events, 2)
	assert.Equal(t, uint(0), c.Events[0].ID)
	assert.Equal(t, uint(1), c.Events[1].ID)
}

func TestRun_TruncatesLongRecord(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "test"})

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	var c matcher.Collector
	input := "aaaaaaaaaatest\na test\n"
	stats, err := New(Config{MaxRecordSize: 8}, WithLogger(logger)).Run(context.Background(), db, scratch, strings.NewReader(input), &c)
	require.NoError(t, err)

	// Only the truncated prefix "aaaaaaaa" of the first record is searched.
	require.Len(t, c.Events, 1)
	assert.Equal(t, uint64(6), c.Events[0].To)

	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Truncated)
	assert.Equal(t, int64(8+1+6+1), stats.BytesScanned)
	assert.Equal(t, 1, strings.Count(logBuf.String(), "record truncated"))
	assert.Contains(t, logBuf.String(), `"length":14`)
}

func TestRun_TruncatesRecordLargerThanReadBuffer(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "test"})

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	input := strings.Repeat("x", 3*minReadBuffer) + "test\n" + "test\n"
	var c matcher.Collector
	stats, err := New(Config{}, WithLogger(logger)).Run(context.Background(), db, scratch, strings.NewReader(input), &c)
	require.NoError(t, err)

	require.Len(t, c.Events, 1)
	assert.Equal(t, int64(2), stats.Records)
	assert.Equal(t, int64(1), stats.Truncated)
	assert.Equal(t, int64(DefaultMaxRecordSize+1+5), stats.BytesScanned)
	assert.Equal(t, 1, strings.Count(logBuf.String(), "record truncated"))
}

func TestRun_RecordAtExactlyMaxIsNotTruncated(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "test"})

	stats, err := New(Config{MaxRecordSize: 4}).Run(context.Background(), db, scratch, strings.NewReader("test\n"), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Truncated)
	assert.Equal(t, int64(1), stats.Matches)
}

func TestRun_RecordSplitting(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantRecords int64
		wantBytes   int64
		wantMatches int64
	}{
		{"empty input", "", 0, 0, 0},
		{"empty lines", "\n\n", 2, 2, 0},
		{"no trailing newline", "a\nb", 2, 4, 1},
		{"trailing newline", "b\nb\n", 2, 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, scratch := compile(t, types.Pattern{ID: 0, Text: "b"})

			stats, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader(tt.input), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRecords, stats.Records)
			assert.Equal(t, tt.wantBytes, stats.BytesScanned)
			assert.Equal(t, tt.wantMatches, stats.Matches)
		})
	}
}

func TestRun_CustomDelimiter(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "ab"})

	stats, err := New(Config{Delimiter: ','}).Run(context.Background(), db, scratch, strings.NewReader("a,b,ab,"), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Records)
	assert.Equal(t, int64(1), stats.Matches)
}

func TestRun_StopEndsOnlyCurrentRecord(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "a"})

	calls := 0
	h := matcher.HandlerFunc(func(ev types.MatchEvent) matcher.Action {
		calls++
		return matcher.Stop
	})

	stats, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader("aaa\naaa\naaa\n"), h)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(3), stats.Records)
}

func TestRun_ScanErrorAbortsStream(t *testing.T) {
	db, _ := compile(t, types.Pattern{ID: 0, Text: "a"})
	_, otherScratch := compile(t, types.Pattern{ID: 0, Text: "b"})

	stats, err := New(Config{}).Run(context.Background(), db, otherScratch, strings.NewReader("a\na\n"), nil)
	require.Error(t, err)

	var scanErr *matcher.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.ErrorIs(t, err, matcher.ErrScratchMismatch)
	assert.Contains(t, err.Error(), "record 1")
	assert.Equal(t, int64(1), stats.Records)
}

func TestRun_InputError(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "a"})

	readErr := errors.New("disk on fire")

	_, err := New(Config{}).Run(context.Background(), db, scratch, iotest.ErrReader(readErr), nil)
	require.Error(t, err)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, int64(1), inputErr.Record)
	assert.ErrorIs(t, err, readErr)
}

func TestRun_ContextCancelled(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Run(ctx, db, scratch, strings.NewReader("a\n"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ElapsedAndThroughput(t *testing.T) {
	db, scratch := compile(t, types.Pattern{ID: 0, Text: "zzz"})

	base := time.Unix(1700000000, 0)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(2 * time.Second)
	}

	// 1024 lines of 1023 bytes plus newline = 1 MiB
	input := strings.Repeat(strings.Repeat("x", 1023)+"\n", 1024)
	stats, err := New(Config{}, WithClock(clock)).Run(context.Background(), db, scratch, strings.NewReader(input), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1024*1024), stats.BytesScanned)
	assert.Equal(t, 2*time.Second, stats.Elapsed)
	assert.Equal(t, 0.5, stats.Throughput())
}

func TestRunParallel_MatchesSequential(t *testing.T) {
	patterns := []types.Pattern{
		{ID: 0, Text: "foo"},
		{ID: 1, Text: "bar", Flags: types.SingleMatch},
		{ID: 2, Text: "baz"},
	}
	db, scratch := compile(t, patterns...)

	var sb strings.Builder
	for i := 0; i < 500; i++ {
		switch i % 4 {
		case 0:
			sb.WriteString("foo bar bar baz\n")
		case 1:
			sb.WriteString("nothing here\n")
		case 2:
			sb.WriteString(strings.Repeat("foo", 400) + "\n")
		default:
			sb.WriteString("barbaz\n")
		}
	}
	input := sb.String()

	seq, err := New(Config{}).Run(context.Background(), db, scratch, strings.NewReader(input), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	perID := make(map[uint]int)
	h := matcher.HandlerFunc(func(ev types.MatchEvent) matcher.Action {
		mu.Lock()
		perID[ev.ID]++
		mu.Unlock()
		return matcher.Continue
	})

	par, err := New(Config{Workers: 4}).RunParallel(context.Background(), db, strings.NewReader(input), h)
	require.NoError(t, err)

	assert.Equal(t, seq.Records, par.Records)
	assert.Equal(t, seq.BytesScanned, par.BytesScanned)
	assert.Equal(t, seq.Truncated, par.Truncated)
	assert.Equal(t, seq.Matches, par.Matches)
	assert.Equal(t, 250, perID[1])
}

// faultyDatabase fails any record containing "boom".
type faultyDatabase struct {
	matcher.Database
}

func (f faultyDatabase) Scan(data []byte, scratch matcher.Scratch, h matcher.Handler) (matcher.ScanResult, error) {
	if bytes.Contains(data, []byte("boom")) {
		return matcher.ScanResult{}, &matcher.ScanError{Err: errors.New("internal fault")}
	}
	return f.Database.Scan(data, scratch, h)
}

func TestRunParallel_ScanErrorAbortsStream(t *testing.T) {
	db, _ := compile(t, types.Pattern{ID: 0, Text: "a"})

	input := strings.Repeat("a\n", 100) + "boom\n" + strings.Repeat("a\n", 100)
	_, err := New(Config{Workers: 2}).RunParallel(context.Background(), faultyDatabase{db}, strings.NewReader(input), nil)
	require.Error(t, err)

	var scanErr *matcher.ScanError
	require.ErrorAs(t, err, &scanErr)
	assert.Contains(t, err.Error(), "record 101")
}

func TestNew_Defaults(t *testing.T) {
	cfg := New(Config{}).Config()
	assert.Equal(t, DefaultMaxRecordSize, cfg.MaxRecordSize)
	assert.Equal(t, byte('\n'), cfg.Delimiter)
	assert.Positive(t, cfg.Workers)
}
