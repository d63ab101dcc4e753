package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/pattern"
	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/stream"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanPatternsPath  string
	scanBuiltin       string
	scanExpressions   []string
	scanSingleMatch   bool
	scanMaxRecordSize int
	scanWorkers       int
	scanOutputPath    string
	scanCountOnly     bool
	scanStopOnMatch   bool
	scanColor         string
)

var scanCmd = &cobra.Command{
	Use:   "scan <input>",
	Short: "Scan newline-delimited input for patterns",
	Long: `Scan a file (or "-" for stdin) line by line against a compiled pattern set.
Patterns come from a YAML file (--patterns), literal expressions (-e) or
the embedded builtin set.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanPatternsPath, "patterns", "", "Path to a YAML patterns file")
	scanCmd.Flags().StringVar(&scanBuiltin, "builtin", pattern.DefaultBuiltin, "Builtin pattern set used when no patterns are given")
	scanCmd.Flags().StringArrayVarP(&scanExpressions, "expression", "e", nil, "Literal pattern (repeatable, IDs assigned in order)")
	scanCmd.Flags().BoolVar(&scanSingleMatch, "single-match", true, "Report each -e pattern at most once per line")
	scanCmd.Flags().IntVar(&scanMaxRecordSize, "max-record-size", stream.DefaultMaxRecordSize, "Lines longer than this are truncated (bytes)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 1, "Number of scanning goroutines")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "", "Record the run summary in this SQLite database")
	scanCmd.Flags().BoolVar(&scanCountOnly, "count", false, "Only print the summary, not every match")
	scanCmd.Flags().BoolVar(&scanStopOnMatch, "stop-on-match", false, "Stop scanning a line after its first match")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.MarkFlagsMutuallyExclusive("patterns", "expression")
}

func runScan(cmd *cobra.Command, args []string) error {
	input := args[0]
	logger := newLogger(cmd)

	set, err := loadPatterns()
	if err != nil {
		return err
	}

	db, err := matcher.Compile(set.Patterns())
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Debug("compiled patterns", "backend", db.Backend(), "patterns", db.PatternCount(), "scratch_size", db.ScratchSize())

	r, closeInput, err := openInput(cmd, input)
	if err != nil {
		return err
	}
	defer closeInput()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	printer := newMatchPrinter(cmd.OutOrStdout(), set, newStyles(colorEnabled(scanColor)))
	printer.countOnly = scanCountOnly
	printer.stopOnMatch = scanStopOnMatch

	driver := stream.New(stream.Config{
		MaxRecordSize: scanMaxRecordSize,
		Workers:       scanWorkers,
	}, stream.WithLogger(logger))

	startedAt := time.Now()
	logger.Info("start scanning", "input", input, "patterns", set.Len())

	var stats types.ScanStatistics
	if scanWorkers > 1 {
		stats, err = driver.RunParallel(ctx, db, r, printer)
	} else {
		var scratch matcher.Scratch
		scratch, err = matcher.AllocScratch(db)
		if err != nil {
			return err
		}
		defer scratch.Free()
		stats, err = driver.Run(ctx, db, scratch, r, printer)
	}
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), stats)
	logger.Debug("scan finished", "records", stats.Records, "truncated", stats.Truncated, "matches", stats.Matches)

	if scanOutputPath != "" {
		run := &types.Run{
			ID:          uuid.NewString(),
			StartedAt:   startedAt.UTC(),
			Input:       input,
			Backend:     db.Backend(),
			Fingerprint: fmt.Sprintf("%016x", db.Fingerprint()),
			Stats:       stats,
			PatternHits: printer.Hits(),
		}
		if err := saveRun(scanOutputPath, run); err != nil {
			return err
		}
		logger.Info("run recorded", "id", run.ID, "output", scanOutputPath)
	}

	return nil
}

// loadPatterns resolves the pattern set from the scan flags.
func loadPatterns() (*types.PatternSet, error) {
	loader := pattern.NewLoader()

	switch {
	case scanPatternsPath != "":
		set, err := loader.LoadFile(scanPatternsPath)
		if err != nil {
			return nil, fmt.Errorf("loading patterns from %s: %w", scanPatternsPath, err)
		}
		return set, nil
	case len(scanExpressions) > 0:
		var flags types.Flag
		if scanSingleMatch {
			flags |= types.SingleMatch
		}
		set := types.NewPatternSet()
		set.AddLiterals(flags, scanExpressions...)
		return set, nil
	default:
		set, err := loader.LoadBuiltin(scanBuiltin)
		if err != nil {
			return nil, fmt.Errorf("loading builtin patterns: %w", err)
		}
		return set, nil
	}
}

// openInput opens the named input, "-" meaning the command's stdin.
func openInput(cmd *cobra.Command, name string) (io.Reader, func(), error) {
	if name == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, &stream.InputError{Err: err}
	}
	return f, func() { f.Close() }, nil
}

func printSummary(w io.Writer, stats types.ScanStatistics) {
	fmt.Fprintf(w, "Scanned a total of %d MB across %d line scans in %.3f seconds.\n",
		stats.ScannedMB(), stats.Records, stats.Elapsed.Seconds())
	fmt.Fprintf(w, "=> %.2f MB/s scans.\n", stats.Throughput())
}

func saveRun(path string, run *types.Run) error {
	s, err := store.New(store.Config{Path: path})
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer s.Close()

	if err := s.AddRun(run); err != nil {
		return fmt.Errorf("storing run: %w", err)
	}
	return nil
}

// matchPrinter writes one line per match and tallies hits per pattern.
// It is safe for use by parallel scan workers.
type matchPrinter struct {
	mu          sync.Mutex
	out         io.Writer
	set         *types.PatternSet
	styles      *styles
	hits        map[uint]int64
	countOnly   bool
	stopOnMatch bool
}

func newMatchPrinter(out io.Writer, set *types.PatternSet, s *styles) *matchPrinter {
	return &matchPrinter{
		out:    out,
		set:    set,
		styles: s,
		hits:   make(map[uint]int64),
	}
}

func (p *matchPrinter) OnMatch(ev types.MatchEvent) matcher.Action {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hits[ev.ID]++
	if !p.countOnly {
		fmt.Fprintf(p.out, "Match for pattern \"%s\" with id \"%s\" at offset %d\n",
			p.styles.pattern.Sprint(p.set.Text(ev.ID)),
			p.styles.id.Sprint(ev.ID),
			ev.To)
	}

	if p.stopOnMatch {
		return matcher.Stop
	}
	return matcher.Continue
}

// Hits returns a copy of the per-pattern match counts.
func (p *matchPrinter) Hits() map[uint]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return maps.Clone(p.hits)
}
