package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	reportFormat string
	reportColor  string
)

var reportCmd = &cobra.Command{
	Use:   "report <database>",
	Short: "Show recorded scan runs",
	Long:  "Read the run summaries stored by 'sieve scan --output' and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
}

func runReport(cmd *cobra.Command, args []string) error {
	path := args[0]

	if path == ":memory:" {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("run database not found: %s", path)
	}

	s, err := store.New(store.Config{Path: path})
	if err != nil {
		return fmt.Errorf("opening run database: %w", err)
	}
	defer s.Close()

	runs, err := s.GetRuns()
	if err != nil {
		return fmt.Errorf("retrieving runs: %w", err)
	}

	switch reportFormat {
	case "json":
		return outputReportJSON(cmd.OutOrStdout(), runs)
	case "human":
		outputReportHuman(cmd.OutOrStdout(), runs, newStyles(colorEnabled(reportColor)))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// runJSON is the JSON form of a stored run.
type runJSON struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	Input        string         `json:"input"`
	Backend      string         `json:"backend"`
	Fingerprint  string         `json:"fingerprint"`
	BytesScanned int64          `json:"bytes_scanned"`
	Records      int64          `json:"records"`
	Truncated    int64          `json:"truncated"`
	Matches      int64          `json:"matches"`
	ElapsedSecs  float64        `json:"elapsed_seconds"`
	Throughput   float64        `json:"throughput_mb_s"`
	PatternHits  map[uint]int64 `json:"pattern_hits"`
}

func outputReportJSON(w io.Writer, runs []*types.Run) error {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			ID:           r.ID,
			StartedAt:    r.StartedAt,
			Input:        r.Input,
			Backend:      r.Backend,
			Fingerprint:  r.Fingerprint,
			BytesScanned: r.Stats.BytesScanned,
			Records:      r.Stats.Records,
			Truncated:    r.Stats.Truncated,
			Matches:      r.Stats.Matches,
			ElapsedSecs:  r.Stats.Elapsed.Seconds(),
			Throughput:   r.Stats.Throughput(),
			PatternHits:  r.PatternHits,
		})
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func outputReportHuman(w io.Writer, runs []*types.Run, s *styles) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	for i, r := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", s.heading.Sprint("Run"), s.id.Sprint(r.ID))
		fmt.Fprintf(w, "  Started:     %s\n", r.StartedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Input:       %s\n", r.Input)
		fmt.Fprintf(w, "  Backend:     %s (%s)\n", r.Backend, r.Fingerprint)
		fmt.Fprintf(w, "  Lines:       %s (%d truncated)\n", s.metric.Sprint(r.Stats.Records), r.Stats.Truncated)
		fmt.Fprintf(w, "  Scanned:     %s MB in %.3f seconds\n", s.metric.Sprint(r.Stats.ScannedMB()), r.Stats.Elapsed.Seconds())
		fmt.Fprintf(w, "  Throughput:  %s MB/s\n", s.metric.Sprintf("%.2f", r.Stats.Throughput()))
		fmt.Fprintf(w, "  Matches:     %s\n", s.metric.Sprint(r.Stats.Matches))

		ids := make([]uint, 0, len(r.PatternHits))
		for id := range r.PatternHits {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "    pattern %s: %d\n", s.id.Sprint(id), r.PatternHits[id])
		}
	}
}
