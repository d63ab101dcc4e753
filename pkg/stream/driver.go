// Package stream drives a matcher.Database over newline-delimited input.
package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/praetorian-inc/sieve/pkg/logging"
	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/types"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxRecordSize bounds the bytes of one record handed to the scanner
	DefaultMaxRecordSize = 1024
	// DefaultDelimiter separates records
	DefaultDelimiter = '\n'
)

// Config configures record splitting.
type Config struct {
	MaxRecordSize int  // longer records are truncated (default 1024)
	Delimiter     byte // record separator (default '\n')
	Workers       int  // RunParallel workers (default runtime.NumCPU())
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecordSize: DefaultMaxRecordSize,
		Delimiter:     DefaultDelimiter,
		Workers:       runtime.NumCPU(),
	}
}

// InputError reports a failure reading the input source.
type InputError struct {
	Record int64 // record being read when the failure happened (1-based)
	Err    error
}

func (e *InputError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("read input (record %d): %v", e.Record, e.Err)
	}
	return fmt.Sprintf("read input: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Driver feeds records from a reader to a Database.
type Driver struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for truncation warnings and progress.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// New creates a Driver. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Driver {
	def := DefaultConfig()
	if cfg.MaxRecordSize <= 0 {
		cfg.MaxRecordSize = def.MaxRecordSize
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = def.Delimiter
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	d := &Driver{
		cfg:    cfg,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Config returns the effective configuration.
func (d *Driver) Config() Config {
	return d.cfg
}

// Run scans every record of r with db and scratch, reporting matches to h.
//
// The scratch is reused for every record. A scan failure stops the stream
// and is returned wrapped with the record number; the statistics gathered
// up to that point are returned alongside. A handler Stop only ends the
// current record.
func (d *Driver) Run(ctx context.Context, db matcher.Database, scratch matcher.Scratch, r io.Reader, h matcher.Handler) (types.ScanStatistics, error) {
	var stats types.ScanStatistics
	start := d.now()
	rr := newRecordReader(r, d.cfg.Delimiter, d.cfg.MaxRecordSize)

	d.logger.Debug("scan started", "backend", db.Backend(), "patterns", db.PatternCount(), "max_record_size", d.cfg.MaxRecordSize)

	for {
		if err := ctx.Err(); err != nil {
			stats.Elapsed = d.now().Sub(start)
			return stats, err
		}

		ok, err := rr.next()
		if err != nil {
			stats.Elapsed = d.now().Sub(start)
			return stats, &InputError{Record: stats.Records + 1, Err: err}
		}
		if !ok {
			break
		}

		stats.Records++
		if rr.truncated {
			stats.Truncated++
			d.warnTruncated(stats.Records, rr.length)
		}
		stats.BytesScanned += int64(len(rr.buf)) + 1

		res, err := db.Scan(rr.buf, scratch, h)
		stats.Matches += int64(res.Matches)
		if err != nil {
			stats.Elapsed = d.now().Sub(start)
			return stats, fmt.Errorf("record %d: %w", stats.Records, err)
		}
	}

	stats.Elapsed = d.now().Sub(start)
	d.logger.Debug("scan finished", "records", stats.Records, "bytes", stats.BytesScanned, "matches", stats.Matches, "elapsed", stats.Elapsed)
	return stats, nil
}

// record is a copied record queued for a parallel worker.
type record struct {
	num  int64
	data []byte
}

// RunParallel scans records of r on Config.Workers goroutines, each with
// its own clone of a scratch allocated for db. h must be safe for
// concurrent use; matches of different records arrive in no fixed order.
func (d *Driver) RunParallel(ctx context.Context, db matcher.Database, r io.Reader, h matcher.Handler) (types.ScanStatistics, error) {
	var stats types.ScanStatistics
	start := d.now()

	proto, err := matcher.AllocScratch(db)
	if err != nil {
		return stats, err
	}
	defer proto.Free()

	scratches := make([]matcher.Scratch, d.cfg.Workers)
	for i := range scratches {
		s, err := proto.Clone()
		if err != nil {
			for _, prev := range scratches[:i] {
				prev.Free()
			}
			return stats, err
		}
		scratches[i] = s
	}

	var matches atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan record, d.cfg.Workers*2)

	// Feed records to workers
	g.Go(func() error {
		defer close(records)
		rr := newRecordReader(r, d.cfg.Delimiter, d.cfg.MaxRecordSize)
		for {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := rr.next()
			if err != nil {
				return &InputError{Record: stats.Records + 1, Err: err}
			}
			if !ok {
				return nil
			}

			stats.Records++
			if rr.truncated {
				stats.Truncated++
				d.warnTruncated(stats.Records, rr.length)
			}
			stats.BytesScanned += int64(len(rr.buf)) + 1

			rec := record{num: stats.Records, data: append([]byte(nil), rr.buf...)}
			select {
			case records <- rec:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for _, s := range scratches {
		g.Go(func() error {
			defer s.Free()
			for rec := range records {
				if gctx.Err() != nil {
					continue
				}
				res, err := db.Scan(rec.data, s, h)
				matches.Add(int64(res.Matches))
				if err != nil {
					return fmt.Errorf("record %d: %w", rec.num, err)
				}
			}
			return nil
		})
	}

	err = g.Wait()
	stats.Matches = matches.Load()
	stats.Elapsed = d.now().Sub(start)
	return stats, err
}

func (d *Driver) warnTruncated(num int64, length int) {
	d.logger.Warn("record truncated",
		"record", num,
		"length", length,
		"max", d.cfg.MaxRecordSize,
	)
}
