// Package async runs many screenshots through the pipeline concurrently.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/wingspan-tracker/constants"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/ingest"
	"github.com/joseph-ayodele/wingspan-tracker/internal/pipeline"
)

// Scanner runs one upload and returns its audit id (uuid.Nil when not recorded).
type Scanner interface {
	Scan(ctx context.Context, callerID string, upload imageprep.RawUpload) (pipeline.Result, uuid.UUID, error)
}

// Outcome is what happened to one file.
type Outcome struct {
	Path        string
	HashHex     string
	JobID       uuid.UUID
	Result      pipeline.Result
	DuplicateOf string // set when the same bytes were already scanned in this run
	Err         error
	Elapsed     time.Duration
}

type Summary struct {
	Total      int
	Succeeded  int
	Failed     int
	Duplicates int
	NeedReview int
}

type settings struct {
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	callerID string
	maxBytes int64
}

type Option func(*settings)

func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallerID sets the identity scans are attributed to (and rate limited by).
func WithCallerID(id string) Option {
	return func(s *settings) {
		if id != "" {
			s.callerID = id
		}
	}
}

func WithMaxFileBytes(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:   slog.Default(),
		workers:  4,
		timeout:  3 * time.Minute,
		callerID: "local",
		maxBytes: constants.MaxUploadBytes,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Batch scans a fixed list of files with a bounded number of workers.
type Batch struct {
	scanner Scanner
	settings
}

func NewBatch(scanner Scanner, opts ...Option) *Batch {
	return &Batch{scanner: scanner, settings: newSettings(opts)}
}

// Run scans every path and returns outcomes in input order. Per-file failures are
// reported in the outcome; the returned error is set only when ctx ends the run early.
func (b *Batch) Run(ctx context.Context, paths []string) ([]Outcome, Summary, error) {
	start := time.Now()
	out := make([]Outcome, len(paths))

	var mu sync.Mutex
	seen := make(map[string]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, path := range paths {
		out[i].Path = path
		if gctx.Err() != nil {
			out[i].Err = gctx.Err()
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			f, err := ingest.ReadFile(path, b.maxBytes)
			if err != nil {
				out[i].Err = err
				return nil
			}
			out[i].HashHex = f.HashHex

			mu.Lock()
			first, dup := seen[f.HashHex]
			if !dup {
				seen[f.HashHex] = path
			}
			mu.Unlock()
			if dup {
				out[i].DuplicateOf = first
				b.logger.Info("batch.file.duplicate", "path", path, "duplicate_of", first)
				return nil
			}

			out[i] = b.scan(gctx, b.scanner, f)
			return nil
		})
	}
	_ = g.Wait()

	sum := summarize(out)
	b.logger.Info("batch.run.done",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"duplicates", sum.Duplicates,
		"need_review", sum.NeedReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, sum, ctx.Err()
}

func (s settings) scan(ctx context.Context, scanner Scanner, f ingest.File) Outcome {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = common.WithRequestID(ctx, uuid.New().String())

	res, jobID, err := scanner.Scan(ctx, s.callerID, f.Upload)
	o := Outcome{Path: f.Path, HashHex: f.HashHex, JobID: jobID, Result: res, Err: err, Elapsed: time.Since(started)}
	if err != nil {
		s.logger.Error("batch.file.failed", "path", f.Path, "code", common.CodeOf(err), "error", err)
	} else {
		s.logger.Info("batch.file.ok", "path", f.Path, "players", len(res.Data.Players),
			"confidence", res.Confidence, "needs_review", res.NeedsReview())
	}
	return o
}

func summarize(out []Outcome) Summary {
	s := Summary{Total: len(out)}
	for _, o := range out {
		switch {
		case o.DuplicateOf != "":
			s.Duplicates++
		case o.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
			if o.Result.NeedsReview() {
				s.NeedReview++
			}
		}
	}
	return s
}
