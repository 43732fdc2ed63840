package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/wingspan-tracker/internal/async"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/ingest"
)

var watchFlags struct {
	dir      string
	workers  int
	debounce time.Duration
	existing bool
	caller   string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan screenshots as they are saved into a directory",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchFlags.dir, "dir", "", "directory to watch (required)")
	f.IntVar(&watchFlags.workers, "workers", 2, "concurrent vision requests")
	f.DurationVar(&watchFlags.debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before scanning")
	f.BoolVar(&watchFlags.existing, "existing", false, "also scan screenshots already in the directory")
	f.StringVar(&watchFlags.caller, "caller", "local", "caller id recorded in the audit store")

	_ = watchCmd.MarkFlagRequired("dir")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, cleanup, err := setup(ctx, storeConfigured)
	if err != nil {
		return err
	}
	defer cleanup()

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{watchFlags.dir},
		InitialScan: watchFlags.existing,
		SkipHidden:  true,
		Debounce:    watchFlags.debounce,
		Logger:      e.logger,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var printMu sync.Mutex
	q := async.NewQueue(e.scanner, 64, func(o async.Outcome) {
		printMu.Lock()
		defer printMu.Unlock()
		if o.Err != nil {
			fmt.Fprintf(out, "%s  FAILED [%s] %v\n", o.Path, common.CodeOf(o.Err), o.Err)
			return
		}
		printResult(out, o.Path, o.Result)
	},
		async.WithWorkers(watchFlags.workers),
		async.WithProcessTimeout(e.cfg.Server.RequestTimeout),
		async.WithCallerID(watchFlags.caller),
		async.WithMaxFileBytes(int64(e.cfg.Upload.MaxUploadBytes)),
		async.WithLogger(e.logger),
	)
	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", watchFlags.dir)

	for {
		select {
		case path, ok := <-events:
			if !ok {
				return drain(q, e.cfg.Server.ShutdownTimeout)
			}
			if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
				e.logger.Warn("watch.enqueue_failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Warn("watch.error", "error", err)
		case <-ctx.Done():
			return drain(q, e.cfg.Server.ShutdownTimeout)
		}
	}
}

func drain(q *async.Queue, timeout time.Duration) error {
	ctx, cancel := withTimeout(context.Background(), timeout)
	defer cancel()
	q.Shutdown(ctx)
	return nil
}
