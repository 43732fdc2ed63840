package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/wingspan-tracker/internal/async"
	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/export"
	"github.com/joseph-ayodele/wingspan-tracker/internal/ingest"
)

var batchFlags struct {
	dir        string
	workers    int
	inmem      bool
	xlsxPath   string
	caller     string
	skipHidden bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract scores from every screenshot in a directory",
	RunE:  runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.dir, "dir", "", "directory to scan (required)")
	f.IntVar(&batchFlags.workers, "workers", 4, "concurrent vision requests")
	f.BoolVar(&batchFlags.inmem, "inmem", false, "record scans in an in-memory SQLite store instead of the configured database")
	f.StringVar(&batchFlags.xlsxPath, "xlsx", "", "write a review workbook to this path")
	f.StringVar(&batchFlags.caller, "caller", "local", "caller id recorded in the audit store")
	f.BoolVar(&batchFlags.skipHidden, "skip-hidden", true, "skip dot files and dot directories")

	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	paths, stats, err := ingest.ListImages(batchFlags.dir, batchFlags.skipHidden)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No screenshots found in %s (%d entries scanned)\n", batchFlags.dir, stats.Scanned)
		return nil
	}

	mode := storeConfigured
	if batchFlags.inmem {
		mode = storeInMemory
	}
	e, cleanup, err := setup(ctx, mode)
	if err != nil {
		return err
	}
	defer cleanup()

	batch := async.NewBatch(e.scanner,
		async.WithWorkers(batchFlags.workers),
		async.WithProcessTimeout(e.cfg.Server.RequestTimeout),
		async.WithCallerID(batchFlags.caller),
		async.WithMaxFileBytes(int64(e.cfg.Upload.MaxUploadBytes)),
		async.WithLogger(e.logger),
	)
	outcomes, sum, runErr := batch.Run(ctx, paths)

	out := cmd.OutOrStdout()
	var scans []export.Scan
	for _, o := range outcomes {
		switch {
		case o.DuplicateOf != "":
			fmt.Fprintf(out, "%s  duplicate of %s\n", o.Path, o.DuplicateOf)
		case o.Err != nil:
			fmt.Fprintf(out, "%s  FAILED [%s] %v\n", o.Path, common.CodeOf(o.Err), o.Err)
		default:
			printResult(out, o.Path, o.Result)
			scans = append(scans, export.Scan{Source: o.Path, Result: o.Result})
		}
	}
	fmt.Fprintf(out, "\n%d files: %d ok (%d need review), %d failed, %d duplicates\n",
		sum.Total, sum.Succeeded, sum.NeedReview, sum.Failed, sum.Duplicates)

	if batchFlags.xlsxPath != "" {
		b, err := export.NewService(nil, e.logger).ScoresheetXLSX(scans)
		if err != nil {
			return err
		}
		if err := writeFile(batchFlags.xlsxPath, b); err != nil {
			return err
		}
		fmt.Fprintf(out, "Workbook: %s\n", batchFlags.xlsxPath)
	}

	if runErr != nil {
		return runErr
	}
	if sum.Failed > 0 {
		return errors.New("some screenshots could not be read")
	}
	return nil
}
