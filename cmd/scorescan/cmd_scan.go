package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/export"
	"github.com/joseph-ayodele/wingspan-tracker/internal/ingest"
)

var scanFlags struct {
	asJSON   bool
	xlsxPath string
	caller   string
	store    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Extract scores from one screenshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.BoolVar(&scanFlags.asJSON, "json", false, "print the result as JSON")
	f.StringVar(&scanFlags.xlsxPath, "xlsx", "", "also write a review workbook to this path")
	f.StringVar(&scanFlags.caller, "caller", "local", "caller id recorded in the audit store")
	f.BoolVar(&scanFlags.store, "store", false, "record the scan in the configured database")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mode := storeNone
	if scanFlags.store {
		mode = storeConfigured
	}
	e, cleanup, err := setup(ctx, mode)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := ingest.ReadFile(args[0], int64(e.cfg.Upload.MaxUploadBytes))
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, e.cfg.Server.RequestTimeout)
	defer cancel()
	ctx = common.WithRequestID(ctx, f.HashHex[:12])

	res, jobID, err := e.scanner.Scan(ctx, scanFlags.caller, f.Upload)
	if err != nil {
		return fmt.Errorf("scan %s: %w", filepath.Base(args[0]), err)
	}

	out := cmd.OutOrStdout()
	if scanFlags.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(out, f.Path, res)
		if jobID != uuid.Nil {
			fmt.Fprintf(out, "  job: %s\n", jobID)
		}
	}

	if scanFlags.xlsxPath != "" {
		b, err := export.NewService(nil, e.logger).ScoresheetXLSX([]export.Scan{{Source: f.Path, Result: res}})
		if err != nil {
			return err
		}
		return writeFile(scanFlags.xlsxPath, b)
	}
	return nil
}
