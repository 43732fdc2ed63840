package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/wingspan-tracker/internal/pipeline"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
)

// env is what every subcommand needs: config, logger, and optionally the audit store.
type env struct {
	cfg     *common.Config
	logger  *slog.Logger
	db      *repository.DB
	jobs    repository.ScanJobRepository
	scanner *pipeline.AuditedProcessor
}

type storeMode int

const (
	storeNone storeMode = iota
	storeConfigured
	storeInMemory
)

func loadEnv() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	// stdout carries results; logs go to stderr as JSON
	cfg.Log.Format = "json"
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger, mode storeMode) (*repository.DB, error) {
	dsn := cfg.Database.DSN
	switch mode {
	case storeNone:
		return nil, nil
	case storeInMemory:
		dsn = ":memory:"
	case storeConfigured:
		if dsn == "" {
			return nil, nil
		}
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:              dsn,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close(logger)
		return nil, err
	}
	return db, nil
}

// setup builds the pipeline. The CLI runs on the operator's own quota, so no rate-limit gate.
func setup(ctx context.Context, mode storeMode) (*env, func(), error) {
	cfg, logger, err := loadEnv()
	if err != nil {
		return nil, nil, err
	}
	vision, err := provider.New(cfg.Vision, logger)
	if err != nil {
		return nil, nil, err
	}
	db, err := openStore(ctx, cfg, logger, mode)
	if err != nil {
		return nil, nil, err
	}

	e := &env{cfg: cfg, logger: logger, db: db}
	if db != nil {
		e.jobs = repositoryFor(db, logger)
	}
	prep := imageprep.New(imageprep.OptionsFromConfig(cfg.Upload), logger)
	proc := pipeline.NewProcessor(prep, vision, pipeline.WithLogger(logger))
	e.scanner = pipeline.NewAuditedProcessor(proc, e.jobs, logger)

	cleanup := func() {
		if db != nil {
			db.Close(logger)
		}
	}
	return e, cleanup, nil
}

func printResult(w io.Writer, source string, res pipeline.Result) {
	fmt.Fprintf(w, "%s  confidence=%.2f  needs_review=%t  model=%s\n", source, res.Confidence, res.NeedsReview(), res.Model)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  #\tPlayer\tTotal\tBirds\tBonus\tGoals\tEggs\tFood\tTucked\tNectar")
	for _, p := range res.Data.Players {
		b := p.ScoringBreakdown
		fmt.Fprintf(tw, "  %d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			p.Placement, p.PlayerName, p.TotalScore,
			b.Birds, b.BonusCards, b.EndOfRoundGoals, b.Eggs, b.FoodOnCards, b.TuckedCards, b.Nectar)
	}
	_ = tw.Flush()
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
	if notes := strings.TrimSpace(res.Data.ExtractionNotes); notes != "" {
		fmt.Fprintf(w, "  notes: %s\n", notes)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func repositoryFor(db *repository.DB, logger *slog.Logger) repository.ScanJobRepository {
	return repository.NewScanJobRepository(db.SQL, logger)
}
