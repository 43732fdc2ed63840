// scoresd serves the screenshot upload endpoint, the scan history endpoints and a gRPC
// health service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
	"github.com/joseph-ayodele/wingspan-tracker/internal/imageprep"
	"github.com/joseph-ayodele/wingspan-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/wingspan-tracker/internal/pipeline"
	"github.com/joseph-ayodele/wingspan-tracker/internal/ratelimit"
	"github.com/joseph-ayodele/wingspan-tracker/internal/repository"
	"github.com/joseph-ayodele/wingspan-tracker/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("scoresd stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("scoresd stopped")
}

func run(cfg *common.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit store is optional.
	var (
		db     *repository.DB
		jobs   repository.ScanJobRepository
		health server.HealthFunc
	)
	if cfg.Database.DSN != "" {
		var err error
		db, err = repository.Open(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close(logger)

		if err := db.HealthCheck(ctx, cfg.Database.DialTimeout, logger); err != nil {
			return err
		}
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		jobs = repository.NewScanJobRepository(db.SQL, logger)
		health = func(ctx context.Context) error {
			return db.HealthCheck(ctx, cfg.Database.DialTimeout, logger)
		}
	} else {
		logger.Warn("database.dsn not set; scans will not be recorded")
	}

	// A missing API key is reported per request, so startup continues without one.
	vision, err := provider.New(cfg.Vision, logger)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	var gate *ratelimit.Gate
	if cfg.RateLimit.Enabled {
		gate = ratelimit.New(cfg.RateLimit.PerHour,
			ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
			ratelimit.WithLogger(logger),
		)
		opts = append(opts, pipeline.WithGate(gate))
	}
	prep := imageprep.New(imageprep.OptionsFromConfig(cfg.Upload), logger)
	proc := pipeline.NewProcessor(prep, vision, opts...)
	scanner := pipeline.NewAuditedProcessor(proc, jobs, logger)

	api := server.New(scanner,
		server.WithScanStore(jobs),
		server.WithHealthCheck(health),
		server.WithLogger(logger),
		server.WithMaxUploadBytes(cfg.Upload.MaxUploadBytes),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
	)
	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: api.Handler(),
		// uploads can take as long as the vision call
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
	}
	grpcSrv, hs := server.NewGRPCServer(logger)

	g, gctx := errgroup.WithContext(ctx)

	if gate != nil {
		g.Go(func() error {
			gate.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		server.WatchHealth(gctx, hs, health, 0, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr, "vision_model", vision.Model())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Server.GRPCAddr != "" {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
			if err != nil {
				return err
			}
			logger.Info("grpc health serving", "addr", cfg.Server.GRPCAddr)
			return grpcSrv.Serve(lis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		hs.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})

	return g.Wait()
}
