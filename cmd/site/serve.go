package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hoangthang194/review-agency-sub000/internal/cms"
	"github.com/Hoangthang194/review-agency-sub000/internal/di"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/observability"
)

type serveOptions struct {
	seedDir string
	watch   bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.seedDir, "seed", "", "seed content from this directory before serving (overrides CONTENT_SEED_DIR)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "keep re-seeding files in the seed directory as they change")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now().UTC()

	baseLogger, err := root.logger("api")
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	logger := baseLogger
	ctx = observability.WithLogger(ctx, logger)

	cfg, fetcher, err := loadConfig(ctx, root, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()
	if opts.seedDir != "" {
		cfg.Content.SeedDir = opts.seedDir
	}
	if opts.watch {
		cfg.Content.Watch = true
	}

	summary := make([]zap.Field, 0, 8)
	for key, value := range cfg.Summary() {
		summary = append(summary, zap.String(key, value))
	}
	logger.Info("configuration loaded", summary...)

	container, err := di.NewContainer(ctx, cfg,
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo(cfg, startedAt)),
		di.WithSecretFetcher(fetcher),
	)
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	if err := container.EnsureBootstrapAdmin(ctx); err != nil {
		return err
	}

	var watcher *cms.Watcher
	if dir := cfg.Content.SeedDir; dir != "" {
		seeder, err := container.Seeder()
		if err != nil {
			return err
		}
		result, err := seeder.SeedDir(ctx, dir)
		if err != nil {
			return fmt.Errorf("seed content: %w", err)
		}
		for _, failure := range result.Failed {
			logger.Warn("seed file skipped", zap.String("path", failure.Path), zap.Error(failure.Err))
		}
		if cfg.Content.Watch {
			if watcher, err = cms.NewWatcher(seeder, dir); err != nil {
				return err
			}
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      container.Router(logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	g.Go(func() error {
		serverLogger.Info("review site api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
