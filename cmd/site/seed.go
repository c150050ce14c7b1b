package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Hoangthang194/review-agency-sub000/internal/cms"
	"github.com/Hoangthang194/review-agency-sub000/internal/di"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "seed <dir>",
		Short: "Create or update reviews and articles from markdown/HTML files with front matter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, root, args[0], watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and re-seed files as they change")
	return cmd
}

func runSeed(cmd *cobra.Command, root *rootOptions, dir string, watch bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := root.logger("seed")
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, fetcher, err := loadConfig(ctx, root, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build container: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = container.Close(closeCtx)
	}()

	seeder, err := container.Seeder()
	if err != nil {
		return err
	}
	result, err := seeder.SeedDir(ctx, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "created %d, updated %d, failed %d\n", result.Created, result.Updated, len(result.Failed))
	for _, failure := range result.Failed {
		fmt.Fprintf(out, "  %s\n", failure.Error())
	}
	if !watch {
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d seed files failed", len(result.Failed))
		}
		return nil
	}

	watcher, err := cms.NewWatcher(seeder, dir, cms.WithAppliedHook(func(path string, err error) {
		if err != nil {
			fmt.Fprintf(out, "failed %s: %v\n", path, err)
			return
		}
		fmt.Fprintf(out, "reloaded %s\n", path)
	}))
	if err != nil {
		return err
	}
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info("watching for changes", zap.String("dir", dir))
	return watcher.Run(sigCtx)
}
