package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainreactions/screener/internal/match"
	"github.com/chainreactions/screener/internal/monitoring"
	"github.com/chainreactions/screener/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the match engine over HTTP",
	Long:  "Starts the HTTP API with the background health checker and cache sweeper, and shuts down gracefully on SIGINT/SIGTERM.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Serve even when the dataset is missing: match requests return
		// 503 until an import lands, and the stale-dataset alert fires.
		if info, err := env.Engine.ReloadDataset(ctx); err != nil {
			zap.L().Warn("dataset not loaded, matching disabled", zap.Error(err))
		} else {
			zap.L().Info("dataset loaded",
				zap.Int64("version", info.Version),
				zap.Int("entities", info.Entities),
			)
		}

		serveCfg := cfg.Serve
		if serveAddr != "" {
			serveCfg.Addr = serveAddr
		}

		collector := monitoring.NewCollector(env.Engine, env.Store)
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			sweepCache(gctx, env.Engine, cfg.Cache.SweepInterval)
			return nil
		})
		g.Go(func() error {
			return server.New(env.Engine, serveCfg).Run(gctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// sweepCache periodically drops expired and stranded cache entries.
func sweepCache(ctx context.Context, eng *match.Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.SweepCache()
		}
	}
}
