package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchastock/internal/config"
	"matchastock/internal/http/handlers"
)

func newServeCmd() *cobra.Command {
	var noScrape bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and run scrape cycles on SCRAPE_INTERVAL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Load()
			rt, err := build(ctx, cfg, buildOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			app := handlers.NewApp(handlers.NewDeps(rt.catalog, rt.subs), handlers.AppConfig{
				TemplatesDir: cfg.TemplatesDir,
				AccessLog:    true,
			})

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				rt.log.Info("listening", zap.String("port", cfg.Port), zap.Int("sites", len(rt.sites)))
				return app.Listen(":" + cfg.Port)
			})
			g.Go(func() error {
				<-ctx.Done()
				return app.ShutdownWithTimeout(10 * time.Second)
			})
			if !noScrape {
				g.Go(func() error {
					err := rt.scheduler.Run(ctx, cfg.ScrapeOnStart)
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noScrape, "no-scrape", false, "serve the API only")
	return cmd
}
