package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/p-arndt/installbench/internal/api"
	"github.com/p-arndt/installbench/internal/reaper"
)

func serveCmd() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run matrices on request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(backend)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				logger.Warn("no API key configured, running in open access mode")
			}

			eng, err := newEngine(cfg, logger, engineOpts{history: true})
			if err != nil {
				return err
			}
			if n, err := eng.store.MarkInterrupted(time.Now()); err != nil {
				logger.Warn("mark interrupted runs", "error", err)
			} else if n > 0 {
				logger.Info("marked runs from a previous process as interrupted", "count", n)
			}

			srv := api.NewServer(cfg, eng.manager, eng.metrics, logger)
			httpServer := &http.Server{
				Addr:         cfg.Listen,
				Handler:      srv.Handler(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("listening", "addr", cfg.Listen)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})

			if eng.docker != nil && cfg.ReaperIntervalSeconds > 0 {
				rpr := reaper.New(eng.docker, eng.owner, eng.liveContainer,
					time.Duration(cfg.ReaperIntervalSeconds)*time.Second, logger)
				g.Go(func() error {
					rpr.Run(gctx)
					return nil
				})
			}

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				err := httpServer.Shutdown(shutdownCtx)
				eng.shutdown(shutdownCtx)
				return err
			})

			fmt.Fprintf(os.Stderr, "\n  installbench ready at http://%s\n\n", cfg.Listen)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "sandbox backend (docker or local); overrides config")
	return cmd
}
