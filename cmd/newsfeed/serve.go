package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"daily-news-parser/internal/api"
	"daily-news-parser/internal/app"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := app.GracefulShutdown(signalLogger(), 0)
			defer cancel()

			deps, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			if addr == "" {
				addr = deps.cfg.API.Addr
			}

			scheduler, err := app.NewScheduler(deps.cfg, deps.orchestrator, deps.logger)
			if err != nil {
				return err
			}

			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			router := gin.New()
			router.Use(gin.Recovery())
			api.NewServer(deps.cfg, deps.orchestrator, deps.snapshot, deps.repo, deps.bookmarks, deps.logger).
				RegisterRoutes(router)

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				deps.logger.Info("HTTP API listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				return scheduler.Run(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			deps.logger.Info("Server stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api.addr)")
	return cmd
}
