package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/trendproxy/internal/api"
	"github.com/kalambet/trendproxy/internal/config"
	"github.com/kalambet/trendproxy/internal/metrics"
	"github.com/kalambet/trendproxy/internal/query"
	"github.com/kalambet/trendproxy/internal/trends"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trends proxy",
	Long: `Start the HTTP trends proxy.

GET /trends?keywords=a,b returns daily interest for up to five keywords.
Rate-limited upstream calls are retried after 30s and 60s, so a single
request may take more than 90 seconds before it resolves. No write
timeout is applied to responses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// newService builds the query service from config. Each query gets a fresh
// trends client, so upstream cookies are never shared between requests.
func newService(cfg config.Config, obs query.Observer) *query.Service {
	factory := func() (query.Provider, error) {
		c, err := trends.New(trends.Options{
			BaseURL: cfg.Trends.BaseURL,
			HL:      cfg.Trends.HL,
			TZ:      cfg.Trends.TZ,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	opts := []query.Option{
		query.WithTimeframe(cfg.Trends.Timeframe),
		query.WithGeo(cfg.Trends.Geo),
		query.WithRetryAfter(cfg.RetryAfter()),
	}
	if obs != nil {
		opts = append(opts, query.WithObserver(obs))
	}
	return query.NewService(factory, opts...)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := setupLogging(cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc := newService(cfg, m)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewHandler(api.Deps{Querier: svc, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("trendproxy listening", "addr", srv.Addr, "timeframe", cfg.Trends.Timeframe)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if path := config.FilePath(); fileExists(path) {
		g.Go(func() error {
			err := config.Watch(gctx, path, func(next config.Config) {
				level.Set(next.SlogLevel())
				slog.Debug("log level applied", "level", next.Log.Level)
			})
			if err != nil {
				slog.Warn("config watch stopped", "path", path, "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
