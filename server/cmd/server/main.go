package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uvdose/uvdose/internal/app"
	"github.com/uvdose/uvdose/internal/config"
	"github.com/uvdose/uvdose/internal/metrics"
	"github.com/uvdose/uvdose/server/internal/api"
	"github.com/uvdose/uvdose/server/internal/history"
	"github.com/uvdose/uvdose/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; built-in defaults when empty")
	flag.Parse()

	var level slog.LevelVar
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level})))

	if err := run(*configPath, &level); err != nil {
		slog.Error("uvdose-server stopped", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, level *slog.LevelVar) error {
	cfg := config.Defaults()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	level.Set(cfg.Server.Level())

	slog.Info("uvdose-server starting",
		"config", configPath,
		"http_port", cfg.Server.HTTPPort,
		"library_dir", cfg.Library.Dir,
		"specification", cfg.Specification.Source,
		"history_backend", cfg.History.Backend,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	eng, err := app.Start(ctx, cfg, m, app.Deps{})
	if err != nil {
		return err
	}
	defer eng.Close() //nolint:errcheck

	hist, closeHistory, err := openHistory(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer closeHistory()

	hub := ws.New(hist, cfg.Server.FeedInterval, 0)

	mux := http.NewServeMux()
	mux.Handle("/api/", api.WithCORS(api.New(eng.Calculator, hist)))
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/ws/feed", hub)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		hist.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(next *config.Config) {
				level.Set(next.Server.Level())
				slog.Info("log level applied", "level", next.Server.LogLevel)
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("uvdose-server shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openHistory builds the record store and, for the sqlite backend, restores
// the last window from disk.
func openHistory(ctx context.Context, cfg config.HistoryConfig) (*history.Store, func(), error) {
	if cfg.Backend != "sqlite" {
		return history.New(cfg.TTL, cfg.Limit, nil), func() {}, nil
	}

	sink, err := history.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	st := history.New(cfg.TTL, cfg.Limit, sink)

	var since time.Time
	if cfg.TTL > 0 {
		since = time.Now().Add(-cfg.TTL)
	}
	recent, err := sink.Recent(ctx, since, cfg.Limit)
	if err != nil {
		_ = sink.Close()
		return nil, nil, err
	}
	st.Restore(recent)
	slog.Info("history restored", "path", cfg.Path, "records", len(recent))

	return st, func() { _ = sink.Close() }, nil
}
