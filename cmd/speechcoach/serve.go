package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/speechcoach/internal/api"
	"github.com/MrWong99/speechcoach/internal/app"
	"github.com/MrWong99/speechcoach/internal/config"
	"github.com/MrWong99/speechcoach/internal/health"
)

// runServe serves the HTTP API until ctx is cancelled. The config file is
// watched so log level, generation and redaction settings apply without a
// restart.
func runServe(ctx context.Context, cfg *config.Config, configPath string, application *app.App, level *slog.LevelVar) int {
	if interval := cfg.Server.ReloadInterval(); interval > 0 {
		w, err := config.NewWatcher(configPath, func(_, next *config.Config, diff config.ConfigDiff) {
			if diff.LogLevelChanged {
				level.Set(slogLevel(diff.NewLogLevel))
			}
			application.Apply(next, diff)
		}, config.WithInterval(interval))
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		defer w.Stop()
	}

	opts := []api.Option{api.WithHealth(health.New(application.Checkers()...))}
	if cfg.Observability.Prometheus {
		opts = append(opts, api.WithMetricsHandler(promhttp.Handler()))
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.New(application, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr, "tls", cfg.Server.TLS != nil)
		if tls := cfg.Server.TLS; tls != nil {
			errCh <- srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			slog.Error("server shutdown error", "err", err)
			return 1
		}
	}
	slog.Info("goodbye")
	return 0
}
