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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cashflow/internal/handlers/backup"
	forecasthandlers "cashflow/internal/handlers/forecast"
	"cashflow/internal/handlers/recurring"
	apphttp "cashflow/internal/http"
	"cashflow/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the forecast HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.ListenAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	return cmd
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, a *app) error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting cashflow server",
			"addr", a.cfg.ListenAddr,
			"data_directory", a.cfg.DataDirectory,
			"version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apphttp.RequestLogger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/health", http.StatusTemporaryRedirect)
	})

	forecastHandler := forecasthandlers.New(a.loader, a.aggregator, a.detector, a.metrics,
		forecasthandlers.Options{
			DefaultDays:    a.cfg.Forecast.DefaultDays,
			OpeningBalance: a.opening,
		}, a.logger)
	templateHandler := recurring.New(a.engine, a.templates, a.logger)
	backupHandler := backup.New(a.store, func() error {
		return templateHandler.Reload(a.templates.Load)
	}, a.logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			apphttp.WriteJSON(w, http.StatusOK, map[string]any{
				"status":    "ok",
				"version":   version.Get().Version,
				"encrypted": a.store.IsEncrypted(),
				"templates": len(a.engine.List()),
			})
		})
		forecastHandler.RegisterRoutes(r)
		templateHandler.RegisterRoutes(r)
		backupHandler.RegisterRoutes(r)
	})

	return r
}
