package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mwhite7112/woodpantry-reconcile/internal/api"
	"github.com/mwhite7112/woodpantry-reconcile/internal/clients"
	"github.com/mwhite7112/woodpantry-reconcile/internal/config"
	"github.com/mwhite7112/woodpantry-reconcile/internal/density"
	"github.com/mwhite7112/woodpantry-reconcile/internal/ledger"
	"github.com/mwhite7112/woodpantry-reconcile/internal/logger"
	"github.com/mwhite7112/woodpantry-reconcile/internal/matcher"
	"github.com/mwhite7112/woodpantry-reconcile/internal/metrics"
	"github.com/mwhite7112/woodpantry-reconcile/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireUpstreams(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, table, err := loadReference(cfg)
	if err != nil {
		return err
	}
	store := density.NewStore(table)

	m := metrics.New()
	m.DensityVersion(table.Version())

	if cfg.Reference.Watch {
		w, err := density.NewWatcher(cfg.Reference.DensityFile, store, log,
			density.WithReloadHook(func(t *density.Table, err error) {
				version := 0
				if t != nil {
					version = t.Version()
				}
				m.Reload("file", version, err)
			}),
		)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("density watcher stopped", zap.Error(err))
			}
		}()
	}

	completions, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer completions.Close()

	opts := []service.Option{
		service.WithLedger(completions),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithMatcher(matcher.New(matcher.WithFuzzyThreshold(cfg.Matching.FuzzyThreshold))),
	}
	if cfg.DictionaryURL != "" {
		opts = append(opts, service.WithDictionary(clients.NewDictionaryClient(cfg.DictionaryURL)))
	}

	svc := service.New(
		clients.NewPantryClient(cfg.PantryURL),
		clients.NewRecipeClient(cfg.RecipeURL),
		catalog,
		store,
		opts...,
	)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(svc, m.Registry(), log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("reconcile service listening",
			zap.String("addr", srv.Addr),
			zap.Int("units_version", catalog.Version()),
			zap.Int("density_version", table.Version()),
			zap.Bool("density_watch", cfg.Reference.Watch),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return err
	}
	return nil
}
