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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/internal/config"
	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/internal/presentation/tui"
	httpadapter "github.com/evhart/bivouac/pkg/adapters/http"
	loamadapter "github.com/evhart/bivouac/pkg/adapters/loam"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	redisadapter "github.com/evhart/bivouac/pkg/adapters/redis"
	"github.com/evhart/bivouac/pkg/adapters/ws"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the session host",
	Long: `Starts the authoritative session host: it owns the shared documents,
applies peer commands, reconciles materialized effects, and serves the
JSON API plus the websocket session bus.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := logging.New(logLevel(cfg.LogLevel))
		slog.SetDefault(logger)

		tui.PrintBanner(bivouac.Version)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runHost(ctx, cfg, logger); err != nil {
			fmt.Printf("Host error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runHost(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var (
		storage ports.Storage
		bus     ports.Bus
		wsHub   *ws.Hub
	)

	switch cfg.Backend {
	case config.BackendMemory:
		storage = memory.NewStore()
	case config.BackendLoam:
		store, err := loamadapter.Open(cfg.DataDir, loamadapter.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open document store at %s: %w", cfg.DataDir, err)
		}
		defer store.Close()
		storage = store
	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		// Only one host may own the documents; the lock is held for the
		// lifetime of the process and released on shutdown.
		locker := redisadapter.NewLocker(client, cfg.Redis.Prefix)
		lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		unlock, err := locker.Lock(lockCtx, "host", 0)
		cancel()
		if err != nil {
			return fmt.Errorf("acquire host lock (is another host running?): %w", err)
		}
		defer unlock(context.Background())

		storage = redisadapter.NewStoreFromClient(client,
			redisadapter.WithPrefix(cfg.Redis.Prefix))
		bus = redisadapter.NewBusFromClient(client)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	// Outside redis the websocket hub IS the session bus: remote peers dial
	// in over /ws and the host participates as a local endpoint.
	if bus == nil {
		wsHub = ws.NewHub(ws.WithLogger(logger))
		defer wsHub.Close()
		bus = wsHub
	}

	effects := memory.NewEffects()
	roster := buildRoster(cfg.Roster)

	opts := []bivouac.Option{
		bivouac.WithLogger(logger),
		bivouac.WithQuietPeriod(cfg.QuietPeriod),
		bivouac.WithAckTimeout(cfg.AckTimeout),
	}
	if cfg.CatalogPath != "" {
		path := cfg.CatalogPath
		opts = append(opts, bivouac.WithCatalogSource(func() ([]byte, error) {
			return os.ReadFile(path)
		}))
	}
	registry := prometheus.NewRegistry()
	opts = append(opts, bivouac.WithMetrics(registry))

	host := bivouac.New(domain.Identity(cfg.Identity), storage, bus, effects, roster, opts...)

	r := chi.NewRouter()
	if wsHub != nil {
		r.Handle("/ws", wsHub)
	}
	r.Mount("/", httpadapter.NewHandler(host,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetrics(registry)))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting session host", "addr", srv.Addr, "backend", cfg.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	hostErrors := make(chan error, 1)
	go func() {
		hostErrors <- host.Run(ctx)
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case err := <-hostErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("host loop error: %w", err)
		}
		return nil

	case <-ctx.Done():
		logger.Info("shutting down")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("error killing server", "err", err)
			}
		}
		// The host flushes its pending reconciliation pass before returning.
		if err := <-hostErrors; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("host loop error: %w", err)
		}
		logger.Info("session host stopped gracefully")
		return nil
	}
}

func buildRoster(cfg config.Roster) *memory.Roster {
	roster := memory.NewRoster()
	for player, entities := range cfg.Players {
		refs := make([]domain.EntityRef, 0, len(entities))
		for _, e := range entities {
			refs = append(refs, domain.EntityRef(e))
		}
		roster.Grant(domain.Identity(player), refs...)
	}
	all := make([]domain.EntityRef, 0, len(cfg.Entities))
	for _, e := range cfg.Entities {
		all = append(all, domain.EntityRef(e))
	}
	roster.SetEntities(all...)
	scene := make([]domain.EntityRef, 0, len(cfg.Scene))
	for _, e := range cfg.Scene {
		scene = append(scene, domain.EntityRef(e))
	}
	roster.SetScene(scene...)
	return roster
}
