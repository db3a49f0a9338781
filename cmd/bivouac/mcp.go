package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/internal/config"
	"github.com/evhart/bivouac/internal/logging"
	loamadapter "github.com/evhart/bivouac/pkg/adapters/loam"
	"github.com/evhart/bivouac/pkg/adapters/mcp"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	redisadapter "github.com/evhart/bivouac/pkg/adapters/redis"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts a session host as an MCP Server.
This allows AI agents to read the party documents and submit commands as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath, _ := cmd.Flags().GetString("config")
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}

		// Logs go to stderr so stdio transport keeps a clean JSON-RPC stream.
		logger := logging.New(logLevel(cfg.LogLevel))
		slog.SetDefault(logger)
		log.SetOutput(os.Stderr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		host, cleanup, err := mcpHost(cfg, logger)
		if err != nil {
			log.Fatalf("Error initializing host: %v", err)
		}
		defer cleanup()

		hostCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := host.Run(hostCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("host loop failed", "err", err)
			}
		}()

		srv := mcp.NewServer(host)

		switch transport {
		case "stdio":
			slog.Info("starting MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				slog.Error("MCP server execution failed", "err", err)
				os.Exit(1)
			}
		case "sse":
			slog.Info("starting MCP server (SSE)", "port", port)
			if err := srv.ServeSSE(ctx, port); err != nil {
				if err != http.ErrServerClosed {
					slog.Error("MCP server execution failed", "err", err)
					os.Exit(1)
				}
			}
			slog.Info("MCP server stopped gracefully")
		default:
			log.Fatalf("Unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}

// mcpHost wires a host for the MCP transports. Without redis the bus is a
// process-local hub: MCP agents talk to the host directly, not over the
// session bus.
func mcpHost(cfg config.Config, logger *slog.Logger) (*bivouac.Host, func(), error) {
	var (
		storage  ports.Storage
		bus      ports.Bus
		cleanups []func()
	)
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	switch cfg.Backend {
	case config.BackendMemory:
		storage = memory.NewStore()
	case config.BackendLoam:
		store, err := loamadapter.Open(cfg.DataDir, loamadapter.WithLogger(logger))
		if err != nil {
			return nil, cleanup, fmt.Errorf("open document store at %s: %w", cfg.DataDir, err)
		}
		cleanups = append(cleanups, func() { store.Close() })
		storage = store
	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { client.Close() })
		storage = redisadapter.NewStoreFromClient(client,
			redisadapter.WithPrefix(cfg.Redis.Prefix))
		bus = redisadapter.NewBusFromClient(client)
	default:
		return nil, cleanup, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	if bus == nil {
		hub := memory.NewHub()
		cleanups = append(cleanups, func() { hub.Close() })
		bus = hub.Client()
	}

	host := bivouac.New(domain.Identity(cfg.Identity), storage, bus,
		memory.NewEffects(), buildRoster(cfg.Roster),
		bivouac.WithLogger(logger),
		bivouac.WithQuietPeriod(cfg.QuietPeriod),
		bivouac.WithAckTimeout(cfg.AckTimeout),
	)
	return host, cleanup, nil
}
