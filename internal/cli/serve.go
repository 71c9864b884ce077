package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/specforge/internal/config"
	"github.com/mark3labs/specforge/internal/descriptor"
	"github.com/mark3labs/specforge/internal/mcpserver"
	"github.com/mark3labs/specforge/internal/server"
	"github.com/mark3labs/specforge/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// Version is reported by the HTTP health check and the MCP handshake.
var Version = "dev"

var (
	serveRunner = runServe
	mcpRunner   = runMCP
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: "Run the HTTP API for project storage and generation. " +
			"Settings come from the environment and an optional .env file " +
			"(PORT, STORE, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, CORS_ORIGINS, APP_ENV, DICTIONARY_URL).",
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return err
			}
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return newUsageError(fmt.Sprintf("serve: %v", err))
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("env-file", "", "Load variables from this file instead of .env")
	return cmd
}

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generators as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := cmd.Flags().GetString("dictionary-url")
			if err != nil {
				return err
			}
			var opts []descriptor.Option
			if dict != "" {
				opts = append(opts, descriptor.WithDictionaryURL(dict))
			}
			return mcpRunner(cmd.Context(), opts)
		},
	}
	cmd.Flags().String("dictionary-url", "", "Base URL for shared header parameter references")
	return cmd
}

// openStore builds the configured project store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.App.Store != config.StoreRedis {
		return store.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return store.NewRedis(client), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var opts []descriptor.Option
	if cfg.Descriptor.DictionaryURL != "" {
		opts = append(opts, descriptor.WithDictionaryURL(cfg.Descriptor.DictionaryURL))
	}
	router := server.NewRouter(server.Deps{
		Store:       st,
		CORSOrigins: cfg.Server.CORSOrigins,
		Descriptor:  opts,
		Version:     Version,
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (store=%s env=%s)", cfg.Addr(), cfg.App.Store, cfg.App.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Printf("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, opts []descriptor.Option) error {
	_ = ctx
	return mcpserver.Serve(Version, opts...)
}
