package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/paularlott/cli"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/as36198/linkd/internal/api"
	"github.com/as36198/linkd/internal/config"
	"github.com/as36198/linkd/internal/log"
	"github.com/as36198/linkd/internal/mcp"
	"github.com/as36198/linkd/internal/regularize"
	"github.com/as36198/linkd/internal/script"
	"github.com/as36198/linkd/internal/storage"
	"github.com/as36198/linkd/internal/worker"
)

// Command returns the server command
func Command() *cli.Command {
	return &cli.Command{
		Name:        "server",
		Usage:       "Start the linkd server",
		Description: "Start the HTTP server with the provisioning API, MCP endpoint and background regularization scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory path",
				EnvVars: []string{"LINKD_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Server listen address (e.g. :8080)",
				EnvVars: []string{"LINKD_LISTEN_ADDR"},
			},
			&cli.StringFlag{
				Name:    "token-hash",
				Usage:   "bcrypt hash of the API/MCP bearer token (see 'server hash-token')",
				EnvVars: []string{"LINKD_BEARER_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "regularize-schedule",
				Usage:   "Cron expression for background regularization (empty disables it)",
				EnvVars: []string{"LINKD_REGULARIZE_SCHEDULE"},
			},
		},
		Commands: []*cli.Command{
			hashTokenCommand(),
		},
		Run: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load(&config.Config{
				DataDir:            cmd.GetString("data-dir"),
				ListenAddr:         cmd.GetString("addr"),
				BearerToken:        cmd.GetString("token-hash"),
				RegularizeSchedule: cmd.GetString("regularize-schedule"),
			})
			log.Info("Configuration loaded", "source", cfg.String(), "data_dir", cfg.DataDir, "listen_addr", cfg.ListenAddr)

			store, err := storage.Open(cfg.DataDir)
			if err != nil {
				log.Error("Failed to initialize storage", "error", err)
				return err
			}
			defer store.Close()
			log.Info("Storage initialized", "backend", "SQLite", "path", store.Path())

			scheduler, err := startScheduler(store, cfg)
			if err != nil {
				return err
			}
			if scheduler != nil {
				defer scheduler.Stop()
			}

			return runServer(store, cfg)
		},
	}
}

// startScheduler wires the regularization jobs onto the configured
// cron schedule, or returns nil when no schedule is set
func startScheduler(store *storage.Store, cfg *config.Config) (*worker.Scheduler, error) {
	if cfg.RegularizeSchedule == "" {
		log.Info("Regularization scheduler disabled (no schedule configured)")
		return nil, nil
	}

	scheduler := worker.NewScheduler()

	err := scheduler.Schedule(cfg.RegularizeSchedule, "regularize-descriptions", func(ctx context.Context) error {
		_, err := script.Run(store, true, regularize.Descriptions)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("invalid regularize schedule %q: %w", cfg.RegularizeSchedule, err)
	}

	err = scheduler.Schedule(cfg.RegularizeSchedule, "regularize-ptrs", func(ctx context.Context) error {
		_, err := script.Run(store, true, func(tx *storage.Tx) (script.Output, error) {
			return regularize.PTRs(tx, cfg.PTRDomain)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}

// runServer starts the HTTP server and blocks until shutdown
func runServer(store *storage.Store, cfg *config.Config) error {
	apiHandler := api.NewHandler(store, cfg)
	mcpServer := mcp.NewServer(store, cfg)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)
	mux.HandleFunc("/mcp", mcpServer.GetHTTPHandler())

	var handler http.Handler = mux
	if cfg.IsAuthEnabled() {
		handler = api.AuthMiddleware(cfg.BearerToken, handler)
	}
	handler = api.SecurityHeadersMiddleware(handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	// Handle shutdown gracefully
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down server...")
		server.Close()
	}()

	log.Info("Starting linkd server", "addr", cfg.ListenAddr)
	log.Info("API available", "url", "http://localhost"+cfg.ListenAddr+"/api/")
	log.Info("MCP available", "url", "http://localhost"+cfg.ListenAddr+"/mcp")
	if cfg.IsAuthEnabled() {
		log.Info("API authentication enabled")
	}
	mcpServer.LogStartup()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("Server error", "error", err)
		return err
	}

	log.Info("Server stopped")
	return nil
}

// hashTokenCommand prompts for a bearer token and prints its bcrypt
// hash for use as LINKD_BEARER_TOKEN
func hashTokenCommand() *cli.Command {
	return &cli.Command{
		Name:        "hash-token",
		Usage:       "Hash a bearer token",
		Description: "Read a bearer token from the terminal without echo and print the bcrypt hash to configure as LINKD_BEARER_TOKEN",
		Run: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Fprint(os.Stderr, "Token: ")
			token, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}
			if len(token) == 0 {
				return fmt.Errorf("empty token")
			}

			hash, err := bcrypt.GenerateFromPassword(token, bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			fmt.Println(string(hash))
			return nil
		},
	}
}
