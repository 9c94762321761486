package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/ragdesk/internal/api/handlers"
	"github.com/cloo-solutions/ragdesk/internal/config"
	"github.com/cloo-solutions/ragdesk/internal/database"
	"github.com/cloo-solutions/ragdesk/internal/jobs"
	"github.com/cloo-solutions/ragdesk/internal/server"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ragdesk API server. The ingest worker runs in the same process unless --no-worker is set.",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from RAGDESK_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the ingest worker in this process")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, flush, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer flush()

	if cfg.JWTSecret == "" {
		return errors.New("RAGDESK_JWT_SECRET is required")
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if noWorker && cfg.VectorStore == config.VectorStoreMemory {
		return errors.New("the in-memory vector store requires the worker to run in the serve process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.HasInitAdmin() {
		if _, _, err := a.auth.EnsureSuperuser(ctx, cfg.InitAdminEmail, cfg.InitAdminUsername, cfg.InitAdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap admin user: %w", err)
		}
	}

	var worker *jobs.Poller
	if !noWorker {
		worker = a.newWorker()
		// In-flight ingestions finish on shutdown; Stop waits for them.
		go worker.Start(context.WithoutCancel(ctx))
		log.Info().Str("queue", cfg.QueueBackend).Int("concurrency", cfg.IngestConcurrency).Msg("ingest worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		Authenticator:   a.auth,
		DocumentHandler: handlers.NewDocumentHandler(a.docs),
		ChatHandler:     handlers.NewChatHandler(a.generation),
		SettingsHandler: handlers.NewSettingsHandler(a.settings),
		UserHandler:     handlers.NewUserHandler(a.auth),
		MaxUploadBytes:  cfg.MaxUploadBytes,
		HealthCheck:     a.healthCheck,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if worker != nil {
		worker.Stop()
	}

	log.Info().Msg("server exited")
	return nil
}

// WorkerCmd runs only the ingest worker, for deployments that scale it
// separately from the API.
func WorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the ingest worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			defer flush()

			if cfg.VectorStore == config.VectorStoreMemory {
				return errors.New("the in-memory vector store cannot be shared with a separate worker")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			worker := a.newWorker()
			go worker.Start(context.WithoutCancel(ctx))
			log.Info().Str("queue", cfg.QueueBackend).Int("concurrency", cfg.IngestConcurrency).Msg("ingest worker started")

			<-ctx.Done()
			log.Info().Msg("waiting for in-flight ingestions")
			worker.Stop()
			return nil
		},
	}
}
