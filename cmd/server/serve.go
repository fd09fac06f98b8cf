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

	"github.com/spf13/cobra"

	"secretvault/internal/admin"
	"secretvault/internal/config"
	"secretvault/internal/database"
	"secretvault/internal/directory"
	"secretvault/internal/handler"
	"secretvault/internal/jwtauth"
	"secretvault/internal/logging"
	"secretvault/internal/middleware"
	"secretvault/internal/policy"
	"secretvault/internal/secret"
	"secretvault/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Connect to database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn(ctx, "error closing database connection", "error", err)
		}
	}()
	log.Info(ctx, "database connection established")

	if cfg.Database.MigrateOnStart {
		if err := db.MigrateUp(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		version, dirty, err := db.MigrateVersion()
		switch {
		case err != nil:
			log.Warn(ctx, "failed to get migration version", "error", err)
		case dirty:
			log.Warn(ctx, "database is in dirty state; a previous migration failed and manual intervention is required", "version", version)
		default:
			log.Info(ctx, "database migrations complete", "version", version)
		}
	}

	h, err := buildHandler(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Channel to signal server errors
	serverErr := make(chan error, 1)

	go func() {
		log.Info(ctx, "secretvault server starting", "port", cfg.Port, "env", cfg.Environment)
		serverErr <- server.ListenAndServe()
	}()

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Info(ctx, "received signal, initiating graceful shutdown", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "graceful shutdown failed, forcing shutdown", "error", err)
			if err := server.Close(); err != nil {
				return fmt.Errorf("forced shutdown failed: %w", err)
			}
		}
		log.Info(ctx, "server shutdown complete")
	}

	return nil
}

// buildHandler wires every component behind the request logger and the access gate.
func buildHandler(ctx context.Context, cfg *config.Config, db *database.DB, log logging.Logger) (http.Handler, error) {
	codec, err := secret.NewCodec(cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret codec: %w", err)
	}

	users := user.NewManager(user.NewDatastore(db))
	secrets := secret.NewManager(secret.NewDatastore(db), codec)

	dir, err := directory.NewClient(cfg.Identity.APIURL, cfg.Identity.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize directory client: %w", err)
	}

	verifier, err := jwtauth.NewVerifier(jwtauth.Config{
		Issuer:            cfg.Identity.Issuer,
		JWKSURL:           cfg.Identity.JWKSURL,
		AuthorizedParties: cfg.Identity.AuthorizedParties,
	}, log.With("component", "jwtauth"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session verifier: %w", err)
	}

	engine, err := policy.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize access policy: %w", err)
	}

	adminSvc := admin.NewService(users, dir, cfg.ListingCacheTTL, log.With("component", "admin"))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, &handler.Deps{
		Environment: cfg.Environment,
		Health:      db,
		Secrets:     secrets,
		Admin:       adminSvc,
		Profiles:    dir,
		Log:         log,
	})

	gate := middleware.Gate(verifier, users, engine, log.With("component", "gate"), cfg.Identity.SignInURL)
	return middleware.RequestLogger(log)(gate(mux)), nil
}
