package cmd

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

	"github.com/redis/go-redis/v9"
	"github.com/rusticroots/storefront-api/config"
	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/middleware"
	"github.com/rusticroots/storefront-api/server"
	"github.com/rusticroots/storefront-api/services"
	"github.com/spf13/cobra"
)

const (
	contactLimit       = 5
	contactWindow      = time.Hour
	featuredCacheTTL   = 5 * time.Minute
	shutdownTimeout    = 15 * time.Second
	rateJanitorEvery   = 10 * time.Minute
	defaultEmailWorker = 4
)

var (
	servePort    string
	emailWorkers int
	skipMigrate  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (overrides PORT)")
	serveCmd.Flags().IntVar(&emailWorkers, "email-workers", defaultEmailWorker, "number of background email senders")
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not migrate the schema on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	cfg := config.GetConfig()
	log := logger.L()

	if !skipMigrate {
		if err := migrateSchema(db); err != nil {
			return err
		}
	}

	storage, err := services.InitStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if m, ok := storage.(*services.MinioService); ok {
		if err := m.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to prepare bucket %q: %w", cfg.AWSS3Bucket, err)
		}
	}
	services.InitImageService(storage, cfg.UploadFallbackURL)

	mailer := services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
	services.SetNotifier(services.NewNotificationService(mailer, cfg.AppURL, cfg.ContactRecipient))

	dispatcher := services.NewPoolDispatcher(emailWorkers)
	defer dispatcher.Shutdown()
	services.SetDispatcher(dispatcher)

	services.SetSessionService(services.NewSessionService(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionAudience, cfg.SessionTTL))

	redisClient, err := setupSharedState(ctx, cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	router, err := server.SetupRouter(cfg, middleware.NewMetrics())
	if err != nil {
		return err
	}

	port := cfg.Port
	if servePort != "" {
		port = servePort
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.String("addr", srv.Addr), slog.String("env", cfg.GoEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// setupSharedState wires the contact limiter and featured product cache.
// With REDIS_URL both live in Redis; otherwise the limiter is per process
// and featured products are not cached.
func setupSharedState(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		limiter := services.NewMemoryRateLimiter(contactLimit, contactWindow)
		go limiter.RunJanitor(ctx, rateJanitorEvery)
		services.SetContactLimiter(limiter)
		services.SetProductCache(services.NoopProductCache{})
		return nil, nil
	}

	client, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	services.SetContactLimiter(services.NewRedisRateLimiter(client, "rustic_roots:contact", contactLimit, contactWindow))
	services.SetProductCache(services.NewRedisProductCache(client, featuredCacheTTL))
	logger.FromContext(ctx).Info("using redis for rate limits and product cache")
	return client, nil
}
