package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/campaign-mailer/internal/api"
	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/mailing"
	"github.com/ignite/campaign-mailer/internal/pkg/distlock"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/repository/memory"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"
	"github.com/ignite/campaign-mailer/internal/segmentation"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/service/sending"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
	"github.com/ignite/campaign-mailer/internal/tracking"
	"github.com/ignite/campaign-mailer/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logger.Error("server exited", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Environment, logger.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		db          *sql.DB
		campaignRep campaign.Repository
		subRepo     subscriber.Repository
	)
	switch cfg.Storage.Type {
	case "postgres":
		db, err = openPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		campaignRep = postgres.NewCampaignRepo(db)
		subRepo = postgres.NewSubscriberRepo(db)
		logger.Info("storage: postgres", "host", extractHost(cfg.Database.URL))
	default:
		campaignRep = memory.NewCampaignRepo()
		subRepo = memory.NewSubscriberRepo()
		logger.Warn("storage: in-memory, data is lost on restart")
	}

	// Redis is optional; send locks fall back to Postgres advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, using fallback send locks", "addr", cfg.Redis.Addr, "error", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis connected", "addr", cfg.Redis.Addr)
		}
	}
	locks := distlock.NewFactory(redisClient, db, cfg.Processor.LockTTL())

	// Services
	signer := tracking.NewSigner(cfg.Mail.UnsubscribeSecret)
	subscribers := subscriber.NewService(subRepo, signer)
	campaigns := campaign.NewService(campaignRep)

	renderer, err := mailing.NewRenderer(mailing.RendererConfig{
		BaseURL: cfg.Mail.BaseURL,
		Brand:   cfg.Mail.FromName,
		Links:   signer,
	})
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	transport, err := worker.NewTransport(cfg.Mail)
	if err != nil {
		return err
	}
	var throttled *worker.ThrottledTransport
	if cfg.Mail.RateLimit.Enabled() {
		if redisClient != nil {
			throttled = worker.NewThrottledTransport(transport, worker.NewRateLimiter(redisClient), cfg.Mail.Transport, cfg.Mail.RateLimit)
			transport = throttled
			logger.Info("send rate limit enabled",
				"per_second", cfg.Mail.RateLimit.PerSecond,
				"per_minute", cfg.Mail.RateLimit.PerMinute,
				"daily", cfg.Mail.RateLimit.Daily)
		} else {
			logger.Warn("mail.rate_limit is set but redis is not configured; sends are not throttled")
		}
	}
	dispatcher := sending.NewDispatcher(sending.DispatcherConfig{
		Resolver:    segmentation.NewResolver(subscribers),
		Suppression: subscribers,
		Renderer:    renderer,
		Transport:   transport,
		Sender: sending.Sender{
			FromName:  cfg.Mail.FromName,
			FromEmail: cfg.Mail.FromEmail,
			ReplyTo:   cfg.Mail.ReplyTo,
		},
		MaxReportedErrors: cfg.Mail.MaxReportedErrors,
	})

	processor := worker.NewCampaignProcessor(campaigns, dispatcher, locks, worker.CampaignProcessorConfig{
		NumWorkers: cfg.Processor.NumWorkers,
		QueueSize:  cfg.Processor.QueueSize,
		LockTTL:    cfg.Processor.LockTTL(),
	})
	if err := processor.Start(); err != nil {
		return err
	}

	handlers := api.NewHandlers(subscribers, campaigns, renderer, processor)
	if throttled != nil {
		handlers.SetSendQuota(throttled)
	}
	router := api.SetupRoutes(handlers, api.NewHealthChecker(db, redisClient), nil)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Synchronous sends hold the request open for the whole dispatch.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr, "transport", cfg.Mail.Transport)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		processor.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database at %s: %w", extractHost(cfg.URL), err)
	}
	return db, nil
}

// extractHost returns the host part of a DSN for logging without
// credentials.
func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
