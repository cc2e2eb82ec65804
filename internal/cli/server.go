package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinical-case-service/internal/app"
	"clinical-case-service/internal/config"
	"clinical-case-service/internal/infra/audio"
	"clinical-case-service/internal/infra/backend"
	"clinical-case-service/internal/infra/memory"
	pgloader "clinical-case-service/internal/infra/postgres"
	rediscache "clinical-case-service/internal/infra/redis"
	transport "clinical-case-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gameplay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, logCloser := setupLogging(cfg)
	defer logCloser.Close()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var client *backend.Client
	if cfg.Backend.URL != "" {
		client = backend.NewClient(cfg.Backend.URL, cfg.Backend.Token, config.TTLDuration(cfg.Backend.Timeout, 10*time.Second))
	}

	loader, closeLoader, err := newCaseLoader(ctx, cfg, client, logger)
	if err != nil {
		return err
	}
	defer closeLoader()

	casesTTL := config.TTLDuration(cfg.Cases.TTL, 10*time.Minute)
	var catalog app.CaseRepository
	if redisClient != nil {
		catalog = rediscache.NewCaseRepository(redisClient, loader, casesTTL)
	} else {
		catalog = memory.NewCaseRepository(loader, casesTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = rediscache.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var (
		gameplays app.GameplayAPI
		economy   app.EconomyAPI
	)
	if client != nil {
		gameplays, economy = client, client
	} else {
		logger.Printf("no backend configured, gameplays and hearts are kept in memory")
		maxHearts := cfg.Backend.MaxHearts
		if maxHearts <= 0 {
			maxHearts = 5
		}
		local := memory.NewBackend(maxHearts)
		gameplays, economy = local, local
	}

	wsOpts := transport.WSOptions{
		RateLimit: rate.Limit(cfg.Server.MessageRate),
		RateBurst: cfg.Server.MessageBurst,
		Logger:    logger,
	}
	var narration app.NarrationSource
	if cfg.Narration.BaseURL != "" {
		narration = audio.NewURLResolver(cfg.Narration.BaseURL, cfg.Narration.Extension)
		if cfg.Narration.Verify {
			wsOpts.Probe = audio.NewFetcher(config.TTLDuration(cfg.Narration.Timeout, 15*time.Second), 0)
		}
	}

	service := app.NewGameplayService(app.ServiceConfig{
		Sessions:         store,
		Catalog:          catalog,
		Gameplays:        gameplays,
		Economy:          economy,
		Narration:        narration,
		StrictValidation: cfg.Gameplay.StrictCaseValidation,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(transport.NewWSHandler(service, wsOpts)),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Printf("starting clinical case service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Println("shutting down server...")
	case <-ctx.Done():
		logger.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newCaseLoader picks the catalog source: Postgres, then the backend API, then the bundled demo cases.
func newCaseLoader(ctx context.Context, cfg config.Config, client *backend.Client, logger *log.Logger) (memory.CaseLoader, func(), error) {
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return pgloader.NewCaseLoader(pool), pool.Close, nil
	}
	if client != nil {
		return client, func() {}, nil
	}
	bundle, err := sampleBundle(time.Now())
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("no catalog configured, serving %d demo cases", len(bundle.Cases))
	return memory.NewStaticCaseLoader(staticCatalog(bundle)), func() {}, nil
}
