package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"habitchallenge/internal/cache"
	"habitchallenge/internal/config"
	"habitchallenge/internal/database"
	"habitchallenge/internal/handler"
	"habitchallenge/internal/queue"
	"habitchallenge/internal/redis"
	"habitchallenge/internal/repository"
	"habitchallenge/internal/service"
	"habitchallenge/internal/transport/http/middleware"
	"habitchallenge/internal/worker"
)

const (
	redisConnectTimeout = 3 * time.Second
	tokenPurgeInterval  = 6 * time.Hour
	// Revoked and expired refresh tokens stay this long for reuse detection.
	tokenRetention  = 7 * 24 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Connect to Database and apply migrations
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// 3. Redis is optional: without it the feed is served from Postgres and
	// no events are published.
	var (
		feedCache cache.ProofFeedCache
		publisher queue.Publisher
		workers   *worker.Manager
	)
	rdb, err := redis.Connect(ctx, cfg.RedisURL, redisConnectTimeout)
	if err != nil {
		log.Printf("[Server] Redis unavailable, running without feed cache and events: %v", err)
	} else {
		defer rdb.Close()
		feedCache = cache.NewProofFeedCache(rdb.Client)
		publisher = queue.NewPublisher(rdb.Client)

		mcfg := worker.DefaultManagerConfig()
		mcfg.WorkerCount = cfg.WorkerCount
		workers = worker.NewManager(queue.NewConsumer(rdb.Client), worker.NewHandler(feedCache), mcfg)
		if err := workers.Start(ctx); err != nil {
			log.Printf("[Server] Worker manager failed to start: %v", err)
			workers = nil
		}
	}
	defer workers.Stop()

	// 4. Repositories and services
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	challengeRepo := repository.NewChallengeRepository(db)
	participationRepo := repository.NewParticipationRepository(db)
	proofRepo := repository.NewProofRepository(db)
	pushTokenRepo := repository.NewPushTokenRepository(db)

	clock := service.SystemClock{Location: cfg.Location}
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(refreshTokenRepo, userRepo, cfg)
	challengeService := service.NewChallengeService(challengeRepo, participationRepo, publisher, clock)
	proofService := service.NewProofService(proofRepo, feedCache, publisher, clock)

	var fcm service.PushSender
	if cfg.FirebaseConfigured() {
		client, err := service.NewFCMClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		if err != nil {
			log.Printf("[Server] FCM disabled: %v", err)
		} else {
			fcm = client
		}
	}
	pushTokenService := service.NewPushTokenService(pushTokenRepo, service.NewExpoPushClient(), fcm)

	mediaService, err := service.NewMediaService(ctx, cfg)
	if err != nil {
		log.Printf("[Server] Image uploads disabled: %v", err)
		mediaService = nil
	}

	// 5. Seed accounts
	if n, err := userService.Seed(ctx, service.DefaultSeedConfig(cfg.AdminEmail, cfg.AdminPassword)); err != nil {
		log.Printf("[Server] Seed FAILED after %d accounts: %v", n, err)
	} else if n > 0 {
		log.Printf("[Server] Seeded %d accounts", n)
	}

	// 6. Background jobs
	if cfg.ReminderEnabled {
		reminders := worker.NewReminderScheduler(pushTokenService, cfg.ReminderMessage, cfg.ReminderInterval)
		reminders.Start(ctx)
		defer reminders.Stop()
	}
	go purgeTokens(ctx, authService)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy)
	go limiter.Cleanup(ctx)

	// 7. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(middleware.Collectors()...)
	registry.MustRegister(service.Collectors()...)

	// 8. Setup Server
	router := NewRouter(RouterConfig{
		AuthHandler:      handler.NewAuthHandler(userService, authService),
		ChallengeHandler: handler.NewChallengeHandler(challengeService),
		ProofHandler:     handler.NewProofHandler(proofService),
		MyHandler:        handler.NewMyHandler(userService, challengeService, proofService),
		PushTokenHandler: handler.NewPushTokenHandler(pushTokenService),
		MediaHandler:     handler.NewMediaHandler(mediaService),
		TokenParser:      authService,
		RateLimiter:      limiter,
		Registry:         registry,
		MetricsUser:      cfg.MetricsUser,
		MetricsPass:      cfg.MetricsPass,
	})

	srv := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Server] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("[Server] Stopped")
	return nil
}

// purgeTokens deletes long-dead refresh tokens until ctx is done.
func purgeTokens(ctx context.Context, authService *service.AuthService) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := authService.PurgeExpiredTokens(ctx, tokenRetention); err != nil {
				log.Printf("[Server] Token purge FAILED: %v", err)
			}
		}
	}
}
