package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lalithlochan/beacon/internal/api"
	"github.com/lalithlochan/beacon/internal/capability"
	"github.com/lalithlochan/beacon/internal/circuitbreaker"
	"github.com/lalithlochan/beacon/internal/config"
	"github.com/lalithlochan/beacon/internal/db"
	"github.com/lalithlochan/beacon/internal/delivery"
	"github.com/lalithlochan/beacon/internal/metrics"
	"github.com/lalithlochan/beacon/internal/notifier"
	"github.com/lalithlochan/beacon/internal/observ"
	"github.com/lalithlochan/beacon/internal/platform"
	"github.com/lalithlochan/beacon/internal/redis"
	"github.com/lalithlochan/beacon/internal/settings"
	"github.com/lalithlochan/beacon/internal/sns"
	"github.com/lalithlochan/beacon/internal/sqs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tier, err := capability.Resolve(cfg.PlatformVersion)
	if err != nil {
		return fmt.Errorf("failed to resolve capability tier: %w", err)
	}
	decision, err := redis.ParseDecision(cfg.AuthorizationDecision)
	if err != nil {
		return fmt.Errorf("invalid AUTHORIZATION_DECISION: %w", err)
	}

	logger.Info("starting beacon gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("platform_version", cfg.PlatformVersion),
		zap.Stringer("tier", tier),
	)

	ctx := context.Background()
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	// Redis holds the permission state and the modern center.
	redisClient, err := redis.New(ctx, redis.Config{
		Host:      cfg.RedisHost,
		Port:      cfg.RedisPort,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
	}, observ.Component(logger, "redis"))
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	mainQueue := platform.NewQueue(observ.Component(logger, "main"))
	go mainQueue.Run(workerCtx)

	hooks := logHooks{logger: observ.Component(logger, "hooks")}

	deps := notifier.Deps{
		Permissions:    redis.NewPermissions(redisClient, decision, logger),
		LegacySettings: redis.NewLegacySettings(redisClient, decision, logger),
		Settings: settings.New(settings.Config{
			WebhookURL:  cfg.SettingsWebhookURL,
			SettingsURL: cfg.Copy.SettingsURL,
			Timeout:     time.Duration(cfg.WebhookTimeout) * time.Second,
		}, observ.Component(logger, "settings")),
		Main:  mainQueue,
		Hooks: hooks,
	}

	var (
		breakers []*circuitbreaker.CircuitBreaker
		due      delivery.Center
		legacy   delivery.LegacyStore
	)

	if tier.SupportsModern() {
		center := redis.NewCenter(redisClient, observ.Component(logger, "center"))
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("center"), logger)
		breakers = append(breakers, breaker)
		deps.Center = circuitbreaker.NewProtectedCenter(center, breaker)
		due = center
	} else {
		database, err := db.New(ctx, db.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		logger.Info("database connection established",
			zap.String("host", cfg.DBHost),
			zap.Int("port", cfg.DBPort),
			zap.String("database", cfg.DBName),
		)

		repo := db.NewRepository(database, observ.Component(logger, "legacy"))
		breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("legacy"), logger)
		breakers = append(breakers, breaker)
		deps.Legacy = circuitbreaker.NewProtectedLegacy(repo, breaker)
		legacy = repo
	}

	if cfg.SNSPlatformApplicationARN != "" {
		registrar, err := sns.NewRegistrar(ctx, sns.Config{
			Region:                 cfg.AWSRegion,
			Endpoint:               cfg.AWSEndpoint,
			PlatformApplicationARN: cfg.SNSPlatformApplicationARN,
			DeviceToken:            cfg.DeviceToken,
		}, hooks, observ.Component(logger, "sns"))
		if err != nil {
			logger.Warn("sns registrar unavailable, remote registration disabled", zap.Error(err))
		} else {
			deps.Remote = registrar
		}
	}

	worker := delivery.New(due, legacy, hooks, delivery.Config{
		PollInterval: cfg.PollInterval,
	}, observ.Component(logger, "delivery"))
	deps.Registrar = worker

	svc := notifier.New(tier, cfg.Copy, deps, logger)

	sqsCfg := sqs.Config{
		Region:         cfg.AWSRegion,
		Endpoint:       cfg.AWSEndpoint,
		EventsQueueURL: cfg.SQSEventsQueueURL,
		RemoteQueueURL: cfg.SQSRemoteQueueURL,
	}
	if cfg.SQSEventsQueueURL != "" {
		producer, err := sqs.NewProducer(ctx, sqsCfg, observ.Component(logger, "events"))
		if err != nil {
			logger.Warn("sqs producer unavailable, host events will not be published", zap.Error(err))
		} else {
			svc.SetOnWillPresent(producer.WillPresentHandler(5 * time.Second))
			svc.SetOnUserResponse(producer.UserResponseHandler(5 * time.Second))
		}
	}
	if cfg.SQSRemoteQueueURL != "" {
		consumer, err := sqs.NewConsumer(ctx, sqsCfg, observ.Component(logger, "remote"))
		if err != nil {
			logger.Warn("sqs consumer unavailable, remote payloads will not be delivered", zap.Error(err))
		} else {
			go delivery.NewRemoteListener(consumer, svc, observ.Component(logger, "remote")).Start(workerCtx)
		}
	}

	go worker.Start(workerCtx)

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	limiter := redis.NewRateLimiter(redisClient, redis.RateLimitConfig{
		Limit:  cfg.RateLimit,
		Window: cfg.RateLimitWindow,
	}, logger)

	handler := api.NewHandler(observ.Component(logger, "api"), svc, svc.Bridge(), breakers...)
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(limiter, logger, api.AppKeyFunc))
		handler.Routes(r)
	})

	r.Get("/health", handler.Health)
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Let in-flight scheduling and checks finish before stopping the
		// main queue they dispatch onto.
		svc.Wait()
		workerCancel()

		logger.Info("server stopped gracefully")
	}

	return nil
}
