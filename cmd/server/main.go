package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/avcrm/identity/internal/api"
	"github.com/avcrm/identity/internal/api/handler"
	"github.com/avcrm/identity/internal/core/ports"
	"github.com/avcrm/identity/internal/core/service"
	"github.com/avcrm/identity/internal/infrastructure/config"
	"github.com/avcrm/identity/internal/infrastructure/credentials"
	"github.com/avcrm/identity/internal/infrastructure/db/mongo"
	"github.com/avcrm/identity/internal/infrastructure/db/postgres"
	"github.com/avcrm/identity/internal/infrastructure/db/redis"
	"github.com/avcrm/identity/internal/infrastructure/queue"
	"github.com/avcrm/identity/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		// Logger is not configured yet.
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Postgres: accounts, throttle, RBAC ---
	db, err := postgres.Connect(ctx, postgres.Config{
		DSN:          cfg.Postgres.URL,
		MaxOpenConns: cfg.Postgres.MaxOpenConns,
		MaxIdleConns: cfg.Postgres.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info().Msg("postgres ready")

	// --- MongoDB: login audit trail ---
	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		AppName:  "identity",
	})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	events := mongo.NewLoginEventRepository(mongoDB)
	if err := events.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongodb ready")

	checks := []handler.Check{
		{Name: "postgres", Ping: db.PingContext},
		{Name: "mongodb", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) }},
	}

	// --- Throttle backend ---
	var throttleRepo ports.ThrottleRepository = postgres.NewThrottleRepository(db)
	if cfg.Auth.ThrottleBackend == config.ThrottleBackendRedis {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		throttleRepo = redis.NewThrottleStore(rdb)
		checks = append(checks, handler.Check{Name: "redis", Ping: redisPing(rdb)})
	}
	log.Info().Str("backend", cfg.Auth.ThrottleBackend).Msg("login throttle configured")

	// --- Core services ---
	accounts := postgres.NewAccountRepository(db)
	creds := credentials.NewStore(accounts, credentials.WithCost(cfg.Auth.BcryptCost))

	tokens, err := service.NewTokenService(service.TokenOptions{
		Secret:    cfg.Auth.SecretKey,
		Algorithm: cfg.Auth.Algorithm,
		TTL:       cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		return err
	}

	throttle := service.NewLoginThrottle(throttleRepo, service.ThrottleOptions{
		MaxAttempts: cfg.Auth.MaxLoginAttempts,
		BlockTime:   cfg.Auth.BlockTime(),
		Period:      cfg.Auth.Period(),
	}, log)

	resolver := service.NewPermissionResolver(
		postgres.NewPermissionRepository(db),
		service.ResolverOptions{SuperuserID: cfg.Auth.SuperuserID},
		log,
	)

	// --- Audit dispatcher ---
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, events, log)
	dispatcher.Start(dispatchCtx)
	defer func() {
		cancelDispatch()
		dispatcher.Wait()
		log.Info().Msg("audit dispatcher drained")
	}()

	authService := service.NewAuthService(creds, accounts, throttle, tokens, resolver, dispatcher, log)

	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Events:    events,
		Readiness: checks,
		Log:       log,
		Metrics:   true,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return e.Shutdown(shutdownCtx)
}

func redisPing(c *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error { return c.Ping(ctx).Err() }
}
