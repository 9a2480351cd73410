package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/valora-admin/internal/adapter/cache"
	mailadapter "github.com/smallbiznis/valora-admin/internal/adapter/mail"
	storageadapter "github.com/smallbiznis/valora-admin/internal/adapter/storage"
	"github.com/smallbiznis/valora-admin/internal/bootstrap"
	"github.com/smallbiznis/valora-admin/internal/config"
	httptransport "github.com/smallbiznis/valora-admin/internal/http"
	"github.com/smallbiznis/valora-admin/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/valora-admin/internal/http/middleware"
	"github.com/smallbiznis/valora-admin/internal/jwt"
	apimiddleware "github.com/smallbiznis/valora-admin/internal/middleware"
	"github.com/smallbiznis/valora-admin/internal/repository"
	"github.com/smallbiznis/valora-admin/internal/server"
	"github.com/smallbiznis/valora-admin/internal/service"
	"github.com/smallbiznis/valora-admin/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newAdminRepository,
			newRedisClient,
			newCodeStore,
			newMailer,
			newFileStore,
			newTokenGenerator,
			newRateLimiter,
			service.NewAdminService,
			newAdminHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.Migrate, bootstrap.EnsureSuperAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newAdminRepository(pool *pgxpool.Pool) repository.AdminRepository {
	return repository.NewPostgresAdminRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newCodeStore(client redis.UniversalClient) repository.CodeStore {
	return cacheadapter.NewRedisCodeStore(client)
}

func newMailer(cfg config.Config) (repository.Mailer, error) {
	return mailadapter.NewSMTPMailer(cfg)
}

func newFileStore(cfg config.Config) (repository.FileStore, error) {
	return storageadapter.NewS3Store(context.Background(), cfg)
}

func newTokenGenerator(cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator([]byte(cfg.TokenSecret), cfg.ServiceName, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newAdminHandler(admins *service.AdminService, cfg config.Config) *handler.AdminHandler {
	return handler.NewAdminHandler(admins, cfg)
}

func newAuthMiddleware(tokens *jwt.Generator) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Tokens: tokens}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
