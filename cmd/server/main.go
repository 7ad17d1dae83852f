package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/videotube-api/internal/config"
	"github.com/iliyamo/videotube-api/internal/database"
	"github.com/iliyamo/videotube-api/internal/handler"
	"github.com/iliyamo/videotube-api/internal/logging"
	"github.com/iliyamo/videotube-api/internal/middleware"
	"github.com/iliyamo/videotube-api/internal/queue"
	"github.com/iliyamo/videotube-api/internal/repository"
	"github.com/iliyamo/videotube-api/internal/router"
	"github.com/iliyamo/videotube-api/internal/service"
	"github.com/iliyamo/videotube-api/internal/storage"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, closeStore, err := openUserStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	defer closeStore()

	media, err := storage.NewS3Uploader(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("init s3: %v", err)
	}

	// Redis is optional: without it the rate limiter runs in-process and
	// the profile cache is disabled.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn(ctx, "redis unavailable; using in-process rate limiting, cache disabled")
	}

	var events service.EventPublisher
	if cfg.RabbitURL != "" {
		async := queue.NewAsyncPublisher(queue.NewPublisher(cfg.RabbitURL), 256, logger.With("component", "events"))
		go async.Run(ctx)
		events = async
		consumer := &queue.AuditConsumer{URL: cfg.RabbitURL, Dir: cfg.AuditLogDir, Logger: logger.With("component", "audit")}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "audit consumer stopped", "err", err)
			}
		}()
	}

	auth := service.NewAuthService(users, media, events, service.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		AccessTTL:     time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshSecret: cfg.RefreshSecret,
		RefreshTTL:    time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
	}, logger.With("component", "auth"))
	authHandler := handler.NewAuthHandler(cfg, auth, logger.With("component", "http"))

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowCredentials: cfg.CORSOrigin != "*",
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "remote_ip", v.RemoteIP}
			if v.Error != nil {
				logger.Error(c.Request().Context(), "request", append(args, "err", v.Error)...)
				return nil
			}
			logger.Info(c.Request().Context(), "request", args...)
			return nil
		},
	}))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.AccessSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterPublic(e, authHandler,
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	addr := ":" + cfg.Port
	go func() {
		logger.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "err", err)
	}
}

// openUserStore builds the repository selected by STORE_DRIVER and returns
// a function releasing its connections.
func openUserStore(ctx context.Context, cfg config.Config) (repository.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := database.OpenMySQL(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewMySQLUserRepo(db, cfg.BcryptCost), func() { _ = db.Close() }, nil
	case config.StoreMemory:
		return repository.NewMemoryUserRepo(cfg.BcryptCost), func() {}, nil
	default:
		db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoUserRepo(db.Collection(database.UsersCollection), cfg.BcryptCost)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil
	}
}
