package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"lawchat/internal/app"
	"lawchat/internal/backend"
	"lawchat/internal/cache"
	"lawchat/internal/config"
	"lawchat/internal/model"
	"lawchat/internal/observability"
	mysqlClient "lawchat/internal/platform/mysql"
	rabbitmqClient "lawchat/internal/platform/rabbitmq"
	redisClient "lawchat/internal/platform/redis"
	"lawchat/internal/repository"
	"lawchat/internal/store"
	"lawchat/internal/transport/http/handler"
	"lawchat/internal/worker"
)

// App owns every long-lived client of the gateway. MySQL, Redis and
// RabbitMQ are optional; without Redis client state lives in memory.
type App struct {
	Config           *config.Config
	Logger           *slog.Logger
	Backend          *backend.Client
	MySQL            *gorm.DB
	Redis            *redis.Client
	MQConn           *amqp.Connection
	TranscriptWorker *worker.TranscriptPersistWorker
	Registry         *app.Registry

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := observability.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format).With("app", cfg.App.Name)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	a.Backend = backend.New(backend.Options{
		BaseURL:     cfg.Backend.BaseURL,
		Timeout:     cfg.BackendTimeout(),
		AdminHeader: cfg.Backend.AdminHeader,
		UserAgent:   cfg.App.Name + "-gateway",
	})

	var kv store.KV = store.NewMemoryKV()
	if cfg.Redis.Enabled {
		client, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
		kv = cache.NewRedisKV(client, cfg.Redis.KeyPrefix, time.Duration(cfg.Redis.TTLSeconds)*time.Second)
	} else {
		a.Logger.Warn("redis disabled, client state is kept in memory")
	}

	var archive *app.TranscriptService
	if cfg.MySQL.Enabled {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		a.MySQL = db
		if err := db.AutoMigrate(&model.TranscriptEntry{}); err != nil {
			return fmt.Errorf("auto migrate tables failed: %w", err)
		}
		archive = app.NewTranscriptService(repository.NewTranscriptRepository(db))
	}

	var publisher app.TranscriptPublisher
	if cfg.RabbitMQ.Enabled {
		if archive == nil {
			return errors.New("rabbitmq transcript queue needs mysql enabled")
		}
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = conn
		publisher = rabbitmqClient.NewTranscriptPublisher(conn, cfg.RabbitMQ.TranscriptQueue)

		a.TranscriptWorker = worker.NewTranscriptPersistWorker(conn, archive, cfg.RabbitMQ.TranscriptQueue, a.Logger)
		if err := a.TranscriptWorker.Start(ctx); err != nil {
			return fmt.Errorf("start transcript worker failed: %w", err)
		}
	}

	a.Registry = app.NewRegistry(app.RegistryOptions{
		Backend:      a.Backend,
		KV:           kv,
		Origin:       cfg.Origin(),
		SealKey:      cfg.Auth.SealKey,
		JWTSecret:    cfg.Auth.JWTSecret,
		Models:       cfg.Client.Models,
		DefaultModel: cfg.Client.DefaultModel,
		Timeout:      cfg.BackendTimeout(),
		IdleTTL:      time.Duration(cfg.Gateway.IdleMinutes) * time.Minute,
		Archive:      archive,
		Publisher:    publisher,
		Logger:       a.Logger,
	})
	return nil
}

// HealthChecks lists the configured dependencies for /healthz.
func (a *App) HealthChecks() []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{Name: "backend", Check: a.Backend.Ping}}
	if a.MySQL != nil {
		checks = append(checks, handler.DependencyCheck{Name: "mysql", Check: func(ctx context.Context) error {
			sqlDB, err := a.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if a.Redis != nil {
		checks = append(checks, handler.DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	if a.MQConn != nil {
		checks = append(checks, handler.DependencyCheck{Name: "rabbitmq", Check: func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}})
	}
	return checks
}

func (a *App) HealthInfo() handler.HealthInfo {
	return handler.HealthInfo{
		Name:      a.Config.App.Name,
		Env:       a.Config.App.Env,
		Title:     a.Config.App.Title,
		Models:    a.Config.Client.Models,
		PageSize:  a.Config.Client.PageSize,
		StartedAt: a.StartedAt,
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.TranscriptWorker != nil {
		a.TranscriptWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
