package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	appsvc "companion-ai/internal/app"
	"companion-ai/internal/cache"
	"companion-ai/internal/config"
	"companion-ai/internal/events"
	"companion-ai/internal/logging"
	"companion-ai/internal/metrics"
	"companion-ai/internal/pkg/docdecode"
	mysqlClient "companion-ai/internal/platform/mysql"
	postgresClient "companion-ai/internal/platform/postgres"
	rabbitmqClient "companion-ai/internal/platform/rabbitmq"
	redisClient "companion-ai/internal/platform/redis"
	"companion-ai/internal/repository"
	"companion-ai/internal/session"
	"companion-ai/internal/worker"
)

// App holds every long-lived dependency of the server. Archive, Redis and
// MQConn stay nil when their section is not configured.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Archive       *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.TranscriptPublisher
	ArchiveWorker *worker.TranscriptArchiveWorker
	Relay         *appsvc.TranscriptRelay

	Bus      *events.Bus
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Auth *appsvc.AuthService
	Chat *appsvc.ChatService

	StartedAt time.Time

	logCloser io.Closer
	relayDone chan struct{}
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger, logCloser := logging.New(cfg.Log, cfg.IsProduction())

	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
		logCloser: logCloser,
	}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// connect opens the optional infrastructure.
func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	if cfg.Archive.Host != "" && cfg.RabbitMQ.URL != "" {
		db, err := openArchive(ctx, cfg)
		if err != nil {
			return err
		}
		a.Archive = db
	} else {
		a.Logger.Info().Msg("transcript archive disabled")
	}

	if cfg.Redis.Addr != "" {
		client, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = client
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.MQConn = conn
	}
	return nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)
	a.Bus = events.NewBus(a.Logger)

	var revocations cache.RevocationCache = cache.NewMemoryRevocationCache()
	if a.Redis != nil {
		revocations = cache.NewRedisRevocationCache(a.Redis)
	}
	a.Auth = appsvc.NewAuthService(appsvc.AuthOptions{
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTExpiration: cfg.JWTExpiration(),
		DemoMode:      cfg.Auth.DemoMode,
		PasswordHash:  cfg.Auth.PasswordHash,
	}, revocations)

	notifiers := session.MultiNotifier{a.Bus}
	if a.MQConn != nil {
		a.Publisher = rabbitmqClient.NewTranscriptPublisher(a.MQConn, cfg.RabbitMQ.TranscriptQueue)
		a.Relay = appsvc.NewTranscriptRelay(a.Publisher, a.Logger)
		a.relayDone = make(chan struct{})
		go func() {
			defer close(a.relayDone)
			a.Relay.Run(ctx)
		}()
		notifiers = append(notifiers, a.Relay)
	}

	if a.Archive != nil && a.MQConn != nil {
		repo := repository.NewTranscriptRepository(a.Archive)
		if err := repo.Migrate(); err != nil {
			return err
		}
		a.ArchiveWorker = worker.NewTranscriptArchiveWorker(a.MQConn, repo, cfg.RabbitMQ.TranscriptQueue, a.Logger)
		if err := a.ArchiveWorker.Start(ctx); err != nil {
			return fmt.Errorf("start archive worker failed: %w", err)
		}
	}

	generator, err := NewGenerator(cfg, a.Logger)
	if err != nil {
		return err
	}
	a.Chat = appsvc.NewChatService(appsvc.ChatOptions{
		Generator:       generator,
		Decoder:         docdecode.New(cfg.Session.MaxDocumentChars),
		Greeting:        cfg.Session.Greeting,
		ResponseTimeout: cfg.Session.ResponseTimeout.Duration,
		HistoryLimit:    cfg.Session.HistoryLimit,
		IdleTTL:         cfg.Session.IdleTTL.Duration,
		Notifier:        notifiers,
		Recorder:        a.Metrics,
		Gauge:           a.Metrics.ActiveSessions,
		Logger:          a.Logger,
	})
	a.Logger.Info().
		Str("llm_provider", cfg.LLM.Provider).
		Bool("redis", a.Redis != nil).
		Bool("rabbitmq", a.MQConn != nil).
		Bool("archive", a.Archive != nil).
		Msg("application wired")
	return nil
}

func openArchive(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch cfg.Archive.Driver {
	case "postgres":
		return postgresClient.New(ctx, cfg.ArchiveDSN())
	default:
		return mysqlClient.New(ctx, cfg.ArchiveDSN())
	}
}

// HealthChecks lists a health check for each configured dependency.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if a.Archive != nil {
		checks["archive"] = func(ctx context.Context) error {
			sqlDB, err := a.Archive.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}
	}
	return checks
}

func (a *App) Close() error {
	var errs []error
	if a.Relay != nil {
		a.Relay.Close()
		<-a.relayDone
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.ArchiveWorker != nil {
		a.ArchiveWorker.Close()
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Archive != nil {
		if sqlDB, err := a.Archive.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
