package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/septivank/meter-report-service/internal/api"
	"github.com/septivank/meter-report-service/internal/archive"
	"github.com/septivank/meter-report-service/internal/config"
	"github.com/septivank/meter-report-service/internal/db"
	"github.com/septivank/meter-report-service/internal/export"
	"github.com/septivank/meter-report-service/internal/meter"
	"github.com/septivank/meter-report-service/internal/metrics"
	"github.com/septivank/meter-report-service/internal/mq"
	"github.com/septivank/meter-report-service/internal/repository"
	"github.com/septivank/meter-report-service/internal/service"
	"github.com/septivank/meter-report-service/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	fulfillment *service.FulfillmentService,
) (*mq.Consumer, error) {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.Queue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.Exchange,
		RoutingKey:       cfg.RabbitMQ.RoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Workers:          cfg.RabbitMQ.Workers,
		Logger:           logger,
		MessageProcessor: fulfillment.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

func startHTTPServer(lc fx.Lifecycle, server *api.Server, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					logger.Error("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(lc, logger, db.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: int32(cfg.Database.MaxConns),
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *pgxpool.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideMeterClient creates the meter data provider client
func ProvideMeterClient(cfg *config.Config, logger *zap.Logger) (*meter.Client, error) {
	return meter.NewClient(meter.ClientConfig{
		BaseURL:   cfg.MeterProvider.URL,
		Timeout:   cfg.MeterProvider.Timeout,
		RateLimit: cfg.MeterProvider.RateLimit,
		Burst:     cfg.MeterProvider.Burst,
	}, logger)
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator(db.MeterSerialNumberLength)
}

// ProvideMetrics registers the service collectors with the default registry served on /metrics
func ProvideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(mq.PublisherConfig{
		Connection: conn,
		Exchange:   cfg.RabbitMQ.Exchange,
		Queue:      cfg.RabbitMQ.Queue,
		DLQQueue:   cfg.RabbitMQ.DLQQueue,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideFulfillmentService creates the report fulfillment service
func ProvideFulfillmentService(
	repo *repository.Repository,
	client *meter.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *service.FulfillmentService {
	return service.NewFulfillmentService(repo, client, m, logger)
}

// ProvideReportService creates the report request and export service
func ProvideReportService(
	repo *repository.Repository,
	publisher *mq.Publisher,
	v *validator.Validator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *service.ReportService {
	return service.NewReportService(repo, publisher, v, export.NewGenerator(logger), m, logger)
}

// ProvideArchiver creates the export archiver
func ProvideArchiver(cfg *config.Config, logger *zap.Logger) (archive.Archiver, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return archive.New(ctx, archive.Config{
		Bucket:          cfg.Export.ArchiveBucket,
		Prefix:          cfg.Export.ArchivePrefix,
		Region:          cfg.Export.ArchiveRegion,
		Endpoint:        cfg.Export.ArchiveEndpoint,
		AccessKeyID:     cfg.Export.AccessKeyID,
		SecretAccessKey: cfg.Export.SecretAccessKey,
	}, logger)
}

// ProvideAPIServer creates the HTTP API server
func ProvideAPIServer(
	cfg *config.Config,
	reports *service.ReportService,
	archiver archive.Archiver,
	repo *repository.Repository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *api.Server {
	return api.NewServer(cfg.HTTP.Address, reports, archiver, repo, m, logger)
}
