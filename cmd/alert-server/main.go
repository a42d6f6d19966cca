// cmd/alert-server/main.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/api"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/audit"
	awsclient "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/aws"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/camunda"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/database"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/observability"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/channels"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/dispatch"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/realtime"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/storage/cache"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/storage/postgres"
	sa "github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/workers/alerting/send-alert"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{cfg.Logging.Output},
		Service:     cfg.App.Name,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, cfg.Tracing, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	if err := pg.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		zapLog.Warn("postgres pool metrics not registered", zap.Error(err))
	}

	store := postgres.New(pg.DB, log)
	if cfg.Database.Postgres.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis config invalid", zap.Error(err))
	}
	err = retryWithBackoff(func() error {
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		if err := esClient.EnsureIndex(ctx, cfg.Audit.Index, audit.IndexMapping); err != nil {
			zapLog.Fatal("audit index setup failed", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Channel adapters ---
	adapters, err := buildAdapters(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("channel adapters failed", zap.Error(err))
	}
	dispatcher := dispatch.New(dispatch.Config{MaxConcurrency: cfg.Dispatch.MaxConcurrency}, log, adapters...)

	// --- Alert service ---
	deps := alerts.Deps{
		Store:         store,
		Dispatcher:    dispatcher,
		Observability: obs,
	}
	if cfg.Cache.Enabled {
		deps.Users = cache.NewDirectory(store, rdb.Client, cfg.Cache.Key, config.GetDuration(cfg.Cache.TTL), log)
	}

	var broadcaster *realtime.Broadcaster
	if cfg.Realtime.Enabled {
		broadcaster = realtime.NewBroadcaster(rdb.Client, cfg.Realtime.ChannelPrefix, log)
		deps.Broadcaster = broadcaster
	}

	var indexer *audit.Indexer
	if esClient != nil {
		indexer = audit.NewIndexer(esClient.Client, cfg.Audit.Index, log)
		deps.Auditor = indexer
	}

	service := alerts.NewService(deps, log)

	// --- Zeebe worker (optional) ---
	var zeebe *camunda.Client
	var jobWorker worker.JobWorker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.Connect(ctx, cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()

		wcfg := config.GetWorkerConfig(cfg, sa.TaskType)
		handler := sa.NewHandler(sa.LoadConfig(wcfg), service, log)
		jobWorker = zeebe.StartWorker(sa.TaskType, wcfg, handler.Handle, log)
	}

	// --- HTTP API ---
	opts := []api.Option{
		api.WithReadinessCheck("postgres", pg),
		api.WithReadinessCheck("redis", rdb),
	}
	if broadcaster != nil {
		opts = append(opts, api.WithEventSource(broadcaster))
	}
	if indexer != nil {
		opts = append(opts,
			api.WithDeliveryLog(indexer),
			api.WithReadinessCheck("elasticsearch", esClient),
		)
	}
	if zeebe != nil {
		opts = append(opts, api.WithReadinessCheck("zeebe", zeebe))
	}

	server := api.NewServer(cfg.Server, api.NewHandlers(service, log, opts...), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	zapLog.Info("Alert server started", zap.Int("port", cfg.Server.Port))

	select {
	case <-ctx.Done():
		zapLog.Info("Shutting down alert server...")
	case err := <-errCh:
		if err != nil {
			zapLog.Error("api server stopped", zap.Error(err))
		}
	}

	if jobWorker != nil {
		jobWorker.Close()
		jobWorker.AwaitClose()
	}
	if err := server.Shutdown(context.Background()); err != nil {
		zapLog.Error("api server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Alert server stopped")
}

// buildAdapters wires one adapter per channel. Channels whose provider is
// disabled still get an adapter; it always simulates.
func buildAdapters(ctx context.Context, cfg *config.Config, log logger.Logger) ([]channels.Adapter, error) {
	provider := func(enabled bool) channels.ProviderConfig {
		return channels.ProviderConfig{
			Live:            enabled,
			Timeout:         config.GetDuration(cfg.Dispatch.AdapterTimeout),
			SimulationDelay: config.GetDuration(cfg.Dispatch.SimulationDelay),
		}
	}

	awsClients, err := awsclient.New(ctx, awsclient.Options{
		Region:   cfg.Providers.AWS.Region,
		Endpoint: cfg.Providers.AWS.Endpoint,
		Email:    cfg.Providers.Email.Enabled,
		SMS:      cfg.Providers.SMS.Enabled,
	})
	if err != nil {
		return nil, err
	}
	// Typed nil clients must not reach the adapters as non-nil interfaces.
	var sesClient channels.SESAPI
	if awsClients.SES != nil {
		sesClient = awsClients.SES
	}
	var snsClient channels.SNSAPI
	if awsClients.SNS != nil {
		snsClient = awsClients.SNS
	}

	var expo channels.ExpoPusher
	if cfg.Providers.Push.Enabled {
		expo = channels.NewExpoClient(cfg.Providers.Push.URL, cfg.Providers.Push.AccessToken,
			config.GetDuration(cfg.Dispatch.AdapterTimeout))
	}

	return []channels.Adapter{
		channels.NewEmailAdapter(channels.EmailConfig{
			Provider:  provider(cfg.Providers.Email.Enabled),
			FromEmail: cfg.Providers.Email.FromEmail,
			FromName:  cfg.Providers.Email.FromName,
		}, sesClient, log),
		channels.NewSMSAdapter(channels.SMSConfig{
			Provider: provider(cfg.Providers.SMS.Enabled),
			SenderID: cfg.Providers.SMS.SenderID,
		}, snsClient, log),
		channels.NewPushAdapter(channels.PushConfig{
			Provider: provider(cfg.Providers.Push.Enabled),
		}, expo, log),
	}, nil
}
