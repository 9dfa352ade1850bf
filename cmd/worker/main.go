package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lokapay/settlement-engine/internal/cron"
	"github.com/lokapay/settlement-engine/internal/events"
	"github.com/lokapay/settlement-engine/internal/invoices"
	"github.com/lokapay/settlement-engine/internal/ledger"
	"github.com/lokapay/settlement-engine/internal/merchants"
	"github.com/lokapay/settlement-engine/internal/queue"
	"github.com/lokapay/settlement-engine/internal/sweeper"
	"github.com/lokapay/settlement-engine/internal/watcher"
	"github.com/lokapay/settlement-engine/pkg/chain"
	"github.com/lokapay/settlement-engine/pkg/config"
	"github.com/lokapay/settlement-engine/pkg/db"
	"github.com/lokapay/settlement-engine/pkg/logger"
	"github.com/lokapay/settlement-engine/pkg/metrics"
	"github.com/lokapay/settlement-engine/pkg/migrate"
	"github.com/lokapay/settlement-engine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	chainClient, err := chain.Dial(context.Background(), cfg.Chain, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap chain client", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)

	invoiceRepo, err := invoices.NewRepository(dbClient.DB())
	requireResource(logg, "invoice repository", err)
	merchantRepo, err := merchants.NewRepository(dbClient.DB())
	requireResource(logg, "merchant repository", err)
	ledgerRepo, err := ledger.NewRepository(dbClient.DB())
	requireResource(logg, "ledger repository", err)
	outboxRepo, err := events.NewRepository(dbClient.DB())
	requireResource(logg, "outbox repository", err)
	outboxService := events.NewService(outboxRepo, logg)
	queueRepo, err := queue.NewRepository(queue.RepositoryParams{
		DB:          dbClient.DB(),
		MaxAttempts: cfg.Queue.MaxAttempts,
		BackoffBase: cfg.Queue.BackoffBase,
	})
	requireResource(logg, "sweep queue repository", err)

	watcherService, err := watcher.NewService(watcher.ServiceParams{
		Logger:    logg,
		DB:        dbClient,
		Chain:     chainClient,
		Invoices:  invoiceRepo,
		Merchants: merchantRepo,
		Ledger:    ledgerRepo,
		Outbox:    outboxService,
		Queue:     queueRepo,
		Metrics:   settlementMetrics,
		Config:    cfg.Watcher,
	})
	requireResource(logg, "watcher service", err)

	sweepHandler, err := sweeper.NewHandler(sweeper.HandlerParams{
		Logger:   logg,
		DB:       dbClient,
		Chain:    chainClient,
		Invoices: invoiceRepo,
		Ledger:   ledgerRepo,
		Outbox:   outboxService,
		Metrics:  settlementMetrics,
		Config:   cfg.Chain,
	})
	requireResource(logg, "sweep handler", err)

	consumer, err := queue.NewConsumer(queue.ConsumerParams{
		Logger:         logg,
		DB:             dbClient,
		Store:          queueRepo,
		Handler:        sweepHandler,
		Metrics:        settlementMetrics,
		PollInterval:   cfg.Queue.PollInterval,
		HandlerTimeout: cfg.Queue.HandlerTimeout,
		StaleAfter:     time.Duration(cfg.Queue.ClaimStaleAfterMin) * time.Minute,
	})
	requireResource(logg, "sweep consumer", err)

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{
		Logger:  logg,
		Watcher: watcherService,
	})
	requireResource(logg, "reconcile job", err)
	queueRetentionJob, err := cron.NewQueueRetentionJob(cron.QueueRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    queueRepo,
		KeepCompleted: cfg.Queue.KeepCompleted,
		KeepDead:      cfg.Queue.KeepDead,
	})
	requireResource(logg, "queue retention job", err)
	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.RetentionDays,
	})
	requireResource(logg, "outbox retention job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("reconcile-invoices"), cfg.Watcher.LockTTL)
	requireResource(logg, "scan lock", err)

	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, queueRetentionJob, outboxRetentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Watcher.Interval,
	})
	requireResource(logg, "cron service", err)

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Chain:    chainClient,
		Cron:     cronService,
		Consumer: consumer,
	})
	requireResource(logg, "worker service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting settlement worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
