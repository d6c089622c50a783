package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config.LoadEnv()
	cfg, zlog, err := bootstrap()
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("Service stopped with error", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
	zlog.Info("Service gracefully stopped")
}

// bootstrap reads the configuration and builds the logger. Its errors are
// reported before any zap logger exists.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, zlog, nil
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.DSN(), "up"); err != nil {
		return err
	}
	zlog.Info("Database schema is up to date")

	database, err := db.NewDb(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer database.Close()

	userRepo := postgresql.NewUserRepo(database)
	outboxRepo := postgresql.NewOutboxTaskRepo()
	auditRepo := postgresql.NewAuditRepo(database, outboxRepo, cfg.KafkaAuditTopic)

	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if _, err := userRepo.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword, "admin"); err != nil {
			return err
		}
		zlog.Info("Admin user ensured", zap.String("username", cfg.AdminUsername))
	}

	userCache := cache.NewUserCache(userRepo, zlog)
	if err := userCache.LoadInitialData(ctx); err != nil {
		return err
	}

	var producer kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewWriterProducer(cfg.KafkaBrokers, zlog)
	} else {
		producer = kafka.NewConsoleProducer(zlog)
	}

	recorder := audit.NewRecorder(auditRepo,
		audit.WithLogger(zlog),
		audit.WithWriteTimeout(cfg.AuditWriteTimeout),
		audit.WithAlerter(audit.MultiAlerter{
			audit.NewLogAlerter(zlog, os.Stderr),
			kafka.NewAlertPublisher(producer, cfg.KafkaAlertTopic, zlog),
		}),
	)

	httpServer := server.New(server.Deps{
		Users:        userRepo,
		AuditLogs:    auditRepo,
		UserCache:    userCache,
		Recorder:     recorder,
		Logger:       zlog,
		MaxBodyBytes: cfg.MaxBodyBytes,
		MetricsPath:  cfg.MetricsPath,
	})
	grpcServer := grpcserver.NewServer(recorder, cfg.GRPCAuditMethods, zlog)
	publisher := kafka.NewPublisher(database, outboxRepo, producer, kafka.PublisherConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxAttempts,
	}, zlog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.Run(cfg.HTTPPort)
	})
	g.Go(func() error {
		return grpcServer.Run(cfg.GRPCPort)
	})
	g.Go(func() error {
		publisher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("Shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.Shutdown(shutdownCtx)
		publisher.Shutdown(shutdownCtx)
		return err
	})

	return g.Wait()
}
