package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

const groupID = "audit-log-consumer-group"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.L().Fatal("Failed to create logger", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is not set")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        groupID,
		Topic:          cfg.KafkaAuditTopic,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		MaxWait:        3 * time.Second,
	})
	defer func() {
		log.Info("Closing Kafka reader...")
		if err := r.Close(); err != nil {
			log.Error("Error closing Kafka reader", zap.Error(err))
		}
	}()

	log.Info("Consumer connected",
		zap.String("topic", cfg.KafkaAuditTopic),
		zap.Strings("brokers", cfg.KafkaBrokers))

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("Shutdown signal received, stopping consumer")
				return
			}
			log.Error("Error reading message", zap.Error(err))
			time.Sleep(5 * time.Second)
			continue
		}

		var payload repository.AuditLogPayload
		if err := json.Unmarshal(m.Value, &payload); err != nil {
			log.Warn("Skipping malformed audit message",
				zap.Int64("offset", m.Offset),
				zap.ByteString("value", m.Value),
				zap.Error(err))
			continue
		}

		log.Info("AUDIT ENTRY",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int64("id", payload.ID),
			zap.String("action", payload.Action),
			zap.String("status", payload.Status),
			zap.Int64p("user_id", payload.UserID),
			zap.Stringp("resource_id", payload.ResourceID),
			zap.Stringp("ip", payload.IP),
			zap.Stringp("request_id", payload.RequestID),
			zap.Any("metadata", payload.Metadata),
			zap.Time("created_at", payload.CreatedAt),
		)
	}
}
