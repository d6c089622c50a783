package kafka

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
)

const alertSendTimeout = 5 * time.Second

type storeFailureAlert struct {
	Entry     *audit.Entry `json:"entry"`
	Error     string       `json:"error"`
	AlertedAt time.Time    `json:"alerted_at"`
}

// AlertPublisher sends entries the audit store refused straight to a Kafka
// topic, bypassing the outbox that lives in the same failing database.
type AlertPublisher struct {
	producer Producer
	topic    string
	logger   *zap.Logger
}

func NewAlertPublisher(producer Producer, topic string, logger *zap.Logger) *AlertPublisher {
	return &AlertPublisher{producer: producer, topic: topic, logger: logger}
}

func (a *AlertPublisher) StoreFailed(ctx context.Context, entry *audit.Entry, err error) {
	value, mErr := json.Marshal(storeFailureAlert{
		Entry:     entry,
		Error:     err.Error(),
		AlertedAt: time.Now().UTC(),
	})
	if mErr != nil {
		a.logger.Error("Failed to marshal audit alert", zap.Error(mErr))
		return
	}

	key := entry.Action
	if entry.RequestID != nil {
		key = *entry.RequestID
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertSendTimeout)
	defer cancel()
	if sErr := a.producer.SendMessage(sendCtx, a.topic, []byte(key), value); sErr != nil {
		a.logger.Error("Failed to publish audit alert",
			zap.String("topic", a.topic),
			zap.String("action", entry.Action),
			zap.Error(sErr),
		)
	}
}
