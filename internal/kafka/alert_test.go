package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	mock_kafka "gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/kafka/mocks"
)

func TestAlertPublisher_StoreFailed(t *testing.T) {
	t.Run("publishes entry and error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		producer := mock_kafka.NewMockProducer(ctrl)
		alerter := NewAlertPublisher(producer, "audit_alerts", zap.NewNop())
		entry := &audit.Entry{Action: "USER_UPDATED", Status: audit.StatusFailed, RequestID: audit.StringPtr("req-9")}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		producer.EXPECT().
			SendMessage(gomock.Any(), "audit_alerts", []byte("req-9"), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ string, _ []byte, value []byte) error {
				assert.NoError(t, ctx.Err())
				var alert storeFailureAlert
				require.NoError(t, json.Unmarshal(value, &alert))
				assert.Equal(t, "USER_UPDATED", alert.Entry.Action)
				assert.Equal(t, "connection reset", alert.Error)
				return nil
			})

		alerter.StoreFailed(ctx, entry, errors.New("connection reset"))
	})

	t.Run("send failure is logged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		producer := mock_kafka.NewMockProducer(ctrl)
		core, logs := observer.New(zapcore.ErrorLevel)
		alerter := NewAlertPublisher(producer, "audit_alerts", zap.New(core))

		producer.EXPECT().
			SendMessage(gomock.Any(), "audit_alerts", []byte("PROFILE_UPDATED"), gomock.Any()).
			Return(errors.New("no brokers"))

		alerter.StoreFailed(context.Background(), &audit.Entry{Action: "PROFILE_UPDATED"}, errors.New("db down"))
		assert.Equal(t, 1, logs.FilterMessage("Failed to publish audit alert").Len())
	})
}
