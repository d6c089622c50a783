package audit_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	mock_audit "gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit/mocks"
)

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mock_audit.NewMockStore(ctrl)
		recorder := audit.NewRecorder(store)

		call := audit.Call{
			UserID:     audit.Int64Ptr(7),
			Action:     "USER_UPDATED",
			ResourceID: audit.StringPtr("42"),
			IP:         audit.StringPtr("1.2.3.4"),
			RequestID:  audit.StringPtr("req-1"),
			Metadata:   map[string]any{"source": "test"},
		}

		store.EXPECT().
			InsertAndCommit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *audit.Entry) error {
				assert.Equal(t, int64(7), *entry.UserID)
				assert.Equal(t, "USER_UPDATED", entry.Action)
				assert.Equal(t, "42", *entry.ResourceID)
				assert.Equal(t, audit.StatusSuccess, entry.Status)
				assert.Equal(t, "1.2.3.4", *entry.IP)
				assert.Equal(t, "req-1", *entry.RequestID)
				assert.Equal(t, "test", entry.Metadata["source"])
				assert.False(t, entry.CreatedAt.IsZero())
				entry.ID = 1
				return nil
			})

		entry, err := recorder.Record(ctx, call, audit.StatusSuccess)
		require.NoError(t, err)
		assert.Equal(t, int64(1), entry.ID)
	})

	t.Run("Metadata is copied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mock_audit.NewMockStore(ctrl)
		recorder := audit.NewRecorder(store)
		md := map[string]any{"k": "v"}

		store.EXPECT().InsertAndCommit(gomock.Any(), gomock.Any()).Return(nil)

		entry, err := recorder.Record(ctx, audit.Call{Action: "A", Metadata: md}, audit.StatusFailed)
		require.NoError(t, err)
		md["k"] = "changed"
		assert.Equal(t, "v", entry.Metadata["k"])
	})

	t.Run("Empty action", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		recorder := audit.NewRecorder(mock_audit.NewMockStore(ctrl))

		_, err := recorder.Record(ctx, audit.Call{}, audit.StatusSuccess)
		assert.ErrorIs(t, err, audit.ErrEmptyAction)
	})

	t.Run("Invalid status", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		recorder := audit.NewRecorder(mock_audit.NewMockStore(ctrl))

		_, err := recorder.Record(ctx, audit.Call{Action: "A"}, audit.Status("MAYBE"))
		assert.Error(t, err)
	})

	t.Run("Store failure is alerted and returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		store := mock_audit.NewMockStore(ctrl)
		alerter := mock_audit.NewMockAlerter(ctrl)
		recorder := audit.NewRecorder(store, audit.WithAlerter(alerter))
		dbErr := errors.New("connection reset")

		store.EXPECT().InsertAndCommit(gomock.Any(), gomock.Any()).Return(dbErr)
		alerter.EXPECT().
			StoreFailed(gomock.Any(), gomock.Any(), dbErr).
			Do(func(_ context.Context, entry *audit.Entry, _ error) {
				assert.Equal(t, "A", entry.Action)
			})

		_, err := recorder.Record(ctx, audit.Call{Action: "A"}, audit.StatusSuccess)
		assert.ErrorIs(t, err, audit.ErrStoreWrite)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestRecorder_CreatedAtNeverDecreases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	now := func() time.Time {
		tick := ticks[i]
		i++
		return tick
	}

	store := mock_audit.NewMockStore(ctrl)
	recorder := audit.NewRecorder(store, audit.WithClock(now))

	var got []time.Time
	store.EXPECT().
		InsertAndCommit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *audit.Entry) error {
			got = append(got, entry.CreatedAt)
			return nil
		}).
		Times(3)

	for range ticks {
		_, err := recorder.Record(context.Background(), audit.Call{Action: "A"}, audit.StatusSuccess)
		require.NoError(t, err)
	}

	assert.Equal(t, []time.Time{base, base, base.Add(time.Second)}, got)
}

func TestLogAlerter(t *testing.T) {
	var out bytes.Buffer
	alerter := audit.NewLogAlerter(nil, &out)

	alerter.StoreFailed(context.Background(), &audit.Entry{Action: "USER_UPDATED", Status: audit.StatusFailed}, errors.New("boom"))

	assert.Contains(t, out.String(), "EMERGENCY AUDIT ENTRY")
	assert.Contains(t, out.String(), `"action": "USER_UPDATED"`)
	assert.Contains(t, out.String(), `"status": "FAILED"`)
}

func TestMultiAlerter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first := mock_audit.NewMockAlerter(ctrl)
	second := mock_audit.NewMockAlerter(ctrl)
	entry := &audit.Entry{Action: "A"}
	err := errors.New("boom")

	first.EXPECT().StoreFailed(gomock.Any(), entry, err)
	second.EXPECT().StoreFailed(gomock.Any(), entry, err)

	audit.MultiAlerter{first, second}.StoreFailed(context.Background(), entry, err)
}
