package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	mock_audit "gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit/mocks"
)

// memStore collects entries; it is safe for concurrent use.
type memStore struct {
	mu      sync.Mutex
	entries []*audit.Entry
	err     error
}

func (m *memStore) InsertAndCommit(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memStore) all() []*audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*audit.Entry(nil), m.entries...)
}

func updateUserCall() audit.Call {
	return audit.Call{Action: "USER_UPDATED", ResourceID: audit.StringPtr("42")}
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("Success path writes one SUCCESS entry", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		err := recorder.Guard(ctx, updateUserCall(), func(context.Context) error { return nil })
		require.NoError(t, err)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "USER_UPDATED", entries[0].Action)
		assert.Equal(t, "42", *entries[0].ResourceID)
		assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	})

	t.Run("Error path writes one FAILED entry and returns the original error", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)
		opErr := errors.New("internal error")

		err := recorder.Guard(ctx, updateUserCall(), func(context.Context) error { return opErr })
		assert.Same(t, opErr, err)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
		assert.Equal(t, "internal error", entries[0].Metadata["error"])
	})

	t.Run("Panic writes one FAILED entry and re-panics", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = recorder.Guard(ctx, updateUserCall(), func(context.Context) error { panic("kaboom") })
		})

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
		assert.Equal(t, "panic: kaboom", entries[0].Metadata["error"])
	})

	t.Run("Store failure does not mask the operation outcome", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		alerter := mock_audit.NewMockAlerter(ctrl)
		store := &memStore{err: errors.New("disk full")}
		recorder := audit.NewRecorder(store, audit.WithAlerter(alerter))
		opErr := errors.New("validation failed")

		alerter.EXPECT().StoreFailed(gomock.Any(), gomock.Any(), store.err).Times(2)

		assert.Same(t, opErr, recorder.Guard(ctx, updateUserCall(), func(context.Context) error { return opErr }))
		assert.NoError(t, recorder.Guard(ctx, updateUserCall(), func(context.Context) error { return nil }))
	})

	t.Run("Cancelled caller still gets its entry written", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)
		cctx, cancel := context.WithCancel(ctx)

		err := recorder.Guard(cctx, updateUserCall(), func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
	})

	t.Run("Operation can enrich its entry", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		err := recorder.Guard(ctx, audit.Call{Action: "PROFILE_UPDATED"}, func(ctx context.Context) error {
			scope, ok := audit.ScopeFromContext(ctx)
			require.True(t, ok)
			scope.SetResourceID("7")
			scope.SetMetadata("fields", []string{"name"})
			return nil
		})
		require.NoError(t, err)

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, "7", *entries[0].ResourceID)
		assert.Equal(t, []string{"name"}, entries[0].Metadata["fields"])
	})

	t.Run("Two calls give two entries", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		for i := 0; i < 2; i++ {
			require.NoError(t, recorder.Guard(ctx, updateUserCall(), func(context.Context) error { return nil }))
		}
		assert.Len(t, store.all(), 2)
	})
}

func TestScope(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty action panics before the operation runs", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		assert.PanicsWithError(t, audit.ErrEmptyAction.Error(), func() {
			recorder.Begin(ctx, audit.Call{})
		})

		ran := false
		assert.PanicsWithError(t, audit.ErrEmptyAction.Error(), func() {
			_ = recorder.Guard(ctx, audit.Call{}, func(context.Context) error {
				ran = true
				return nil
			})
		})
		assert.False(t, ran)
		assert.Empty(t, store.all())
	})

	t.Run("State machine", func(t *testing.T) {
		store := &memStore{}
		scope := audit.NewRecorder(store).Begin(ctx, audit.Call{Action: "PROFILE_UPDATED"})

		assert.Equal(t, audit.StatePending, scope.State())
		assert.Empty(t, store.all(), "pre-phase must not write")

		require.NoError(t, scope.End(nil))
		assert.Equal(t, audit.StateRecorded, scope.State())
		assert.Equal(t, audit.StatusSuccess, scope.Entry().Status)

		assert.ErrorIs(t, scope.End(errors.New("late")), audit.ErrAlreadyRecorded)
		assert.Len(t, store.all(), 1)
	})

	t.Run("Settle records a panic between phases", func(t *testing.T) {
		store := &memStore{}
		recorder := audit.NewRecorder(store)

		assert.Panics(t, func() {
			scope := recorder.Begin(ctx, audit.Call{Action: "PROFILE_UPDATED"})
			var err error
			defer scope.Settle(&err)
			panic(errors.New("handler crashed"))
		})

		entries := store.all()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.StatusFailed, entries[0].Status)
	})

	t.Run("Concurrent End writes once", func(t *testing.T) {
		store := &memStore{}
		scope := audit.NewRecorder(store).Begin(ctx, audit.Call{Action: "A"})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = scope.End(nil)
			}()
		}
		wg.Wait()

		assert.Len(t, store.all(), 1)
	})

	t.Run("Enrichment after End is ignored", func(t *testing.T) {
		store := &memStore{}
		scope := audit.NewRecorder(store).Begin(ctx, audit.Call{Action: "A"})
		require.NoError(t, scope.End(nil))

		scope.SetResourceID("late")
		scope.SetMetadata("late", true)

		assert.Nil(t, store.all()[0].ResourceID)
		assert.NotContains(t, store.all()[0].Metadata, "late")
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "PENDING", audit.StatePending.String())
	assert.Equal(t, "SUCCESS", audit.StateSuccess.String())
	assert.Equal(t, "FAILED", audit.StateFailed.String())
	assert.Equal(t, "RECORDED", audit.StateRecorded.String())
}
