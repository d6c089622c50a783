package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_database "gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/db/mocks"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

func TestOutboxTaskRepo_CreateTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewOutboxTaskRepo()
		task := &repository.OutboxTask{Payload: []byte(`{"id":1}`), Topic: "audit_logs"}

		mockTx.EXPECT().Exec(
			gomock.Any(), gomock.Any(),
			gomock.Any(),
			gomock.Eq(repository.TaskStatusCreated),
			gomock.Eq(task.Payload),
			gomock.Eq("audit_logs"),
			gomock.Any(), gomock.Any(),
		).Return(pgconn.CommandTag("INSERT 0 1"), nil)

		err := repo.CreateTx(ctx, mockTx, task)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, repository.TaskStatusCreated, task.Status)
		assert.False(t, task.CreatedAt.IsZero())
	})

	t.Run("Tx Error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewOutboxTaskRepo()
		txErr := errors.New("transaction error")

		mockTx.EXPECT().Exec(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(nil, txErr)

		err := repo.CreateTx(ctx, mockTx, &repository.OutboxTask{Topic: "audit_logs"})
		assert.ErrorIs(t, err, txErr)
	})
}

func TestOutboxTaskRepo_GetProcessableTasksTx(t *testing.T) {
	ctx := context.Background()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTx := mock_database.NewMockTx(ctrl)
	repo := NewOutboxTaskRepo()
	expected := []*repository.OutboxTask{{ID: uuid.New(), Status: repository.TaskStatusFailed, Attempts: 1}}

	mockTx.EXPECT().Select(
		gomock.Any(), gomock.Any(), gomock.Any(),
		gomock.Eq(repository.TaskStatusCreated),
		gomock.Eq(repository.TaskStatusFailed),
		gomock.Eq(5),
		gomock.Eq(50),
	).SetArg(1, expected).Return(nil)

	tasks, err := repo.GetProcessableTasksTx(ctx, mockTx, 50, 5)
	require.NoError(t, err)
	assert.Equal(t, expected, tasks)
}

func TestOutboxTaskRepo_UpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	completed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockDB := mock_database.NewMockDB(ctrl)
		repo := NewOutboxTaskRepo()

		mockDB.EXPECT().Exec(
			gomock.Any(), gomock.Any(),
			gomock.Eq(id),
			gomock.Eq(repository.TaskStatusDone),
			gomock.Eq(1),
			gomock.Eq((*string)(nil)),
			gomock.Eq(&completed),
		).Return(pgconn.CommandTag("UPDATE 1"), nil)

		err := repo.UpdateTaskStatus(ctx, mockDB, id, repository.TaskStatusDone, 1, nil, &completed)
		assert.NoError(t, err)
	})

	t.Run("Not Found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTx := mock_database.NewMockTx(ctrl)
		repo := NewOutboxTaskRepo()

		mockTx.EXPECT().Exec(
			gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
			gomock.Any(), gomock.Any(), gomock.Any(),
		).Return(pgconn.CommandTag("UPDATE 0"), nil)

		err := repo.UpdateTaskStatusTx(ctx, mockTx, id, repository.TaskStatusFailed, 2, nil, nil)
		assert.ErrorIs(t, err, repository.ErrObjectNotFound)
	})
}
