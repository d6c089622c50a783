//go:generate mockgen -source ./storage.go -destination=./mocks/storage.go -package=mock_storage
package storage

import (
	"context"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

type UserRepository interface {
	Create(ctx context.Context, username, password, name, role string) (*repository.User, error)
	EnsureUser(ctx context.Context, username, password, role string) (*repository.User, error)
	GetByID(ctx context.Context, id int64) (*repository.User, error)
	GetByUsername(ctx context.Context, username string) (*repository.User, error)
	List(ctx context.Context) ([]*repository.User, error)
	UpdateProfile(ctx context.Context, id int64, name, role string) (*repository.User, error)
}

type AuditLogRepository interface {
	audit.Store
	List(ctx context.Context, filter repository.AuditLogFilter) ([]*repository.AuditLog, error)
}
