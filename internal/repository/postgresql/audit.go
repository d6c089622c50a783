package postgresql

import (
	"context"
	"encoding/json"
	"fmt"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/storage"
)

const (
	defaultAuditListLimit = 50
	maxAuditListLimit     = 500
)

type AuditRepo struct {
	db     db.DB
	outbox storage.OutboxTaskRepository
	topic  string
}

// NewAuditRepo returns the audit store. When topic is not empty every entry
// is also queued in the outbox, in the same transaction, for shipping to
// that topic.
func NewAuditRepo(db db.DB, outbox storage.OutboxTaskRepository, topic string) *AuditRepo {
	return &AuditRepo{db: db, outbox: outbox, topic: topic}
}

func (r *AuditRepo) InsertAndCommit(ctx context.Context, entry *audit.Entry) error {
	var metadata json.RawMessage
	if entry.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	var id int64
	err = tx.Get(ctx, &id, `
        INSERT INTO audit_logs (
            user_id, action, resource_id, status, ip, request_id, metadata, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, entry.UserID, entry.Action, entry.ResourceID, string(entry.Status), entry.IP, entry.RequestID, metadata, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	if r.topic != "" {
		payload, err := json.Marshal(repository.AuditLogPayload{
			ID:         id,
			UserID:     entry.UserID,
			Action:     entry.Action,
			ResourceID: entry.ResourceID,
			Status:     string(entry.Status),
			IP:         entry.IP,
			RequestID:  entry.RequestID,
			Metadata:   entry.Metadata,
			CreatedAt:  entry.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		if err := r.outbox.CreateTx(ctx, tx, &repository.OutboxTask{Payload: payload, Topic: r.topic}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit audit log: %w", err)
	}
	entry.ID = id
	return nil
}

func (r *AuditRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]*repository.AuditLog, error) {
	query := `
        SELECT id, user_id, action, resource_id, status, ip, request_id, metadata, created_at
        FROM audit_logs
        WHERE 1=1
    `
	args := make([]interface{}, 0, 4)

	if filter.Action != nil {
		args = append(args, *filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	if limit > maxAuditListLimit {
		limit = maxAuditListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var logs []*repository.AuditLog
	if err := r.db.Select(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
