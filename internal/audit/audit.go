//go:generate mockgen -source ./audit.go -destination=./mocks/audit.go -package=mock_audit
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Entry is one durable record of a guarded operation attempt. It is not
// modified after the store accepts it.
type Entry struct {
	ID         int64          `json:"id"`
	UserID     *int64         `json:"user_id"`
	Action     string         `json:"action"`
	ResourceID *string        `json:"resource_id,omitempty"`
	Status     Status         `json:"status"`
	IP         *string        `json:"ip,omitempty"`
	RequestID  *string        `json:"request_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Call describes who is doing what. The status is filled in once the
// operation settles.
type Call struct {
	UserID     *int64
	Action     string
	ResourceID *string
	IP         *string
	RequestID  *string
	Metadata   map[string]any
}

// Store persists entries. InsertAndCommit must be durable when it returns
// nil, assign entry.ID, and be safe for concurrent use.
type Store interface {
	InsertAndCommit(ctx context.Context, entry *Entry) error
}

// Alerter receives entries the store refused. It is the operational path
// for a broken audit trail and is separate from the per-call log.
type Alerter interface {
	StoreFailed(ctx context.Context, entry *Entry, err error)
}

var (
	ErrStoreWrite      = errors.New("audit store write failed")
	ErrAlreadyRecorded = errors.New("audit entry already recorded")
	ErrEmptyAction     = errors.New("audit action is empty")
)

// PanicError carries a recovered panic value into a FAILED entry.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func StringPtr(s string) *string {
	return &s
}

func Int64Ptr(n int64) *int64 {
	return &n
}
