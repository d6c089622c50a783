package repository

import (
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrObjectNotFound = errors.New("not found")

type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	UserID     *int64          `db:"user_id" json:"user_id"`
	Action     string          `db:"action" json:"action"`
	ResourceID *string         `db:"resource_id" json:"resource_id"`
	Status     string          `db:"status" json:"status"`
	IP         *string         `db:"ip" json:"ip"`
	RequestID  *string         `db:"request_id" json:"request_id"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type AuditLogFilter struct {
	Action *string
	UserID *int64
	Limit  int
	Offset int
}

type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"password" json:"-"`
	Name      string    `db:"name" json:"name"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CheckPassword compares password with the stored bcrypt hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}
