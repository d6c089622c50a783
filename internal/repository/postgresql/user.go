package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"golang.org/x/crypto/bcrypt"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/storage"
)

type UserRepo struct {
	db db.DB
}

func NewUserRepo(db db.DB) storage.UserRepository {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, username, password, name, role string) (*repository.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user repository.User
	err = r.db.Get(ctx, &user, `
        INSERT INTO users (username, password, name, role)
        VALUES ($1, $2, $3, $4)
        RETURNING *
    `, username, string(hashedPassword), name, role)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", username, err)
	}
	return &user, nil
}

// EnsureUser creates the user unless one with that username already exists.
func (r *UserRepo) EnsureUser(ctx context.Context, username, password, role string) (*repository.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrObjectNotFound) {
		return nil, err
	}
	return r.Create(ctx, username, password, username, role)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	var user repository.User
	err := r.db.Get(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	var user repository.User
	err := r.db.Get(ctx, &user, "SELECT * FROM users WHERE username = $1", username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*repository.User, error) {
	var users []*repository.User
	if err := r.db.Select(ctx, &users, "SELECT * FROM users ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateProfile sets name and role; an empty value keeps the stored one.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, name, role string) (*repository.User, error) {
	var user repository.User
	err := r.db.Get(ctx, &user, `
        UPDATE users
        SET
            name = COALESCE(NULLIF($2, ''), name),
            role = COALESCE(NULLIF($3, ''), role),
            updated_at = NOW()
        WHERE id = $1
        RETURNING *
    `, id, name, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return &user, nil
}
