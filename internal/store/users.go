package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/uid"
)

// CreateUser creates a new user.
func CreateUser(ctx context.Context, database *sql.DB, username, passwordHash string) (*model.User, error) {
	id := uid.New()
	_, err := database.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, username, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return GetUser(ctx, database, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q db.Querier, id string) (*model.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, bio, created_at, deleted_at
		 FROM users WHERE id = ?`, id,
	))
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, q db.Querier, username string) (*model.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT id, username, password_hash, bio, created_at, deleted_at
		 FROM users WHERE username = ? AND deleted_at IS NULL`, username,
	))
}

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	var bio sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &bio, &u.CreatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.Bio = bio.String
	return u, nil
}

// UpdateUserBio updates a user's profile text.
func UpdateUserBio(ctx context.Context, database *sql.DB, id, bio string) error {
	_, err := database.ExecContext(ctx,
		`UPDATE users SET bio = ? WHERE id = ? AND deleted_at IS NULL`,
		bio, id,
	)
	if err != nil {
		return fmt.Errorf("updating user bio: %w", err)
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, database *sql.DB, id, passwordHash string) error {
	_, err := database.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, database *sql.DB, id string) error {
	_, err := database.ExecContext(ctx,
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}
