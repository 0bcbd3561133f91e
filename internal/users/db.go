package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-marketplace/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun bun.IDB
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s not found", id)
		}
		return nil, err
	}
	return &user, nil
}

// SyncUser upserts the identity-provider view of a user on first sight.
// Role is never touched here; promoting someone to organizer is an
// administrative write, not a login side effect.
func (d *DB) SyncUser(ctx context.Context, id, email, name string) error {
	user := &models.User{
		ID:        id,
		Email:     email,
		Name:      name,
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
	}
	_, err := d.Bun.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	return err
}

// GetRole returns the user's role, defaulting to plain user when the row
// has not been synced yet.
func (d *DB) GetRole(ctx context.Context, id string) (string, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Column("role").
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RoleUser, nil
		}
		return "", err
	}
	return user.Role, nil
}
