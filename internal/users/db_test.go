package users_test

import (
	"context"
	"database/sql"
	"testing"

	"ms-marketplace/internal/models"
	"ms-marketplace/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) (*users.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := bunDB.NewCreateTable().Model((*models.User)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to create users table: %v", err)
	}
	return &users.DB{Bun: bunDB}, bunDB
}

func TestSyncUserUpserts(t *testing.T) {
	userDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	err := userDB.SyncUser(context.Background(), "user1", "a@example.com", "Alice")
	assert.NoError(t, err)

	got, err := userDB.GetUserByID(context.Background(), "user1")
	assert.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)

	// A later login with changed claims updates email and name
	err = userDB.SyncUser(context.Background(), "user1", "alice@example.com", "Alice W")
	assert.NoError(t, err)

	got, err = userDB.GetUserByID(context.Background(), "user1")
	assert.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "Alice W", got.Name)

	count, err := bunDB.NewSelect().Model((*models.User)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncUserNeverDowngradesRole(t *testing.T) {
	userDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	require.NoError(t, userDB.SyncUser(context.Background(), "user1", "a@example.com", "Alice"))

	// Promote administratively
	_, err := bunDB.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", models.RoleOrganizer).
		Where("id = ?", "user1").
		Exec(context.Background())
	require.NoError(t, err)

	// A routine login sync must not reset the role
	require.NoError(t, userDB.SyncUser(context.Background(), "user1", "a@example.com", "Alice"))

	role, err := userDB.GetRole(context.Background(), "user1")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleOrganizer, role)
}

func TestGetRoleDefaultsForUnknownUser(t *testing.T) {
	userDB, bunDB := setupTestDB(t)
	defer bunDB.Close()

	role, err := userDB.GetRole(context.Background(), "never-seen")
	assert.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}
