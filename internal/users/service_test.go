package users

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  delivery_address TEXT,
  failed_login_attempts INTEGER NOT NULL DEFAULT 0,
  locked_until DATETIME,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	profiles := `
CREATE TABLE IF NOT EXISTS seller_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  seller_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(users).Error)
	require.NoError(t, conn.Exec(profiles).Error)
	return conn
}

func newSyncFixture(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	conn := setupUsersTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), logg)
	require.NoError(t, err)
	return svc, conn
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	event := payloads.UserCreatedEvent{
		UserID: uuid.NewString(),
		Email:  "u@gatech.edu",
		Role:   enums.RoleCustomer,
	}
	require.NoError(t, svc.EnsureUser(ctx, event))
	require.NoError(t, svc.EnsureUser(ctx, event))

	var count int64
	require.NoError(t, conn.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureUserNeverTouchesExistingRow(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	existing := &models.User{
		ID:           uuid.New(),
		Email:        "u@gatech.edu",
		PasswordHash: "argon2id$local",
		Role:         enums.RoleSeller,
	}
	require.NoError(t, conn.Create(existing).Error)

	require.NoError(t, svc.EnsureUser(ctx, payloads.UserCreatedEvent{
		UserID: existing.ID.String(),
		Email:  "u@gatech.edu",
		Role:   enums.RoleCustomer,
	}))

	var reloaded models.User
	require.NoError(t, conn.Where("id = ?", existing.ID).First(&reloaded).Error)
	assert.Equal(t, "argon2id$local", reloaded.PasswordHash)
	assert.Equal(t, enums.RoleSeller, reloaded.Role)
}

func TestApplyUserUpdateChangesRoleOnly(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	user := &models.User{
		ID:           uuid.New(),
		Email:        "u@gatech.edu",
		PasswordHash: "argon2id$local",
		Role:         enums.RoleCustomer,
	}
	require.NoError(t, conn.Create(user).Error)

	require.NoError(t, svc.ApplyUserUpdate(ctx, payloads.UserUpdatedEvent{
		UserID: user.ID.String(),
		Email:  "other@gatech.edu",
		Role:   enums.RoleSeller,
	}))

	var reloaded models.User
	require.NoError(t, conn.Where("id = ?", user.ID).First(&reloaded).Error)
	assert.Equal(t, enums.RoleSeller, reloaded.Role)
	// Unrelated fields are never overwritten.
	assert.Equal(t, "u@gatech.edu", reloaded.Email)
	assert.Equal(t, "argon2id$local", reloaded.PasswordHash)
}

func TestApplyUserUpdateWritesDisplayNameThrough(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "s@gatech.edu", PasswordHash: "h", Role: enums.RoleSeller}
	require.NoError(t, conn.Create(user).Error)
	require.NoError(t, conn.Create(&models.SellerProfile{
		ID:          uuid.New(),
		UserID:      user.ID,
		SellerID:    "seller-1",
		DisplayName: "Old Name",
	}).Error)

	require.NoError(t, svc.ApplyUserUpdate(ctx, payloads.UserUpdatedEvent{
		UserID:      user.ID.String(),
		DisplayName: "Aarhus Antikvariat",
	}))

	name, err := svc.GetDisplayName(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, "Aarhus Antikvariat", name)
}

func TestApplyUserUpdateUnknownUserIsDropped(t *testing.T) {
	svc, _ := newSyncFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.ApplyUserUpdate(ctx, payloads.UserUpdatedEvent{
		UserID: uuid.NewString(),
		Role:   enums.RoleSeller,
	}))
}

func TestApplyRoleChangeIsIdempotent(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "u@gatech.edu", PasswordHash: "h", Role: enums.RoleCustomer}
	require.NoError(t, conn.Create(user).Error)

	event := payloads.UserRoleChangedEvent{
		UserID:  user.ID.String(),
		OldRole: enums.RoleCustomer,
		NewRole: enums.RoleSeller,
	}
	require.NoError(t, svc.ApplyRoleChange(ctx, event))
	require.NoError(t, svc.ApplyRoleChange(ctx, event))

	var reloaded models.User
	require.NoError(t, conn.Where("id = ?", user.ID).First(&reloaded).Error)
	assert.Equal(t, enums.RoleSeller, reloaded.Role)
}

func TestSeedSellerProfileIsIdempotent(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "s@gatech.edu", PasswordHash: "h", Role: enums.RoleSeller}
	require.NoError(t, conn.Create(user).Error)

	event := payloads.SellerCreatedEvent{
		UserID:      user.ID.String(),
		SellerID:    "seller-1",
		DisplayName: "Aarhus Antikvariat",
	}
	require.NoError(t, svc.SeedSellerProfile(ctx, event))
	require.NoError(t, svc.SeedSellerProfile(ctx, event))

	var count int64
	require.NoError(t, conn.Model(&models.SellerProfile{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetEmailResolvesRecipients(t *testing.T) {
	svc, conn := newSyncFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "u@gatech.edu", PasswordHash: "h", Role: enums.RoleCustomer}
	require.NoError(t, conn.Create(user).Error)

	email, err := svc.GetEmail(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "u@gatech.edu", email)

	_, err = svc.GetEmail(ctx, uuid.NewString())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// Malformed ids read as unknown recipients, not as internal errors.
	_, err = svc.GetEmail(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestGetDisplayNameMissingProfileIsEmpty(t *testing.T) {
	svc, _ := newSyncFixture(t)
	ctx := context.Background()

	name, err := svc.GetDisplayName(ctx, "seller-unknown")
	require.NoError(t, err)
	assert.Equal(t, "", name)
}
