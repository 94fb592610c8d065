package auth

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/internal/users"
	pkgauth "github.com/mkrogh/bookmarket-backend/pkg/auth"
	"github.com/mkrogh/bookmarket-backend/pkg/auth/session"
	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{`
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
);`, `
CREATE TABLE IF NOT EXISTS seller_profiles (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  seller_id TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type fakeSessions struct {
	tokens map[string]string
	minted int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.minted++
	token := fmt.Sprintf("refresh-%d", f.minted)
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.tokens, oldAccessID)
	newAccessID := session.NewAccessID()
	f.minted++
	token := fmt.Sprintf("refresh-%d", f.minted)
	f.tokens[newAccessID] = token
	return newAccessID, token, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.tokens, accessID)
	return nil
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) countOf(eventType enums.OutboxEventType) int {
	count := 0
	for _, event := range r.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "bookmarket",
		ExpirationMinutes:      60,
		RefreshTokenTTLMinutes: 43200,
	}
}

// Small argon parameters keep the hashing fast in tests.
func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func newAuthFixture(t *testing.T) (Service, *gorm.DB, *recordingOutbox) {
	t.Helper()

	conn := setupAuthTestDB(t)
	events := &recordingOutbox{}
	logg := logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		DB:          db.NewFromConn(conn),
		Users:       users.NewRepository(conn),
		Session:     newFakeSessions(),
		Outbox:      events,
		JWTConfig:   testJWTConfig(),
		PasswordCfg: testPasswordConfig(),
		LockoutCfg:  config.LockoutConfig{MaxFailedAttempts: 5, Duration: 15 * time.Minute},
		Logger:      logg,
	})
	require.NoError(t, err)
	return svc, conn, events
}

func setClock(svc Service, at time.Time) {
	svc.(*service).now = func() time.Time { return at }
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected a typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestRegisterIssuesTokensAndEmitsUserCreated(t *testing.T) {
	svc, conn, events := newAuthFixture(t)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, RegisterRequest{Email: "U@Gatech.edu", Password: "Password123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)

	var user models.User
	require.NoError(t, conn.Where("email = ?", "u@gatech.edu").First(&user).Error)
	assert.Equal(t, enums.RoleCustomer, user.Role)
	assert.Equal(t, 1, events.countOf(enums.EventUserCreated))

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = svc.Register(ctx, RegisterRequest{Email: "u@gatech.edu", Password: "Password456!"})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "u@gatech.edu", Password: "short"})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestLoginUnknownEmailIsUnauthorized(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@gatech.edu", Password: "Password123!"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLockoutAfterFiveFailuresAndRecovery(t *testing.T) {
	svc, conn, _ := newAuthFixture(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	setClock(svc, start)

	_, err := svc.Register(ctx, RegisterRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, LoginRequest{Email: "u@gatech.edu", Password: "WrongPassword!"})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	}

	var user models.User
	require.NoError(t, conn.Where("email = ?", "u@gatech.edu").First(&user).Error)
	assert.Equal(t, 5, user.FailedLoginAttempts)
	require.NotNil(t, user.LockedUntil)

	// Correct password inside the window is still refused.
	_, err = svc.Login(ctx, LoginRequest{Email: "u@gatech.edu", Password: "Password123!"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	assert.Contains(t, typed.Error(), "temporarily locked")

	// The window elapses and the correct password resets the counter.
	setClock(svc, start.Add(15*time.Minute))
	tokens, err := svc.Login(ctx, LoginRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)

	// Rescan into a zero struct: gorm leaves stale pointer fields untouched
	// when the column is NULL.
	user = models.User{}
	require.NoError(t, conn.Where("email = ?", "u@gatech.edu").First(&user).Error)
	assert.Equal(t, 0, user.FailedLoginAttempts)
	assert.Nil(t, user.LockedUntil)
	assert.NotNil(t, user.LastLoginAt)
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	svc, conn, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, LoginRequest{Email: "u@gatech.edu", Password: "WrongPassword!"})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	}

	_, err = svc.Login(ctx, LoginRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, conn.Where("email = ?", "u@gatech.edu").First(&user).Error)
	assert.Equal(t, 0, user.FailedLoginAttempts)
}

func TestFabricSeededAccountCannotAuthenticate(t *testing.T) {
	svc, conn, _ := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, conn.Create(&models.User{
		ID:           uuid.New(),
		Email:        "synced@gatech.edu",
		PasswordHash: "",
		Role:         enums.RoleCustomer,
	}).Error)

	_, err := svc.Login(ctx, LoginRequest{Email: "synced@gatech.edu", Password: "anything-at-all"})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRotatesSessionOnce(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, RegisterRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)
	assert.NotEmpty(t, refreshed.AccessToken)

	// The rotated-out pair is dead.
	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestLogoutRevokesTheSession(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, RegisterRequest{Email: "u@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, claims.ID))

	_, err = svc.Refresh(ctx, RefreshRequest{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestBecomeSellerUpgradesRoleAndAnnounces(t *testing.T) {
	svc, conn, events := newAuthFixture(t)
	ctx := context.Background()

	tokens, err := svc.Register(ctx, RegisterRequest{Email: "s@gatech.edu", Password: "Password123!"})
	require.NoError(t, err)
	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.BecomeSeller(ctx, claims.UserID, BecomeSellerRequest{DisplayName: "Aarhus Antikvariat"}))

	var user models.User
	require.NoError(t, conn.Where("id = ?", claims.UserID).First(&user).Error)
	assert.Equal(t, enums.RoleSeller, user.Role)

	var profile models.SellerProfile
	require.NoError(t, conn.Where("user_id = ?", claims.UserID).First(&profile).Error)
	assert.Equal(t, "Aarhus Antikvariat", profile.DisplayName)
	assert.NotEmpty(t, profile.SellerID)

	assert.Equal(t, 1, events.countOf(enums.EventUserRoleChanged))
	assert.Equal(t, 1, events.countOf(enums.EventSellerCreated))

	err = svc.BecomeSeller(ctx, claims.UserID, BecomeSellerRequest{DisplayName: "Again"})
	assertCode(t, err, pkgerrors.CodeConflict)
}
