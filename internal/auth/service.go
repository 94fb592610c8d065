package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	"github.com/mkrogh/bookmarket-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	accountLockedMessage      = "Account is temporarily locked"
)

// Service handles account registration, credential authentication with
// lockout, token refresh and logout.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error)
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error)
	Logout(ctx context.Context, accessID string) error
	BecomeSeller(ctx context.Context, userID uuid.UUID, req BecomeSellerRequest) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams bundles the dependencies required to build the auth service.
type ServiceParams struct {
	DB          *db.Client
	Users       users.Repository
	Session     sessionManager
	Outbox      outboxPublisher
	JWTConfig   config.JWTConfig
	PasswordCfg config.PasswordConfig
	LockoutCfg  config.LockoutConfig
	Logger      *logger.Logger
}

type service struct {
	db          *db.Client
	users       users.Repository
	session     sessionManager
	outbox      outboxPublisher
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	lockoutCfg  config.LockoutConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Session == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.LockoutCfg.MaxFailedAttempts < 1 {
		params.LockoutCfg.MaxFailedAttempts = 5
	}
	if params.LockoutCfg.Duration <= 0 {
		params.LockoutCfg.Duration = 15 * time.Minute
	}
	return &service{
		db:          params.DB,
		users:       params.Users,
		session:     params.Session,
		outbox:      params.Outbox,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordCfg,
		lockoutCfg:  params.LockoutCfg,
		logg:        params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register creates the account, emits UserCreated through the outbox and logs
// the user straight in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(req.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         enums.RoleCustomer,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
		}

		if err := repo.Create(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserCreated,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Data: payloads.UserCreatedEvent{
				UserID: user.ID.String(),
				Email:  user.Email,
				Role:   user.Role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "user_id", user.ID.String()), "account registered")
	return s.issueTokens(ctx, user, s.now())
}

// Login authenticates the credentials. Five consecutive failures lock the
// account for the configured window; a successful login resets the counter.
func (s *service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	now := s.now()
	if user.IsLocked(now) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, accountLockedMessage)
	}

	valid, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrInvalidHash) {
			// Fabric-seeded rows carry no usable credential.
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		if err := s.recordFailure(ctx, user, now); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	return s.issueTokens(ctx, user, now)
}

// Refresh rotates the session behind an expired access token and mints a new
// pair. The old refresh token is invalidated in the same step.
func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	newAccessID, refreshToken, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	// Reload so role changes since the last mint take effect.
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtCfg.ExpirationMinutes) * 60,
	}, nil
}

// Logout revokes the refresh session tied to the access token's jti.
func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id required")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// BecomeSeller upgrades the account to the seller role, seeds the seller
// profile and announces both on the fabric.
func (s *service) BecomeSeller(ctx context.Context, userID uuid.UUID, req BecomeSellerRequest) error {
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if _, err := s.users.FindSellerProfileByUserID(ctx, userID); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "already a seller")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check seller profile")
	}

	sellerID := uuid.NewString()
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		if user.Role != enums.RoleSeller {
			if err := repo.UpdateRole(ctx, userID, enums.RoleSeller); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventUserRoleChanged,
				AggregateType: enums.AggregateUser,
				AggregateID:   userID,
				Data: payloads.UserRoleChangedEvent{
					UserID:  userID.String(),
					OldRole: user.Role,
					NewRole: enums.RoleSeller,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		profile := &models.SellerProfile{
			ID:          uuid.New(),
			UserID:      userID,
			SellerID:    sellerID,
			DisplayName: displayName,
		}
		if _, err := repo.CreateSellerProfileIfAbsent(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create seller profile")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerCreated,
			AggregateType: enums.AggregateUser,
			AggregateID:   userID,
			Data: payloads.SellerCreatedEvent{
				UserID:      userID.String(),
				SellerID:    sellerID,
				DisplayName: displayName,
			},
		})
	})
}

func (s *service) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	attempts := user.FailedLoginAttempts + 1
	var lockedUntil *time.Time
	if attempts >= s.lockoutCfg.MaxFailedAttempts {
		until := now.Add(s.lockoutCfg.Duration)
		lockedUntil = &until
	}
	if err := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login failure")
	}
	if lockedUntil != nil {
		s.logg.Warn(s.logg.WithField(ctx, "user_id", user.ID.String()), "account locked after repeated login failures")
	}
	return nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User, now time.Time) (*TokenResponse, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtCfg.ExpirationMinutes) * 60,
	}, nil
}
