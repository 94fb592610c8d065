package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

// Service keeps the local user and seller-profile store aligned with identity
// events from the fabric, and resolves recipients and seller names for the
// notification dispatcher and the search projection.
type Service interface {
	EnsureUser(ctx context.Context, event payloads.UserCreatedEvent) error
	ApplyUserUpdate(ctx context.Context, event payloads.UserUpdatedEvent) error
	ApplyRoleChange(ctx context.Context, event payloads.UserRoleChangedEvent) error
	SeedSellerProfile(ctx context.Context, event payloads.SellerCreatedEvent) error
	GetEmail(ctx context.Context, userID string) (string, error)
	GetDisplayName(ctx context.Context, sellerID string) (string, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the profile sync service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// EnsureUser creates a default profile for the account if absent. Replays and
// cross-instance duplicates are no-ops; an existing row is never touched.
func (s *service) EnsureUser(ctx context.Context, event payloads.UserCreatedEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	if event.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	role := event.Role
	if role == "" {
		role = enums.RoleCustomer
	}
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}

	// Rows seeded from the fabric carry no credential; login requires a
	// locally registered password.
	user := &models.User{
		ID:           userID,
		Email:        event.Email,
		PasswordHash: "",
		Role:         role,
	}
	created, err := s.repo.CreateIfAbsent(ctx, user)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	if created {
		s.logg.Info(s.logg.WithField(ctx, "user_id", event.UserID), "user profile seeded from fabric")
	}
	return nil
}

// ApplyUserUpdate applies the role if it changed and writes the display name
// through to the seller profile. Unrelated user fields are never overwritten.
func (s *service) ApplyUserUpdate(ctx context.Context, event payloads.UserUpdatedEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// UserCreated may still be in flight; the update will be
			// redelivered or superseded.
			s.logg.Warn(s.logg.WithField(ctx, "user_id", event.UserID), "dropping update for unknown user")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if event.Role != "" && event.Role != user.Role {
		if !event.Role.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
		}
		if err := s.repo.UpdateRole(ctx, userID, event.Role); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
		}
	}

	if event.DisplayName != "" {
		if err := s.writeDisplayName(ctx, userID, event.DisplayName); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRoleChange sets the new role unless the user already carries it.
func (s *service) ApplyRoleChange(ctx context.Context, event payloads.UserRoleChangedEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	if !event.NewRole.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", event.UserID), "dropping role change for unknown user")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Role == event.NewRole {
		return nil
	}
	if err := s.repo.UpdateRole(ctx, userID, event.NewRole); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	return nil
}

// SeedSellerProfile creates the seller profile if absent. Duplicate
// SellerCreated deliveries are no-ops.
func (s *service) SeedSellerProfile(ctx context.Context, event payloads.SellerCreatedEvent) error {
	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	if event.SellerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if event.DisplayName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "display name required")
	}

	profile := &models.SellerProfile{
		ID:          uuid.New(),
		UserID:      userID,
		SellerID:    event.SellerID,
		DisplayName: event.DisplayName,
	}
	if _, err := s.repo.CreateSellerProfileIfAbsent(ctx, profile); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed seller profile")
	}
	return nil
}

// GetEmail resolves a recipient's email for the notification dispatcher.
// Malformed ids read as unknown recipients.
func (s *service) GetEmail(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", gorm.ErrRecordNotFound
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// GetDisplayName resolves a seller's display name for the search backfill.
// Sellers without a profile resolve to the empty name, not an error.
func (s *service) GetDisplayName(ctx context.Context, sellerID string) (string, error) {
	profile, err := s.repo.FindSellerProfileBySellerID(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return profile.DisplayName, nil
}

func (s *service) writeDisplayName(ctx context.Context, userID uuid.UUID, displayName string) error {
	if _, err := s.repo.FindSellerProfileByUserID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Not a seller; the name has nowhere to land.
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller profile")
	}
	if err := s.repo.UpdateSellerDisplayName(ctx, userID, displayName); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update display name")
	}
	return nil
}
