package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/config"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/logger"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
)

const suppressedNote = "suppressed by preference"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the notification dispatcher: it creates notifications, drives
// delivery with preference suppression and bounded retries, and exposes the
// inbox surface.
type Service interface {
	Notify(ctx context.Context, input NotifyInput) (*NotificationDto, error)
	Send(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID) error
	RetryPending(ctx context.Context, limit int) (int, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	GetPreferences(ctx context.Context, userID string) (*PreferenceDto, error)
	UpdatePreferences(ctx context.Context, userID string, input PreferenceInput) (*PreferenceDto, error)
}

// NotifyInput describes one notification to create and deliver.
type NotifyInput struct {
	RecipientID string
	OrderID     *uuid.UUID
	Email       string
	Type        enums.NotificationType
	Subject     string
	Body        string
}

// ListParams configures inbox pagination.
type ListParams struct {
	RecipientID string
	Limit       int
	Cursor      string
	UnreadOnly  bool
}

// ListResult wraps one inbox page and the cursor for the next.
type ListResult struct {
	Items  []NotificationDto `json:"items"`
	Cursor string            `json:"cursor"`
}

// PreferenceInput updates the opt-in matrix.
type PreferenceInput struct {
	EmailEnabled bool
	Types        map[enums.NotificationType]bool
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	transport Transport
	cfg       config.NotifyConfig
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires the notification dispatcher.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher, transport Transport, cfg config.NotifyConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if transport == nil {
		return nil, fmt.Errorf("email transport required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 5
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxPub,
		transport: transport,
		cfg:       cfg,
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Notify persists the notification and immediately attempts delivery.
// Delivery failures are recorded, not returned; the retry cron picks them up.
func (s *service) Notify(ctx context.Context, input NotifyInput) (*NotificationDto, error) {
	if input.RecipientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient email required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification type")
	}
	if input.Subject == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject required")
	}

	notification := &models.Notification{
		ID:          uuid.New(),
		RecipientID: input.RecipientID,
		OrderID:     input.OrderID,
		Email:       input.Email,
		Type:        input.Type,
		Subject:     input.Subject,
		Body:        input.Body,
		Status:      enums.NotificationStatusCreated,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	if err := s.Send(ctx, notification.ID); err != nil {
		return nil, err
	}

	sent, err := s.repo.FindByID(ctx, notification.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload notification")
	}
	dto := newNotificationDto(*sent)
	return &dto, nil
}

// Send attempts delivery of one notification. Preference-suppressed sends
// transition to Sent with a note so the suppression stays observable. A
// failed attempt that has exhausted the retry budget becomes terminal and
// emits NotificationFailed.
func (s *service) Send(ctx context.Context, id uuid.UUID) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if notification.Status.IsTerminalForSend() {
		return nil
	}

	if suppressed, err := s.suppressedByPreference(ctx, notification); err != nil {
		return err
	} else if suppressed {
		note := suppressedNote
		updates := map[string]any{
			"status":     enums.NotificationStatusSent,
			"sent_at":    s.now(),
			"last_error": note,
		}
		if err := s.repo.UpdateDelivery(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record suppression")
		}
		return nil
	}

	if err := s.repo.UpdateDelivery(ctx, id, map[string]any{"status": enums.NotificationStatusSending}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark sending")
	}

	deliverErr := s.transport.Deliver(ctx, Email{
		From:    s.cfg.FromEmail,
		To:      notification.Email,
		Subject: notification.Subject,
		Body:    notification.Body,
	})
	if deliverErr == nil {
		updates := map[string]any{
			"status":     enums.NotificationStatusSent,
			"sent_at":    s.now(),
			"last_error": nil,
		}
		if err := s.repo.UpdateDelivery(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivery")
		}
		return nil
	}

	s.logg.Error(s.logg.WithFields(ctx, map[string]any{"notification_id": id.String()}), "notification delivery failed", deliverErr)
	return s.recordFailure(ctx, notification, deliverErr)
}

// Retry re-queues a failed notification and attempts delivery again. Only
// failed notifications with remaining retry budget are eligible.
func (s *service) Retry(ctx context.Context, id uuid.UUID) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	if notification.Status != enums.NotificationStatusFailed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only failed notifications can be retried")
	}
	if notification.RetryCount >= s.cfg.MaxRetries {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "retry limit exhausted")
	}

	updates := map[string]any{
		"retry_count": notification.RetryCount + 1,
		"status":      enums.NotificationStatusCreated,
	}
	if err := s.repo.UpdateDelivery(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue notification")
	}
	return s.Send(ctx, id)
}

// RetryPending drives the retry cron: it re-attempts failed notifications
// with remaining budget and reports how many attempts were made.
func (s *service) RetryPending(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 50
	}
	retryable, err := s.repo.ListRetryable(ctx, s.cfg.MaxRetries, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list retryable notifications")
	}

	attempted := 0
	for _, notification := range retryable {
		if err := s.Retry(ctx, notification.ID); err != nil {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{"notification_id": notification.ID.String()}), "notification retry failed", err)
			continue
		}
		attempted++
	}
	return attempted, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.RecipientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}

	query := listParams{
		RecipientID: params.RecipientID,
		Limit:       params.Limit,
		UnreadOnly:  params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	items := make([]NotificationDto, 0, len(rows))
	for _, row := range rows {
		items = append(items, newNotificationDto(row))
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, recipientID string, id uuid.UUID) error {
	if recipientID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, recipientID, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "recipient id required")
	}
	count, err := s.repo.MarkAllRead(ctx, recipientID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) GetPreferences(ctx context.Context, userID string) (*PreferenceDto, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	preference, err := s.repo.FindPreference(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			dto := defaultPreferenceDto(userID)
			return &dto, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	dto := newPreferenceDto(*preference)
	return &dto, nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID string, input PreferenceInput) (*PreferenceDto, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	for notificationType := range input.Types {
		if !notificationType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown notification type")
		}
	}

	preference, err := s.repo.FindPreference(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
		}
		preference = &models.NotificationPreference{ID: uuid.New(), UserID: userID}
	}
	preference.EmailEnabled = input.EmailEnabled
	preference.Types = input.Types

	if err := s.repo.SavePreference(ctx, preference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preferences")
	}
	dto := newPreferenceDto(*preference)
	return &dto, nil
}

func (s *service) suppressedByPreference(ctx context.Context, notification *models.Notification) (bool, error) {
	preference, err := s.repo.FindPreference(ctx, notification.RecipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No stored preference means everything is enabled.
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return !preference.Effective(notification.Type), nil
}

// recordFailure marks the attempt failed and, once the retry budget is
// exhausted, emits NotificationFailed in the same transaction so the
// compensation orchestrator can react. Delivery errors never bubble to the
// caller.
func (s *service) recordFailure(ctx context.Context, notification *models.Notification, deliverErr error) error {
	message := deliverErr.Error()
	updates := map[string]any{
		"status":     enums.NotificationStatusFailed,
		"last_error": message,
	}

	terminal := notification.RetryCount >= s.cfg.MaxRetries
	if !terminal {
		if err := s.repo.UpdateDelivery(ctx, notification.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failure")
		}
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateDelivery(ctx, notification.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record terminal failure")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventNotificationFailed,
			AggregateType: enums.AggregateNotification,
			AggregateID:   notification.ID,
			Data: payloads.NotificationFailedEvent{
				NotificationID: notification.ID,
				OrderID:        notification.OrderID,
				RecipientID:    notification.RecipientID,
				Reason:         message,
				FailedAt:       s.now(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}
