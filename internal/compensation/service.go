package compensation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/pkg/db"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the compensation orchestrator: it keeps the failure ledger and
// drives the once-per-order trigger and cancellation fan-in.
type Service interface {
	RecordFailure(ctx context.Context, input FailureInput) error
	HandleCompletion(ctx context.Context, input CompletionInput) error
	GetOrderFailures(ctx context.Context, orderID uuid.UUID) ([]FailureDto, error)
}

// FailureInput is one downstream failure reported against an order.
type FailureInput struct {
	OrderID      uuid.UUID
	OrderItemID  *uuid.UUID
	FailureType  enums.FailureType
	ErrorMessage string
	FailedAt     time.Time
}

// CompletionInput acknowledges one compensated failure.
type CompletionInput struct {
	OrderID     uuid.UUID
	OrderItemID *uuid.UUID
	FailureType enums.FailureType
	CompletedAt time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService builds the compensation orchestrator.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("compensation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxPub,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// RecordFailure writes the ledger entry and, for the first critical failure
// of an order, arms the trigger and emits CompensationRequired. The trigger
// table's primary key makes the emission exactly-once per order.
func (s *service) RecordFailure(ctx context.Context, input FailureInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.FailureType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown failure type")
	}
	failedAt := input.FailedAt
	if failedAt.IsZero() {
		failedAt = s.now()
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		failure := &models.CompensationFailure{
			ID:           uuid.New(),
			OrderID:      input.OrderID,
			OrderItemID:  input.OrderItemID,
			FailureType:  input.FailureType,
			ErrorMessage: input.ErrorMessage,
			FailedAt:     failedAt,
		}
		if err := repo.RecordFailure(ctx, failure); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failure")
		}

		if !input.FailureType.IsCritical() {
			return nil
		}

		trigger := &models.CompensationTrigger{
			OrderID:     input.OrderID,
			TriggeredAt: s.now(),
		}
		if err := repo.InsertTrigger(ctx, trigger); err != nil {
			if db.IsUniqueViolation(err, "compensation_triggers_pkey") {
				// Another critical failure already triggered this order.
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert trigger")
		}

		failures, err := repo.FindFailuresByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load failures")
		}
		refs := criticalRefs(failures)

		event := outbox.DomainEvent{
			EventType:     enums.EventCompensationRequired,
			AggregateType: enums.AggregateCompensation,
			AggregateID:   input.OrderID,
			Data: payloads.CompensationRequiredEvent{
				OrderID:     input.OrderID,
				Failures:    refs,
				TriggeredAt: trigger.TriggeredAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// HandleCompletion stamps the failure as compensated and, once every critical
// failure of a triggered order is compensated, requests the cancellation.
// The stamp on the trigger row keeps the request single-shot.
func (s *service) HandleCompletion(ctx context.Context, input CompletionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	completedAt := input.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.now()
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stamped, err := repo.MarkCompensated(ctx, input.OrderID, input.OrderItemID, input.FailureType, completedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark compensated")
		}
		if stamped == 0 {
			// Duplicate or unknown completion; nothing more to do.
			return nil
		}

		if _, err := repo.FindTrigger(ctx, input.OrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load trigger")
		}

		failures, err := repo.FindFailuresByOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load failures")
		}
		for _, failure := range failures {
			if failure.FailureType.IsCritical() && failure.CompensatedAt == nil {
				return nil
			}
		}

		requested, err := repo.MarkCancellationRequested(ctx, input.OrderID, completedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cancellation requested")
		}
		if requested == 0 {
			return nil
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancellationRequested,
			AggregateType: enums.AggregateCompensation,
			AggregateID:   input.OrderID,
			Data: payloads.OrderCancellationRequestedEvent{
				OrderID:     input.OrderID,
				Reason:      "downstream compensation completed",
				RequestedAt: completedAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) GetOrderFailures(ctx context.Context, orderID uuid.UUID) ([]FailureDto, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	failures, err := s.repo.FindFailuresByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load failures")
	}
	out := make([]FailureDto, 0, len(failures))
	for _, failure := range failures {
		out = append(out, newFailureDto(failure))
	}
	return out, nil
}

func criticalRefs(failures []models.CompensationFailure) []payloads.CompensationFailureRef {
	refs := make([]payloads.CompensationFailureRef, 0, len(failures))
	for _, failure := range failures {
		if !failure.FailureType.IsCritical() {
			continue
		}
		refs = append(refs, payloads.CompensationFailureRef{
			OrderItemID:  failure.OrderItemID,
			FailureType:  failure.FailureType,
			ErrorMessage: failure.ErrorMessage,
			FailedAt:     failure.FailedAt,
		})
	}
	return refs
}
