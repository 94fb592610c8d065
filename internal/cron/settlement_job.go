package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

type settlementRunner interface {
	RunSettlement(ctx context.Context, now time.Time) (int, error)
}

// SettlementJobParams configure the settlement rollup job.
type SettlementJobParams struct {
	Logger   *logger.Logger
	Payments settlementRunner
}

// NewSettlementJob rolls unsettled paid allocations into per-seller
// settlements at each period boundary.
func NewSettlementJob(params SettlementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &settlementJob{logg: params.Logger, payments: params.Payments, now: time.Now}, nil
}

type settlementJob struct {
	logg     *logger.Logger
	payments settlementRunner
	now      func() time.Time
}

func (j *settlementJob) Name() string { return "seller-settlement" }

func (j *settlementJob) Run(ctx context.Context) error {
	created, err := j.payments.RunSettlement(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("settlement rollup: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "settlements_created", created), "settlement rollup complete")
	return nil
}
