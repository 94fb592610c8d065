package cron

import (
	"context"
	"fmt"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

type backfillRunner interface {
	Run(ctx context.Context) (int, error)
}

// SellerBackfillJobParams configure the seller-name backfill job.
type SellerBackfillJobParams struct {
	Logger   *logger.Logger
	Backfill backfillRunner
}

// NewSellerBackfillJob repairs indexed seller offers that are still missing a
// display name.
func NewSellerBackfillJob(params SellerBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backfill == nil {
		return nil, fmt.Errorf("backfill required")
	}
	return &sellerBackfillJob{logg: params.Logger, backfill: params.Backfill}, nil
}

type sellerBackfillJob struct {
	logg     *logger.Logger
	backfill backfillRunner
}

func (j *sellerBackfillJob) Name() string { return "seller-name-backfill" }

func (j *sellerBackfillJob) Run(ctx context.Context) error {
	repaired, err := j.backfill.Run(ctx)
	if err != nil {
		return fmt.Errorf("seller name backfill: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "repaired", repaired), "seller name backfill complete")
	return nil
}
