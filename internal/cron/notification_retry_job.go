package cron

import (
	"context"
	"fmt"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

const defaultRetryBatch = 50

type notificationRetrier interface {
	RetryPending(ctx context.Context, limit int) (int, error)
}

// NotificationRetryJobParams configure the notification retry job.
type NotificationRetryJobParams struct {
	Logger        *logger.Logger
	Notifications notificationRetrier
	BatchSize     int
}

// NewNotificationRetryJob re-attempts failed notifications that still have
// retry budget.
func NewNotificationRetryJob(params NotificationRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultRetryBatch
	}
	return &notificationRetryJob{
		logg:          params.Logger,
		notifications: params.Notifications,
		batch:         batch,
	}, nil
}

type notificationRetryJob struct {
	logg          *logger.Logger
	notifications notificationRetrier
	batch         int
}

func (j *notificationRetryJob) Name() string { return "notification-retry" }

func (j *notificationRetryJob) Run(ctx context.Context) error {
	attempted, err := j.notifications.RetryPending(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("notification retry: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "attempted", attempted), "notification retry sweep complete")
	return nil
}
