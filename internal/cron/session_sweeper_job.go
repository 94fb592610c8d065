package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrogh/bookmarket-backend/pkg/logger"
)

const noExpiry = -1 * time.Second

type sessionSweeperStore interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutSessionKey(sessionID string) string
}

// SessionSweeperJobParams configure the checkout session sweeper.
type SessionSweeperJobParams struct {
	Logger *logger.Logger
	Store  sessionSweeperStore
}

// NewSessionSweeperJob reaps checkout session keys that lost their TTL.
// Redis expires sessions on its own; the sweeper only catches keys left
// persistent by a bug or a manual PERSIST.
func NewSessionSweeperJob(params SessionSweeperJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &sessionSweeperJob{logg: params.Logger, store: params.Store}, nil
}

type sessionSweeperJob struct {
	logg  *logger.Logger
	store sessionSweeperStore
}

func (j *sessionSweeperJob) Name() string { return "session-sweeper" }

func (j *sessionSweeperJob) Run(ctx context.Context) error {
	pattern := j.store.CheckoutSessionKey("*")
	keys, err := j.store.ScanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan checkout sessions: %w", err)
	}

	reaped := 0
	for _, key := range keys {
		ttl, err := j.store.TTL(ctx, key)
		if err != nil {
			return fmt.Errorf("ttl %s: %w", key, err)
		}
		if ttl != noExpiry {
			continue
		}
		if err := j.store.Del(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		reaped++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(keys),
		"reaped":  reaped,
	})
	j.logg.Info(logCtx, "checkout session sweep complete")
	return nil
}
