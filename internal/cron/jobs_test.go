package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSessionStore struct {
	keys map[string]time.Duration
}

func (f *fakeSessionStore) ScanKeys(_ context.Context, _ string) ([]string, error) {
	keys := make([]string, 0, len(f.keys))
	for key := range f.keys {
		keys = append(keys, key)
	}
	return keys, nil
}

func (f *fakeSessionStore) TTL(_ context.Context, key string) (time.Duration, error) {
	return f.keys[key], nil
}

func (f *fakeSessionStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeSessionStore) CheckoutSessionKey(sessionID string) string {
	return "bm:checkout_session:" + sessionID
}

func TestSessionSweeperReapsOnlyPersistentKeys(t *testing.T) {
	store := &fakeSessionStore{keys: map[string]time.Duration{
		"bm:checkout_session:live":    10 * time.Minute,
		"bm:checkout_session:stuck":   noExpiry,
		"bm:checkout_session:stuck-2": noExpiry,
	}}

	job, err := NewSessionSweeperJob(SessionSweeperJobParams{Logger: testLogger(), Store: store})
	if err != nil {
		t.Fatalf("NewSessionSweeperJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.keys) != 1 {
		t.Fatalf("expected 1 surviving key, got %d", len(store.keys))
	}
	if _, ok := store.keys["bm:checkout_session:live"]; !ok {
		t.Fatalf("live session was reaped")
	}
}

type stubSettlement struct {
	created int
	err     error
	gotNow  time.Time
}

func (s *stubSettlement) RunSettlement(_ context.Context, now time.Time) (int, error) {
	s.gotNow = now
	return s.created, s.err
}

func TestSettlementJobDelegates(t *testing.T) {
	payments := &stubSettlement{created: 3}
	job, err := NewSettlementJob(SettlementJobParams{Logger: testLogger(), Payments: payments})
	if err != nil {
		t.Fatalf("NewSettlementJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if payments.gotNow.IsZero() {
		t.Fatalf("expected a clock reading to be passed through")
	}

	payments.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

type stubBackfill struct {
	repaired int
	err      error
}

func (s *stubBackfill) Run(context.Context) (int, error) { return s.repaired, s.err }

func TestSellerBackfillJobPropagatesErrors(t *testing.T) {
	job, err := NewSellerBackfillJob(SellerBackfillJobParams{Logger: testLogger(), Backfill: &stubBackfill{repaired: 2}})
	if err != nil {
		t.Fatalf("NewSellerBackfillJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	failing, err := NewSellerBackfillJob(SellerBackfillJobParams{Logger: testLogger(), Backfill: &stubBackfill{err: errors.New("redis down")}})
	if err != nil {
		t.Fatalf("NewSellerBackfillJob: %v", err)
	}
	if err := failing.Run(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

type stubOutboxRepo struct {
	cutoff  time.Time
	deleted int64
}

func (s *stubOutboxRepo) DeletePublishedBefore(cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

func TestOutboxRetentionUsesConfiguredHorizon(t *testing.T) {
	repo := &stubOutboxRepo{deleted: 12}
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        testLogger(),
		Repository:    repo,
		RetentionDays: 7,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}

	now := time.Now().UTC()
	job.(*outboxRetentionJob).now = func() time.Time { return now }
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := now.Add(-7 * 24 * time.Hour)
	if !repo.cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", repo.cutoff, want)
	}
}

type stubRetrier struct {
	gotLimit  int
	attempted int
}

func (s *stubRetrier) RetryPending(_ context.Context, limit int) (int, error) {
	s.gotLimit = limit
	return s.attempted, nil
}

func TestNotificationRetryJobUsesBatchSize(t *testing.T) {
	retrier := &stubRetrier{attempted: 4}
	job, err := NewNotificationRetryJob(NotificationRetryJobParams{
		Logger:        testLogger(),
		Notifications: retrier,
		BatchSize:     25,
	})
	if err != nil {
		t.Fatalf("NewNotificationRetryJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if retrier.gotLimit != 25 {
		t.Fatalf("limit = %d, want 25", retrier.gotLimit)
	}
}

type fakeLockStore struct {
	values map[string]string
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusionAndRelease(t *testing.T) {
	store := &fakeLockStore{values: map[string]string{}}
	ctx := context.Background()

	first, err := NewRedisLock(store, "bm:lock:cron", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, err := NewRedisLock(store, "bm:lock:cron", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire should be blocked, got %v, %v", ok, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("second acquire after release = %v, %v", ok, err)
	}
}

func TestRedisLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := &fakeLockStore{values: map[string]string{}}
	ctx := context.Background()

	lock, err := NewRedisLock(store, "bm:lock:cron", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}

	// Simulate TTL expiry plus takeover by another instance.
	store.values["bm:lock:cron"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["bm:lock:cron"] != "someone-else" {
		t.Fatalf("release deleted a lock it no longer owned")
	}
}
