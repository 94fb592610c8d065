package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	"github.com/mkrogh/bookmarket-backend/pkg/redis"
	"github.com/mkrogh/bookmarket-backend/pkg/types"
)

// ErrSessionNotFound is returned when a session id resolves to nothing,
// either because it never existed or its TTL ran out.
var ErrSessionNotFound = errors.New("checkout session not found")

// SessionItem is one priced line frozen into the checkout session.
type SessionItem struct {
	ISBN      string          `json:"isbn"`
	SellerID  string          `json:"sellerId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Currency  enums.Currency  `json:"currency"`
}

// SellerGroup is the per-seller money breakdown shown before payment. The
// fee split is computed per line, the same way allocation persists it, so
// subtotal payouts plus fees always sum to the session total.
type SellerGroup struct {
	SellerID     string          `json:"sellerId"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	PlatformFee  decimal.Decimal `json:"platformFee"`
	SellerPayout decimal.Decimal `json:"sellerPayout"`
}

// Session is the checkout snapshot held in Redis between session creation
// and payment confirmation. Prices are frozen at creation time.
type Session struct {
	SessionID       string          `json:"sessionId"`
	CustomerID      string          `json:"customerId"`
	Items           []SessionItem   `json:"items"`
	SellerGroups    []SellerGroup   `json:"sellerGroups"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        enums.Currency  `json:"currency"`
	DeliveryAddress types.Address   `json:"deliveryAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

// SessionStore persists checkout sessions in Redis with a fixed TTL.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSessionStore builds a session store with the configured TTL.
func NewSessionStore(client *redis.Client, ttl time.Duration) (*SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &SessionStore{redis: client, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Save serializes the session and (re)arms its TTL.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal checkout session: %w", err)
	}
	return s.redis.StoreCheckoutSession(ctx, session.SessionID, string(payload), s.ttl)
}

// Get loads a session, translating expiry into ErrSessionNotFound.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := s.redis.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	return &session, nil
}

// Delete removes the session eagerly once the order is materialized.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.redis.DeleteCheckoutSession(ctx, sessionID)
}
