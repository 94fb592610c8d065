package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/bookmarket-backend/api/middleware"
	"github.com/mkrogh/bookmarket-backend/internal/checkout"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
)

type testCheckoutService struct {
	createFn  func(ctx context.Context, customerID string, input checkout.CreateSessionInput) (*checkout.SessionDto, error)
	getFn     func(ctx context.Context, customerID, sessionID string) (*checkout.SessionDto, error)
	confirmFn func(ctx context.Context, customerID, sessionID string, input checkout.ConfirmPaymentInput) (*checkout.ConfirmResult, error)
}

func (s *testCheckoutService) CreateSession(ctx context.Context, customerID string, input checkout.CreateSessionInput) (*checkout.SessionDto, error) {
	if s.createFn != nil {
		return s.createFn(ctx, customerID, input)
	}
	return &checkout.SessionDto{}, nil
}

func (s *testCheckoutService) GetSession(ctx context.Context, customerID, sessionID string) (*checkout.SessionDto, error) {
	if s.getFn != nil {
		return s.getFn(ctx, customerID, sessionID)
	}
	return &checkout.SessionDto{}, nil
}

func (s *testCheckoutService) ConfirmPayment(ctx context.Context, customerID, sessionID string, input checkout.ConfirmPaymentInput) (*checkout.ConfirmResult, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, customerID, sessionID, input)
	}
	return &checkout.ConfirmResult{}, nil
}

func TestCheckoutCreateValidatesAddress(t *testing.T) {
	body := `{"street":"","city":"Aarhus","postalCode":"8000","country":"DK"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	resp := httptest.NewRecorder()
	CheckoutCreate(&testCheckoutService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutCreateEmptyBodyDefersToStoredAddress(t *testing.T) {
	customerID := uuid.NewString()
	var gotZero bool
	svc := &testCheckoutService{
		createFn: func(ctx context.Context, cid string, input checkout.CreateSessionInput) (*checkout.SessionDto, error) {
			gotZero = input.DeliveryAddress.IsZero()
			return &checkout.SessionDto{SessionID: "sess-1"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID))
	resp := httptest.NewRecorder()
	CheckoutCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if !gotZero {
		t.Fatal("empty body must reach the service with a zero address override")
	}
}

func TestCheckoutCreatePassesAddressThrough(t *testing.T) {
	customerID := uuid.NewString()
	var gotStreet string
	svc := &testCheckoutService{
		createFn: func(ctx context.Context, cid string, input checkout.CreateSessionInput) (*checkout.SessionDto, error) {
			if cid != customerID {
				t.Fatalf("unexpected customer %s", cid)
			}
			gotStreet = input.DeliveryAddress.Street
			return &checkout.SessionDto{SessionID: "sess-1"}, nil
		},
	}

	body := `{"street":"Nørregade 12","city":"Aarhus","postalCode":"8000","country":"Denmark"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID))
	resp := httptest.NewRecorder()
	CheckoutCreate(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotStreet != "Nørregade 12" {
		t.Fatalf("address not passed through, got %q", gotStreet)
	}
}

func TestCheckoutConfirmSurfacesPaymentDecline(t *testing.T) {
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, cid, sid string, input checkout.ConfirmPaymentInput) (*checkout.ConfirmResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "card declined")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sess-1/confirm", strings.NewReader(`{"paymentToken":"tok_visa"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "sessionId", "sess-1")
	resp := httptest.NewRecorder()
	CheckoutConfirm(svc, testLogger())(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 got %d", resp.Code)
	}
}

func TestCheckoutConfirmReturnsOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &testCheckoutService{
		confirmFn: func(ctx context.Context, cid, sid string, input checkout.ConfirmPaymentInput) (*checkout.ConfirmResult, error) {
			if input.PaymentToken != "tok_visa" {
				t.Fatalf("unexpected token %q", input.PaymentToken)
			}
			return &checkout.ConfirmResult{
				OrderID:     orderID,
				Status:      enums.OrderStatusPaid,
				TotalAmount: decimal.NewFromInt(249),
				Currency:    enums.DefaultCurrency,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/sess-1/confirm", strings.NewReader(`{"paymentToken":"tok_visa"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "sessionId", "sess-1")
	resp := httptest.NewRecorder()
	CheckoutConfirm(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), orderID.String()) {
		t.Fatalf("expected order id in body: %s", resp.Body.String())
	}
}
