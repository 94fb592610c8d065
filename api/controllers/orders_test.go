package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mkrogh/bookmarket-backend/api/middleware"
	"github.com/mkrogh/bookmarket-backend/internal/orders"
	"github.com/mkrogh/bookmarket-backend/pkg/db/models"
	"github.com/mkrogh/bookmarket-backend/pkg/enums"
	pkgerrors "github.com/mkrogh/bookmarket-backend/pkg/errors"
	"github.com/mkrogh/bookmarket-backend/pkg/outbox"
	"github.com/mkrogh/bookmarket-backend/pkg/pagination"
)

type testOrdersService struct {
	getFn    func(ctx context.Context, customerID string, orderID uuid.UUID) (*orders.OrderDetail, error)
	listFn   func(ctx context.Context, customerID string, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error)
	cancelFn func(ctx context.Context, orderID uuid.UUID, reason string) error
}

func (s *testOrdersService) GetOrder(ctx context.Context, customerID string, orderID uuid.UUID) (*orders.OrderDetail, error) {
	if s.getFn != nil {
		return s.getFn(ctx, customerID, orderID)
	}
	return &orders.OrderDetail{ID: orderID}, nil
}

func (s *testOrdersService) ListOrders(ctx context.Context, customerID string, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, customerID, params, filters)
	}
	return &orders.OrderList{Orders: []orders.OrderSummary{}}, nil
}

func (s *testOrdersService) MarkPaidTx(ctx context.Context, tx *gorm.DB, order *models.Order, amount decimal.Decimal, currency enums.Currency, actor *outbox.ActorRef) error {
	return nil
}

func (s *testOrdersService) MarkShipped(ctx context.Context, input orders.TransitionInput) error {
	return nil
}

func (s *testOrdersService) MarkDelivered(ctx context.Context, input orders.TransitionInput) error {
	return nil
}

func (s *testOrdersService) CompleteOrder(ctx context.Context, input orders.TransitionInput) error {
	return nil
}

func (s *testOrdersService) CancelOrder(ctx context.Context, input orders.ReasonedTransitionInput) error {
	return nil
}

func (s *testOrdersService) RefundOrder(ctx context.Context, input orders.ReasonedTransitionInput) error {
	return nil
}

func (s *testOrdersService) RequestCancellation(ctx context.Context, orderID uuid.UUID, reason string) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, orderID, reason)
	}
	return nil
}

func TestOrdersListParsesFilters(t *testing.T) {
	customerID := uuid.NewString()
	var gotFilters orders.ListFilters
	var gotParams pagination.Params
	svc := &testOrdersService{
		listFn: func(ctx context.Context, cid string, params pagination.Params, filters orders.ListFilters) (*orders.OrderList, error) {
			if cid != customerID {
				t.Fatalf("unexpected customer %s", cid)
			}
			gotFilters = filters
			gotParams = params
			return &orders.OrderList{Orders: []orders.OrderSummary{}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&status=paid&from=2026-01-01T00:00:00Z", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), customerID))
	resp := httptest.NewRecorder()
	OrdersList(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotParams.Limit != 5 {
		t.Fatalf("limit = %d, want 5", gotParams.Limit)
	}
	if gotFilters.Status == nil || *gotFilters.Status != enums.OrderStatusPaid {
		t.Fatalf("status filter not parsed: %+v", gotFilters)
	}
	if gotFilters.DateFrom == nil {
		t.Fatal("from filter not parsed")
	}
}

func TestOrdersListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=teleported", nil)
	resp := httptest.NewRecorder()
	OrdersList(&testOrdersService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrdersCancelChecksOwnershipFirst(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		getFn: func(ctx context.Context, cid string, oid uuid.UUID) (*orders.OrderDetail, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
		cancelFn: func(ctx context.Context, oid uuid.UUID, reason string) error {
			t.Fatal("cancellation must not run for foreign orders")
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrdersCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestOrdersCancelAccepted(t *testing.T) {
	orderID := uuid.New()
	var gotReason string
	svc := &testOrdersService{
		cancelFn: func(ctx context.Context, oid uuid.UUID, reason string) error {
			if oid != orderID {
				t.Fatalf("unexpected order %s", oid)
			}
			gotReason = reason
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	req = addRouteParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()
	OrdersCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.Code, resp.Body.String())
	}
	if gotReason != "changed my mind" {
		t.Fatalf("reason = %q", gotReason)
	}
}
