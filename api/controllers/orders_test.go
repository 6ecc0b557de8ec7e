package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mieldesol/modhu-backend/api/middleware"
	internalorders "github.com/mieldesol/modhu-backend/internal/orders"
	"github.com/mieldesol/modhu-backend/pkg/enums"
	"github.com/mieldesol/modhu-backend/pkg/pagination"
)

type stubOrdersService struct {
	lookupFn  func(ctx context.Context, number int64, email string) (*internalorders.OrderDTO, error)
	listFn    func(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*internalorders.ListResult, error)
	adminList func(ctx context.Context, input internalorders.AdminListInput) (*internalorders.ListResult, error)
	adminGet  func(ctx context.Context, id uuid.UUID) (*internalorders.OrderDTO, error)
	fulfilFn  func(ctx context.Context, input internalorders.FulfilInput) (*internalorders.OrderDTO, error)
	cancelFn  func(ctx context.Context, input internalorders.CancelInput) (*internalorders.OrderDTO, error)
	resendFn  func(ctx context.Context, orderID uuid.UUID) error
	releaseFn func(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

func (s stubOrdersService) LookupByNumber(ctx context.Context, number int64, email string) (*internalorders.OrderDTO, error) {
	if s.lookupFn != nil {
		return s.lookupFn(ctx, number, email)
	}
	return &internalorders.OrderDTO{Number: number, Email: email}, nil
}

func (s stubOrdersService) ListForCustomer(ctx context.Context, customerID uuid.UUID, page pagination.Params) (*internalorders.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, customerID, page)
	}
	return &internalorders.ListResult{}, nil
}

func (s stubOrdersService) AdminList(ctx context.Context, input internalorders.AdminListInput) (*internalorders.ListResult, error) {
	if s.adminList != nil {
		return s.adminList(ctx, input)
	}
	return &internalorders.ListResult{}, nil
}

func (s stubOrdersService) AdminGet(ctx context.Context, id uuid.UUID) (*internalorders.OrderDTO, error) {
	if s.adminGet != nil {
		return s.adminGet(ctx, id)
	}
	return &internalorders.OrderDTO{ID: id}, nil
}

func (s stubOrdersService) Fulfil(ctx context.Context, input internalorders.FulfilInput) (*internalorders.OrderDTO, error) {
	if s.fulfilFn != nil {
		return s.fulfilFn(ctx, input)
	}
	return &internalorders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusFulfilled}, nil
}

func (s stubOrdersService) Cancel(ctx context.Context, input internalorders.CancelInput) (*internalorders.OrderDTO, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, input)
	}
	return &internalorders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (s stubOrdersService) ResendConfirmation(ctx context.Context, orderID uuid.UUID) error {
	if s.resendFn != nil {
		return s.resendFn(ctx, orderID)
	}
	return nil
}

func (s stubOrdersService) ReleaseStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if s.releaseFn != nil {
		return s.releaseFn(ctx, olderThan, limit)
	}
	return 0, nil
}

func TestOrderLookupRequiresEmail(t *testing.T) {
	handler := OrderLookup(stubOrdersService{}, nil)
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/1041", nil), "orderNumber", "1041")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestOrderLookupPassesNumberAndEmail(t *testing.T) {
	var captured struct {
		number int64
		email  string
	}
	svc := stubOrdersService{
		lookupFn: func(_ context.Context, number int64, email string) (*internalorders.OrderDTO, error) {
			captured.number = number
			captured.email = email
			return &internalorders.OrderDTO{Number: number, Email: email, Status: enums.OrderStatusPaid}, nil
		},
	}

	handler := OrderLookup(svc, nil)
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/1041?email=bee%40example.com", nil), "orderNumber", "1041")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.number != 1041 || captured.email != "bee@example.com" {
		t.Fatalf("unexpected lookup %d %q", captured.number, captured.email)
	}
}

func TestOrderLookupRejectsBadNumber(t *testing.T) {
	handler := OrderLookup(stubOrdersService{}, nil)
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc?email=a%40b.com", nil), "orderNumber", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAccountOrdersRequiresActor(t *testing.T) {
	handler := AccountOrders(stubOrdersService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAccountOrdersScopedToActor(t *testing.T) {
	customerID := uuid.New()
	var captured uuid.UUID
	svc := stubOrdersService{
		listFn: func(_ context.Context, id uuid.UUID, page pagination.Params) (*internalorders.ListResult, error) {
			captured = id
			return &internalorders.ListResult{
				Orders: []internalorders.OrderDTO{{ID: uuid.New(), CustomerID: &id}},
			}, nil
		},
	}

	handler := AccountOrders(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/account/orders?limit=5", nil)
	req = req.WithContext(middleware.WithActorID(req.Context(), customerID.String()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured != customerID {
		t.Fatalf("expected customer %s got %s", customerID, captured)
	}

	var envelope struct {
		Data internalorders.ListResult `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("expected 1 order got %d", len(envelope.Data.Orders))
	}
}
