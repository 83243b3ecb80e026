package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightcart/storefront-backend/internal/checkout"
	"github.com/brightcart/storefront-backend/internal/orders"
	"github.com/brightcart/storefront-backend/pkg/db/models"
	"github.com/brightcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/brightcart/storefront-backend/pkg/errors"
	"github.com/brightcart/storefront-backend/pkg/pagination"
)

type stubCheckoutService struct {
	placeOrder func(ctx context.Context, userID uuid.UUID, input checkout.PlaceOrderInput) (*models.Order, error)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, input checkout.PlaceOrderInput) (*models.Order, error) {
	return s.placeOrder(ctx, userID, input)
}

func (s *stubCheckoutService) QuoteTotals(ctx context.Context, userID uuid.UUID) (*checkout.Totals, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not implemented")
}

type stubOrdersService struct {
	getOrder      func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	listOrders    func(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Page, error)
	cancelOrder   func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	listAllOrders func(ctx context.Context, params pagination.Params, filters orders.ListFilters) ([]models.Order, pagination.Page, error)
	updateStatus  func(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

func (s *stubOrdersService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.getOrder(ctx, userID, orderID)
}

func (s *stubOrdersService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, pagination.Page, error) {
	return s.listOrders(ctx, userID, params)
}

func (s *stubOrdersService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.cancelOrder(ctx, userID, orderID)
}

func (s *stubOrdersService) ListAllOrders(ctx context.Context, params pagination.Params, filters orders.ListFilters) ([]models.Order, pagination.Page, error) {
	return s.listAllOrders(ctx, params, filters)
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	return s.updateStatus(ctx, orderID, status)
}

func sampleOrder(userID uuid.UUID) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-260829-0001",
		UserID:      userID,
		Status:      enums.OrderStatusPending,
		Subtotal:    decimal.RequireFromString("60.00"),
		TotalAmount: decimal.RequireFromString("74.79"),
	}
}

func TestOrderPlaceReturnsCreated(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	var got checkout.PlaceOrderInput
	svc := &stubCheckoutService{
		placeOrder: func(ctx context.Context, gotUser uuid.UUID, input checkout.PlaceOrderInput) (*models.Order, error) {
			if gotUser != userID {
				t.Fatalf("expected user %s got %s", userID, gotUser)
			}
			got = input
			return sampleOrder(userID), nil
		},
	}

	body := []byte(`{
		"cart_items": [{"id": "` + productID.String() + `", "quantity": 2}],
		"shipping_address_id": "` + uuid.NewString() + `",
		"payment_method": "card"
	}`)
	resp := httptest.NewRecorder()
	OrderPlace(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, userID))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(got.CartItems) != 1 || got.CartItems[0].ProductID != productID || got.CartItems[0].Quantity != 2 {
		t.Fatalf("unexpected cart items %+v", got.CartItems)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Error {
		t.Fatalf("expected success envelope: %s", envelope.Message)
	}
	if envelope.Message != "Order placed successfully" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data object got %T", envelope.Data)
	}
	if _, ok := data["order"]; !ok {
		t.Fatal("expected order in response data")
	}
}

func TestOrderPlaceRejectsEmptyCart(t *testing.T) {
	svc := &stubCheckoutService{
		placeOrder: func(ctx context.Context, userID uuid.UUID, input checkout.PlaceOrderInput) (*models.Order, error) {
			t.Fatal("service should not be called for an empty cart")
			return nil, nil
		},
	}

	body := []byte(`{"cart_items": [], "shipping_address_id": "` + uuid.NewString() + `"}`)
	resp := httptest.NewRecorder()
	OrderPlace(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrderPlaceInsufficientStock(t *testing.T) {
	svc := &stubCheckoutService{
		placeOrder: func(ctx context.Context, userID uuid.UUID, input checkout.PlaceOrderInput) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for Graphic Tee").
				WithDetails(map[string]any{"requested": 3, "available": 1})
		},
	}

	body := []byte(`{
		"cart_items": [{"id": "` + uuid.NewString() + `", "quantity": 3}],
		"shipping_address_id": "` + uuid.NewString() + `"
	}`)
	resp := httptest.NewRecorder()
	OrderPlace(svc, nil).ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Error {
		t.Fatal("expected error envelope")
	}
	if envelope.Message != "insufficient stock for Graphic Tee" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
	if envelope.Data != nil {
		t.Fatalf("expected null data got %v", envelope.Data)
	}
}

func TestOrdersListReturnsPage(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{
		listOrders: func(ctx context.Context, gotUser uuid.UUID, params pagination.Params) ([]models.Order, pagination.Page, error) {
			if params.Page != 2 || params.Limit != 5 {
				t.Fatalf("unexpected params %+v", params)
			}
			return []models.Order{*sampleOrder(gotUser)}, pagination.NewPage(params, 11), nil
		},
	}

	resp := httptest.NewRecorder()
	OrdersList(svc, nil).ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?page=2&limit=5", nil, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	envelope := decodeEnvelope(t, resp)
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data object got %T", envelope.Data)
	}
	if _, ok := data["orders"]; !ok {
		t.Fatal("expected orders in response data")
	}
	if _, ok := data["pagination"]; !ok {
		t.Fatal("expected pagination in response data")
	}
}

func TestOrderCancel(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &stubOrdersService{
		cancelOrder: func(ctx context.Context, gotUser, gotOrder uuid.UUID) (*models.Order, error) {
			if gotOrder != orderID {
				t.Fatalf("expected order %s got %s", orderID, gotOrder)
			}
			cancelled := sampleOrder(gotUser)
			cancelled.Status = enums.OrderStatusCancelled
			return cancelled, nil
		},
	}

	router := chi.NewRouter()
	router.Delete("/api/v1/orders/{orderId}", OrderCancel(svc, nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/orders/"+orderID.String(), nil, userID))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Message != "Order cancelled successfully" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestOrderCancelStateConflict(t *testing.T) {
	svc := &stubOrdersService{
		cancelOrder: func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled").
				WithDetails(map[string]any{"status": "shipped"})
		},
	}

	router := chi.NewRouter()
	router.Delete("/api/v1/orders/{orderId}", OrderCancel(svc, nil))

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/orders/"+uuid.NewString(), nil, uuid.New()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Message != "order cannot be cancelled" {
		t.Fatalf("unexpected message %q", envelope.Message)
	}
}

func TestAdminOrdersListRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrdersService{
		listAllOrders: func(ctx context.Context, params pagination.Params, filters orders.ListFilters) ([]models.Order, pagination.Page, error) {
			t.Fatal("service should not be called for an unknown status")
			return nil, pagination.Page{}, nil
		},
	}

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=teleported", nil)
	AdminOrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminOrdersListFiltersByStatus(t *testing.T) {
	svc := &stubOrdersService{
		listAllOrders: func(ctx context.Context, params pagination.Params, filters orders.ListFilters) ([]models.Order, pagination.Page, error) {
			if filters.Status == nil || *filters.Status != enums.OrderStatusShipped {
				t.Fatalf("expected shipped filter got %v", filters.Status)
			}
			return []models.Order{}, pagination.NewPage(params, 0), nil
		},
	}

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=shipped", nil)
	AdminOrdersList(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminOrderUpdateStatusNormalizesInput(t *testing.T) {
	orderID := uuid.New()
	var got enums.OrderStatus
	svc := &stubOrdersService{
		updateStatus: func(ctx context.Context, gotOrder uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
			got = status
			updated := sampleOrder(uuid.New())
			updated.Status = status
			return updated, nil
		},
	}

	router := chi.NewRouter()
	router.Put("/api/admin/v1/orders/{orderId}/status", AdminOrderUpdateStatus(svc, nil))

	body := []byte(`{"status": "  Shipped "}`)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, authedRequest(http.MethodPut, "/api/admin/v1/orders/"+orderID.String()+"/status", body, uuid.New()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got != enums.OrderStatusShipped {
		t.Fatalf("expected shipped got %q", got)
	}
}
