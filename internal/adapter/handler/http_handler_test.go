package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-pipeline/internal/adapter/payment"
	"github.com/rl1809/order-pipeline/internal/adapter/queue"
	"github.com/rl1809/order-pipeline/internal/adapter/storage"
	"github.com/rl1809/order-pipeline/internal/core/domain"
	"github.com/rl1809/order-pipeline/internal/core/service"
)

func newTestHandler(t *testing.T) *HTTPHandler {
	t.Helper()

	store := storage.NewMemoryStore()
	store.SeedProduct(domain.Product{
		ID:    "prod-1",
		Name:  "Widget",
		Price: decimal.NewFromFloat(25.50),
		Stock: 10,
	})

	registry := payment.NewRegistry(
		payment.NewFakeProvider(domain.MethodIyzico, "IYZ", 0, time.Second, 100),
	)
	q := queue.NewMemoryQueue(100)
	t.Cleanup(q.Close)

	svc := service.NewFulfillmentService(store, store, store, registry, q, store,
		service.FulfillmentOptions{}, zerolog.Nop())
	return NewHTTPHandler(svc)
}

func placeOrder(t *testing.T, h *HTTPHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)
	return rec
}

func TestPlaceOrder_Created(t *testing.T) {
	h := newTestHandler(t)

	rec := placeOrder(t, h, `{"user_id":"user-1","product_id":"prod-1","quantity":2,"payment_method":"iyzico"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(domain.OrderStatusCompleted) {
		t.Errorf("expected completed, got %s", resp.Status)
	}
	if !domain.IsValidOrderNumber(resp.OrderNumber) {
		t.Errorf("bad order number %q", resp.OrderNumber)
	}
	if !resp.TotalAmount.Equal(decimal.NewFromFloat(51.00)) {
		t.Errorf("expected total 51.00, got %s", resp.TotalAmount)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].ProductName != "Widget" {
		t.Errorf("unexpected lines %+v", resp.Lines)
	}
}

func TestPlaceOrder_ErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown product", `{"user_id":"u","product_id":"nope","quantity":1,"payment_method":"iyzico"}`, http.StatusNotFound},
		{"zero quantity", `{"user_id":"u","product_id":"prod-1","quantity":0,"payment_method":"iyzico"}`, http.StatusBadRequest},
		{"unknown method", `{"user_id":"u","product_id":"prod-1","quantity":1,"payment_method":"paypal"}`, http.StatusBadRequest},
		{"oversell", `{"user_id":"u","product_id":"prod-1","quantity":99,"payment_method":"iyzico"}`, http.StatusConflict},
		{"missing fields", `{"product_id":"prod-1","quantity":1}`, http.StatusBadRequest},
		{"bad json", `{not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t)
			rec := placeOrder(t, h, tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPlaceOrder_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	h := newTestHandler(t)

	if rec := placeOrder(t, h, `{"user_id":"user-1","product_id":"prod-1","quantity":1,"payment_method":"iyzico"}`); rec.Code != http.StatusCreated {
		t.Fatalf("setup order failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/list?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var orders []OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(orders))
	}
}

func TestListPayments(t *testing.T) {
	h := newTestHandler(t)

	rec := placeOrder(t, h, `{"user_id":"user-1","product_id":"prod-1","quantity":1,"payment_method":"iyzico"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("setup order failed: %d", rec.Code)
	}
	var order OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/payments?order_id="+order.ID, nil)
	rec = httptest.NewRecorder()
	h.ListPayments(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payments []PaymentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payments); err != nil {
		t.Fatalf("decode payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment attempt, got %d", len(payments))
	}
	if payments[0].Attempt != 1 || payments[0].Status != string(domain.AttemptSuccess) {
		t.Errorf("unexpected payment %+v", payments[0])
	}
}

func TestListOrders_RequiresUserID(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/orders/list", nil)
	rec := httptest.NewRecorder()
	h.ListOrders(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
