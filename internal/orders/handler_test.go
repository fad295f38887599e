package orders

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/domain"
)

func newTestRouter(t *testing.T, store Store) http.Handler {
	t.Helper()
	svc, _ := newTestService(t, store)
	h := NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Post("/api/orders", h.HandleCreate)
	r.Get("/api/orders/my-orders", h.HandleListMine)
	r.Get("/api/orders/{id}", h.HandleGet)
	r.Put("/api/orders/{id}/cancel", h.HandleCancel)
	return r
}

func serve(router http.Handler, caller domain.Identity, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(auth.WithIdentity(req.Context(), caller))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateOrder(t *testing.T) {
	p := newProduct("Teddy Bear", "24.99", 5)
	store := newMemStore(p)
	router := newTestRouter(t, store)

	body := `{"items":[{"productId":"` + p.ID + `","quantity":2}],"deliveryAddress":"1 Rabbit Hole Lane","city":"Oxford","postalCode":"OX1"}`
	rec := serve(router, alice, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, 49.98, got["totalAmount"])
	assert.Equal(t, alice.UserID, got["userId"])
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{12}$`, got["orderNumber"])

	items := got["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, p.ID, item["productId"])
	assert.Equal(t, "Teddy Bear", item["name"])
	assert.Equal(t, 24.99, item["price"])
	assert.Equal(t, float64(2), item["quantity"])

	assert.Equal(t, 3, store.product(p.ID).Quantity)
}

func TestHandleCreateOrderErrors(t *testing.T) {
	p := newProduct("Teddy Bear", "24.99", 1)
	store := newMemStore(p)
	router := newTestRouter(t, store)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"items":`, http.StatusBadRequest},
		{"no items", `{"items":[],"deliveryAddress":"1 Rabbit Hole Lane"}`, http.StatusBadRequest},
		{"zero quantity", `{"items":[{"productId":"` + p.ID + `","quantity":0}],"deliveryAddress":"1 Rabbit Hole Lane"}`, http.StatusBadRequest},
		{"short address", `{"items":[{"productId":"` + p.ID + `","quantity":1}],"deliveryAddress":"x"}`, http.StatusBadRequest},
		{"unknown product", `{"items":[{"productId":"nope","quantity":1}],"deliveryAddress":"1 Rabbit Hole Lane"}`, http.StatusNotFound},
		{"insufficient stock", `{"items":[{"productId":"` + p.ID + `","quantity":2}],"deliveryAddress":"1 Rabbit Hole Lane"}`, http.StatusBadRequest},
		{"long city", `{"items":[{"productId":"` + p.ID + `","quantity":1}],"deliveryAddress":"1 Rabbit Hole Lane","city":"` + strings.Repeat("c", 101) + `"}`, http.StatusBadRequest},
		{"long postal code", `{"items":[{"productId":"` + p.ID + `","quantity":1}],"deliveryAddress":"1 Rabbit Hole Lane","postalCode":"` + strings.Repeat("9", 21) + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, alice, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	assert.Equal(t, 1, store.product(p.ID).Quantity)
	assert.Zero(t, store.orderCount())

	body := `{"items":[{"productId":"` + p.ID + `","quantity":1}],"deliveryAddress":"1 Rabbit Hole Lane","city":"` + strings.Repeat("c", 101) + `"}`
	rec := serve(router, alice, http.MethodPost, "/api/orders", body)
	assert.Contains(t, rec.Body.String(), "city")
}

func TestHandleOrderAccess(t *testing.T) {
	p := newProduct("Teddy Bear", "24.99", 5)
	store := newMemStore(p)
	router := newTestRouter(t, store)

	body := `{"items":[{"productId":"` + p.ID + `","quantity":1}],"deliveryAddress":"1 Rabbit Hole Lane"}`
	rec := serve(router, alice, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = serve(router, alice, http.MethodGet, "/api/orders/my-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0]["id"])

	rec = serve(router, bob, http.MethodGet, "/api/orders/my-orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(router, bob, http.MethodGet, "/api/orders/"+created.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(router, admin, http.MethodGet, "/api/orders/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, alice, http.MethodGet, "/api/orders/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, bob, http.MethodPut, "/api/orders/"+created.ID+"/cancel", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 4, store.product(p.ID).Quantity)
}

func TestHandleCancelOrder(t *testing.T) {
	p := newProduct("Teddy Bear", "24.99", 5)
	store := newMemStore(p)
	router := newTestRouter(t, store)

	body := `{"items":[{"productId":"` + p.ID + `","quantity":3}],"deliveryAddress":"1 Rabbit Hole Lane"}`
	rec := serve(router, alice, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = serve(router, alice, http.MethodPut, "/api/orders/"+created.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	assert.Equal(t, 5, store.product(p.ID).Quantity)

	rec = serve(router, alice, http.MethodPut, "/api/orders/"+created.ID+"/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"order is already cancelled"}`, rec.Body.String())
	assert.Equal(t, 5, store.product(p.ID).Quantity)
}

func TestOrderResponseDeletedProduct(t *testing.T) {
	o := &domain.Order{
		ID:    "o-1",
		Lines: []domain.OrderLine{{ID: "l-1", Name: "Teddy Bear", Quantity: 1}},
	}
	raw, err := json.Marshal(NewOrderResponse(o))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"productId":null`)
	assert.Contains(t, string(raw), `"price":0.00`)
}
