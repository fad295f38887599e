package orders

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type LineResponse struct {
	ID        string      `json:"id"`
	ProductID *string     `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     httpx.Money `json:"price"`
}

type OrderResponse struct {
	ID              string             `json:"id"`
	OrderNumber     string             `json:"orderNumber"`
	UserID          string             `json:"userId"`
	Items           []LineResponse     `json:"items"`
	TotalAmount     httpx.Money        `json:"totalAmount"`
	Status          domain.OrderStatus `json:"status"`
	DeliveryAddress string             `json:"deliveryAddress"`
	City            string             `json:"city"`
	PostalCode      string             `json:"postalCode"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	items := make([]LineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		item := LineResponse{ID: l.ID, Name: l.Name, Quantity: l.Quantity, Price: httpx.Money(l.Price)}
		if l.ProductID != "" {
			item.ProductID = &l.ProductID
		}
		items = append(items, item)
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     httpx.Money(o.TotalAmount),
		Status:          o.Status,
		DeliveryAddress: o.DeliveryAddress,
		City:            o.City,
		PostalCode:      o.PostalCode,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func NewOrderList(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}

type lineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type createOrderRequest struct {
	Items           []lineRequest `json:"items" validate:"min=1,dive"`
	DeliveryAddress string        `json:"deliveryAddress" validate:"required,min=5"`
	City            string        `json:"city" validate:"max=100"`
	PostalCode      string        `json:"postalCode" validate:"max=20"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	items := make([]domain.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.LineRequest(item))
	}

	caller, _ := auth.IdentityFrom(r.Context())
	order, err := h.service.Create(r.Context(), caller, CreateRequest{
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		City:            req.City,
		PostalCode:      req.PostalCode,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, NewOrderResponse(order))
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	orders, err := h.service.ListForUser(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, NewOrderList(orders))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	order, err := h.service.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, NewOrderResponse(order))
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFrom(r.Context())
	order, err := h.service.Cancel(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, NewOrderResponse(order))
}
