package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
	"github.com/wonderland/toystore/internal/orders"
)

type StatsReader interface {
	Stats(ctx context.Context, lowStockThreshold int) (*Stats, error)
}

// OrderAdmin is the part of the order workflow the dashboard drives.
type OrderAdmin interface {
	ListAll(ctx context.Context, caller domain.Identity, f orders.ListFilter) ([]domain.Order, error)
	AdminUpdateStatus(ctx context.Context, caller domain.Identity, id string, status domain.OrderStatus) (*domain.Order, error)
}

type Handler struct {
	stats             StatsReader
	orders            OrderAdmin
	lowStockThreshold int
	logger            *slog.Logger
}

func NewHandler(stats StatsReader, orders OrderAdmin, lowStockThreshold int, logger *slog.Logger) *Handler {
	return &Handler{stats: stats, orders: orders, lowStockThreshold: lowStockThreshold, logger: logger}
}

type statsResponse struct {
	TotalProducts    int         `json:"totalProducts"`
	LowStockProducts int         `json:"lowStockProducts"`
	TotalOrders      int         `json:"totalOrders"`
	PendingOrders    int         `json:"pendingOrders"`
	TotalRevenue     httpx.Money `json:"totalRevenue"`
	TotalCustomers   int         `json:"totalCustomers"`
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Stats(r.Context(), h.lowStockThreshold)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, statsResponse{
		TotalProducts:    s.TotalProducts,
		LowStockProducts: s.LowStockProducts,
		TotalOrders:      s.TotalOrders,
		PendingOrders:    s.PendingOrders,
		TotalRevenue:     httpx.Money(s.TotalRevenue),
		TotalCustomers:   s.TotalCustomers,
	})
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	skip, err := httpx.QueryInt(r, "skip", 0)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", orders.DefaultLimit)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	caller, _ := auth.IdentityFrom(r.Context())
	list, err := h.orders.ListAll(r.Context(), caller, orders.ListFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, orders.NewOrderList(list))
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleUpdateStatus takes the new status from the status query parameter,
// or from the JSON body when the parameter is absent.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		var req statusRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		status = req.Status
	}

	caller, _ := auth.IdentityFrom(r.Context())
	order, err := h.orders.AdminUpdateStatus(r.Context(), caller, chi.URLParam(r, "id"), domain.OrderStatus(status))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, orders.NewOrderResponse(order))
}
