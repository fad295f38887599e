package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
)

type Store interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	Search(ctx context.Context, q string) ([]domain.Product, error)
	Update(ctx context.Context, id string, patch Patch) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Product, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type productResponse struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Brand              string            `json:"brand"`
	Price              httpx.Money       `json:"price"`
	Quantity           int               `json:"quantity"`
	InStock            bool              `json:"inStock"`
	Description        string            `json:"description"`
	Image              string            `json:"image"`
	Category           domain.Category   `json:"category"`
	CategoryAttributes map[string]string `json:"categoryAttributes"`
	Details            map[string]string `json:"details"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func newProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Brand:              p.Brand,
		Price:              httpx.Money(p.Price),
		Quantity:           p.Quantity,
		InStock:            p.InStock(),
		Description:        p.Description,
		Image:              p.Image,
		Category:           p.Category,
		CategoryAttributes: domain.AttributesMap(p.Attributes),
		Details:            domain.Details(p),
		CreatedAt:          p.CreatedAt.UTC(),
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

func newProductList(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, newProductResponse(&products[i]))
	}
	return out
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := httpx.QueryInt(r, "skip", 0)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	limit, err := httpx.QueryInt(r, "limit", DefaultLimit)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	products, err := h.store.List(r.Context(), Filter{
		Category: domain.Category(r.URL.Query().Get("category")),
		Query:    r.URL.Query().Get("q"),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, newProductList(products))
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, newProductList(products))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, newProductResponse(p))
}

type createProductRequest struct {
	Name               string            `json:"name" validate:"required,min=2,max=255"`
	Brand              string            `json:"brand" validate:"required,min=2,max=255"`
	Price              decimal.Decimal   `json:"price"`
	Quantity           int               `json:"quantity" validate:"min=0"`
	Description        string            `json:"description"`
	Image              string            `json:"image"`
	Category           domain.Category   `json:"category" validate:"required,oneof=Electronic Plush BoardGame"`
	CategoryAttributes map[string]string `json:"categoryAttributes"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	attrs, err := domain.ParseAttributes(req.Category, req.CategoryAttributes)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	p := &domain.Product{
		Name:        req.Name,
		Brand:       req.Brand,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Attributes:  attrs,
	}
	if err := h.store.Create(r.Context(), p); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product created", "product_id", p.ID)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, newProductResponse(p))
}

type updateProductRequest struct {
	Name               *string           `json:"name" validate:"omitnil,min=2,max=255"`
	Brand              *string           `json:"brand" validate:"omitnil,min=2,max=255"`
	Price              *decimal.Decimal  `json:"price"`
	Quantity           *int              `json:"quantity" validate:"omitnil,min=0"`
	Description        *string           `json:"description"`
	Image              *string           `json:"image"`
	Category           *domain.Category  `json:"category" validate:"omitnil,oneof=Electronic Plush BoardGame"`
	CategoryAttributes map[string]string `json:"categoryAttributes"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	p, err := h.store.Update(r.Context(), id, Patch{
		Name:        req.Name,
		Brand:       req.Brand,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Attributes:  req.CategoryAttributes,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product updated", "product_id", id)
	httpx.WriteJSON(w, h.logger, http.StatusOK, newProductResponse(p))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// HandleAdjustStock restocks (positive delta) or writes off (negative delta)
// units of a product.
func (h *Handler) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	p, err := h.store.AdjustQuantity(r.Context(), id, req.Delta)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "stock adjusted", "product_id", id, "delta", req.Delta, "quantity", p.Quantity)
	httpx.WriteJSON(w, h.logger, http.StatusOK, newProductResponse(p))
}
