package orders

import (
	"context"

	"github.com/wonderland/toystore/internal/domain"
)

// Store is the persistence the workflow runs on. Every write of one
// workflow operation goes through a single Tx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
}

type Tx interface {
	// LockProducts locks the rows of the given products until the
	// transaction ends. Unknown ids are absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	// DecrementStock fails with InsufficientStock instead of taking a
	// product below zero.
	DecrementStock(ctx context.Context, productID string, quantity int) error
	// IncrementStock reports false when the product no longer exists.
	IncrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	// InsertOrder reports false when the order number is already taken.
	InsertOrder(ctx context.Context, o *domain.Order) (bool, error)
	InsertLines(ctx context.Context, lines []domain.OrderLine) error
	// LockOrder loads an order with its lines and locks its row.
	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, o *domain.Order) error
}

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

type ListFilter struct {
	Status domain.OrderStatus
	Skip   int
	Limit  int
}

func (f *ListFilter) normalize() error {
	if f.Status != "" && !f.Status.Valid() {
		return domain.InvalidInput("invalid status %q: must be one of pending, processing, shipped, delivered, cancelled", f.Status)
	}
	if f.Skip < 0 {
		return domain.InvalidInput("skip cannot be negative")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 || f.Limit > MaxLimit {
		return domain.InvalidInput("limit must be between 1 and %d", MaxLimit)
	}
	return nil
}
