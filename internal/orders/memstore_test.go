package orders

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	"github.com/wonderland/toystore/internal/domain"
)

var errInjected = errors.New("injected failure")

// memStore is a Store whose transactions run one at a time against a copy
// of the state, which replaces the committed state only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	numbers  map[string]bool

	// failOn names a Tx method that returns errInjected.
	failOn string
}

func newMemStore(products ...domain.Product) *memStore {
	m := &memStore{
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		numbers:  map[string]bool{},
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		failOn:   m.failOn,
		products: maps.Clone(m.products),
		orders:   maps.Clone(m.orders),
		numbers:  maps.Clone(m.numbers),
	}
	if err := fn(tx); err != nil {
		return err
	}

	m.products, m.orders, m.numbers = tx.products, tx.orders, tx.numbers
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.NotFound("order %s not found", id)
	}
	return copyOrder(o), nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return m.list(func(o domain.Order) bool { return o.UserID == userID }, 0, -1), nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]domain.Order, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return m.list(func(o domain.Order) bool { return f.Status == "" || o.Status == f.Status }, f.Skip, f.Limit), nil
}

func (m *memStore) list(keep func(domain.Order) bool, skip, limit int) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if skip >= len(out) {
		return []domain.Order{}
	}
	out = out[skip:]
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func (m *memStore) product(id string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id]
}

func (m *memStore) setProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *memStore) deleteProduct(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	for oid, o := range m.orders {
		o = *copyOrder(o)
		for i := range o.Lines {
			if o.Lines[i].ProductID == id {
				o.Lines[i].ProductID = ""
			}
		}
		m.orders[oid] = o
	}
}

func (m *memStore) setStatus(id string, status domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.Status = status
	m.orders[id] = o
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func copyOrder(o domain.Order) *domain.Order {
	o.Lines = append([]domain.OrderLine{}, o.Lines...)
	return &o
}

type memTx struct {
	failOn   string
	products map[string]domain.Product
	orders   map[string]domain.Order
	numbers  map[string]bool
}

func (t *memTx) fail(method string) error {
	if t.failOn == method {
		return errInjected
	}
	return nil
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	if err := t.fail("LockProducts"); err != nil {
		return nil, err
	}
	out := map[string]domain.Product{}
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID string, quantity int) error {
	if err := t.fail("DecrementStock"); err != nil {
		return err
	}
	p, ok := t.products[productID]
	if !ok {
		return domain.NotFound("product %s not found", productID)
	}
	if p.Quantity < quantity {
		return &domain.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: quantity, Available: p.Quantity}
	}
	p.Quantity -= quantity
	t.products[productID] = p
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	if err := t.fail("IncrementStock"); err != nil {
		return false, err
	}
	p, ok := t.products[productID]
	if !ok {
		return false, nil
	}
	p.Quantity += quantity
	t.products[productID] = p
	return true, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) (bool, error) {
	if err := t.fail("InsertOrder"); err != nil {
		return false, err
	}
	if t.numbers[o.OrderNumber] {
		return false, nil
	}
	t.numbers[o.OrderNumber] = true
	t.orders[o.ID] = *copyOrder(*o)
	return true, nil
}

func (t *memTx) InsertLines(_ context.Context, lines []domain.OrderLine) error {
	if err := t.fail("InsertLines"); err != nil {
		return err
	}
	for _, l := range lines {
		o := t.orders[l.OrderID]
		o.Lines = append(append([]domain.OrderLine{}, o.Lines...), l)
		t.orders[l.OrderID] = o
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*domain.Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return nil, domain.NotFound("order %s not found", id)
	}
	return copyOrder(o), nil
}

func (t *memTx) UpdateStatus(_ context.Context, o *domain.Order) error {
	if err := t.fail("UpdateStatus"); err != nil {
		return err
	}
	stored := t.orders[o.ID]
	stored.Status = o.Status
	stored.UpdatedAt = o.UpdatedAt
	t.orders[o.ID] = stored
	return nil
}
