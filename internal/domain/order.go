package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanCustomerCancel reports whether the owner-facing cancel path accepts an
// order in status s.
func (s OrderStatus) CanCustomerCancel() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// CheckAdminTransition validates an admin status change from -> to.
// Admins may move an order between any non-terminal statuses and may
// force-cancel a shipped order; nothing leaves delivered or cancelled.
func CheckAdminTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return InvalidInput("invalid status %q: must be one of pending, processing, shipped, delivered, cancelled", to)
	}
	if from == to {
		return nil
	}
	if from.IsTerminal() {
		return InvalidState("cannot change status of a %s order", from)
	}
	return nil
}

type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string // empty once the product has been deleted
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	Lines           []OrderLine
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	DeliveryAddress string
	City            string
	PostalCode      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineTotal sums price x quantity over the order lines.
func LineTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// LineRequest is one (product, quantity) pair of an order being placed.
type LineRequest struct {
	ProductID string
	Quantity  int
}
