package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventCancelled     OrderEventType = "order.cancelled"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

type OrderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderEvent struct {
	Type           OrderEventType   `json:"type"`
	OrderID        string           `json:"order_id"`
	OrderNumber    string           `json:"order_number"`
	UserID         string           `json:"user_id"`
	Status         OrderStatus      `json:"status"`
	PreviousStatus OrderStatus      `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Items          []OrderEventItem `json:"items"`
	Timestamp      time.Time        `json:"timestamp"`
}

func NewOrderEvent(t OrderEventType, o *Order, previous OrderStatus) OrderEvent {
	items := make([]OrderEventItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, OrderEventItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return OrderEvent{
		Type:           t,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount,
		Items:          items,
		Timestamp:      o.UpdatedAt,
	}
}

func (e OrderEvent) EventType() string {
	return string(e.Type)
}
