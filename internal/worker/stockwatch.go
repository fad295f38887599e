// Package worker holds the background consumers of order events.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/messaging"
)

type ProductReader interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

// StockWatcher reports products whose stock fell below the threshold after
// an order was placed.
type StockWatcher struct {
	products  ProductReader
	threshold int
	logger    *slog.Logger
	alerts    metric.Int64Counter
}

func NewStockWatcher(products ProductReader, threshold int, logger *slog.Logger) (*StockWatcher, error) {
	alerts, err := otel.Meter("worker").Int64Counter("inventory.low_stock_alerts",
		metric.WithDescription("Products seen below the low stock threshold after an order"))
	if err != nil {
		return nil, err
	}
	return &StockWatcher{products: products, threshold: threshold, logger: logger, alerts: alerts}, nil
}

// Handle processes one order event. Only order.created can lower stock, so
// other types are ignored.
func (w *StockWatcher) Handle(ctx context.Context, msg messaging.Message) error {
	if msg.EventType != "" && msg.EventType != string(domain.OrderEventCreated) {
		return nil
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}
	if event.Type != domain.OrderEventCreated {
		return nil
	}

	for _, item := range event.Items {
		p, err := w.products.GetByID(ctx, item.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load product %s: %w", item.ProductID, err)
		}
		if p.Quantity >= w.threshold {
			continue
		}

		w.alerts.Add(ctx, 1, metric.WithAttributes(attribute.String("category", string(p.Category))))
		w.logger.WarnContext(ctx, "low stock",
			"product_id", p.ID,
			"product_name", p.Name,
			"quantity", p.Quantity,
			"threshold", w.threshold,
			"order_id", event.OrderID,
		)
	}
	return nil
}
