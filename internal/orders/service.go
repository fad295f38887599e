package orders

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wonderland/toystore/internal/domain"
)

var tracer = otel.Tracer("orders")

// maxNumberAttempts bounds the retries on an order number collision.
const maxNumberAttempts = 5

// Publisher delivers order events once the change that produced them is
// committed.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type CreateRequest struct {
	Items           []domain.LineRequest
	DeliveryAddress string
	City            string
	PostalCode      string
}

type Service struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	newNumber func(time.Time) string

	created     metric.Int64Counter
	cancelled   metric.Int64Counter
	transitions metric.Int64Counter
	orderValue  metric.Float64Histogram
}

// NewService wires the workflow. publisher may be nil, in which case no
// events are sent.
func NewService(store Store, publisher Publisher, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("orders")

	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders placed"))
	if err != nil {
		return nil, err
	}
	cancelled, err := meter.Int64Counter("orders.cancelled",
		metric.WithDescription("Orders cancelled, by customers or admins"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("orders.status_changes",
		metric.WithDescription("Admin status changes"))
	if err != nil {
		return nil, err
	}
	orderValue, err := meter.Float64Histogram("orders.value",
		metric.WithDescription("Total amount of placed orders"),
		metric.WithUnit("{USD}"))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:       store,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newNumber:   NewOrderNumber,
		created:     created,
		cancelled:   cancelled,
		transitions: transitions,
		orderValue:  orderValue,
	}, nil
}

// Create places an order for the caller. Stock for every line is checked
// and taken in the same transaction that writes the order, so either the
// whole order is stored and stock decremented, or nothing changes.
func (s *Service) Create(ctx context.Context, caller domain.Identity, req CreateRequest) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.Create", trace.WithAttributes(
		attribute.String("user.id", caller.UserID),
		attribute.Int("order.lines", len(req.Items)),
	))
	defer func() { endSpan(span, err) }()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		products, err := tx.LockProducts(ctx, productIDs(req.Items))
		if err != nil {
			return err
		}

		lines, err := buildLines(req.Items, products)
		if err != nil {
			return err
		}

		now := s.now()
		o := &domain.Order{
			ID:              uuid.New().String(),
			UserID:          caller.UserID,
			TotalAmount:     domain.LineTotal(lines),
			Status:          domain.OrderStatusPending,
			DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
			City:            strings.TrimSpace(req.City),
			PostalCode:      strings.TrimSpace(req.PostalCode),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.insertOrder(ctx, tx, o); err != nil {
			return err
		}

		for i := range lines {
			lines[i].ID = uuid.New().String()
			lines[i].OrderID = o.ID
		}
		if err := tx.InsertLines(ctx, lines); err != nil {
			return err
		}

		for _, line := range lines {
			if err := tx.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		o.Lines = lines
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.created.Add(ctx, 1)
	s.orderValue.Record(ctx, order.TotalAmount.InexactFloat64())
	s.publish(ctx, domain.OrderEventCreated, order, "")
	s.logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total_amount", order.TotalAmount.StringFixed(2),
	)
	return order, nil
}

func validateCreate(req CreateRequest) error {
	if len(req.Items) == 0 {
		return domain.InvalidInput("order must contain at least one item")
	}
	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.InvalidInput("product id is required")
		}
		if item.Quantity <= 0 {
			return domain.InvalidInput("quantity must be greater than zero")
		}
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return domain.InvalidInput("delivery address is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.City)) > 100 {
		return domain.InvalidInput("city must be at most 100 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.PostalCode)) > 20 {
		return domain.InvalidInput("postal code must be at most 20 characters")
	}
	return nil
}

// productIDs returns the distinct product ids in sorted order, the order in
// which their rows are locked.
func productIDs(items []domain.LineRequest) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Strings(ids)
	return ids
}

// buildLines checks the requested lines in input order against the locked
// products and snapshots name and price. Lines for the same product draw on
// the same stock.
func buildLines(items []domain.LineRequest, products map[string]domain.Product) ([]domain.OrderLine, error) {
	remaining := make(map[string]int, len(products))
	lines := make([]domain.OrderLine, 0, len(items))

	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, domain.NotFound("product %s not found", item.ProductID)
		}
		left, seen := remaining[p.ID]
		if !seen {
			left = p.Quantity
		}
		if item.Quantity > left {
			return nil, &domain.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: item.Quantity,
				Available: left,
			}
		}
		remaining[p.ID] = left - item.Quantity

		lines = append(lines, domain.OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.Price,
		})
	}
	return lines, nil
}

func (s *Service) insertOrder(ctx context.Context, tx Tx, o *domain.Order) error {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		o.OrderNumber = s.newNumber(o.CreatedAt)
		inserted, err := tx.InsertOrder(ctx, o)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
		s.logger.WarnContext(ctx, "order number collision", "order_number", o.OrderNumber, "attempt", attempt)
	}
	return domain.Conflict("could not allocate a unique order number")
}

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, caller domain.Identity) ([]domain.Order, error) {
	return s.store.ListByUser(ctx, caller.UserID)
}

func (s *Service) Get(ctx context.Context, caller domain.Identity, id string) (*domain.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(o.UserID) {
		return nil, domain.Forbidden("not authorized to view this order")
	}
	return o, nil
}

// Cancel cancels a pending or processing order and puts its stock back.
// The order row stays locked until commit, so two cancels of the same order
// cannot both restock it.
func (s *Service) Cancel(ctx context.Context, caller domain.Identity, id string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.Cancel", trace.WithAttributes(attribute.String("order.id", id)))
	defer func() { endSpan(span, err) }()

	var order *domain.Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(o.UserID) {
			return domain.Forbidden("not authorized to cancel this order")
		}
		if !o.Status.CanCustomerCancel() {
			if o.Status == domain.OrderStatusCancelled {
				return domain.InvalidState("order is already cancelled")
			}
			return domain.InvalidState("cannot cancel a shipped/delivered order")
		}

		if err := s.restock(ctx, tx, o); err != nil {
			return err
		}
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = s.now()
		if err := tx.UpdateStatus(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("by", string(caller.Role))))
	s.publish(ctx, domain.OrderEventCancelled, order, "")
	s.logger.InfoContext(ctx, "order cancelled", "order_id", order.ID, "user_id", caller.UserID)
	return order, nil
}

// AdminUpdateStatus moves an order to status. Moving into cancelled puts the
// stock back, even for a shipped order. Nothing leaves delivered or
// cancelled, and setting the current status again changes nothing.
func (s *Service) AdminUpdateStatus(ctx context.Context, caller domain.Identity, id string, status domain.OrderStatus) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.AdminUpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer func() { endSpan(span, err) }()

	if err := caller.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.InvalidInput("invalid status %q: must be one of pending, processing, shipped, delivered, cancelled", status)
	}

	var (
		order    *domain.Order
		previous domain.OrderStatus
	)
	err = s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := domain.CheckAdminTransition(o.Status, status); err != nil {
			return err
		}
		previous, order = o.Status, o
		if o.Status == status {
			return nil
		}

		if status == domain.OrderStatusCancelled {
			if err := s.restock(ctx, tx, o); err != nil {
				return err
			}
		}
		o.Status = status
		o.UpdatedAt = s.now()
		return tx.UpdateStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if previous == status {
		return order, nil
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(previous)),
		attribute.String("to", string(status)),
	))
	eventType := domain.OrderEventStatusChanged
	if status == domain.OrderStatusCancelled {
		s.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("by", string(caller.Role))))
		eventType = domain.OrderEventCancelled
	}
	s.publish(ctx, eventType, order, previous)
	s.logger.InfoContext(ctx, "order status updated", "order_id", order.ID, "from", previous, "to", status)
	return order, nil
}

// ListAll returns every order, newest first, for the admin views.
func (s *Service) ListAll(ctx context.Context, caller domain.Identity, f ListFilter) ([]domain.Order, error) {
	if err := caller.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f)
}

// restock returns the quantities of o's lines to their products. Lines whose
// product has since been deleted are skipped.
func (s *Service) restock(ctx context.Context, tx Tx, o *domain.Order) error {
	for _, line := range o.Lines {
		if line.ProductID == "" {
			continue
		}
		ok, err := tx.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.WarnContext(ctx, "skipped restock of deleted product", "order_id", o.ID, "product_id", line.ProductID)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, t domain.OrderEventType, o *domain.Order, previous domain.OrderStatus) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, domain.NewOrderEvent(t, o, previous)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order event", "error", err, "order_id", o.ID, "type", t)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
