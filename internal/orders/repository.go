package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wonderland/toystore/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

const orderColumns = `id, order_number, user_id, total_amount, status, delivery_address, city, postal_code, created_at, updated_at`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &o.Status,
		&o.DeliveryAddress, &o.City, &o.PostalCode, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Lines = []domain.OrderLine{}
	return o, nil
}

func getOrder(ctx context.Context, q queryer, id string, forUpdate bool) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("order %s not found", id)
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("order %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	if err := loadLines(ctx, q, map[string]*domain.Order{o.ID: o}, []string{o.ID}); err != nil {
		return nil, err
	}
	return o, nil
}

// loadLines fills the lines of every order in byID with one query.
func loadLines(ctx context.Context, q queryer, byID map[string]*domain.Order, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			line      domain.OrderLine
			productID sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &productID, &line.Name, &line.Quantity, &line.Price); err != nil {
			return err
		}
		line.ProductID = productID.String
		o := byID[line.OrderID]
		o.Lines = append(o.Lines, line)
	}

	return rows.Err()
}

func listOrders(ctx context.Context, q queryer, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*domain.Order)
	var ids []string

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadLines(ctx, q, byID, ids); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, *byID[id])
	}

	return orders, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, r.db, id, false)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return listOrders(ctx, r.db, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
}

func (r *OrderRepository) List(ctx context.Context, f ListFilter) ([]domain.Order, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}
	if f.Status != "" {
		return listOrders(ctx, r.db, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE status = $1
			ORDER BY created_at DESC, id
			LIMIT $2 OFFSET $3
		`, f.Status, f.Limit, f.Skip)
	}
	return listOrders(ctx, r.db, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, f.Limit, f.Skip)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	sort.Strings(valid)

	products := make(map[string]domain.Product, len(valid))
	if len(valid) == 0 {
		return products, nil
	}

	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name, price, quantity
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}

	return products, rows.Err()
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock of %s: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var name string
		var available int
		err := t.tx.QueryRowContext(ctx, `SELECT name, quantity FROM products WHERE id = $1`, productID).Scan(&name, &available)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("product %s not found", productID)
		}
		if err != nil {
			return err
		}
		return &domain.InsufficientStockError{ProductID: productID, Name: name, Requested: quantity, Available: available}
	}

	return nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("increment stock of %s: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, total_amount, status, delivery_address, city, postal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_number) DO NOTHING
	`, o.ID, o.OrderNumber, o.UserID, o.TotalAmount, o.Status, o.DeliveryAddress, o.City, o.PostalCode, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (t *pgTx) InsertLines(ctx context.Context, lines []domain.OrderLine) error {
	for i, line := range lines {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, product_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, line.ID, line.OrderID, i, line.ProductID, line.Name, line.Quantity, line.Price)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateStatus(ctx context.Context, o *domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1
	`, o.ID, o.Status, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
