package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wonderland/toystore/internal/domain"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Filter narrows a product listing. Query matches name, brand or
// description, case-insensitively.
type Filter struct {
	Category domain.Category
	Query    string
	Skip     int
	Limit    int
}

func (f *Filter) normalize() error {
	if f.Category != "" && !f.Category.Valid() {
		return domain.InvalidInput("category must be one of Electronic, Plush, BoardGame")
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

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, brand, price, quantity, description, image, category, category_attributes, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	p := &domain.Product{}
	var raw []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Quantity, &p.Description, &p.Image,
		&p.Category, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	attrs := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes of product %s: %w", p.ID, err)
		}
	}
	parsed, err := domain.ParseAttributes(p.Category, attrs)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", p.ID, err)
	}
	p.Attributes = parsed
	return p, nil
}

func encodeAttributes(p *domain.Product) ([]byte, error) {
	if p.Attributes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(domain.AttributesMap(p.Attributes))
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	attrs, err := encodeAttributes(p)
	if err != nil {
		return err
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (id, name, brand, price, quantity, description, image, category, category_attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, p.ID, p.Name, p.Brand, p.Price, p.Quantity, p.Description, p.Image, p.Category, attrs).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("product %s not found", id)
	}
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("product %s not found", id)
	}
	return p, err
}

func (r *ProductRepository) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	if err := f.normalize(); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR brand ILIKE $%d OR description ILIKE $%d)", n, n, n))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Skip)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Search(ctx context.Context, q string) ([]domain.Product, error) {
	if strings.TrimSpace(q) == "" {
		return nil, domain.InvalidInput("search query is required")
	}
	return r.List(ctx, Filter{Query: q})
}

// Update applies patch to the product under a row lock.
func (r *ProductRepository) Update(ctx context.Context, id string, patch Patch) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("product %s not found", id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanProduct(tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("product %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	if err := patch.Apply(p); err != nil {
		return nil, err
	}
	attrs, err := encodeAttributes(p)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, brand = $3, price = $4, quantity = $5, description = $6, image = $7,
		    category = $8, category_attributes = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, p.ID, p.Name, p.Brand, p.Price, p.Quantity, p.Description, p.Image, p.Category, attrs).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return p, tx.Commit()
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.NotFound("product %s not found", id)
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.NotFound("product %s not found", id)
	}

	return nil
}

// AdjustQuantity adds delta to the stock of a product. A change that would
// leave the stock negative is rejected with InsufficientStock.
func (r *ProductRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NotFound("product %s not found", id)
	}

	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+productColumns, id, delta))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &domain.InsufficientStockError{
		ProductID: current.ID,
		Name:      current.Name,
		Requested: -delta,
		Available: current.Quantity,
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
