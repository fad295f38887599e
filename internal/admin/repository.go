// Package admin serves the dashboard counters and the admin order views.
package admin

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

type Stats struct {
	TotalProducts    int
	LowStockProducts int
	TotalOrders      int
	PendingOrders    int
	TotalRevenue     decimal.Decimal
	TotalCustomers   int
}

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Stats reads every counter in one statement so they describe the same
// snapshot. Revenue only counts delivered orders.
func (r *StatsRepository) Stats(ctx context.Context, lowStockThreshold int) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM products WHERE quantity < $1),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
			(SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = 'delivered'),
			(SELECT COUNT(*) FROM users WHERE role = 'customer')
	`, lowStockThreshold).Scan(
		&s.TotalProducts,
		&s.LowStockProducts,
		&s.TotalOrders,
		&s.PendingOrders,
		&s.TotalRevenue,
		&s.TotalCustomers,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
