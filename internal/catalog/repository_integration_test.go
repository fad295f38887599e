//go:build integration

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/testutil"
)

func TestProductRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := testutil.SetupPostgres(ctx, t)
	defer pg.Cleanup()

	repo := NewProductRepository(pg.DB)

	create := func(t *testing.T, name string, category domain.Category, attrs domain.Attributes, qty int) *domain.Product {
		t.Helper()
		p := &domain.Product{
			Name:        name,
			Brand:       "Wonderland",
			Price:       decimal.RequireFromString("19.99"),
			Quantity:    qty,
			Description: "A " + name + " for curious children",
			Category:    category,
			Attributes:  attrs,
		}
		require.NoError(t, repo.Create(ctx, p))
		return p
	}

	t.Run("create and get", func(t *testing.T) {
		pg.Reset(t)
		p := create(t, "Robot Explorer", domain.CategoryElectronic, domain.ElectronicAttributes{BatteryType: "AA", Voltage: "6V"}, 15)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Robot Explorer", got.Name)
		assert.True(t, p.Price.Equal(got.Price))
		assert.Equal(t, domain.ElectronicAttributes{BatteryType: "AA", Voltage: "6V"}, got.Attributes)

		_, err = repo.GetByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list filters", func(t *testing.T) {
		pg.Reset(t)
		create(t, "Teddy Bear", domain.CategoryPlush, domain.PlushAttributes{Material: "Cotton"}, 5)
		create(t, "Bunny 100% Soft", domain.CategoryPlush, nil, 5)
		create(t, "Robot Explorer", domain.CategoryElectronic, nil, 5)

		plush, err := repo.List(ctx, Filter{Category: domain.CategoryPlush})
		require.NoError(t, err)
		assert.Len(t, plush, 2)

		bears, err := repo.List(ctx, Filter{Query: "BEAR"})
		require.NoError(t, err)
		require.Len(t, bears, 1)
		assert.Equal(t, "Teddy Bear", bears[0].Name)

		percent, err := repo.Search(ctx, "100%")
		require.NoError(t, err)
		require.Len(t, percent, 1)
		assert.Equal(t, "Bunny 100% Soft", percent[0].Name)

		page, err := repo.List(ctx, Filter{Skip: 1, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})

	t.Run("update and delete", func(t *testing.T) {
		pg.Reset(t)
		p := create(t, "Teddy Bear", domain.CategoryPlush, domain.PlushAttributes{Material: "Cotton"}, 5)

		price := decimal.RequireFromString("24.50")
		updated, err := repo.Update(ctx, p.ID, Patch{Price: &price})
		require.NoError(t, err)
		assert.True(t, price.Equal(updated.Price))
		assert.Equal(t, domain.PlushAttributes{Material: "Cotton"}, updated.Attributes)

		negative := -1
		_, err = repo.Update(ctx, p.ID, Patch{Quantity: &negative})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		require.NoError(t, repo.Delete(ctx, p.ID))
		assert.ErrorIs(t, repo.Delete(ctx, p.ID), domain.ErrNotFound)
	})

	t.Run("adjust quantity", func(t *testing.T) {
		pg.Reset(t)
		p := create(t, "Teddy Bear", domain.CategoryPlush, nil, 5)

		got, err := repo.AdjustQuantity(ctx, p.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 8, got.Quantity)

		got, err = repo.AdjustQuantity(ctx, p.ID, -8)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Quantity)

		_, err = repo.AdjustQuantity(ctx, p.ID, -1)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		_, err = repo.AdjustQuantity(ctx, uuid.New().String(), 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("schema rejects negative stock", func(t *testing.T) {
		pg.Reset(t)
		p := create(t, "Teddy Bear", domain.CategoryPlush, nil, 1)
		_, err := pg.DB.ExecContext(ctx, `UPDATE products SET quantity = -1 WHERE id = $1`, p.ID)
		assert.Error(t, err)
	})
}
