package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/wonderland/toystore/internal/domain"
)

// Patch is a partial product update. Nil fields are left unchanged.
type Patch struct {
	Name        *string
	Brand       *string
	Price       *decimal.Decimal
	Quantity    *int
	Description *string
	Image       *string
	Category    *domain.Category
	Attributes  map[string]string
}

// Apply writes the patch onto p and validates the result. Moving a product
// to another category without new attributes clears its attributes.
func (pt Patch) Apply(p *domain.Product) error {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Brand != nil {
		p.Brand = *pt.Brand
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Quantity != nil {
		p.Quantity = *pt.Quantity
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Image != nil {
		p.Image = *pt.Image
	}

	switch {
	case pt.Attributes != nil:
		category := p.Category
		if pt.Category != nil {
			category = *pt.Category
		}
		attrs, err := domain.ParseAttributes(category, pt.Attributes)
		if err != nil {
			return err
		}
		p.Category, p.Attributes = category, attrs
	case pt.Category != nil && *pt.Category != p.Category:
		attrs, err := domain.ParseAttributes(*pt.Category, nil)
		if err != nil {
			return err
		}
		p.Category, p.Attributes = *pt.Category, attrs
	}

	return p.Validate()
}
