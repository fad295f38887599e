package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/catalog"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/identity"
)

type seedUser struct {
	email, name, password string
	role                  domain.Role
}

var seedUsers = []seedUser{
	{"admin@wonderland.com", "Wonderland Admin", "admin123", domain.RoleAdmin},
	{"demo@example.com", "Demo Customer", "demo123", domain.RoleCustomer},
}

func toy(name, brand, price string, qty int, description string, attrs domain.Attributes) *domain.Product {
	return &domain.Product{
		Name:        name,
		Brand:       brand,
		Price:       decimal.RequireFromString(price),
		Quantity:    qty,
		Description: description,
		Category:    attrs.Category(),
		Attributes:  attrs,
	}
}

func seedProducts() []*domain.Product {
	return []*domain.Product{
		toy("Robot Explorer", "TechToys", "49.99", 15, "Programmable robot that follows lines and dodges obstacles.",
			domain.ElectronicAttributes{BatteryType: "AA", Voltage: "6V"}),
		toy("RC Racing Car", "SpeedMasters", "39.99", 20, "Remote controlled car with rechargeable battery.",
			domain.ElectronicAttributes{BatteryType: "Li-ion", Voltage: "7.4V"}),
		toy("Talking Parrot", "TechToys", "24.99", 8, "Repeats everything you say in a funny voice.",
			domain.ElectronicAttributes{BatteryType: "AAA", Voltage: "4.5V"}),
		toy("Star Projector", "DreamLights", "29.99", 12, "Night light that fills the room with stars.",
			domain.ElectronicAttributes{BatteryType: "AA", Voltage: "3V"}),
		toy("Teddy Bear", "CuddleCo", "24.99", 30, "Classic soft teddy bear.",
			domain.PlushAttributes{Material: "Cotton", Size: "Medium"}),
		toy("Unicorn Plush", "CuddleCo", "19.99", 25, "Rainbow unicorn with a sparkly horn.",
			domain.PlushAttributes{Material: "Polyester", Size: "Small"}),
		toy("Giant Panda", "WildFriends", "59.99", 5, "Huge panda for huge hugs.",
			domain.PlushAttributes{Material: "Plush fleece", Size: "Large"}),
		toy("Cheshire Cat", "Wonderland", "22.50", 9, "Grinning cat that almost disappears.",
			domain.PlushAttributes{Material: "Velvet", Size: "Medium"}),
		toy("Castle Quest", "FunGames", "34.99", 18, "Cooperative adventure through a haunted castle.",
			domain.BoardGameAttributes{AgeRange: "8+", NumberOfPlayers: "2-4"}),
		toy("Word Wizards", "FunGames", "19.99", 22, "Spell words to cast spells.",
			domain.BoardGameAttributes{AgeRange: "10+", NumberOfPlayers: "2-6"}),
		toy("Tea Party Memory", "Wonderland", "14.99", 40, "Match the cups before the Hatter does.",
			domain.BoardGameAttributes{AgeRange: "4+", NumberOfPlayers: "2-5"}),
		toy("Space Traders", "StarBoard", "44.99", 6, "Trade goods across the galaxy.",
			domain.BoardGameAttributes{AgeRange: "12+", NumberOfPlayers: "3-5"}),
	}
}

// seed creates the demo accounts and, on an empty catalog, the demo toys.
// Running it again changes nothing.
func seed(ctx context.Context, postgresURL string, logger *slog.Logger) error {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	users := identity.NewUserRepository(db)
	for _, su := range seedUsers {
		_, err := users.GetByEmail(ctx, su.email)
		if err == nil {
			logger.Info("user exists", slog.String("email", su.email))
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		hash, err := auth.HashPassword(su.password)
		if err != nil {
			return err
		}
		if err := users.Create(ctx, &domain.User{Email: su.email, Name: su.name, PasswordHash: hash, Role: su.role}); err != nil {
			return fmt.Errorf("create user %s: %w", su.email, err)
		}
		logger.Info("user created", slog.String("email", su.email), slog.String("role", string(su.role)))
	}

	products := catalog.NewProductRepository(db)
	existing, err := products.List(ctx, catalog.Filter{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("catalog not empty, skipping products")
		return nil
	}

	for _, p := range seedProducts() {
		if err := products.Create(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", p.Name, err)
		}
	}
	logger.Info("products created", slog.Int("count", len(seedProducts())))
	return nil
}
