package domain

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryElectronic Category = "Electronic"
	CategoryPlush      Category = "Plush"
	CategoryBoardGame  Category = "BoardGame"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryElectronic, CategoryPlush, CategoryBoardGame:
		return true
	}
	return false
}

// Attributes is the category-specific part of a product. The concrete type
// always matches the product's Category.
type Attributes interface {
	Category() Category
	isAttributes()
}

type ElectronicAttributes struct {
	BatteryType string
	Voltage     string
}

type PlushAttributes struct {
	Material string
	Size     string
}

type BoardGameAttributes struct {
	AgeRange        string
	NumberOfPlayers string
}

func (ElectronicAttributes) Category() Category { return CategoryElectronic }
func (PlushAttributes) Category() Category      { return CategoryPlush }
func (BoardGameAttributes) Category() Category  { return CategoryBoardGame }

func (ElectronicAttributes) isAttributes() {}
func (PlushAttributes) isAttributes()      {}
func (BoardGameAttributes) isAttributes()  {}

// Attribute keys as they appear in the JSON column and in API payloads.
const (
	AttrBatteryType     = "batteryType"
	AttrVoltage         = "voltage"
	AttrMaterial        = "material"
	AttrSize            = "size"
	AttrAgeRange        = "ageRange"
	AttrNumberOfPlayers = "numberOfPlayers"
)

var attributeKeys = map[Category][]string{
	CategoryElectronic: {AttrBatteryType, AttrVoltage},
	CategoryPlush:      {AttrMaterial, AttrSize},
	CategoryBoardGame:  {AttrAgeRange, AttrNumberOfPlayers},
}

// ParseAttributes builds the attribute variant for category from an open
// key/value map. Keys that belong to another category are rejected.
func ParseAttributes(category Category, m map[string]string) (Attributes, error) {
	allowed, ok := attributeKeys[category]
	if !ok {
		return nil, InvalidInput("unknown category %q", category)
	}

	var unknown []string
	for key := range m {
		if !slices.Contains(allowed, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, InvalidInput("attributes %s are not valid for category %s", strings.Join(unknown, ", "), category)
	}

	switch category {
	case CategoryElectronic:
		return ElectronicAttributes{BatteryType: m[AttrBatteryType], Voltage: m[AttrVoltage]}, nil
	case CategoryPlush:
		return PlushAttributes{Material: m[AttrMaterial], Size: m[AttrSize]}, nil
	default:
		return BoardGameAttributes{AgeRange: m[AttrAgeRange], NumberOfPlayers: m[AttrNumberOfPlayers]}, nil
	}
}

// AttributesMap flattens the variant back to the open map, dropping empty
// values.
func AttributesMap(a Attributes) map[string]string {
	m := map[string]string{}
	put := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}

	switch v := a.(type) {
	case ElectronicAttributes:
		put(AttrBatteryType, v.BatteryType)
		put(AttrVoltage, v.Voltage)
	case PlushAttributes:
		put(AttrMaterial, v.Material)
		put(AttrSize, v.Size)
	case BoardGameAttributes:
		put(AttrAgeRange, v.AgeRange)
		put(AttrNumberOfPlayers, v.NumberOfPlayers)
	}
	return m
}

type Product struct {
	ID          string
	Name        string
	Brand       string
	Price       decimal.Decimal
	Quantity    int
	Description string
	Image       string
	Category    Category
	Attributes  Attributes
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) InStock() bool {
	return p.Quantity > 0
}

// Validate checks the invariants every stored product must satisfy.
func (p *Product) Validate() error {
	if n := len(strings.TrimSpace(p.Name)); n < 2 || n > 255 {
		return InvalidInput("name must be between 2 and 255 characters")
	}
	if n := len(strings.TrimSpace(p.Brand)); n < 2 || n > 255 {
		return InvalidInput("brand must be between 2 and 255 characters")
	}
	if !p.Price.IsPositive() {
		return InvalidInput("price must be greater than zero")
	}
	if p.Quantity < 0 {
		return InvalidInput("quantity cannot be negative")
	}
	if !p.Category.Valid() {
		return InvalidInput("category must be one of Electronic, Plush, BoardGame")
	}
	if p.Attributes != nil && p.Attributes.Category() != p.Category {
		return InvalidInput("attributes do not match category %s", p.Category)
	}
	return nil
}

// Details returns human readable, category-specific facts about a product.
func Details(p *Product) map[string]string {
	d := map[string]string{
		"category": string(p.Category),
		"brand":    p.Brand,
	}

	switch a := p.Attributes.(type) {
	case ElectronicAttributes:
		if a.BatteryType != "" {
			d["power"] = a.BatteryType + " batteries"
			if a.Voltage != "" {
				d["power"] += ", " + a.Voltage
			}
		}
	case PlushAttributes:
		if a.Material != "" {
			d["material"] = a.Material
		}
		if a.Size != "" {
			d["size"] = a.Size
		}
	case BoardGameAttributes:
		if a.AgeRange != "" {
			d["ages"] = a.AgeRange
		}
		if a.NumberOfPlayers != "" {
			d["players"] = "Ideal for " + a.NumberOfPlayers + " players"
		}
	}
	return d
}
