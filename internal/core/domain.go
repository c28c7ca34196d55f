package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UnitPiece      Unit = "unit"
	UnitKilogram   Unit = "kg"
	UnitGram       Unit = "g"
	UnitLiter      Unit = "l"
	UnitMilliliter Unit = "ml"
)

const (
	maxNameLength  = 100
	maxBrandLength = 100
	maxNotesLength = 500
)

type (
	Unit string

	Product struct {
		ID           string          `json:"id"`
		OwnerID      string          `json:"ownerId"`
		Name         string          `json:"name"`
		Brand        string          `json:"brand,omitempty"`
		Price        decimal.Decimal `json:"price"`
		Unit         Unit            `json:"unit"`
		Quantity     decimal.Decimal `json:"quantity"`
		CategoryID   string          `json:"categoryId"`
		CategoryName string          `json:"categoryName"`
		StoreID      string          `json:"storeId"`
		StoreName    string          `json:"storeName"`
		Notes        string          `json:"notes,omitempty"`
		CreatedAt    time.Time       `json:"createdAt"`
		UpdatedAt    *time.Time      `json:"updatedAt,omitempty"`
		IsActive     bool            `json:"isActive"`
	}

	Category struct {
		ID        string     `json:"id"`
		OwnerID   string     `json:"ownerId"`
		Name      string     `json:"name"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
		IsActive  bool       `json:"isActive"`
	}

	Store struct {
		ID        string     `json:"id"`
		OwnerID   string     `json:"ownerId"`
		Name      string     `json:"name"`
		CreatedAt time.Time  `json:"createdAt"`
		UpdatedAt *time.Time `json:"updatedAt,omitempty"`
		IsActive  bool       `json:"isActive"`
	}

	// PriceHistoryEntry is one observation in a product's append-only price log.
	PriceHistoryEntry struct {
		ID        string          `json:"id"`
		ProductID string          `json:"productId"`
		OwnerID   string          `json:"ownerId"`
		Price     decimal.Decimal `json:"price"`
		Store     string          `json:"store"`
		Date      time.Time       `json:"date"`
	}
)

// Units lists the accepted measurement units.
func Units() []Unit {
	return []Unit{UnitPiece, UnitKilogram, UnitGram, UnitLiter, UnitMilliliter}
}

// Valid reports whether u is one of the known units.
func (u Unit) Valid() bool {
	switch u {
	case UnitPiece, UnitKilogram, UnitGram, UnitLiter, UnitMilliliter:
		return true
	default:
		return false
	}
}

// LastWrite returns UpdatedAt when set, CreatedAt otherwise.
func (p Product) LastWrite() time.Time {
	if p.UpdatedAt != nil && p.UpdatedAt.After(p.CreatedAt) {
		return *p.UpdatedAt
	}
	return p.CreatedAt
}

// Validate checks the user-supplied product fields.
func (p Product) Validate() error {
	if err := validateName("name", p.Name); err != nil {
		return err
	}
	if len(p.Brand) > maxBrandLength {
		return NewValidationError("brand", "too long (max %d characters)", maxBrandLength)
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if !p.Quantity.IsPositive() {
		return NewValidationError("quantity", "must be greater than zero")
	}
	if !p.Unit.Valid() {
		return NewValidationError("unit", "unknown unit %q", p.Unit)
	}
	if strings.TrimSpace(p.CategoryID) == "" {
		return NewValidationError("categoryId", "is required")
	}
	if strings.TrimSpace(p.StoreID) == "" {
		return NewValidationError("storeId", "is required")
	}
	if len(p.Notes) > maxNotesLength {
		return NewValidationError("notes", "too long (max %d characters)", maxNotesLength)
	}
	return nil
}

func (c Category) Validate() error {
	return validateName("name", c.Name)
}

func (s Store) Validate() error {
	return validateName("name", s.Name)
}

func (e PriceHistoryEntry) Validate() error {
	if strings.TrimSpace(e.ProductID) == "" {
		return NewValidationError("productId", "is required")
	}
	if err := ValidatePrice(e.Price); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return NewValidationError("date", "cannot be zero")
	}
	return nil
}

// ValidatePrice rejects zero and negative prices.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return NewValidationError("price", "must be greater than zero")
	}
	return nil
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError(field, "cannot be empty")
	}
	if len(name) > maxNameLength {
		return NewValidationError(field, "too long (max %d characters)", maxNameLength)
	}
	return nil
}
