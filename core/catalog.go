package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// UnknownItemName is the name given to sales of barcodes absent from the catalog
const UnknownItemName = "unknown item"

// Price is a non-negative amount in cents
type Price int64

// largest whole amount whose cents still fit in a Price
const maxPriceUnits = (math.MaxInt64 - 99) / 100

// ParsePrice parses a decimal amount such as "2.5", "2.50" or "3".
// More than two fractional digits, signs and exponents are rejected.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (frac == "" || len(frac) > 2) {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid price %q", s)
		}
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if units > maxPriceUnits {
		return 0, fmt.Errorf("invalid price %q: out of range", s)
	}
	cents := int64(0)
	if frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}
	return Price(units*100 + cents), nil
}

// String formats the price with two decimals, as sent on the wire
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul returns the price of qty units
func (p Price) Mul(qty int) Price {
	return p * Price(qty)
}

// CatalogItem is one product row mirrored to the device
type CatalogItem struct {
	ID    string
	Name  string
	Price Price
}

// Catalog is the host's product store
type Catalog interface {
	// Get returns the item for barcode; ok is false if it is not stocked
	Get(ctx context.Context, barcode string) (item CatalogItem, ok bool, err error)
	// List returns every item in sync order
	List(ctx context.Context) ([]CatalogItem, error)
}

// SalesLog is the append-only record of sales
type SalesLog interface {
	Record(ctx context.Context, sale SaleEvent) error
}

// ValidateItems checks that every item has a non-empty unique ID and a
// non-negative price
func ValidateItems(items []CatalogItem) error {
	seen := make(map[string]int, len(items))
	for i, item := range items {
		if item.ID == "" {
			return fmt.Errorf("%w: row %d has an empty ID", ErrInvalidCatalog, i+1)
		}
		if prev, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate ID %q in rows %d and %d", ErrInvalidCatalog, item.ID, prev+1, i+1)
		}
		if item.Price < 0 {
			return fmt.Errorf("%w: %s has a negative price", ErrInvalidCatalog, item.ID)
		}
		seen[item.ID] = i
	}
	return nil
}

// UnknownItem is the placeholder used when barcode is not in the catalog
func UnknownItem(barcode string) CatalogItem {
	return CatalogItem{ID: barcode, Name: UnknownItemName}
}
