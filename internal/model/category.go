package model

import "strings"

// Category groups logged items by emission domain.
type Category string

const (
	CategoryFood      Category = "FOOD"
	CategoryTransport Category = "TRANSPORT"
	CategoryEnergy    Category = "ENERGY"
	CategoryWater     Category = "WATER"
)

// Categories lists every recognized category in canonical order.
var Categories = []Category{CategoryFood, CategoryTransport, CategoryEnergy, CategoryWater}

// ParseCategory resolves a case-insensitive category name. Returns false for
// empty or unrecognized input.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryFood, CategoryTransport, CategoryEnergy, CategoryWater:
		return c, true
	default:
		return "", false
	}
}

// Valid reports whether c is one of the recognized categories.
func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}
