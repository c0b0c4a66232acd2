package constants

import (
	"strings"
)

// Category is the spending category assigned to a receipt.
type Category string

const (
	Groceries      Category = "groceries"
	Restaurants    Category = "restaurants"
	Utilities      Category = "utilities"
	Transportation Category = "transportation"
	Healthcare     Category = "healthcare"
	Entertainment  Category = "entertainment"
	Shopping       Category = "shopping"
	Services       Category = "services"
	Education      Category = "education"
	Travel         Category = "travel"
	Other          Category = "other"
)

// allCategories fixes the enumeration order. Keyword-score ties are broken
// by this order, so it must stay stable.
var allCategories = []Category{
	Groceries,
	Restaurants,
	Utilities,
	Transportation,
	Healthcare,
	Entertainment,
	Shopping,
	Services,
	Education,
	Travel,
	Other,
}

// AllCategories returns the fixed category enumeration, classification order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func CategoriesAsStrings() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps free-form input onto a known category.
// Returns (Other, false) when nothing matches.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"food":        Groceries,
		"supermarket": Groceries,
		"dining":      Restaurants,
		"restaurant":  Restaurants,
		"fuel":        Transportation,
		"transit":     Transportation,
		"medical":     Healthcare,
		"pharmacy":    Healthcare,
		"retail":      Shopping,
		"misc":        Other,
		"general":     Other,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}

	return Other, false
}

// DisplayName renders a category for headings and exports.
func (c Category) DisplayName() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
