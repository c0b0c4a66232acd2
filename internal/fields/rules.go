// Package fields turns recognized receipt text into structured fields using
// an ordered, configurable rule set: regex tables for amounts and dates,
// keyword tables for categories, and pattern tables for currencies.
package fields

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/receiptscan/receiptscan/internal/common"
)

// Rules holds the extraction tables. Order is significant everywhere:
// amount and date patterns run in order, currency entries win first-match,
// and category keyword counts break ties by table order.
type Rules struct {
	AmountPatterns   []string            `json:"amount_patterns"`
	DatePatterns     []string            `json:"date_patterns"`
	VendorStopWords  []string            `json:"vendor_stop_words"`
	CategoryKeywords map[string][]string `json:"category_keywords"`
	CurrencyPatterns []CurrencyPattern   `json:"currency_patterns"`
}

// CurrencyPattern binds one ISO code to the lowercase regexes that signal it.
type CurrencyPattern struct {
	Code     string   `json:"code"`
	Patterns []string `json:"patterns"`
}

// DefaultRules returns the built-in tables, tuned for North American retail
// receipts.
func DefaultRules() Rules {
	return Rules{
		AmountPatterns: []string{
			`total[:\s]*\$?(\d+\.?\d*)`,
			`amount[:\s]*\$?(\d+\.?\d*)`,
			`\$(\d+\.\d{2})`,
			`(\d+\.\d{2})\s*$`,
			`(\d+\.\d{2})`,
		},
		DatePatterns: []string{
			`(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
			`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`,
			`(\w{3}\s+\d{1,2},?\s+\d{4})`,
			`(\d{1,2}\s+\w{3}\s+\d{4})`,
		},
		VendorStopWords: []string{
			"receipt", "invoice", "bill", "order", "transaction", "purchase",
			"sale", "store", "shop", "market", "restaurant", "cafe", "total",
			"amount",
		},
		CategoryKeywords: map[string][]string{
			"groceries": {
				"grocery", "supermarket", "market", "food", "walmart", "target",
				"kroger", "safeway", "whole foods", "trader joe", "costco", "sam's club",
			},
			"restaurants": {
				"restaurant", "cafe", "coffee", "pizza", "burger", "mcdonald",
				"subway", "starbucks", "dunkin", "kfc", "taco bell", "chipotle", "dining",
			},
			"utilities": {
				"electric", "gas", "water", "internet", "phone", "cable",
				"utility", "verizon", "at&t", "comcast", "spectrum", "pge", "edison",
			},
			"transportation": {
				"gas station", "fuel", "uber", "lyft", "taxi", "bus", "train",
				"airline", "parking", "toll", "shell", "chevron", "exxon", "bp",
			},
			"healthcare": {
				"pharmacy", "hospital", "clinic", "doctor", "medical", "cvs",
				"walgreens", "rite aid", "health", "dental", "vision",
			},
			"entertainment": {
				"movie", "theater", "netflix", "spotify", "game", "entertainment",
				"concert", "show", "amusement", "zoo", "museum",
			},
			"shopping": {
				"amazon", "ebay", "store", "mall", "clothing", "electronics",
				"best buy", "home depot", "lowes", "macy's", "nordstrom",
			},
			"services": {
				"service", "repair", "maintenance", "cleaning", "salon", "barber",
				"dry clean", "laundry", "professional",
			},
			"education": {
				"school", "university", "college", "education", "tuition",
				"books", "supplies", "course", "training",
			},
			"travel": {
				"hotel", "motel", "airbnb", "flight", "rental", "travel",
				"vacation", "booking", "expedia", "trip",
			},
		},
		CurrencyPatterns: []CurrencyPattern{
			{Code: "USD", Patterns: []string{`\$`, `usd`, `us\$`, `dollar`}},
			{Code: "EUR", Patterns: []string{`€`, `eur`, `euro`}},
			{Code: "GBP", Patterns: []string{`£`, `gbp`, `pound`}},
			{Code: "CAD", Patterns: []string{`cad`, `c\$`, `canadian`}},
			{Code: "AUD", Patterns: []string{`aud`, `a\$`, `australian`}},
			{Code: "JPY", Patterns: []string{`¥`, `jpy`, `yen`}},
			{Code: "CHF", Patterns: []string{`chf`, `swiss`}},
			{Code: "CNY", Patterns: []string{`cny`, `yuan`, `rmb`}},
		},
	}
}

// LoadRules reads a JSON overrides file and merges it over the defaults.
// An empty path returns the defaults unchanged. Every supplied section
// replaces its default wholesale; omitted sections keep the default tables.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, common.NewAppError("RULES_READ",
			fmt.Sprintf("could not read rules file %q", path), err)
	}
	if err := validateRulesJSON(data); err != nil {
		return Rules{}, common.NewAppError("RULES_INVALID",
			fmt.Sprintf("rules file %q rejected", path), err)
	}

	var overrides Rules
	if err := json.Unmarshal(data, &overrides); err != nil {
		return Rules{}, common.NewAppError("RULES_INVALID",
			fmt.Sprintf("rules file %q is not valid JSON", path), err)
	}

	if len(overrides.AmountPatterns) > 0 {
		rules.AmountPatterns = overrides.AmountPatterns
	}
	if len(overrides.DatePatterns) > 0 {
		rules.DatePatterns = overrides.DatePatterns
	}
	if len(overrides.VendorStopWords) > 0 {
		rules.VendorStopWords = overrides.VendorStopWords
	}
	if len(overrides.CategoryKeywords) > 0 {
		rules.CategoryKeywords = overrides.CategoryKeywords
	}
	if len(overrides.CurrencyPatterns) > 0 {
		rules.CurrencyPatterns = overrides.CurrencyPatterns
	}

	if err := checkPatterns(rules); err != nil {
		return Rules{}, common.NewAppError("RULES_INVALID",
			fmt.Sprintf("rules file %q rejected", path), err)
	}
	return rules, nil
}

// checkPatterns compiles every regex in the tables so a bad override fails
// at load time, not mid-extraction.
func checkPatterns(r Rules) error {
	for _, p := range r.AmountPatterns {
		if _, err := regexp.Compile("(?im)" + p); err != nil {
			return fmt.Errorf("amount pattern %q: %w", p, err)
		}
	}
	for _, p := range r.DatePatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("date pattern %q: %w", p, err)
		}
	}
	for _, cp := range r.CurrencyPatterns {
		for _, p := range cp.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("currency pattern %q: %w", p, err)
			}
		}
	}
	return nil
}
