// Package analytics searches, sorts and summarizes receipt collections in
// memory. Collections are small enough (thousands of records) that linear
// scans beat maintaining secondary structures.
package analytics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
)

const (
	// FuzzyThreshold is the minimum levenshtein similarity for a fuzzy
	// vendor match.
	FuzzyThreshold = 0.8
	// AnomalyStdDevs is how many standard deviations above the mean an
	// amount must sit to be flagged.
	AnomalyStdDevs = 2.0
)

// Filter narrows an in-memory receipt search. Pointer bounds distinguish
// "unset" from zero values.
type Filter struct {
	VendorQuery   string
	Fuzzy         bool
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountMin     *float64
	AmountMax     *float64
	Category      string
	Currency      string
	MinConfidence float64
}

// Engine evaluates searches and reports over receipt slices.
type Engine struct {
	fuzzyThreshold float64
	anomalyStdDevs float64
	now            func() time.Time
	logger         *slog.Logger
}

// Option overrides an Engine knob.
type Option func(*Engine)

// WithClock fixes the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		fuzzyThreshold: FuzzyThreshold,
		anomalyStdDevs: AnomalyStdDevs,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the receipts matching every set filter, in input order.
func (e *Engine) Search(receipts []*entity.Receipt, f Filter) []*entity.Receipt {
	query := strings.ToLower(f.VendorQuery)
	params := levenshtein.NewParams()

	out := make([]*entity.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if e.matches(r, f, query, params) {
			out = append(out, r)
		}
	}
	e.logger.Debug("search complete", "input", len(receipts), "matched", len(out))
	return out
}

func (e *Engine) matches(r *entity.Receipt, f Filter, query string, params *levenshtein.Params) bool {
	if query != "" {
		vendor := strings.ToLower(r.Vendor)
		ok := strings.Contains(vendor, query)
		if !ok && f.Fuzzy {
			ok = levenshtein.Similarity(vendor, query, params) >= e.fuzzyThreshold
		}
		if !ok {
			return false
		}
	}
	if f.DateFrom != nil && r.TxDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.TxDate.After(*f.DateTo) {
		return false
	}
	if f.AmountMin != nil && r.Amount < *f.AmountMin {
		return false
	}
	if f.AmountMax != nil && r.Amount > *f.AmountMax {
		return false
	}
	if f.Category != "" && r.CategoryName != f.Category {
		return false
	}
	if f.Currency != "" && r.CurrencyCode != f.Currency {
		return false
	}
	if f.MinConfidence > 0 && r.Confidence < f.MinConfidence {
		return false
	}
	return true
}

var sortKeys = map[string]func(a, b *entity.Receipt) bool{
	"date":       func(a, b *entity.Receipt) bool { return a.TxDate.Before(b.TxDate) },
	"amount":     func(a, b *entity.Receipt) bool { return a.Amount < b.Amount },
	"vendor":     func(a, b *entity.Receipt) bool { return strings.ToLower(a.Vendor) < strings.ToLower(b.Vendor) },
	"category":   func(a, b *entity.Receipt) bool { return a.CategoryName < b.CategoryName },
	"confidence": func(a, b *entity.Receipt) bool { return a.Confidence < b.Confidence },
	"currency":   func(a, b *entity.Receipt) bool { return a.CurrencyCode < b.CurrencyCode },
}

// SortFields lists the accepted Sort field names.
func SortFields() []string {
	fields := make([]string, 0, len(sortKeys))
	for k := range sortKeys {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Sort returns a sorted copy of receipts; the input slice is not touched.
// Unknown fields are rejected.
func (e *Engine) Sort(receipts []*entity.Receipt, field string, ascending bool) ([]*entity.Receipt, error) {
	less, ok := sortKeys[field]
	if !ok {
		return nil, common.NewAppError("INVALID_SORT",
			fmt.Sprintf("invalid sort field %q, accepted: %s", field, strings.Join(SortFields(), ", ")),
			common.ErrInvalidInput)
	}
	out := make([]*entity.Receipt, len(receipts))
	copy(out, receipts)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out, nil
}
