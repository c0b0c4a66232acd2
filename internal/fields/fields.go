package fields

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/receiptscan/receiptscan/constants"
	"github.com/receiptscan/receiptscan/internal/entity"
)

// UnknownVendor is the vendor sentinel when no usable header line exists.
const UnknownVendor = "Unknown Vendor"

// DefaultAmount is the amount sentinel when no monetary value matches.
const DefaultAmount = 0.01

// Plausibility window for a single receipt total.
const (
	minAmount = 0.01
	maxAmount = 10000
)

var (
	reVendorClean = regexp.MustCompile(`[^\p{L}\p{N}_\s&'-]`)
	reAddressLine = regexp.MustCompile(`^\d{1,5}\s+\p{L}`)
)

type currencyMatcher struct {
	code constants.Currency
	res  []*regexp.Regexp
}

type categoryMatcher struct {
	name     constants.Category
	keywords []string
}

// Result carries the extracted fields plus a flag for every value that fell
// back to its sentinel, so the caller can surface warnings.
type Result struct {
	Fields          entity.ExtractedFields
	VendorDefaulted bool
	AmountDefaulted bool
	DateDefaulted   bool
}

// Extractor applies compiled rule tables to recognized text. Safe for
// concurrent use.
type Extractor struct {
	amountRes  []*regexp.Regexp
	dateRes    []*regexp.Regexp
	stopWords  map[string]bool
	currencies []currencyMatcher
	categories []categoryMatcher
	now        func() time.Time
	logger     *slog.Logger
}

// Option overrides a collaborator on the Extractor.
type Option func(*Extractor)

// WithClock fixes the time source, mainly for tests. The clock anchors both
// the date plausibility window and the date sentinel.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func NewExtractor(rules Rules, logger *slog.Logger, opts ...Option) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		stopWords: make(map[string]bool, len(rules.VendorStopWords)),
		now:       time.Now,
		logger:    logger,
	}

	for _, p := range rules.AmountPatterns {
		re, err := regexp.Compile("(?im)" + p)
		if err != nil {
			return nil, fmt.Errorf("amount pattern %q: %w", p, err)
		}
		e.amountRes = append(e.amountRes, re)
	}
	for _, p := range rules.DatePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("date pattern %q: %w", p, err)
		}
		e.dateRes = append(e.dateRes, re)
	}
	for _, w := range rules.VendorStopWords {
		e.stopWords[strings.ToLower(w)] = true
	}
	for _, cp := range rules.CurrencyPatterns {
		m := currencyMatcher{code: constants.Currency(cp.Code)}
		for _, p := range cp.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("currency pattern %q: %w", p, err)
			}
			m.res = append(m.res, re)
		}
		e.currencies = append(e.currencies, m)
	}

	// classification order comes from the category enumeration, not the
	// keyword map, so score ties resolve deterministically
	for _, cat := range constants.AllCategories() {
		kws := rules.CategoryKeywords[string(cat)]
		if len(kws) == 0 {
			continue
		}
		lower := make([]string, len(kws))
		for i, k := range kws {
			lower[i] = strings.ToLower(k)
		}
		e.categories = append(e.categories, categoryMatcher{name: cat, keywords: lower})
	}

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Extract pulls the structured fields out of recognized text. It never
// fails: a field that cannot be found gets its documented sentinel and the
// matching Defaulted flag.
func (e *Extractor) Extract(text string) Result {
	vendor, vendorOK := e.extractVendor(text)
	amount, amountOK := e.extractAmount(text)
	txDate, dateOK := e.extractDate(text)

	res := Result{
		Fields: entity.ExtractedFields{
			Vendor:   vendor,
			TxDate:   txDate,
			Amount:   amount,
			Currency: e.detectCurrency(text),
			Category: e.classifyCategory(text, vendor),
		},
		VendorDefaulted: !vendorOK,
		AmountDefaulted: !amountOK,
		DateDefaulted:   !dateOK,
	}
	e.logger.Debug("fields extracted",
		"vendor", res.Fields.Vendor,
		"amount", res.Fields.Amount,
		"date", res.Fields.TxDate.Format("2006-01-02"),
		"currency", res.Fields.Currency,
		"category", res.Fields.Category)
	return res
}

// extractVendor scans the first five non-empty lines for one that still has
// substantial words after dropping punctuation, short tokens and generic
// receipt vocabulary. Lines shaped like dates, amounts or street addresses
// are skipped outright. The winner is title-cased; failing that, the raw
// first line; failing that, the sentinel.
func (e *Extractor) extractVendor(text string) (string, bool) {
	lines := nonEmptyLines(text)
	for _, line := range lines[:min(5, len(lines))] {
		if e.looksLikeData(line) {
			continue
		}
		cleaned := reVendorClean.ReplaceAllString(line, " ")
		var words []string
		for _, w := range strings.Fields(cleaned) {
			if utf8.RuneCountInString(w) > 2 && !e.stopWords[strings.ToLower(w)] {
				words = append(words, w)
			}
		}
		if len(words) == 0 {
			continue
		}
		vendor := strings.Join(words, " ")
		if len(vendor) > 3 {
			vendor = cases.Title(language.English).String(vendor)
			return truncateBytes(vendor, entity.MaxVendorLength), true
		}
	}
	if len(lines) > 0 {
		return truncateBytes(lines[0], entity.MaxVendorLength), true
	}
	return UnknownVendor, false
}

// looksLikeData reports whether a header line is a date, an amount or a
// street address rather than a candidate vendor name.
func (e *Extractor) looksLikeData(line string) bool {
	if reAddressLine.MatchString(line) {
		return true
	}
	for _, re := range e.dateRes {
		if re.MatchString(line) {
			return true
		}
	}
	for _, re := range e.amountRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// extractAmount collects every plausible monetary value all patterns find
// and keeps the largest, on the theory that the grand total dominates line
// items, subtotals and change.
func (e *Extractor) extractAmount(text string) (float64, bool) {
	cleaner := strings.NewReplacer(",", "", "$", "")
	var amounts []float64
	for _, re := range e.amountRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := m[0]
			if len(m) > 1 && m[1] != "" {
				raw = m[1]
			}
			v, err := strconv.ParseFloat(cleaner.Replace(raw), 64)
			if err != nil {
				continue
			}
			if v >= minAmount && v <= maxAmount {
				amounts = append(amounts, v)
			}
		}
	}
	if len(amounts) == 0 {
		return DefaultAmount, false
	}
	best := amounts[0]
	for _, v := range amounts[1:] {
		if v > best {
			best = v
		}
	}
	return best, true
}

// extractDate parses every date-shaped match and keeps the most recent one
// inside the plausibility window (not future, not older than the horizon).
// With no survivors the transaction date defaults to today.
func (e *Extractor) extractDate(text string) (time.Time, bool) {
	now := e.now()
	earliest := now.AddDate(-entity.DateHorizonYears, 0, 0)

	var candidates []time.Time
	for _, re := range e.dateRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := m[0]
			if len(m) > 1 && m[1] != "" {
				raw = m[1]
			}
			parsed, err := dateparse.ParseAny(raw)
			if err != nil {
				continue
			}
			if parsed.After(now) || parsed.Before(earliest) {
				continue
			}
			candidates = append(candidates, parsed)
		}
	}
	if len(candidates) == 0 {
		return now, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.After(best) {
			best = c
		}
	}
	return best, true
}

// detectCurrency returns the first currency whose pattern table matches the
// lowercased text, in enumeration order.
func (e *Extractor) detectCurrency(text string) constants.Currency {
	lower := strings.ToLower(text)
	for _, c := range e.currencies {
		for _, re := range c.res {
			if re.MatchString(lower) {
				return c.code
			}
		}
	}
	return constants.DefaultCurrency
}

// classifyCategory counts keyword hits per category over text plus vendor.
// Strictly-greater comparison means earlier categories win ties.
func (e *Extractor) classifyCategory(text, vendor string) constants.Category {
	combined := strings.ToLower(text + " " + vendor)
	best := constants.Other
	bestScore := 0
	for _, cat := range e.categories {
		score := 0
		for _, kw := range cat.keywords {
			if strings.Contains(combined, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = cat.name
		}
	}
	return best
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

// truncateBytes clips s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
