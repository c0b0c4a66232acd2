package entity

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptscan/receiptscan/constants"
	"github.com/receiptscan/receiptscan/internal/common"
)

// MaxVendorLength bounds the stored vendor name.
const MaxVendorLength = 200

// DateHorizonYears bounds how far back a transaction date may lie.
const DateHorizonYears = 10

var reWhitespace = regexp.MustCompile(`\s+`)

// Receipt represents an extracted receipt record for transfer between layers.
type Receipt struct {
	ID            uuid.UUID `json:"id"`
	Vendor        string    `json:"vendor"`
	TxDate        time.Time `json:"tx_date"`
	Amount        float64   `json:"amount"`
	CurrencyCode  string    `json:"currency_code"`
	CategoryName  string    `json:"category_name"`
	SourceFile    string    `json:"source_file"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Normalize collapses vendor whitespace and quantizes money and confidence
// the way Validate expects them. Call before persisting.
func (r *Receipt) Normalize() {
	r.Vendor = reWhitespace.ReplaceAllString(strings.TrimSpace(r.Vendor), " ")
	r.Amount = QuantizeAmount(r.Amount)
	r.Confidence = math.Round(r.Confidence*1000) / 1000
}

// Validate enforces the record invariants. It does not mutate the receipt;
// run Normalize first for raw extraction output.
func (r *Receipt) Validate() error {
	if r.Vendor == "" {
		return common.NewAppError("INVALID_RECEIPT", "vendor must not be empty", common.ErrValidation)
	}
	if len(r.Vendor) > MaxVendorLength {
		return common.NewAppError("INVALID_RECEIPT",
			fmt.Sprintf("vendor exceeds %d characters", MaxVendorLength), common.ErrValidation)
	}
	if r.Amount <= 0 {
		return common.NewAppError("INVALID_RECEIPT", "amount must be positive", common.ErrValidation)
	}
	now := time.Now()
	if r.TxDate.After(now) {
		return common.NewAppError("INVALID_RECEIPT", "transaction date is in the future", common.ErrValidation)
	}
	if r.TxDate.Before(now.AddDate(-DateHorizonYears, 0, 0)) {
		return common.NewAppError("INVALID_RECEIPT",
			fmt.Sprintf("transaction date is older than %d years", DateHorizonYears), common.ErrValidation)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return common.NewAppError("INVALID_RECEIPT", "confidence must be in [0,1]", common.ErrValidation)
	}
	if err := common.CheckCurrencyCode(r.CurrencyCode); err != nil {
		return common.NewAppError("INVALID_RECEIPT", err.Error(), common.ErrValidation)
	}
	if _, ok := constants.Canonicalize(r.CategoryName); !ok {
		return common.NewAppError("INVALID_RECEIPT",
			fmt.Sprintf("unknown category %q", r.CategoryName), common.ErrValidation)
	}
	return nil
}

// QuantizeAmount rounds to two fractional digits, half away from zero.
func QuantizeAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
