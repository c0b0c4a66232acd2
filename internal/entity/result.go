package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/receiptscan/receiptscan/constants"
)

// ExtractedFields is the structured outcome of field extraction.
// Every field is populated; extractors that find nothing fall back to their
// documented sentinel and the pipeline records a warning.
type ExtractedFields struct {
	Vendor   string             `json:"vendor"`
	TxDate   time.Time          `json:"tx_date"`
	Amount   float64            `json:"amount"`
	Currency constants.Currency `json:"currency"`
	Category constants.Category `json:"category"`
}

// ProcessingResult is the tagged outcome of one pipeline run.
// Success carries the fields, raw text, aggregate confidence (0..1) and
// advisory warnings; Failure carries only the reason. Warnings never turn a
// Success into a Failure.
type ProcessingResult struct {
	Success       bool             `json:"success"`
	Fields        *ExtractedFields `json:"fields,omitempty"`
	RawText       string           `json:"raw_text,omitempty"`
	Confidence    float64          `json:"confidence"`
	Warnings      []string         `json:"warnings,omitempty"`
	Duration      time.Duration    `json:"duration"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

func SuccessResult(fields *ExtractedFields, rawText string, confidence float64, warnings []string, duration time.Duration) *ProcessingResult {
	return &ProcessingResult{
		Success:    true,
		Fields:     fields,
		RawText:    rawText,
		Confidence: confidence,
		Warnings:   warnings,
		Duration:   duration,
	}
}

func FailureResult(reason string, duration time.Duration) *ProcessingResult {
	return &ProcessingResult{
		Success:       false,
		FailureReason: reason,
		Duration:      duration,
	}
}

// ToReceipt builds an unsaved Receipt from a successful result.
// The repository assigns the ID and timestamps on save.
func (r *ProcessingResult) ToReceipt(sourceFile string) *Receipt {
	if !r.Success || r.Fields == nil {
		return nil
	}
	rec := &Receipt{
		ID:            uuid.Nil,
		Vendor:        r.Fields.Vendor,
		TxDate:        r.Fields.TxDate,
		Amount:        r.Fields.Amount,
		CurrencyCode:  string(r.Fields.Currency),
		CategoryName:  string(r.Fields.Category),
		SourceFile:    sourceFile,
		ExtractedText: r.RawText,
		Confidence:    r.Confidence,
	}
	rec.Normalize()
	return rec
}
