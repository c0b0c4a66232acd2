// Package pipeline chains text extraction and field extraction into one
// ProcessingResult per document. Recoverable input problems (unsupported
// format, unreadable file, no recognizable text) become Failure results;
// the pipeline never panics past its boundary and only returns errors for
// programmer mistakes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
	"github.com/receiptscan/receiptscan/internal/fields"
	"github.com/receiptscan/receiptscan/internal/ocr"
)

// DefaultMinConfidence is the aggregate confidence below which a success
// result carries a low-confidence warning.
const DefaultMinConfidence = 0.6

// TextExtractor is stage 1: document bytes to recognized text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *entity.RawDocument) (ocr.Result, error)
}

// FieldExtractor is stage 2: recognized text to structured fields.
type FieldExtractor interface {
	Extract(text string) fields.Result
}

// Processor coordinates the two stages and assembles the final result.
type Processor struct {
	text          TextExtractor
	fields        FieldExtractor
	minConfidence float64
	logger        *slog.Logger
}

// Option overrides a Processor knob.
type Option func(*Processor)

// WithMinConfidence sets the warning threshold for aggregate confidence.
func WithMinConfidence(v float64) Option {
	return func(p *Processor) { p.minConfidence = v }
}

func NewProcessor(text TextExtractor, fieldExtractor FieldExtractor, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		text:          text,
		fields:        fieldExtractor,
		minConfidence: DefaultMinConfidence,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline on one document. It always returns a
// result; warnings are advisory and never turn a success into a failure.
func (p *Processor) Process(ctx context.Context, doc *entity.RawDocument) *entity.ProcessingResult {
	start := time.Now()
	logger := p.logger.With("filename", doc.Filename, "format", doc.Format)
	if jobID := common.JobIDFromContext(ctx); jobID != "" {
		logger = logger.With("job_id", jobID)
	}

	ocrRes, err := p.text.Extract(ctx, doc)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, common.ErrUnsupportedFormat) {
			reason = fmt.Sprintf("unsupported file format: %q", doc.Ext())
		}
		logger.Error("text extraction failed", "error", err)
		return entity.FailureResult(reason, time.Since(start))
	}
	if strings.TrimSpace(ocrRes.Text) == "" {
		logger.Warn("no text extracted", "method", ocrRes.Method, "pages", ocrRes.Pages)
		return entity.FailureResult("no text extracted", time.Since(start))
	}

	fieldRes := p.fields.Extract(ocrRes.Text)
	warnings := p.assembleWarnings(ocrRes, fieldRes)

	logger.Info("document processed",
		"method", ocrRes.Method,
		"pages", ocrRes.Pages,
		"confidence", ocrRes.Confidence,
		"vendor", fieldRes.Fields.Vendor,
		"amount", fieldRes.Fields.Amount,
		"warnings", len(warnings),
		"duration", time.Since(start),
	)
	return entity.SuccessResult(&fieldRes.Fields, ocrRes.Text, ocrRes.Confidence, warnings, time.Since(start))
}

// ProcessPath reads a file from disk and processes it. Read and validation
// problems become Failure results like any other input problem.
func (p *Processor) ProcessPath(ctx context.Context, path string) *entity.ProcessingResult {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		p.logger.Error("could not read document", "path", path, "error", err)
		return entity.FailureResult(fmt.Sprintf("read %s: %v", filepath.Base(path), err), time.Since(start))
	}
	doc, err := entity.NewRawDocument(filepath.Base(path), data)
	if err != nil {
		return entity.FailureResult(err.Error(), time.Since(start))
	}
	return p.Process(ctx, doc)
}

func (p *Processor) assembleWarnings(ocrRes ocr.Result, fieldRes fields.Result) []string {
	var out []string
	out = append(out, ocrRes.Warnings...)
	if ocrRes.Confidence < p.minConfidence {
		out = append(out, fmt.Sprintf("low OCR confidence: %.2f", ocrRes.Confidence))
	}
	if fieldRes.VendorDefaulted {
		out = append(out, "vendor could not be identified")
	}
	if fieldRes.AmountDefaulted {
		out = append(out, "no valid amount found, using default")
	}
	if fieldRes.DateDefaulted {
		out = append(out, "transaction date defaulted to today")
	}
	return out
}
