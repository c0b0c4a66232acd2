package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/receiptscan/receiptscan/constants"
	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
	"github.com/receiptscan/receiptscan/internal/imgproc"
)

// DefaultWhitelist restricts recognition to the characters found on retail
// receipts. Glyphs outside this set are usually binarization noise.
const DefaultWhitelist = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,/$€£¥-: "

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Language    string // default "eng"
	TessdataDir string
	PSM         int    // 6 = uniform block of text, the receipt default
	OEM         int    // 3 = default engine selection
	Whitelist   string // tessedit_char_whitelist, default DefaultWhitelist

	DPI      int // rasterization DPI for scanned PDF pages, default 144
	MaxPages int // 0 = no limit

	// MinTextLayerChars is the minimum trimmed length of a PDF page's text
	// layer before the page is considered born-digital. Shorter layers fall
	// back to rasterized OCR.
	MinTextLayerChars int

	// FallbackConfidence is assigned when tesseract produced text but no
	// usable word confidences. Default 0.5.
	FallbackConfidence float64
}

// Result is the outcome of text extraction for one document.
type Result struct {
	Text       string
	Pages      int
	Method     string        // "text" | "pdf-text" | "pdf-ocr" | "image-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64       // 0..1
}

type Extractor struct {
	cfg    Config
	runner Runner
	norm   *imgproc.Normalizer
	logger *slog.Logger
}

// Option overrides a collaborator on the Extractor.
type Option func(*Extractor)

// WithRunner substitutes the external-command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, norm *imgproc.Normalizer, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.OEM <= 0 {
		cfg.OEM = 3
	}
	if cfg.Whitelist == "" {
		cfg.Whitelist = DefaultWhitelist
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 144
	}
	if cfg.MinTextLayerChars <= 0 {
		cfg.MinTextLayerChars = 50
	}
	if cfg.FallbackConfidence <= 0 {
		cfg.FallbackConfidence = 0.5
	}
	if norm == nil {
		norm = imgproc.NewNormalizer(imgproc.Config{}, logger)
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, norm: norm, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract picks a strategy based on the detected file format.
func (e *Extractor) Extract(ctx context.Context, doc *entity.RawDocument) (Result, error) {
	start := time.Now()
	e.logger.Debug("starting text extraction", "filename", doc.Filename, "format", doc.Format)

	var res Result
	var err error
	switch doc.Format {
	case constants.TXT:
		res = e.extractPlainText(doc.Data)
	case constants.PDF:
		res, err = e.extractPDF(ctx, doc.Data)
	case constants.IMAGE:
		res, err = e.extractImage(ctx, doc.Data)
	default:
		e.logger.Error("unsupported format", "filename", doc.Filename, "ext", doc.Ext())
		return Result{}, common.NewAppError("UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported file format: %q", doc.Ext()), common.ErrUnsupportedFormat)
	}
	res.Duration = time.Since(start)
	return res, err
}

// extractPlainText reads a text file directly. Valid UTF-8 passes through at
// full confidence; anything else is decoded byte-for-byte as Latin-1, which
// cannot fail, at slightly reduced confidence.
func (e *Extractor) extractPlainText(data []byte) Result {
	if utf8.Valid(data) {
		return Result{
			Text:       CleanText(string(data)),
			Pages:      1,
			Method:     "text",
			Confidence: 1.0,
		}
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return Result{
		Text:       CleanText(string(runes)),
		Pages:      1,
		Method:     "text",
		Confidence: 0.9,
		Warnings:   []string{"input is not valid UTF-8, decoded as Latin-1"},
	}
}
