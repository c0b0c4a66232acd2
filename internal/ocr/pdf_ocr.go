package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/receiptscan/receiptscan/internal/common"
)

// extractPDF walks the document page by page. Pages with a usable embedded
// text layer are taken verbatim; thin or missing layers route the page
// through rasterization and OCR. Pages are joined with a form-feed marker so
// page boundaries stay visible downstream.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Result{}, common.NewAppError("PDF_OPEN", "could not open PDF", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := total
	var warns []string
	if e.cfg.MaxPages > 0 && pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
		warns = append(warns, fmt.Sprintf("processing first %d of %d pages", pages, total))
	}

	var parts []string
	var ocrConfs []float64
	ocrPages := 0
	for p := 0; p < pages; p++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		text, err := doc.Text(p)
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: text layer unreadable: %v", p+1, err))
			text = ""
		}
		if len(strings.TrimSpace(text)) >= e.cfg.MinTextLayerChars {
			parts = append(parts, CleanText(text))
			continue
		}

		img, err := doc.ImageDPI(p, float64(e.cfg.DPI))
		if err != nil {
			warns = append(warns, fmt.Sprintf("page %d: rasterization failed: %v", p+1, err))
			continue
		}
		ocrPages++
		ptext, pconf, pwarns, err := e.ocrImage(ctx, img)
		if err != nil {
			return Result{Warnings: warns}, err
		}
		warns = append(warns, pwarns...)
		if ptext == "" {
			warns = append(warns, fmt.Sprintf("page %d: no text recognized", p+1))
			continue
		}
		parts = append(parts, ptext)
		ocrConfs = append(ocrConfs, pconf)
	}

	// A fully born-digital document keeps full confidence. As soon as one
	// page went through OCR the document is only as trustworthy as its worst
	// recognized page.
	method := "pdf-text"
	conf := 1.0
	if ocrPages > 0 {
		method = "pdf-ocr"
		conf = 0
		if len(ocrConfs) > 0 {
			conf = ocrConfs[0]
			for _, c := range ocrConfs[1:] {
				if c < conf {
					conf = c
				}
			}
		}
	}

	return Result{
		Text:       strings.Join(parts, "\n\f\n"),
		Pages:      pages,
		Method:     method,
		Language:   e.cfg.Language,
		Warnings:   warns,
		Confidence: conf,
	}, nil
}
