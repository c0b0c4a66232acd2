package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/receiptscan/receiptscan/internal/common"
	"github.com/receiptscan/receiptscan/internal/entity"
	"github.com/receiptscan/receiptscan/internal/fields"
	"github.com/receiptscan/receiptscan/internal/ocr"
)

type fakeText struct {
	res ocr.Result
	err error
}

func (f *fakeText) Extract(_ context.Context, _ *entity.RawDocument) (ocr.Result, error) {
	return f.res, f.err
}

type fakeFields struct {
	res fields.Result
}

func (f *fakeFields) Extract(_ string) fields.Result {
	return f.res
}

func realFields(t *testing.T) *fields.Extractor {
	t.Helper()
	clock := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	e, err := fields.NewExtractor(fields.DefaultRules(), nil, fields.WithClock(clock))
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func mustDoc(t *testing.T, filename string, data []byte) *entity.RawDocument {
	t.Helper()
	doc, err := entity.NewRawDocument(filename, data)
	if err != nil {
		t.Fatalf("NewRawDocument: %v", err)
	}
	return doc
}

func TestProcessSuccess(t *testing.T) {
	text := "WALMART SUPERCENTER\n01/15/2024\nTOTAL: $23.47"
	p := NewProcessor(&fakeText{res: ocr.Result{
		Text:       text,
		Pages:      1,
		Method:     "image-ocr",
		Confidence: 0.9,
	}}, realFields(t), nil)

	res := p.Process(context.Background(), mustDoc(t, "receipt.png", []byte("img")))
	if !res.Success {
		t.Fatalf("expected success, got failure: %s", res.FailureReason)
	}
	if res.Fields == nil || res.Fields.Vendor != "Walmart Supercenter" {
		t.Errorf("fields = %+v, want Walmart Supercenter", res.Fields)
	}
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", res.Confidence)
	}
	if res.RawText != text {
		t.Errorf("raw text not carried through")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	p := NewProcessor(&fakeText{err: common.NewAppError("UNSUPPORTED_FORMAT",
		"no extractor for format", common.ErrUnsupportedFormat)}, realFields(t), nil)

	res := p.Process(context.Background(), mustDoc(t, "receipt.xyz", []byte("data")))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailureReason != `unsupported file format: "xyz"` {
		t.Errorf("reason = %q", res.FailureReason)
	}
	if res.Fields != nil {
		t.Errorf("failure must not carry fields")
	}
}

func TestProcessEmptyText(t *testing.T) {
	p := NewProcessor(&fakeText{res: ocr.Result{Text: "  \n\t ", Method: "image-ocr"}}, realFields(t), nil)

	res := p.Process(context.Background(), mustDoc(t, "blank.png", []byte("img")))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailureReason != "no text extracted" {
		t.Errorf("reason = %q, want %q", res.FailureReason, "no text extracted")
	}
}

func TestProcessExtractionError(t *testing.T) {
	p := NewProcessor(&fakeText{err: errors.New("engine exploded")}, realFields(t), nil)

	res := p.Process(context.Background(), mustDoc(t, "receipt.png", []byte("img")))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.FailureReason != "engine exploded" {
		t.Errorf("reason = %q", res.FailureReason)
	}
}

func TestProcessAssemblesWarnings(t *testing.T) {
	ft := &fakeText{res: ocr.Result{
		Text:       "some text",
		Method:     "image-ocr",
		Confidence: 0.3,
		Warnings:   []string{"engine warning"},
	}}
	ff := &fakeFields{res: fields.Result{
		Fields: entity.ExtractedFields{
			Vendor: fields.UnknownVendor,
			Amount: fields.DefaultAmount,
			TxDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		VendorDefaulted: true,
		AmountDefaulted: true,
		DateDefaulted:   true,
	}}
	p := NewProcessor(ft, ff, nil)

	res := p.Process(context.Background(), mustDoc(t, "receipt.png", []byte("img")))
	if !res.Success {
		t.Fatalf("warnings must not fail the run: %s", res.FailureReason)
	}
	want := []string{
		"engine warning",
		"low OCR confidence: 0.30",
		"vendor could not be identified",
		"no valid amount found, using default",
		"transaction date defaulted to today",
	}
	if !reflect.DeepEqual(res.Warnings, want) {
		t.Errorf("warnings = %v, want %v", res.Warnings, want)
	}
}

func TestProcessMinConfidenceOption(t *testing.T) {
	ft := &fakeText{res: ocr.Result{Text: "STARBUCKS COFFEE\nTOTAL $4.50", Confidence: 0.6, Method: "image-ocr"}}
	p := NewProcessor(ft, realFields(t), nil, WithMinConfidence(0.8))

	res := p.Process(context.Background(), mustDoc(t, "receipt.png", []byte("img")))
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.FailureReason)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.HasPrefix(w, "low OCR confidence") {
			found = true
		}
	}
	if !found {
		t.Errorf("want low-confidence warning at threshold 0.8, got %v", res.Warnings)
	}
}

func TestProcessPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.txt")
	body := "STARBUCKS COFFEE\n01/15/2024\nTOTAL $4.50"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	extractor := ocr.NewExtractor(ocr.Config{}, nil, nil)
	p := NewProcessor(extractor, realFields(t), nil)

	res := p.ProcessPath(context.Background(), path)
	if !res.Success {
		t.Fatalf("expected success, got: %s", res.FailureReason)
	}
	if res.Fields.Vendor != "Starbucks Coffee" {
		t.Errorf("vendor = %q", res.Fields.Vendor)
	}
	if res.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 for plain text", res.Confidence)
	}

	missing := p.ProcessPath(context.Background(), filepath.Join(dir, "nope.txt"))
	if missing.Success {
		t.Fatal("expected failure for missing file")
	}
	if !strings.HasPrefix(missing.FailureReason, "read nope.txt") {
		t.Errorf("reason = %q", missing.FailureReason)
	}
}
