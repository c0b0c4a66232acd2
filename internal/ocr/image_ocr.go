package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/heic"
	"github.com/receiptscan/receiptscan/internal/common"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func (e *Extractor) extractImage(ctx context.Context, data []byte) (Result, error) {
	img, err := decodeImage(data)
	if err != nil {
		return Result{Method: "image-ocr"},
			common.NewAppError("IMAGE_DECODE", "could not decode image", err)
	}

	text, conf, warns, err := e.ocrImage(ctx, img)
	if err != nil {
		return Result{Method: "image-ocr", Warnings: warns}, err
	}
	return Result{
		Text:       text,
		Pages:      1,
		Method:     "image-ocr",
		Language:   e.cfg.Language,
		Warnings:   warns,
		Confidence: conf,
	}, nil
}

// ocrImage normalizes one image and recognizes it. The TSV call supplies both
// text and word confidences; if it fails, a plain call supplies text at the
// fallback confidence. When tesseract produces nothing at all the result is
// empty text with zero confidence, not an error, so a document with some
// readable pages still goes through.
func (e *Extractor) ocrImage(ctx context.Context, src image.Image) (string, float64, []string, error) {
	g := e.norm.Normalize(src)

	tmpDir, err := os.MkdirTemp("", "rs-ocr-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", tmpDir, "error", err)
		}
	}()

	path := filepath.Join(tmpDir, "page.png")
	if err := writePNG(path, g); err != nil {
		return "", 0, nil, err
	}

	var warns []string
	out, errb, err := e.runTesseract(ctx, path, true)
	if err == nil {
		if words := parseTSVWords(string(out)); len(words) > 0 {
			return CleanText(assembleText(words)), meanWordConfidence(words), warns, nil
		}
	} else {
		warns = append(warns, "tesseract tsv: "+truncate(string(errb), 512))
	}

	out, errb, err = e.runTesseract(ctx, path, false)
	if err != nil {
		warns = append(warns, "tesseract: "+truncate(string(errb), 512))
		return "", 0, warns, nil
	}
	if text := CleanText(string(out)); text != "" {
		warns = append(warns, "word confidences unavailable, using fallback confidence")
		return text, e.cfg.FallbackConfidence, warns, nil
	}
	return "", 0, warns, nil
}

// runTesseract invokes tesseract on an image file, reading from stdout.
// tesseract <file> stdout -l <lang> --psm N --oem N [options] [tsv]
func (e *Extractor) runTesseract(ctx context.Context, path string, tsv bool) ([]byte, []byte, error) {
	args := []string{
		path, "stdout",
		"-l", e.cfg.Language,
		"--psm", fmt.Sprintf("%d", e.cfg.PSM),
		"--oem", fmt.Sprintf("%d", e.cfg.OEM),
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if e.cfg.Whitelist != "" {
		args = append(args, "-c", "tessedit_char_whitelist="+e.cfg.Whitelist)
	}
	if tsv {
		args = append(args, "tsv")
	}
	return e.runner.Run(ctx, e.cfg.Tesseract, args...)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// decodeImage handles the formats receipts arrive in. HEIC needs its own
// decoder; everything else goes through the registered stdlib and x/image
// decoders.
func decodeImage(data []byte) (image.Image, error) {
	if isHEIC(data) {
		return heic.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// isHEIC sniffs the ISO-BMFF ftyp box for HEIF family brands.
var heicBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "heim": true,
	"heis": true, "hevm": true, "hevs": true, "mif1": true, "msf1": true,
}

func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	return heicBrands[string(data[8:12])]
}
