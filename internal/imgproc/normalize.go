// Package imgproc prepares receipt photographs for OCR. The stages are
// ordered so each one works on the artifacts the previous stage removed:
// grayscale, upscale, denoise, local contrast, binarization, stroke closing,
// deskew and perspective correction.
package imgproc

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
)

// Config tunes the normalization stages. Zero values fall back to defaults
// that work for phone photos of thermal-paper receipts.
type Config struct {
	// MinSize is the minimum width and height in pixels. Smaller inputs are
	// upscaled before any filtering so small glyphs survive binarization.
	MinSize int

	// MedianRadius is the denoise window radius. Negative disables the
	// filter.
	MedianRadius int

	// TileGrid is the number of contrast-equalization tiles per axis.
	TileGrid int

	// ClipLimit caps the per-bin histogram mass during equalization,
	// expressed as a multiple of the uniform bin height.
	ClipLimit float64

	// ThresholdWin and ThresholdC parameterize adaptive binarization: a
	// pixel is ink when it is at least ThresholdC levels darker than the
	// mean of its ThresholdWin-sized neighborhood.
	ThresholdWin int
	ThresholdC   int

	// CloseRadius is the morphological closing radius for broken strokes.
	// Negative disables the pass.
	CloseRadius int

	// SkewThreshold is the minimum detected skew in degrees worth
	// correcting. Smaller angles are left alone.
	SkewThreshold float64

	// MinQuadAreaFrac is the fraction of the frame a detected document
	// quadrilateral must cover before perspective correction is applied.
	MinQuadAreaFrac float64
}

// DefaultConfig returns the tuning used when no overrides are supplied.
func DefaultConfig() Config {
	return Config{
		MinSize:         1000,
		MedianRadius:    1,
		TileGrid:        8,
		ClipLimit:       2.0,
		ThresholdWin:    15,
		ThresholdC:      10,
		CloseRadius:     1,
		SkewThreshold:   1.0,
		MinQuadAreaFrac: 0.25,
	}
}

// Normalizer runs the preparation stages. It holds no per-image state and is
// safe for concurrent use.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

// NewNormalizer fills unset config fields with defaults.
func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	def := DefaultConfig()
	if cfg.MinSize <= 0 {
		cfg.MinSize = def.MinSize
	}
	if cfg.MedianRadius == 0 {
		cfg.MedianRadius = def.MedianRadius
	}
	if cfg.CloseRadius == 0 {
		cfg.CloseRadius = def.CloseRadius
	}
	if cfg.TileGrid <= 0 {
		cfg.TileGrid = def.TileGrid
	}
	if cfg.ClipLimit <= 0 {
		cfg.ClipLimit = def.ClipLimit
	}
	if cfg.ThresholdWin <= 0 {
		cfg.ThresholdWin = def.ThresholdWin
	}
	if cfg.ThresholdC <= 0 {
		cfg.ThresholdC = def.ThresholdC
	}
	if cfg.SkewThreshold <= 0 {
		cfg.SkewThreshold = def.SkewThreshold
	}
	if cfg.MinQuadAreaFrac <= 0 {
		cfg.MinQuadAreaFrac = def.MinQuadAreaFrac
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize converts src into an OCR-ready binary image. Stages are best
// effort: if one panics on a degenerate input, the last successfully
// produced buffer is returned instead of failing the whole document.
func (n *Normalizer) Normalize(src image.Image) (out *image.Gray) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("normalization stage panicked, using last good buffer",
				"panic", fmt.Sprint(r))
		}
	}()

	g := toGray(src)
	out = g

	g = n.upscale(g)
	out = g

	if n.cfg.MedianRadius > 0 {
		g = medianFilter(g, n.cfg.MedianRadius)
		out = g
	}

	g = equalizeTiles(g, n.cfg.TileGrid, n.cfg.ClipLimit)
	out = g

	g = adaptiveThreshold(g, n.cfg.ThresholdWin, n.cfg.ThresholdC)
	out = g

	if n.cfg.CloseRadius > 0 {
		g = closeStrokes(g, n.cfg.CloseRadius)
		out = g
	}

	g = n.deskew(g)
	out = g

	g = n.rectify(g)
	out = g

	return out
}

// upscale enlarges g with Lanczos resampling until both dimensions reach
// MinSize, preserving aspect ratio. Larger images pass through unchanged.
func (n *Normalizer) upscale(g *image.Gray) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w <= 0 || h <= 0 || (w >= n.cfg.MinSize && h >= n.cfg.MinSize) {
		return g
	}
	scale := math.Max(float64(n.cfg.MinSize)/float64(w), float64(n.cfg.MinSize)/float64(h))
	nw := int(math.Ceil(float64(w) * scale))
	nh := int(math.Ceil(float64(h) * scale))
	n.logger.Debug("upscaling image", "from_w", w, "from_h", h, "to_w", nw, "to_h", nh)
	return toGray(imaging.Resize(g, nw, nh, imaging.Lanczos))
}
