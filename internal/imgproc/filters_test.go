package imgproc

import (
	"image"
	"image/color"
	"testing"
)

func newGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func fillRect(g *image.Gray, x0, y0, x1, y1 int, v uint8) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func assertBinary(t *testing.T, g *image.Gray) {
	t.Helper()
	for i, v := range g.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d = %d, want 0 or 255", i, v)
		}
	}
}

func TestToGrayAnchorsAtOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 30, 50))
	g := toGray(src)
	if got := g.Bounds(); got != image.Rect(0, 0, 20, 30) {
		t.Errorf("bounds = %v, want (0,0)-(20,30)", got)
	}
}

func TestMedianFilterRemovesSaltNoise(t *testing.T) {
	g := newGray(11, 11, 0)
	g.SetGray(5, 5, color.Gray{Y: 255})

	out := medianFilter(g, 1)

	if got := out.GrayAt(5, 5).Y; got != 0 {
		t.Errorf("salt pixel survived: got %d, want 0", got)
	}
	if out.Bounds() != g.Bounds() {
		t.Errorf("bounds changed: %v -> %v", g.Bounds(), out.Bounds())
	}
}

func TestMedianFilterKeepsEdges(t *testing.T) {
	// a 5-wide dark bar must survive a radius-1 median
	g := newGray(20, 20, 255)
	fillRect(g, 8, 0, 12, 19, 0)

	out := medianFilter(g, 1)
	if got := out.GrayAt(10, 10).Y; got != 0 {
		t.Errorf("bar interior = %d, want 0", got)
	}
	if got := out.GrayAt(2, 10).Y; got != 255 {
		t.Errorf("background = %d, want 255", got)
	}
}

func TestMedianOf(t *testing.T) {
	tests := []struct {
		name string
		win  []uint8
		want uint8
	}{
		{"odd window", []uint8{9, 1, 5}, 5},
		{"all equal", []uint8{7, 7, 7, 7, 7}, 7},
		{"even window upper median", []uint8{1, 2, 3, 4}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := medianOf(tt.win); got != tt.want {
				t.Errorf("medianOf = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEqualizeTilesStretchesContrast(t *testing.T) {
	// alternating 100/150 columns give every tile an identical histogram,
	// so the blended mapping is exact and stretches to the full range
	g := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(100)
			if x%2 == 1 {
				v = 150
			}
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}

	out := equalizeTiles(g, 8, 256)

	if got := out.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("low level mapped to %d, want 0", got)
	}
	if got := out.GrayAt(1, 0).Y; got != 255 {
		t.Errorf("high level mapped to %d, want 255", got)
	}
}

func TestEqualizeTilesUniformInput(t *testing.T) {
	g := newGray(64, 64, 255)
	out := equalizeTiles(g, 8, 2.0)
	for i, v := range out.Pix {
		if v != 255 {
			t.Fatalf("pixel %d = %d, want 255", i, v)
		}
	}
}

func TestEqualizeTilesTinyImagePassthrough(t *testing.T) {
	g := newGray(4, 4, 90)
	if out := equalizeTiles(g, 8, 2.0); out != g {
		t.Error("expected passthrough for image smaller than the grid")
	}
}

func TestAdaptiveThresholdMarksDarkBlob(t *testing.T) {
	g := newGray(60, 60, 200)
	fillRect(g, 29, 29, 31, 31, 40)

	out := adaptiveThreshold(g, 15, 10)

	if got := out.GrayAt(30, 30).Y; got != 0 {
		t.Errorf("blob center = %d, want ink (0)", got)
	}
	if got := out.GrayAt(2, 2).Y; got != 255 {
		t.Errorf("far background = %d, want 255", got)
	}
	assertBinary(t, out)
}

func TestAdaptiveThresholdErasesUniformRegions(t *testing.T) {
	// flat regions sit at their own local mean, so nothing counts as ink
	for _, level := range []uint8{0, 128, 255} {
		g := newGray(40, 40, level)
		out := adaptiveThreshold(g, 15, 10)
		for i, v := range out.Pix {
			if v != 255 {
				t.Fatalf("level %d: pixel %d = %d, want 255", level, i, v)
			}
		}
	}
}

func TestCloseStrokesBridgesGaps(t *testing.T) {
	// one-pixel break in a dark stroke closes at radius 1
	g := newGray(21, 7, 255)
	fillRect(g, 2, 3, 9, 3, 0)
	fillRect(g, 11, 3, 18, 3, 0)

	out := closeStrokes(g, 1)

	if got := out.GrayAt(10, 3).Y; got != 0 {
		t.Errorf("gap pixel = %d, want closed (0)", got)
	}
}

func TestThreshold128(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 1))
	for i, v := range []uint8{0, 127, 128, 255} {
		g.SetGray(i, 0, color.Gray{Y: v})
	}

	out := threshold128(g)

	want := []uint8{0, 0, 255, 255}
	for i, w := range want {
		if got := out.GrayAt(i, 0).Y; got != w {
			t.Errorf("pixel %d: got %d, want %d", i, got, w)
		}
	}
}

func TestBilinearSample(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 2, 2))
	g.SetGray(0, 0, color.Gray{Y: 0})
	g.SetGray(1, 0, color.Gray{Y: 100})
	g.SetGray(0, 1, color.Gray{Y: 100})
	g.SetGray(1, 1, color.Gray{Y: 200})

	tests := []struct {
		name string
		x, y float64
		want uint8
	}{
		{"exact corner", 0, 0, 0},
		{"midpoint", 0.5, 0.5, 100},
		{"outside is white", -1, 0, 255},
		{"beyond frame is white", 5, 5, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bilinearSample(g, tt.x, tt.y); got != tt.want {
				t.Errorf("sample(%v,%v) = %d, want %d", tt.x, tt.y, got, tt.want)
			}
		})
	}
}
