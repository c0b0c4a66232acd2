package imgproc

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// toGray flattens any image into a single-channel buffer anchored at (0,0).
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// medianFilter suppresses salt-and-pepper noise. radius 1 means a 3x3 window.
func medianFilter(g *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return g
	}
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return g
	}
	out := image.NewGray(g.Bounds())
	side := 2*radius + 1
	win := make([]uint8, 0, side*side)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			win = win[:0]
			for dy := -radius; dy <= radius; dy++ {
				yy := clamp(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					xx := clamp(x+dx, 0, w-1)
					win = append(win, g.GrayAt(xx, yy).Y)
				}
			}
			out.SetGray(x, y, color.Gray{Y: medianOf(win)})
		}
	}
	return out
}

func medianOf(win []uint8) uint8 {
	// insertion sort; windows are tiny
	for i := 1; i < len(win); i++ {
		v := win[i]
		j := i - 1
		for j >= 0 && win[j] > v {
			win[j+1] = win[j]
			j--
		}
		win[j+1] = v
	}
	return win[len(win)/2]
}

// equalizeTiles runs clip-limited histogram equalization per tile and blends
// neighboring tile mappings bilinearly, which evens out uneven lighting
// without amplifying noise the way a global equalization would.
func equalizeTiles(g *image.Gray, grid int, clipLimit float64) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if grid <= 1 || w < grid || h < grid {
		return g
	}
	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid

	luts := make([][256]uint8, grid*grid)
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			x0, x1 := tx*tileW, min((tx+1)*tileW, w)
			y0, y1 := ty*tileH, min((ty+1)*tileH, h)
			luts[ty*grid+tx] = tileLUT(g, x0, y0, x1, y1, clipLimit)
		}
	}

	out := image.NewGray(g.Bounds())
	for y := 0; y < h; y++ {
		gy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(math.Floor(gy))
		fy := gy - float64(ty0)
		ty1 := clamp(ty0+1, 0, grid-1)
		ty0 = clamp(ty0, 0, grid-1)
		for x := 0; x < w; x++ {
			gx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(math.Floor(gx))
			fx := gx - float64(tx0)
			tx1 := clamp(tx0+1, 0, grid-1)
			tx0 = clamp(tx0, 0, grid-1)

			v := g.GrayAt(x, y).Y
			v00 := float64(luts[ty0*grid+tx0][v])
			v01 := float64(luts[ty0*grid+tx1][v])
			v10 := float64(luts[ty1*grid+tx0][v])
			v11 := float64(luts[ty1*grid+tx1][v])
			top := v00 + (v01-v00)*fx
			bot := v10 + (v11-v10)*fx
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(top + (bot-top)*fy))})
		}
	}
	return out
}

func tileLUT(g *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	var hist [256]int
	n := (x1 - x0) * (y1 - y0)
	if n == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[g.GrayAt(x, y).Y]++
		}
	}

	// clip and redistribute the excess uniformly
	clip := max(int(clipLimit*float64(n)/256.0), 1)
	excess := 0
	for i, c := range hist {
		if c > clip {
			excess += c - clip
			hist[i] = clip
		}
	}
	bonus, rem := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
		if i < rem {
			hist[i]++
		}
	}

	cum := 0
	cdfMin := -1
	var cdf [256]int
	for i, c := range hist {
		cum += c
		cdf[i] = cum
		if cdfMin < 0 && c > 0 {
			cdfMin = cdf[i]
		}
	}
	if cdfMin < 0 || n == cdfMin {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}
	for i := range lut {
		lut[i] = uint8(math.Round(255 * float64(cdf[i]-cdfMin) / float64(n-cdfMin)))
	}
	return lut
}

// adaptiveThreshold binarizes against the local window mean, computed with an
// integral image. A pixel must sit more than c below its neighborhood mean to
// count as ink, which keeps unevenly lit paper white.
func adaptiveThreshold(g *image.Gray, window, c int) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 || window < 3 {
		return g
	}
	r := window / 2

	integral := make([]uint64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(g.GrayAt(x, y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	out := image.NewGray(g.Bounds())
	for y := 0; y < h; y++ {
		y0, y1 := max(y-r, 0), min(y+r, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-r, 0), min(x+r, w-1)
			sum := integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
			area := (x1 - x0 + 1) * (y1 - y0 + 1)
			mean := int(sum) / area
			if int(g.GrayAt(x, y).Y) > mean-c {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// closeStrokes performs a morphological closing of the dark strokes:
// dilating ink (grayscale min) then eroding it back (grayscale max), which
// reconnects characters broken apart by thresholding.
func closeStrokes(g *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return g
	}
	return rankFilter(rankFilter(g, radius, true), radius, false)
}

// rankFilter is a grayscale min (dark=true) or max filter over a square window.
func rankFilter(g *image.Gray, radius int, dark bool) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w == 0 || h == 0 {
		return g
	}
	out := image.NewGray(g.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var best uint8
			if dark {
				best = 255
			}
			for dy := -radius; dy <= radius; dy++ {
				yy := clamp(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					xx := clamp(x+dx, 0, w-1)
					v := g.GrayAt(xx, yy).Y
					if dark && v < best {
						best = v
					} else if !dark && v > best {
						best = v
					}
				}
			}
			out.SetGray(x, y, color.Gray{Y: best})
		}
	}
	return out
}

// threshold128 snaps a near-binary buffer back to pure black and white.
// Rotation and resampling smear binarized edges into grays; this restores
// the buffer invariant.
func threshold128(g *image.Gray) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := image.NewGray(g.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.GrayAt(x, y).Y > 127 {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bilinearSample reads a sub-pixel location, returning white outside the frame.
func bilinearSample(g *image.Gray, x, y float64) uint8 {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return 255
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	v00 := float64(g.GrayAt(x0, y0).Y)
	v01 := float64(g.GrayAt(x1, y0).Y)
	v10 := float64(g.GrayAt(x0, y1).Y)
	v11 := float64(g.GrayAt(x1, y1).Y)
	top := v00 + (v01-v00)*fx
	bot := v10 + (v11-v10)*fx
	return uint8(math.Round(top + (bot-top)*fy))
}
