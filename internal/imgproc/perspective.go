package imgproc

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
)

// fpoint is a sub-pixel coordinate.
type fpoint struct {
	X, Y float64
}

// quad holds four corners ordered top-left, top-right, bottom-right,
// bottom-left.
type quad [4]fpoint

const (
	minComponentPixels = 100
	maxComponentsTried = 5
	polyApproxEpsilon  = 0.02 // fraction of the hull perimeter
)

// rectify applies perspective correction when a clear document quadrilateral
// is found, then restores the minimum-size and binarization invariants.
// Anything short of a clean detection leaves the buffer untouched.
func (n *Normalizer) rectify(g *image.Gray) *image.Gray {
	q, ok := findDocumentQuad(g, n.cfg.MinQuadAreaFrac)
	if !ok {
		return g
	}
	warped, err := warpPerspective(g, q)
	if err != nil {
		n.logger.Debug("perspective warp failed, keeping buffer", "error", err)
		return g
	}
	n.logger.Debug("perspective corrected",
		"width", warped.Bounds().Dx(), "height", warped.Bounds().Dy())
	return threshold128(n.upscale(warped))
}

// findDocumentQuad searches the buffer's edge map for the largest contour
// that approximates to four points and covers at least minAreaFrac of the
// frame.
func findDocumentQuad(g *image.Gray, minAreaFrac float64) (quad, bool) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	if w < 4 || h < 4 {
		return quad{}, false
	}
	comps := edgeComponents(g, maxComponentsTried)
	frameArea := float64(w * h)

	for _, comp := range comps {
		hull := convexHull(comp)
		if len(hull) < 4 {
			continue
		}
		poly := approxPolygon(hull, polyApproxEpsilon*perimeter(hull))
		if len(poly) != 4 {
			continue
		}
		if polygonArea(poly) < minAreaFrac*frameArea {
			continue
		}
		return orderQuad(poly), true
	}
	return quad{}, false
}

// edgeComponents labels connected components of binary-transition pixels and
// returns the largest few, biggest first.
func edgeComponents(g *image.Gray, limit int) [][]image.Point {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	edge := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.GrayAt(x, y).Y
			if x+1 < w && g.GrayAt(x+1, y).Y != v {
				edge[y*w+x] = true
				continue
			}
			if y+1 < h && g.GrayAt(x, y+1).Y != v {
				edge[y*w+x] = true
			}
		}
	}

	seen := make([]bool, w*h)
	var comps [][]image.Point
	var queue []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if !edge[idx] || seen[idx] {
				continue
			}
			// flood fill with 8-connectivity
			seen[idx] = true
			queue = queue[:0]
			queue = append(queue, image.Pt(x, y))
			var comp []image.Point
			for len(queue) > 0 {
				p := queue[len(queue)-1]
				queue = queue[:len(queue)-1]
				comp = append(comp, p)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						nidx := ny*w + nx
						if edge[nidx] && !seen[nidx] {
							seen[nidx] = true
							queue = append(queue, image.Pt(nx, ny))
						}
					}
				}
			}
			if len(comp) >= minComponentPixels {
				comps = append(comps, comp)
			}
		}
	}

	sort.Slice(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })
	if len(comps) > limit {
		comps = comps[:limit]
	}
	return comps
}

// convexHull is the Andrew monotone chain, counter-clockwise in image
// coordinates.
func convexHull(pts []image.Point) []fpoint {
	if len(pts) < 3 {
		out := make([]fpoint, len(pts))
		for i, p := range pts {
			out[i] = fpoint{float64(p.X), float64(p.Y)}
		}
		return out
	}
	sorted := make([]image.Point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower, upper []image.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	out := make([]fpoint, len(hull))
	for i, p := range hull {
		out[i] = fpoint{float64(p.X), float64(p.Y)}
	}
	return out
}

func perimeter(poly []fpoint) float64 {
	var sum float64
	for i := range poly {
		sum += dist(poly[i], poly[(i+1)%len(poly)])
	}
	return sum
}

func polygonArea(poly []fpoint) float64 {
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(sum) / 2
}

func dist(a, b fpoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// approxPolygon reduces a closed polygon with Douglas-Peucker. The polygon is
// split at its two most distant vertices so each half can be simplified as an
// open chain.
func approxPolygon(poly []fpoint, eps float64) []fpoint {
	n := len(poly)
	if n <= 4 {
		return poly
	}
	ai, bi := 0, 1
	maxD := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := dist(poly[i], poly[j]); d > maxD {
				maxD = d
				ai, bi = i, j
			}
		}
	}

	chain1 := poly[ai : bi+1]
	chain2 := append(append([]fpoint{}, poly[bi:]...), poly[:ai+1]...)

	s1 := simplifyChain(chain1, eps)
	s2 := simplifyChain(chain2, eps)
	// chain endpoints coincide; drop the duplicates when joining
	return append(s1[:len(s1)-1], s2[:len(s2)-1]...)
}

func simplifyChain(chain []fpoint, eps float64) []fpoint {
	if len(chain) < 3 {
		return chain
	}
	maxD := 0.0
	idx := 0
	a, b := chain[0], chain[len(chain)-1]
	for i := 1; i < len(chain)-1; i++ {
		if d := perpendicularDist(chain[i], a, b); d > maxD {
			maxD = d
			idx = i
		}
	}
	if maxD <= eps {
		return []fpoint{a, b}
	}
	left := simplifyChain(chain[:idx+1], eps)
	right := simplifyChain(chain[idx:], eps)
	return append(left[:len(left)-1], right...)
}

func perpendicularDist(p, a, b fpoint) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return dist(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}

// orderQuad arranges four corners as tl, tr, br, bl using the classic
// coordinate sum and difference test.
func orderQuad(poly []fpoint) quad {
	var q quad
	sumMin, sumMax := math.Inf(1), math.Inf(-1)
	diffMin, diffMax := math.Inf(1), math.Inf(-1)
	for _, p := range poly {
		s, d := p.X+p.Y, p.Y-p.X
		if s < sumMin {
			sumMin = s
			q[0] = p // top-left
		}
		if s > sumMax {
			sumMax = s
			q[2] = p // bottom-right
		}
		if d < diffMin {
			diffMin = d
			q[1] = p // top-right
		}
		if d > diffMax {
			diffMax = d
			q[3] = p // bottom-left
		}
	}
	return q
}

// warpPerspective resamples the buffer through the homography that maps the
// detected corners onto an axis-aligned rectangle sized from the longest
// opposing edges.
func warpPerspective(g *image.Gray, q quad) (*image.Gray, error) {
	dstW := int(math.Round(math.Max(dist(q[0], q[1]), dist(q[3], q[2]))))
	dstH := int(math.Round(math.Max(dist(q[0], q[3]), dist(q[1], q[2]))))
	if dstW < 2 || dstH < 2 {
		return nil, fmt.Errorf("degenerate quadrilateral %dx%d", dstW, dstH)
	}

	dst := quad{
		{0, 0},
		{float64(dstW - 1), 0},
		{float64(dstW - 1), float64(dstH - 1)},
		{0, float64(dstH - 1)},
	}
	h, err := solveHomography(dst, q)
	if err != nil {
		return nil, err
	}

	out := image.NewGray(image.Rect(0, 0, dstW, dstH))
	for v := 0; v < dstH; v++ {
		for u := 0; u < dstW; u++ {
			sx, sy := applyHomography(h, float64(u), float64(v))
			out.SetGray(u, v, color.Gray{Y: bilinearSample(g, sx, sy)})
		}
	}
	return out, nil
}

// solveHomography finds h such that applyHomography(h, from[i]) == to[i].
func solveHomography(from, to quad) ([8]float64, error) {
	var a [8][8]float64
	var b [8]float64
	for i := 0; i < 4; i++ {
		u, v := from[i].X, from[i].Y
		x, y := to[i].X, to[i].Y
		a[2*i] = [8]float64{u, v, 1, 0, 0, 0, -u * x, -v * x}
		b[2*i] = x
		a[2*i+1] = [8]float64{0, 0, 0, u, v, 1, -u * y, -v * y}
		b[2*i+1] = y
	}
	return solveLinear(a, b)
}

func applyHomography(h [8]float64, u, v float64) (float64, float64) {
	d := h[6]*u + h[7]*v + 1
	if math.Abs(d) < 1e-12 {
		return -1, -1 // outside; sampler returns white
	}
	return (h[0]*u + h[1]*v + h[2]) / d, (h[3]*u + h[4]*v + h[5]) / d
}

// solveLinear is Gaussian elimination with partial pivoting on an 8x8 system.
func solveLinear(a [8][8]float64, b [8]float64) ([8]float64, error) {
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, fmt.Errorf("singular system at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < 8; row++ {
			f := a[row][col] / a[col][col]
			for k := col; k < 8; k++ {
				a[row][k] -= f * a[col][k]
			}
			b[row] -= f * b[col]
		}
	}

	var x [8]float64
	for row := 7; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < 8; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}
