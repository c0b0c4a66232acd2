package imgproc

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	houghAngleRange = 15.0 // degrees scanned either side of horizontal
	houghAngleStep  = 0.25
	houghRhoStep    = 2.0
	houghMaxPoints  = 5000
	houghMinVotes   = 30
)

// deskew measures the dominant text-line angle and rotates the buffer level
// when the skew exceeds the configured threshold. When no reliable lines are
// found the buffer passes through untouched.
func (n *Normalizer) deskew(g *image.Gray) *image.Gray {
	angle, ok := dominantSkewAngle(g)
	if !ok {
		n.logger.Debug("deskew skipped, no reliable lines")
		return g
	}
	if math.Abs(angle) <= n.cfg.SkewThreshold {
		return g
	}
	n.logger.Debug("correcting skew", "angle_deg", angle)
	rotated := imaging.Rotate(g, angle, color.White)
	return threshold128(toGray(rotated))
}

// dominantSkewAngle runs a Hough transform over stroke-edge pixels and
// returns the median angle, in degrees, of the strongest near-horizontal
// lines. Positive angles mean text descending to the right. ok is false when
// no line clears the vote floor.
func dominantSkewAngle(g *image.Gray) (float64, bool) {
	pts := sampleEdgePoints(g, houghMaxPoints)
	if len(pts) < houghMinVotes {
		return 0, false
	}

	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	nAngles := int(2*houghAngleRange/houghAngleStep) + 1
	maxRho := math.Hypot(float64(w), float64(h))
	nRho := int(2*maxRho/houghRhoStep) + 1

	sins := make([]float64, nAngles)
	coss := make([]float64, nAngles)
	for i := 0; i < nAngles; i++ {
		phi := -houghAngleRange + float64(i)*houghAngleStep
		theta := (phi + 90) * math.Pi / 180 // normal angle of a line tilted by phi
		sins[i] = math.Sin(theta)
		coss[i] = math.Cos(theta)
	}

	acc := make([]int, nAngles*nRho)
	for _, p := range pts {
		x, y := float64(p.X), float64(p.Y)
		for i := 0; i < nAngles; i++ {
			rho := x*coss[i] + y*sins[i]
			ri := int((rho + maxRho) / houghRhoStep)
			if ri >= 0 && ri < nRho {
				acc[i*nRho+ri]++
			}
		}
	}

	maxVotes := 0
	for _, v := range acc {
		if v > maxVotes {
			maxVotes = v
		}
	}
	if maxVotes < houghMinVotes {
		return 0, false
	}

	floor := max(maxVotes/2, houghMinVotes)
	var angles []float64
	for i := 0; i < nAngles; i++ {
		phi := -houghAngleRange + float64(i)*houghAngleStep
		for ri := 0; ri < nRho; ri++ {
			if acc[i*nRho+ri] >= floor {
				angles = append(angles, phi)
			}
		}
	}
	if len(angles) == 0 {
		return 0, false
	}
	sort.Float64s(angles)
	return angles[len(angles)/2], true
}

// sampleEdgePoints collects the top edges of dark strokes, thinned to at
// most maxPts points so the accumulator stays cheap on large buffers.
func sampleEdgePoints(g *image.Gray, maxPts int) []image.Point {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	var pts []image.Point
	for y := 1; y < h; y++ {
		for x := 0; x < w; x++ {
			if g.GrayAt(x, y).Y < 128 && g.GrayAt(x, y-1).Y >= 128 {
				pts = append(pts, image.Pt(x, y))
			}
		}
	}
	if len(pts) <= maxPts {
		return pts
	}
	out := make([]image.Point, 0, maxPts)
	step := float64(len(pts)) / float64(maxPts)
	for i := 0; i < maxPts; i++ {
		out = append(out, pts[int(float64(i)*step)])
	}
	return out
}
