package graph

import "math"

// cubicBezier is a unit cubic-bezier easing curve through (0,0) and (1,1)
// with control points (x1,y1) and (x2,y2). x1 and x2 lie within [0, 1], so x
// is monotonic in t.
type cubicBezier struct {
	ax, bx, cx float64
	ay, by, cy float64
}

func newCubicBezier(x1, y1, x2, y2 float64) cubicBezier {
	var b cubicBezier
	b.cx = 3 * x1
	b.bx = 3*(x2-x1) - b.cx
	b.ax = 1 - b.cx - b.bx
	b.cy = 3 * y1
	b.by = 3*(y2-y1) - b.cy
	b.ay = 1 - b.cy - b.by
	return b
}

func (b cubicBezier) sampleX(t float64) float64 { return ((b.ax*t+b.bx)*t + b.cx) * t }
func (b cubicBezier) sampleY(t float64) float64 { return ((b.ay*t+b.by)*t + b.cy) * t }
func (b cubicBezier) slopeX(t float64) float64  { return (3*b.ax*t+2*b.bx)*t + b.cx }

const bezierEpsilon = 1e-7

// solveT finds t with sampleX(t) == x: Newton's method first, bisection when
// the slope flattens out.
func (b cubicBezier) solveT(x float64) float64 {
	t := x
	for i := 0; i < 8; i++ {
		dx := b.sampleX(t) - x
		if math.Abs(dx) < bezierEpsilon {
			return t
		}
		slope := b.slopeX(t)
		if math.Abs(slope) < 1e-6 {
			break
		}
		t -= dx / slope
	}

	lo, hi := 0.0, 1.0
	t = x
	for lo < hi {
		dx := b.sampleX(t) - x
		if math.Abs(dx) < bezierEpsilon {
			return t
		}
		if dx < 0 {
			lo = t
		} else {
			hi = t
		}
		next := (lo + hi) / 2
		if next == t {
			break
		}
		t = next
	}
	return t
}

// at eases x. Inputs outside [0, 1] are clamped; NaN stays NaN.
func (b cubicBezier) at(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return x
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return b.sampleY(b.solveT(x))
}
