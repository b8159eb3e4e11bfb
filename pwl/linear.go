//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package pwl

import (
	"math"
)

// Line is an affine bid Value+Slope*x over x >= 0.
type Line struct {
	Value float64
	Slope float64
	Data  int
}

// Eval evaluates the line at x.
func (l Line) Eval(x float64) float64 {
	return l.Value + l.Slope*x
}

// intersect returns the x coordinate where the line b reaches the
// line a. Parallel lines never intersect and return -Inf.
func intersect(a, b Line) float64 {
	if Equal(a.Slope, b.Slope) {
		return math.Inf(-1)
	}
	return (a.Value - b.Value) / (b.Slope - a.Slope)
}

// better tests if the line a is above the line b at x. Ties are
// broken by value and then by slope.
func better(a, b Line, x float64) bool {
	av := a.Eval(x)
	bv := b.Eval(x)
	if !Equal(av, bv) {
		return av > bv
	}
	return Less(b.Slope, a.Slope)
}

// LinearMax creates the upper envelope of the affine candidates over
// [0, inf). The envelope has at most len(lines) breakpoints.
func LinearMax(lines []Line) Func {
	if len(lines) == 0 {
		panic("pwl: linear max of no lines")
	}

	cur := 0
	steepest := lines[0].Slope
	for i := 1; i < len(lines); i++ {
		if better(lines[i], lines[cur], 0) {
			cur = i
		}
		if lines[i].Slope > steepest {
			steepest = lines[i].Slope
		}
	}

	var b builder
	var x float64
	b.add(x, pointOf(lines[cur]))

	for Less(lines[cur].Slope, steepest) {
		next := -1
		var nextX float64
		for i, l := range lines {
			if !Less(lines[cur].Slope, l.Slope) {
				continue
			}
			xi := intersect(lines[cur], l)
			if math.IsInf(xi, -1) {
				continue
			}
			if xi < x {
				xi = x
			}
			if next < 0 || Less(xi, nextX) ||
				(Equal(xi, nextX) && better(l, lines[next], xi+1)) {
				next = i
				nextX = xi
			}
		}
		if next < 0 {
			break
		}
		cur = next
		x = nextX
		b.add(x, pointOf(lines[cur]))
	}
	return b.f
}

// LinearMin creates the lower envelope of the affine candidates over
// [0, inf) by negating LinearMax of the negated candidates.
func LinearMin(lines []Line) Func {
	neg := make([]Line, len(lines))
	for i, l := range lines {
		neg[i] = Line{
			Value: -l.Value,
			Slope: -l.Slope,
			Data:  l.Data,
		}
	}
	return Negate(LinearMax(neg))
}

func pointOf(l Line) Point {
	return Point{
		Value: l.Value,
		Slope: l.Slope,
		Data:  l.Data,
	}
}
