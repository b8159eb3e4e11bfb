//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package pwl implements piecewise-linear delay functions over load.
package pwl

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Epsilon is the relative tolerance of all value comparisons.
const Epsilon = 1e-9

// NoData marks a breakpoint without provenance.
const NoData = -1

// Equal tests if the values a and b are equal within Epsilon.
func Equal(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= Epsilon*scale
}

// Less tests if a is smaller than b by more than Epsilon.
func Less(a, b float64) bool {
	return a < b && !Equal(a, b)
}

// Point is a breakpoint of a piecewise-linear function. The function
// follows the line (Value, Slope) from X to the next breakpoint. Data
// is an opaque provenance handle of the segment.
type Point struct {
	X     float64
	Value float64
	Slope float64
	Data  int
}

// Eval evaluates the breakpoint's line at x.
func (p Point) Eval(x float64) float64 {
	return p.Value + p.Slope*(x-p.X)
}

func (p Point) String() string {
	return fmt.Sprintf("(%g: %g%+g*x #%d)", p.X, p.Value, p.Slope, p.Data)
}

// Func is a piecewise-linear function over load x >= X of its first
// breakpoint. The breakpoint X coordinates are strictly increasing.
type Func []Point

// Constant creates a constant function of value v.
func Constant(v float64, data int) Func {
	return Func{{
		Value: v,
		Data:  data,
	}}
}

// Linear creates the affine function v+slope*x.
func Linear(v, slope float64, data int) Func {
	return Func{{
		Value: v,
		Slope: slope,
		Data:  data,
	}}
}

func (f Func) String() string {
	var sb strings.Builder
	for idx, p := range f {
		if idx > 0 {
			sb.WriteRune(' ')
		}
		sb.WriteString(p.String())
	}
	return sb.String()
}

// Origin returns the first X coordinate of the function.
func (f Func) Origin() float64 {
	if len(f) == 0 {
		panic("pwl: origin of empty function")
	}
	return f[0].X
}

// Lookup returns the breakpoint whose segment covers x. Loads before
// the origin use the first segment.
func Lookup(f Func, x float64) Point {
	if len(f) == 0 {
		panic("pwl: lookup on empty function")
	}
	i := sort.Search(len(f), func(i int) bool {
		return f[i].X > x
	}) - 1
	if i < 0 {
		i = 0
	}
	return f[i]
}

// Evaluate evaluates the breakpoint p at x.
func Evaluate(p Point, x float64) float64 {
	return p.Eval(x)
}

// Lookup returns the breakpoint whose segment covers x.
func (f Func) Lookup(x float64) Point {
	return Lookup(f, x)
}

// Eval evaluates the function at x.
func (f Func) Eval(x float64) float64 {
	return Lookup(f, x).Eval(x)
}

// Negate returns -f.
func Negate(f Func) Func {
	result := make(Func, len(f))
	for i, p := range f {
		result[i] = Point{
			X:     p.X,
			Value: -p.Value,
			Slope: -p.Slope,
			Data:  p.Data,
		}
	}
	return result
}

// Shift returns f+delta. The shift delta must not be negative.
func Shift(f Func, delta float64) Func {
	if delta < 0 {
		panic(fmt.Sprintf("pwl: negative shift %g", delta))
	}
	if len(f) == 0 {
		panic("pwl: shift of empty function")
	}
	result := make(Func, len(f))
	for i, p := range f {
		p.Value += delta
		result[i] = p
	}
	return result
}

// Scale returns k*f for k >= 0.
func Scale(f Func, k float64) Func {
	if k < 0 {
		panic(fmt.Sprintf("pwl: negative scale %g", k))
	}
	if len(f) == 0 {
		panic("pwl: scale of empty function")
	}
	var b builder
	for _, p := range f {
		b.add(p.X, Point{
			X:     p.X,
			Value: p.Value * k,
			Slope: p.Slope * k,
			Data:  p.Data,
		})
	}
	return b.f
}

// SetData returns a copy of f with all breakpoints tagged with data.
func SetData(f Func, data int) Func {
	var b builder
	for _, p := range f {
		p.Data = data
		b.add(p.X, p)
	}
	return b.f
}

// Sum returns f+g. Both functions must start at the same origin. The
// provenance of the result is taken from f.
func Sum(f, g Func) Func {
	checkOrigins("sum", f, g)

	var b builder
	for _, x := range mergeX(f, g) {
		pf := Lookup(f, x)
		pg := Lookup(g, x)
		b.add(x, Point{
			X:     x,
			Value: pf.Eval(x) + pg.Eval(x),
			Slope: pf.Slope + pg.Slope,
			Data:  pf.Data,
		})
	}
	return b.f
}

// Min returns the pointwise minimum of f and g. Ties are resolved in
// favor of f.
func Min(f, g Func) Func {
	return MinBy(f, g, nil)
}

// MinBy returns the pointwise minimum of f and g. When both functions
// have the same value and slope, prefer decides which provenance
// wins: prefer(a, b) returns true if data a is preferred over data b.
// A nil prefer keeps f.
func MinBy(f, g Func, prefer func(a, b int) bool) Func {
	checkOrigins("min", f, g)

	var b builder
	xs := mergeX(f, g)
	for i, x := range xs {
		next := math.Inf(1)
		if i+1 < len(xs) {
			next = xs[i+1]
		}
		pf := Lookup(f, x)
		pg := Lookup(g, x)
		first, second := order(pf, pg, x, prefer)
		b.add(x, first)

		if Less(second.Slope, first.Slope) {
			// The second line overtakes the first inside the
			// interval if they cross before next.
			xc := x + (second.Eval(x)-first.Eval(x))/
				(first.Slope-second.Slope)
			if xc > x && xc < next && !Equal(xc, next) {
				b.add(xc, second)
			}
		}
	}
	return b.f
}

// Max returns the pointwise maximum of f and g, computed as
// -min(-f,-g).
func Max(f, g Func) Func {
	return Negate(Min(Negate(f), Negate(g)))
}

// order returns the lines pf and pg ordered so that the first one is
// the minimum at x and right after it.
func order(pf, pg Point, x float64, prefer func(a, b int) bool) (
	Point, Point) {

	fv := pf.Eval(x)
	gv := pg.Eval(x)

	if !Equal(fv, gv) {
		if fv < gv {
			return pf, pg
		}
		return pg, pf
	}
	if !Equal(pf.Slope, pg.Slope) {
		if pf.Slope < pg.Slope {
			return pf, pg
		}
		return pg, pf
	}
	if prefer != nil && pf.Data != pg.Data && prefer(pg.Data, pf.Data) {
		return pg, pf
	}
	return pf, pg
}

func checkOrigins(op string, f, g Func) {
	if len(f) == 0 || len(g) == 0 {
		panic(fmt.Sprintf("pwl: %s of empty function", op))
	}
	if !Equal(f[0].X, g[0].X) {
		panic(fmt.Sprintf("pwl: %s origin mismatch: %g != %g",
			op, f[0].X, g[0].X))
	}
}

// mergeX returns the sorted union of the breakpoint X coordinates of
// f and g.
func mergeX(f, g Func) []float64 {
	result := make([]float64, 0, len(f)+len(g))
	var i, j int
	for i < len(f) || j < len(g) {
		var x float64
		if j >= len(g) || (i < len(f) && f[i].X <= g[j].X) {
			x = f[i].X
			i++
		} else {
			x = g[j].X
			j++
		}
		if len(result) == 0 || !Equal(result[len(result)-1], x) {
			result = append(result, x)
		}
	}
	return result
}

// builder constructs functions with the minimum number of
// breakpoints.
type builder struct {
	f Func
}

// add starts the line of p at x. Adjacent segments with the same line
// and provenance are merged and a segment starting at the same X as
// the previous one replaces it.
func (b *builder) add(x float64, p Point) {
	pt := Point{
		X:     x,
		Value: p.Eval(x),
		Slope: p.Slope,
		Data:  p.Data,
	}
	n := len(b.f)
	if n > 0 {
		last := b.f[n-1]
		if Equal(last.X, x) {
			b.f = b.f[:n-1]
			b.add(x, pt)
			return
		}
		if last.Data == pt.Data && Equal(last.Slope, pt.Slope) &&
			Equal(last.Eval(x), pt.Value) {
			return
		}
	}
	b.f = append(b.f, pt)
}
