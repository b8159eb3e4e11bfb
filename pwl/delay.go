//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package pwl

import (
	"fmt"
	"math"
)

// Delay is a (rise, fall) pair of scalar times.
type Delay struct {
	Rise float64
	Fall float64
}

// Inf returns the delay pair (v, v) for infinite v.
func Inf(sign int) Delay {
	v := math.Inf(sign)
	return Delay{
		Rise: v,
		Fall: v,
	}
}

// Both returns the delay pair (v, v).
func Both(v float64) Delay {
	return Delay{
		Rise: v,
		Fall: v,
	}
}

func (d Delay) String() string {
	return fmt.Sprintf("%.3f/%.3f", d.Rise, d.Fall)
}

// Max returns max(rise, fall).
func (d Delay) Max() float64 {
	return math.Max(d.Rise, d.Fall)
}

// Min returns min(rise, fall).
func (d Delay) Min() float64 {
	return math.Min(d.Rise, d.Fall)
}

// Average returns the average of rise and fall.
func (d Delay) Average() float64 {
	return (d.Rise + d.Fall) / 2
}

// Add returns d+o.
func (d Delay) Add(o Delay) Delay {
	return Delay{
		Rise: d.Rise + o.Rise,
		Fall: d.Fall + o.Fall,
	}
}

// Sub returns d-o.
func (d Delay) Sub(o Delay) Delay {
	return Delay{
		Rise: d.Rise - o.Rise,
		Fall: d.Fall - o.Fall,
	}
}

// Swap returns the pair with rise and fall exchanged.
func (d Delay) Swap() Delay {
	return Delay{
		Rise: d.Fall,
		Fall: d.Rise,
	}
}

// Equal tests if the pairs are equal within Epsilon.
func (d Delay) Equal(o Delay) bool {
	return Equal(d.Rise, o.Rise) && Equal(d.Fall, o.Fall)
}

// MinDelay returns the component-wise minimum of a and b.
func MinDelay(a, b Delay) Delay {
	return Delay{
		Rise: math.Min(a.Rise, b.Rise),
		Fall: math.Min(a.Fall, b.Fall),
	}
}

// MaxDelay returns the component-wise maximum of a and b.
func MaxDelay(a, b Delay) Delay {
	return Delay{
		Rise: math.Max(a.Rise, b.Rise),
		Fall: math.Max(a.Fall, b.Fall),
	}
}

// Pair is a (rise, fall) pair of delay-vs-load functions.
type Pair struct {
	Rise Func
	Fall Func
}

// Eval evaluates the pair at load x.
func (p Pair) Eval(x float64) Delay {
	return Delay{
		Rise: p.Rise.Eval(x),
		Fall: p.Fall.Eval(x),
	}
}

// MaxPair returns the component-wise maximum of a and b.
func MaxPair(a, b Pair) Pair {
	return Pair{
		Rise: Max(a.Rise, b.Rise),
		Fall: Max(a.Fall, b.Fall),
	}
}
