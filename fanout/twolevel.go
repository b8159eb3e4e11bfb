//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"math"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/table"
)

// TwoLevel partitions the sinks of each polarity across k identical
// intermediate buffers. The best-fit variant assigns each sink to the
// buffer where it hurts the required time least; the balanced variant
// assigns by load only.
type TwoLevel struct {
	Balanced bool
}

// Name implements Algorithm.Name.
func (alg TwoLevel) Name() string {
	if alg.Balanced {
		return "balanced"
	}
	return "two_level"
}

// Optimize implements Algorithm.Optimize.
func (alg TwoLevel) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	p := src.Polarity()
	same := alg.options(pb, src, pb.Lists[p].Sinks, 0)
	opposite := alg.options(pb, src, pb.Lists[p^1].Sinks, 1)

	var best *Node
	var bestCost Cost
	for _, a := range same {
		for _, b := range opposite {
			if a.count+b.count == 0 {
				continue
			}
			root, cost := pb.bestRoot(src, a, b)
			if best == nil || cost.Better(bestCost) {
				best = root
				bestCost = cost
			}
		}
	}
	return best, bestCost, best != nil
}

// options returns the candidate parts for the sinks that need the
// inversion inv relative to the source.
func (alg TwoLevel) options(pb *Problem, src Source, sinks []int,
	inv int) []part {

	if len(sinks) == 0 {
		return []part{emptyPart()}
	}
	var gates []*library.Gate
	for _, g := range pb.Gates {
		if inverting(g) == inv {
			gates = append(gates, g)
		}
	}
	var result []part
	if inv == 0 {
		result = append(result, pb.sinkPart(sinks))
	}
	if len(gates) == 0 {
		return result
	}

	// Candidate parts by gate and buffer count.
	parts := table.New2[*part](len(gates), len(sinks)+1)
	for gi, g := range gates {
		lo, hi := pb.countRange(src, sinks, g)
		for k := lo; k <= hi; k++ {
			bins := pb.pack(sinks, k, g, !alg.Balanced)
			var bufs []part
			for _, bin := range bins {
				bufs = append(bufs, pb.bufferPart(g, pb.sinkPart(bin)))
			}
			p := merge(bufs...)
			parts.Set(gi, len(bins), &p)
		}
	}
	ng, nk := parts.Shape()
	for gi := 0; gi < ng; gi++ {
		for k := 0; k < nk; k++ {
			if p := parts.Get(gi, k); p != nil {
				result = append(result, *p)
			}
		}
	}
	return result
}

// pack assigns the sinks, most critical first, to k bins of the
// buffer g. With bestFit, each sink goes to the bin whose input
// required time stays latest; otherwise to the bin with the smallest
// load. Empty bins are dropped.
func (pb *Problem) pack(sinks []int, k int, g *library.Gate,
	bestFit bool) [][]int {

	if k < 1 {
		k = 1
	}
	bins := make([][]int, k)
	loads := make([]float64, k)
	reqs := make([]pwl.Delay, k)
	for i := range reqs {
		reqs[i] = pwl.Inf(1)
	}
	pin := &g.Pins[0]

	for _, idx := range sinks {
		s := pb.Sinks[idx].Link
		best := -1
		if bestFit {
			var bestReq float64
			for b := 0; b < k; b++ {
				load := loads[b] + s.Load + pb.Wire.Load(len(bins[b])+1)
				req := pin.Required(pwl.MinDelay(reqs[b], s.Required), load,
					pb.Penalty).Min()
				if best < 0 || pwl.Less(bestReq, req) ||
					(pwl.Equal(bestReq, req) && loads[b] < loads[best]) {
					best = b
					bestReq = req
				}
			}
		} else {
			for b := 0; b < k; b++ {
				if best < 0 || loads[b] < loads[best] {
					best = b
				}
			}
		}
		bins[best] = append(bins[best], idx)
		loads[best] += s.Load
		reqs[best] = pwl.MinDelay(reqs[best], s.Required)
	}

	var result [][]int
	for _, bin := range bins {
		if len(bin) > 0 {
			result = append(result, bin)
		}
	}
	return result
}

// countRange returns the range of buffer counts to scan for the sinks
// driven through buffers g. The continuous optimum balances the
// source delay growing with the count against the buffer delay
// shrinking with it; it is found by bisection on the derivative.
func (pb *Problem) countRange(src Source, sinks []int, g *library.Gate) (
	int, int) {

	m := len(sinks)
	if m <= 1 {
		return 1, 1
	}
	var total float64
	for _, idx := range sinks {
		total += pb.Sinks[idx].Link.Load
	}
	k := bestCount(sourceDrive(src), g.Pins[0].Load, g.Pins[0].Drive.Max(),
		total, float64(m))

	lo := int(math.Floor(k)) - 1
	hi := int(math.Ceil(k)) + 1
	if lo < 1 {
		lo = 1
	}
	if hi > m {
		hi = m
	}
	return lo, hi
}

// bestCount returns the buffer count k in [1,m] minimizing
// srcDrive*k*pinLoad + drive*total/k.
func bestCount(srcDrive, pinLoad, drive, total, m float64) float64 {
	deriv := func(k float64) float64 {
		return srcDrive*pinLoad - drive*total/(k*k)
	}
	if deriv(1) >= 0 {
		return 1
	}
	if deriv(m) <= 0 {
		return m
	}
	lo, hi := 1.0, m
	for i := 0; i < 64 && hi-lo > 1e-6; i++ {
		mid := (lo + hi) / 2
		if deriv(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
