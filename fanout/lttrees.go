//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/table"
)

// LTTrees builds chains of buffers where each chain node drives a
// group of sinks and the next chain node; the most critical sinks are
// closest to the source. MaxGaps bounds the number of chain nodes of
// the opposite polarity that drive no sinks.
type LTTrees struct {
	MaxGaps int
}

// Name implements Algorithm.Name.
func (alg LTTrees) Name() string {
	return "lt_trees"
}

// chainEntry is a DP table entry: the best chain whose head has the
// table coordinates.
type chainEntry struct {
	valid  bool
	req    pwl.Delay
	area   float64
	attach int

	next   bool
	nextQ  int
	nextR  int
	nextG  int
	nextI0 int
	nextI1 int
	// nextGap selects the gap table for the next entry of mixed
	// chains.
	nextGap bool
}

func (e *chainEntry) better(o *chainEntry) bool {
	if !o.valid {
		return e.valid
	}
	if pwl.Less(o.req.Min(), e.req.Min()) {
		return true
	}
	if pwl.Less(e.req.Min(), o.req.Min()) {
		return false
	}
	return pwl.Less(e.area, o.area)
}

// chainNode computes the required time at the input of the chain node
// g driving the sinks and the next chain node of the entry next.
func (pb *Problem) chainNode(gi int, sinks []int, next *chainEntry,
	nextGate int) (pwl.Delay, float64) {

	g := pb.Gates[gi]
	p := pb.sinkPart(sinks)
	area := g.Area
	if next != nil {
		ng := pb.Gates[nextGate]
		p.req = pwl.MinDelay(p.req, next.req)
		p.load += ng.Pins[0].Load
		p.count++
		area += next.area
	}
	return g.Pins[0].Required(p.req, pb.outLoad(p), pb.Penalty), area
}

// Optimize implements Algorithm.Optimize.
func (alg LTTrees) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	gaps := alg.MaxGaps
	if gaps < 0 {
		gaps = 0
	}
	m := pb.Lists[0].Len()
	if pb.Lists[1].Len() > m {
		m = pb.Lists[1].Len()
	}
	ng := len(pb.Gates)
	if ng == 0 {
		return nil, Cost{}, false
	}

	// Index: sink polarity, chain node output polarity, remaining gap
	// budget, first sink of the node, chain node gate.
	tab := table.New5[chainEntry](2, 2, gaps+1, m+1, ng)
	for p := 0; p < 2; p++ {
		pb.fillChains(tab, p, gaps)
	}

	ps := src.Polarity()
	heads := func(p int) []part {
		list := pb.Lists[p]
		var result []part
		for j := 0; j <= list.Len(); j++ {
			direct := emptyPart()
			if p == ps {
				direct = pb.sinkPart(list.Sinks[:j])
			} else if j > 0 {
				break
			}
			if j == list.Len() {
				result = append(result, direct)
				continue
			}
			for q := 0; q < 2; q++ {
				for gi, g := range pb.Gates {
					e := tab.At(p, q, gaps, j, gi)
					if !e.valid || q^inverting(g) != ps {
						continue
					}
					head := part{
						children: []*Node{pb.buildChain(tab, p, q, gaps, j, gi)},
						req:      e.req,
						load:     g.Pins[0].Load,
						count:    1,
						area:     e.area,
					}
					result = append(result, merge(direct, head))
				}
			}
		}
		return result
	}
	sameParts := heads(ps)
	oppositeParts := []part{emptyPart()}
	if pb.Lists[ps^1].Len() > 0 {
		oppositeParts = heads(ps ^ 1)
	}

	var best *Node
	var bestCost Cost
	for _, a := range sameParts {
		for _, b := range oppositeParts {
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

// fillChains fills the chain entries for the sinks of polarity p.
func (pb *Problem) fillChains(tab *table.Table5[chainEntry], p, gaps int) {
	list := pb.Lists[p]
	m := list.Len()

	for j := m - 1; j >= 0; j-- {
		// Chain nodes attaching sinks list[j:end].
		for r := 0; r <= gaps; r++ {
			for gi := range pb.Gates {
				q := p
				var best chainEntry
				for end := j + 1; end <= m; end++ {
					sinks := list.Sinks[j:end]
					if end == m {
						req, area := pb.chainNode(gi, sinks, nil, 0)
						cand := chainEntry{
							valid:  true,
							req:    req,
							area:   area,
							attach: end,
						}
						if cand.better(&best) {
							best = cand
						}
						continue
					}
					for nq := 0; nq < 2; nq++ {
						for ngi, ngate := range pb.Gates {
							if nq^inverting(ngate) != q {
								continue
							}
							next := tab.At(p, nq, r, end, ngi)
							if !next.valid {
								continue
							}
							req, area := pb.chainNode(gi, sinks, next, ngi)
							cand := chainEntry{
								valid:  true,
								req:    req,
								area:   area,
								attach: end,
								next:   true,
								nextQ:  nq,
								nextR:  r,
								nextG:  ngi,
								nextI0: end,
							}
							if cand.better(&best) {
								best = cand
							}
						}
					}
				}
				tab.Set(p, q, r, j, gi, best)
			}
		}
		// Gap nodes of the opposite polarity attaching no sinks.
		for r := 1; r <= gaps; r++ {
			q := p ^ 1
			for gi := range pb.Gates {
				var best chainEntry
				for nq := 0; nq < 2; nq++ {
					for ngi, ngate := range pb.Gates {
						if nq^inverting(ngate) != q {
							continue
						}
						next := tab.At(p, nq, r-1, j, ngi)
						if !next.valid {
							continue
						}
						req, area := pb.chainNode(gi, nil, next, ngi)
						cand := chainEntry{
							valid:  true,
							req:    req,
							area:   area,
							attach: j,
							next:   true,
							nextQ:  nq,
							nextR:  r - 1,
							nextG:  ngi,
							nextI0: j,
						}
						if cand.better(&best) {
							best = cand
						}
					}
				}
				tab.Set(p, q, r, j, gi, best)
			}
		}
	}
}

// buildChain reconstructs the chain with the head entry.
func (pb *Problem) buildChain(tab *table.Table5[chainEntry], p, q, r, j,
	gi int) *Node {

	e := tab.At(p, q, r, j, gi)
	if !e.valid {
		panic("buildChain: invalid entry")
	}
	var children []*Node
	for _, idx := range pb.Lists[p].Sinks[j:e.attach] {
		children = append(children, Leaf(idx))
	}
	if e.next {
		children = append(children,
			pb.buildChain(tab, p, e.nextQ, e.nextR, e.nextI0, e.nextG))
	}
	return Buffer(pb.Gates[gi], children...)
}
