//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"github.com/markkurossi/techmap/table"
)

// MixedLT builds one buffer chain that serves the sinks of both
// polarities. Each chain node drives a group of sinks of its own
// polarity, or no sinks when it only flips the polarity for the next
// node.
type MixedLT struct{}

// Name implements Algorithm.Name.
func (alg MixedLT) Name() string {
	return "mixed_lt"
}

type mixedTables struct {
	// Index: chain node output polarity, first unplaced polarity 0
	// sink, first unplaced polarity 1 sink, chain node gate.
	attach *table.Table4[chainEntry]
	gap    *table.Table4[chainEntry]
}

func (t *mixedTables) at(gap bool, q, i0, i1, gi int) *chainEntry {
	if gap {
		return t.gap.At(q, i0, i1, gi)
	}
	return t.attach.At(q, i0, i1, gi)
}

// Optimize implements Algorithm.Optimize.
func (alg MixedLT) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	ng := len(pb.Gates)
	if ng == 0 {
		return nil, Cost{}, false
	}
	m := [2]int{pb.Lists[0].Len(), pb.Lists[1].Len()}
	tabs := &mixedTables{
		attach: table.New4[chainEntry](2, m[0]+1, m[1]+1, ng),
		gap:    table.New4[chainEntry](2, m[0]+1, m[1]+1, ng),
	}
	pb.fillMixed(tabs, m)

	ps := src.Polarity()
	var best *Node
	var bestCost Cost
	consider := func(parts ...part) {
		root, cost := pb.bestRoot(src, parts...)
		if best == nil || cost.Better(bestCost) {
			best = root
			bestCost = cost
		}
	}
	for j := 0; j <= m[ps]; j++ {
		direct := pb.sinkPart(pb.Lists[ps].Sinks[:j])
		var i [2]int
		i[ps] = j
		if i[0] == m[0] && i[1] == m[1] {
			if direct.count > 0 {
				consider(direct)
			}
			continue
		}
		for _, gap := range []bool{false, true} {
			for q := 0; q < 2; q++ {
				for gi, g := range pb.Gates {
					e := tabs.at(gap, q, i[0], i[1], gi)
					if !e.valid || q^inverting(g) != ps {
						continue
					}
					head := part{
						children: []*Node{
							pb.buildMixed(tabs, gap, q, i[0], i[1], gi),
						},
						req:   e.req,
						load:  g.Pins[0].Load,
						count: 1,
						area:  e.area,
					}
					consider(direct, head)
				}
			}
		}
	}
	return best, bestCost, best != nil
}

func (pb *Problem) fillMixed(tabs *mixedTables, m [2]int) {
	for i0 := m[0]; i0 >= 0; i0-- {
		for i1 := m[1]; i1 >= 0; i1-- {
			if i0 == m[0] && i1 == m[1] {
				continue
			}
			start := [2]int{i0, i1}
			for q := 0; q < 2; q++ {
				for gi := range pb.Gates {
					tabs.attach.Set(q, i0, i1, gi,
						pb.mixedAttach(tabs, m, start, q, gi))
				}
			}
			for q := 0; q < 2; q++ {
				for gi := range pb.Gates {
					tabs.gap.Set(q, i0, i1, gi,
						pb.mixedGap(tabs, start, q, gi))
				}
			}
		}
	}
}

// mixedAttach computes the best chain node of polarity q attaching at
// least one sink.
func (pb *Problem) mixedAttach(tabs *mixedTables, m, start [2]int, q,
	gi int) chainEntry {

	var best chainEntry
	list := pb.Lists[q].Sinks
	for end := start[q] + 1; end <= m[q]; end++ {
		sinks := list[start[q]:end]
		rest := start
		rest[q] = end
		if rest[0] == m[0] && rest[1] == m[1] {
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
		for _, gap := range []bool{false, true} {
			for nq := 0; nq < 2; nq++ {
				for ngi, ngate := range pb.Gates {
					if nq^inverting(ngate) != q {
						continue
					}
					next := tabs.at(gap, nq, rest[0], rest[1], ngi)
					if !next.valid {
						continue
					}
					req, area := pb.chainNode(gi, sinks, next, ngi)
					cand := chainEntry{
						valid:   true,
						req:     req,
						area:    area,
						attach:  end,
						next:    true,
						nextQ:   nq,
						nextG:   ngi,
						nextI0:  rest[0],
						nextI1:  rest[1],
						nextGap: gap,
					}
					if cand.better(&best) {
						best = cand
					}
				}
			}
		}
	}
	return best
}

// mixedGap computes the best chain node of polarity q attaching no
// sinks and driving an inverter of the opposite polarity.
func (pb *Problem) mixedGap(tabs *mixedTables, start [2]int, q,
	gi int) chainEntry {

	var best chainEntry
	nq := q ^ 1
	for ngi, ngate := range pb.Gates {
		if !ngate.Inverter() {
			continue
		}
		next := tabs.attach.At(nq, start[0], start[1], ngi)
		if !next.valid {
			continue
		}
		req, area := pb.chainNode(gi, nil, next, ngi)
		cand := chainEntry{
			valid:  true,
			req:    req,
			area:   area,
			attach: start[q],
			next:   true,
			nextQ:  nq,
			nextG:  ngi,
			nextI0: start[0],
			nextI1: start[1],
		}
		if cand.better(&best) {
			best = cand
		}
	}
	return best
}

func (pb *Problem) buildMixed(tabs *mixedTables, gap bool, q, i0, i1,
	gi int) *Node {

	e := tabs.at(gap, q, i0, i1, gi)
	if !e.valid {
		panic("buildMixed: invalid entry")
	}
	start := [2]int{i0, i1}
	var children []*Node
	for _, idx := range pb.Lists[q].Sinks[start[q]:e.attach] {
		children = append(children, Leaf(idx))
	}
	if e.next {
		children = append(children, pb.buildMixed(tabs, e.nextGap, e.nextQ,
			e.nextI0, e.nextI1, e.nextG))
	}
	return Buffer(pb.Gates[gi], children...)
}
