//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"math"
	"sort"

	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/table"
)

// BottomUp builds the tree from the sinks toward the source. It
// repeatedly groups the least critical subtrees of one polarity under
// a new buffer as long as that improves the cost of driving the
// remaining subtrees directly from the source.
type BottomUp struct{}

// Name implements Algorithm.Name.
func (alg BottomUp) Name() string {
	return "bottom_up"
}

// subtree is a pending child of the source.
type subtree struct {
	polarity int
	part     part
}

// Optimize implements Algorithm.Optimize.
func (alg BottomUp) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	var items []subtree
	for p := 0; p < 2; p++ {
		for _, idx := range pb.Lists[p].Sinks {
			items = append(items, subtree{
				polarity: p,
				part:     pb.sinkPart([]int{idx}),
			})
		}
	}
	best, bestCost, ok := pb.directItems(src, items)
	if !ok {
		return nil, Cost{}, false
	}

	for iter := 0; len(items) > 1 && iter < 2*pb.NumSinks()+4; iter++ {
		next, tree, cost, ok := pb.selectBestSubgroup(src, items)
		if !ok || !cost.Better(bestCost) {
			break
		}
		items = next
		best = tree
		bestCost = cost
	}
	return best, bestCost, true
}

// directItems drives the subtrees from the source, the ones of the
// opposite polarity through one inverter.
func (pb *Problem) directItems(src Source, items []subtree) (
	*Node, Cost, bool) {

	same := emptyPart()
	opposite := emptyPart()
	for _, it := range items {
		if it.polarity == src.Polarity() {
			same = merge(same, it.part)
		} else {
			opposite = merge(opposite, it.part)
		}
	}
	return pb.direct(src, same, opposite)
}

type grouping struct {
	valid bool
	cost  Cost
	tree  *Node
	items []subtree
}

// selectBestSubgroup finds the buffer gate and the number of the least
// critical subtrees of one polarity to group under it so that the
// resulting direct cost is best. The polarity whose least critical
// subtree is latest is preferred on ties.
func (pb *Problem) selectBestSubgroup(src Source, items []subtree) (
	[]subtree, *Node, Cost, bool) {

	var byPol [2][]int
	for i, it := range items {
		byPol[it.polarity] = append(byPol[it.polarity], i)
	}
	// Index: polarity, group size, gate.
	tab := table.New3[grouping](2, len(items)+1, len(pb.Gates))
	latest := [2]float64{math.Inf(-1), math.Inf(-1)}

	for p := 0; p < 2; p++ {
		idxs := byPol[p]
		sort.SliceStable(idxs, func(i, j int) bool {
			return items[idxs[i]].part.req.Min() <
				items[idxs[j]].part.req.Min()
		})
		if len(idxs) > 0 {
			latest[p] = items[idxs[len(idxs)-1]].part.req.Min()
		}
		for size := 1; size <= len(idxs); size++ {
			group := idxs[len(idxs)-size:]
			inGroup := make(map[int]bool)
			inner := emptyPart()
			for _, i := range group {
				inGroup[i] = true
				inner = merge(inner, items[i].part)
			}
			for gi, g := range pb.Gates {
				if size == 1 && !g.Inverter() {
					continue
				}
				bp := pb.bufferPart(g, inner)
				var next []subtree
				for i, it := range items {
					if !inGroup[i] {
						next = append(next, it)
					}
				}
				next = append(next, subtree{
					polarity: p ^ inverting(g),
					part:     bp,
				})
				tree, cost, ok := pb.directItems(src, next)
				if !ok {
					continue
				}
				tab.Set(p, size, gi, grouping{
					valid: true,
					cost:  cost,
					tree:  tree,
					items: next,
				})
			}
		}
	}

	order := []int{0, 1}
	if pwl.Less(latest[0], latest[1]) {
		order = []int{1, 0}
	}
	var best *grouping
	_, sizes, gates := tab.Shape()
	for _, p := range order {
		for size := 1; size < sizes; size++ {
			for gi := 0; gi < gates; gi++ {
				g := tab.At(p, size, gi)
				if g.valid && (best == nil || g.cost.Better(best.cost)) {
					best = g
				}
			}
		}
	}
	if best == nil {
		return nil, nil, Cost{}, false
	}
	return best.items, best.tree, best.cost, true
}
