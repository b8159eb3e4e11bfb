//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"github.com/markkurossi/techmap/utils"
)

// Algorithm is a fanout-tree synthesis algorithm. Optimize builds a
// tree from the source to all sinks of the problem and returns it
// with its cost. It returns false if the algorithm cannot solve the
// problem.
type Algorithm interface {
	Name() string
	Optimize(pb *Problem, src Source) (*Node, Cost, bool)
}

// Configured is an enabled algorithm with its parameters.
type Configured struct {
	Algorithm Algorithm
	Params    utils.AlgParams
}

// Algorithms returns the enabled algorithms of the parameters.
func Algorithms(params *utils.Params) []Configured {
	fp := &params.Fanout
	all := []Configured{
		{NoAlg{}, fp.NoAlg},
		{TwoLevel{}, fp.TwoLevel},
		{TwoLevel{Balanced: true}, fp.Balanced},
		{LTTrees{MaxGaps: fp.MaxGaps}, fp.LTTrees},
		{MixedLT{}, fp.MixedLT},
		{BottomUp{}, fp.BottomUp},
		{TopDown{Bufferer: &SplitBufferer{}}, fp.TopDown},
	}
	var result []Configured
	for _, c := range all {
		if c.Params.Enabled {
			result = append(result, c)
		}
	}
	return result
}

// Solution is a synthesized fanout tree in its flattened form.
type Solution struct {
	Alg   string
	Items []Item
	Cost  Cost
}

// Synthesize runs the algorithms on the problem and returns the best
// solution. The peephole pass is applied to the trees of algorithms
// that enable it. It returns ErrInfeasible if no algorithm could
// solve the problem.
func Synthesize(pb *Problem, src Source, algs []Configured,
	steps int) (*Solution, error) {

	var best *Solution
	size := pb.NumSinks()
	for _, alg := range algs {
		if size < alg.Params.MinSize {
			continue
		}
		tree, cost, ok := alg.Algorithm.Optimize(pb, src)
		if !ok {
			continue
		}
		if alg.Params.Peephole {
			tree, cost = Peephole(pb, src, tree, steps)
		}
		if best == nil || cost.Better(best.Cost) {
			best = &Solution{
				Alg:   alg.Algorithm.Name(),
				Items: tree.Flatten(),
				Cost:  cost,
			}
		}
	}
	if best == nil {
		return nil, ErrInfeasible
	}
	return best, nil
}

// NoAlg drives all sinks directly from the source, with one inverter
// for the sinks of the opposite polarity.
type NoAlg struct{}

// Name implements Algorithm.Name.
func (alg NoAlg) Name() string {
	return "noalg"
}

// Optimize implements Algorithm.Optimize.
func (alg NoAlg) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	p := src.Polarity()
	return pb.direct(src, pb.sinkPart(pb.Lists[p].Sinks),
		pb.sinkPart(pb.Lists[p^1].Sinks))
}

// direct builds the tree where the source drives the same polarity
// part directly and the opposite polarity part through one inverter.
func (pb *Problem) direct(src Source, same, opposite part) (
	*Node, Cost, bool) {

	if opposite.count == 0 {
		if same.count == 0 {
			return nil, Cost{}, false
		}
		root, cost := pb.bestRoot(src, same)
		return root, cost, true
	}
	var best *Node
	var bestCost Cost
	for _, g := range pb.Gates {
		if !g.Inverter() {
			continue
		}
		root, cost := pb.bestRoot(src, same, pb.bufferPart(g, opposite))
		if best == nil || cost.Better(bestCost) {
			best = root
			bestCost = cost
		}
	}
	return best, bestCost, best != nil
}
