//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package fanout implements fanout-tree synthesis: the buffer and
// inverter tree algorithms and the network-wide fanout optimizer.
package fanout

import (
	"fmt"
	"math"
	"sort"

	"github.com/markkurossi/techmap/gatelink"
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/pwl"
	"github.com/pkg/errors"
)

// ErrInfeasible is returned when no fanout tree can be built for a
// problem.
var ErrInfeasible = errors.New("infeasible fanout problem")

// Sink is a consumer pin of a fanout problem. Polarity 0 sinks
// consume the natural output of the fanout point and polarity 1 sinks
// its complement.
type Sink struct {
	Link     gatelink.Link
	Polarity int
}

// SinkList holds the sinks of one polarity, most critical first.
// Prefix[i] is the total load of the first i sinks.
type SinkList struct {
	Sinks  []int
	Prefix []float64
}

// Len returns the number of sinks in the list.
func (l SinkList) Len() int {
	return len(l.Sinks)
}

// Problem is a fanout-tree synthesis problem: the sinks by polarity,
// the buffer and inverter gates, and the wire load model.
type Problem struct {
	Sinks   []Sink
	Lists   [2]SinkList
	Gates   []*library.Gate
	Wire    library.WireLoad
	Penalty float64
}

// NewProblem creates a fanout problem. The gates must be buffers or
// inverters.
func NewProblem(sinks []Sink, gates []*library.Gate, wire library.WireLoad,
	penalty float64) *Problem {

	pb := &Problem{
		Sinks:   sinks,
		Wire:    wire,
		Penalty: penalty,
	}
	for _, g := range gates {
		if !g.Buffer() && !g.Inverter() {
			panic(fmt.Sprintf("NewProblem: %s is not a buffer or inverter", g))
		}
		pb.Gates = append(pb.Gates, g)
	}
	sort.SliceStable(pb.Gates, func(i, j int) bool {
		return pb.Gates[i].Area < pb.Gates[j].Area
	})
	for i, s := range sinks {
		if s.Polarity != 0 && s.Polarity != 1 {
			panic(fmt.Sprintf("NewProblem: sink %d has polarity %d",
				i, s.Polarity))
		}
		pb.Lists[s.Polarity].Sinks = append(pb.Lists[s.Polarity].Sinks, i)
	}
	for p := range pb.Lists {
		list := pb.Lists[p].Sinks
		sort.SliceStable(list, func(i, j int) bool {
			return sinks[list[i]].Link.Required.Min() <
				sinks[list[j]].Link.Required.Min()
		})
		prefix := make([]float64, len(list)+1)
		for i, idx := range list {
			prefix[i+1] = prefix[i] + sinks[idx].Link.Load
		}
		pb.Lists[p].Prefix = prefix
	}
	return pb
}

// Only returns a problem that keeps only the sinks of the polarity.
// The sink indices are shared with pb.
func (pb *Problem) Only(polarity int) *Problem {
	result := *pb
	result.Lists[polarity^1] = SinkList{
		Prefix: []float64{0},
	}
	return &result
}

// NumSinks returns the number of sinks in the problem lists.
func (pb *Problem) NumSinks() int {
	return pb.Lists[0].Len() + pb.Lists[1].Len()
}

func (pb *Problem) String() string {
	return fmt.Sprintf("%d+%d sinks, %d gates",
		pb.Lists[0].Len(), pb.Lists[1].Len(), len(pb.Gates))
}

func inverting(g *library.Gate) int {
	if g.Inverter() {
		return 1
	}
	return 0
}

// Cost is the cost of a fanout tree: the worst slack at the source
// inputs and the total area.
type Cost struct {
	Slack float64
	Area  float64
}

func (c Cost) String() string {
	return fmt.Sprintf("slack=%.3f area=%.2f", c.Slack, c.Area)
}

// Better tests if the cost c is strictly better than o. When both
// costs meet their required times, the smaller area wins and slack
// breaks ties. Otherwise the larger slack wins and area breaks ties.
// All comparisons use the pwl epsilon.
func (c Cost) Better(o Cost) bool {
	if !pwl.Less(c.Slack, 0) && !pwl.Less(o.Slack, 0) {
		if pwl.Less(c.Area, o.Area) {
			return true
		}
		if pwl.Less(o.Area, c.Area) {
			return false
		}
		return pwl.Less(o.Slack, c.Slack)
	}
	if pwl.Less(o.Slack, c.Slack) {
		return true
	}
	if pwl.Less(c.Slack, o.Slack) {
		return false
	}
	return pwl.Less(c.Area, o.Area)
}

// Evaluate computes the cost of the tree rooted at the source. The
// loads are propagated from the sinks and the required times
// backward through every buffer.
func (pb *Problem) Evaluate(src Source, root *Node) Cost {
	if root.Kind != KindSource {
		panic(fmt.Sprintf("Evaluate: root is %s", root.Kind))
	}
	req, load, area := pb.eval(root, src.Polarity())
	return Cost{
		Slack: src.Slack(root.Gate, req, load),
		Area:  area + src.Area(root.Gate),
	}
}

// eval returns the required time at the output of n with the output
// polarity pol, the load n drives, and the area of the buffers below
// n.
func (pb *Problem) eval(n *Node, pol int) (req pwl.Delay, load, area float64) {
	req = pwl.Inf(1)
	for _, c := range n.Children {
		switch c.Kind {
		case KindSink:
			s := pb.Sinks[c.Sink]
			if s.Polarity != pol {
				panic(fmt.Sprintf("sink %d of polarity %d under polarity %d",
					c.Sink, s.Polarity, pol))
			}
			req = pwl.MinDelay(req, s.Link.Required)
			load += s.Link.Load

		case KindBuffer:
			creq, cload, carea := pb.eval(c, pol^inverting(c.Gate))
			pin := &c.Gate.Pins[0]
			req = pwl.MinDelay(req, pin.Required(creq, cload, pb.Penalty))
			load += pin.Load
			area += carea + c.Gate.Area

		default:
			panic(fmt.Sprintf("eval: unexpected %s child", c.Kind))
		}
	}
	load += pb.Wire.Load(len(n.Children))
	return
}

// part is a group of children of one parent node.
type part struct {
	children []*Node
	req      pwl.Delay
	load     float64
	count    int
	area     float64
}

func emptyPart() part {
	return part{
		req: pwl.Inf(1),
	}
}

func (pb *Problem) sinkPart(sinks []int) part {
	p := emptyPart()
	for _, idx := range sinks {
		s := pb.Sinks[idx]
		p.children = append(p.children, Leaf(idx))
		p.req = pwl.MinDelay(p.req, s.Link.Required)
		p.load += s.Link.Load
		p.count++
	}
	return p
}

// outLoad returns the load of a node driving the part.
func (pb *Problem) outLoad(p part) float64 {
	return p.load + pb.Wire.Load(p.count)
}

// bufferPart returns the part of the buffer g driving inner.
func (pb *Problem) bufferPart(g *library.Gate, inner part) part {
	pin := &g.Pins[0]
	return part{
		children: []*Node{Buffer(g, inner.children...)},
		req:      pin.Required(inner.req, pb.outLoad(inner), pb.Penalty),
		load:     pin.Load,
		count:    1,
		area:     inner.area + g.Area,
	}
}

func merge(parts ...part) part {
	result := emptyPart()
	for _, p := range parts {
		result.children = append(result.children, p.children...)
		result.req = pwl.MinDelay(result.req, p.req)
		result.load += p.load
		result.count += p.count
		result.area += p.area
	}
	return result
}

// bestRoot selects the source gate size for the merged parts.
func (pb *Problem) bestRoot(src Source, parts ...part) (*Node, Cost) {
	p := merge(parts...)
	load := pb.outLoad(p)

	var best *library.Gate
	var bestCost Cost
	for i, g := range src.Sizes() {
		cost := Cost{
			Slack: src.Slack(g, p.req, load),
			Area:  p.area + src.Area(g),
		}
		if i == 0 || cost.Better(bestCost) {
			best = g
			bestCost = cost
		}
	}
	return Root(best, p.children...), bestCost
}

// sourceDrive estimates the output drive of the source: the arrival
// increase per unit load.
func sourceDrive(src Source) float64 {
	g := src.Sizes()[0]
	d := src.Arrival(g, 1).Sub(src.Arrival(g, 0)).Max()
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}
