//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"fmt"
	"math"
	"sort"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/pkg/errors"
)

// Bufferer inserts buffers into a network to reduce the fanout of the
// node source. The network contains the source as a primary input,
// at most one inverter node driven by it, and the fanout sinks as
// primary outputs with their required times and loads. Inserted
// buffers must be Buf or Inv nodes.
type Bufferer interface {
	Buffer(net *network.Network, source network.NodeID) error
}

// SplitBufferer limits the fanout of every node by moving the least
// critical consumers under a new buffer.
type SplitBufferer struct {
	// MaxFanout is the fanout limit. Zero means the default limit 4.
	MaxFanout int
}

// Buffer implements Bufferer.Buffer.
func (b *SplitBufferer) Buffer(net *network.Network,
	source network.NodeID) error {

	limit := b.MaxFanout
	if limit == 0 {
		limit = 4
	}
	if limit < 2 {
		return errors.Errorf("invalid fanout limit %d", limit)
	}
	queue := []network.NodeID{source}
	for _, f := range net.Fanouts(source) {
		if net.Node(f.Node).Op == network.Inv {
			queue = append(queue, f.Node)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		fanouts := net.Fanouts(id)
		if len(fanouts) <= limit {
			continue
		}
		key := func(f network.Fanout) float64 {
			n := net.Node(f.Node)
			if n.IsOutput() {
				return n.Required.Min()
			}
			return math.Inf(-1)
		}
		sort.SliceStable(fanouts, func(i, j int) bool {
			return key(fanouts[i]) < key(fanouts[j])
		})
		buf := net.AddNode(fmt.Sprintf("b%d", net.MaxID()), network.Buf, id)
		for _, f := range fanouts[limit-1:] {
			net.ReplaceFanin(f.Node, f.Pin, buf.ID)
		}
		queue = append(queue, buf.ID)
	}
	return nil
}

// TopDown delegates the tree construction to a Bufferer that works on
// a throwaway network of the problem.
type TopDown struct {
	Bufferer Bufferer
}

// Name implements Algorithm.Name.
func (alg TopDown) Name() string {
	return "top_down"
}

// Optimize implements Algorithm.Optimize.
func (alg TopDown) Optimize(pb *Problem, src Source) (*Node, Cost, bool) {
	var buf, inv *library.Gate
	for _, g := range pb.Gates {
		if g.Buffer() && buf == nil {
			buf = g
		}
		if g.Inverter() && inv == nil {
			inv = g
		}
	}
	ps := src.Polarity()
	if pb.Lists[ps^1].Len() > 0 && inv == nil {
		return nil, Cost{}, false
	}

	net := network.New("fanout")
	root := net.AddInput("src")
	var y *network.Node
	sinks := make(map[network.NodeID]int)
	for p := 0; p < 2; p++ {
		driver := root.ID
		if p != ps {
			if y == nil {
				y = net.AddNode("y", network.Inv, root.ID)
			}
			driver = y.ID
		}
		for _, idx := range pb.Lists[p].Sinks {
			s := pb.Sinks[idx].Link
			o := net.AddOutput(fmt.Sprintf("s%d", idx), driver)
			o.Required = s.Required
			o.HasRequired = true
			o.Load = s.Load
			o.HasLoad = true
			sinks[o.ID] = idx
		}
	}
	if err := alg.Bufferer.Buffer(net, root.ID); err != nil {
		return nil, Cost{}, false
	}

	var convert func(id network.NodeID) ([]*Node, error)
	convert = func(id network.NodeID) ([]*Node, error) {
		var result []*Node
		for _, f := range net.Fanouts(id) {
			n := net.Node(f.Node)
			if n.IsOutput() {
				idx, ok := sinks[n.ID]
				if !ok {
					return nil, errors.Errorf("unknown sink %s", n)
				}
				result = append(result, Leaf(idx))
				continue
			}
			children, err := convert(n.ID)
			if err != nil {
				return nil, err
			}
			switch {
			case n.Op == network.Inv:
				result = append(result, Buffer(inv, children...))
			case n.Op == network.Buf && buf != nil:
				result = append(result, Buffer(buf, children...))
			case n.Op == network.Buf && inv != nil:
				result = append(result,
					Buffer(inv, Buffer(inv, children...)))
			default:
				return nil, errors.Errorf("unsupported node %s", n)
			}
		}
		return result, nil
	}
	children, err := convert(root.ID)
	if err != nil {
		return nil, Cost{}, false
	}

	var best *Node
	var bestCost Cost
	for _, g := range src.Sizes() {
		tree := Root(g, children...)
		cost := pb.Evaluate(src, tree)
		if best == nil || cost.Better(bestCost) {
			best = tree
			bestCost = cost
		}
	}
	return best, bestCost, true
}
