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
)

// Peephole improves the tree with local transformations: it upsizes
// the buffers on the critical path for at most steps steps and keeps
// the best tree on the trajectory, flattens buffers into their
// parents, and merges sibling buffers of the same polarity. A
// transformation is kept only if it does not make the cost worse.
func Peephole(pb *Problem, src Source, root *Node, steps int) (*Node, Cost) {
	cost := pb.Evaluate(src, root)
	root, cost = pb.resize(src, root, cost, steps)

	for {
		next, nextCost, ok := pb.flatten(src, root, cost)
		if !ok {
			next, nextCost, ok = pb.mergeSiblings(src, root, cost)
		}
		if !ok {
			break
		}
		root = next
		cost = nextCost
	}
	return root, cost
}

// larger returns the next larger gate of the same class as g.
func (pb *Problem) larger(g *library.Gate) *library.Gate {
	var found bool
	for _, o := range pb.Gates {
		if found && o.Function == g.Function && o.Area > g.Area {
			return o
		}
		if o == g {
			found = true
		}
	}
	return nil
}

func largerSize(sizes []*library.Gate, g *library.Gate) *library.Gate {
	for i, o := range sizes {
		if o == g && i+1 < len(sizes) {
			return sizes[i+1]
		}
	}
	return nil
}

// criticalPath returns the buffers from the root toward the child
// with the earliest required time.
func (pb *Problem) criticalPath(root *Node, pol int) []*Node {
	var path []*Node
	n := root
	for {
		var next *Node
		best := math.Inf(1)
		for _, c := range n.Children {
			var req pwl.Delay
			if c.Kind == KindSink {
				req = pb.Sinks[c.Sink].Link.Required
			} else {
				creq, cload, _ := pb.eval(c, pol^inverting(c.Gate))
				req = c.Gate.Pins[0].Required(creq, cload, pb.Penalty)
			}
			if req.Min() < best {
				best = req.Min()
				next = c
			}
		}
		if next == nil || next.Kind == KindSink {
			return path
		}
		path = append(path, next)
		pol ^= inverting(next.Gate)
		n = next
	}
}

// replace returns a copy of the tree where the node target is replaced
// with the nodes repl.
func replace(n, target *Node, repl []*Node) (*Node, bool) {
	for i, c := range n.Children {
		if c == target {
			children := make([]*Node, 0, len(n.Children)-1+len(repl))
			children = append(children, n.Children[:i]...)
			children = append(children, repl...)
			children = append(children, n.Children[i+1:]...)
			return n.withChildren(children), true
		}
		if nc, ok := replace(c, target, repl); ok {
			children := append([]*Node(nil), n.Children...)
			children[i] = nc
			return n.withChildren(children), true
		}
	}
	return n, false
}

func (pb *Problem) resize(src Source, root *Node, cost Cost,
	steps int) (*Node, Cost) {

	type logEntry struct {
		tree *Node
		cost Cost
	}
	trajectory := []logEntry{{root, cost}}
	cur := root

	for step := 0; step < steps; step++ {
		var best *Node
		var bestCost Cost
		try := func(tree *Node) {
			c := pb.Evaluate(src, tree)
			if best == nil || pwl.Less(bestCost.Slack, c.Slack) {
				best = tree
				bestCost = c
			}
		}
		if g := largerSize(src.Sizes(), cur.Gate); g != nil {
			try(cur.withGate(g))
		}
		for _, b := range pb.criticalPath(cur, src.Polarity()) {
			g := pb.larger(b.Gate)
			if g == nil {
				continue
			}
			if tree, ok := replace(cur, b, []*Node{b.withGate(g)}); ok {
				try(tree)
			}
		}
		if best == nil {
			break
		}
		cur = best
		trajectory = append(trajectory, logEntry{best, bestCost})
	}

	// Replay the trajectory up to its best point.
	result := trajectory[0]
	for _, e := range trajectory[1:] {
		if e.cost.Better(result.cost) {
			result = e
		}
	}
	return result.tree, result.cost
}

// flatten moves the children of a buffer into its parent when the
// buffer is non-inverting, or when it is an inverter with a single
// inverter child.
func (pb *Problem) flatten(src Source, root *Node, cost Cost) (
	*Node, Cost, bool) {

	type flattening struct {
		target *Node
		repl   []*Node
	}
	var cands []flattening
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Kind != KindBuffer {
				continue
			}
			switch {
			case c.Gate.Buffer():
				cands = append(cands, flattening{c, c.Children})
			case len(c.Children) == 1 && c.Children[0].Kind == KindBuffer &&
				c.Children[0].Gate.Inverter():
				cands = append(cands, flattening{c, c.Children[0].Children})
			}
			walk(c)
		}
	}
	walk(root)

	for _, cand := range cands {
		tree, ok := replace(root, cand.target, cand.repl)
		if !ok {
			continue
		}
		c := pb.Evaluate(src, tree)
		if !cost.Better(c) {
			return tree, c, true
		}
	}
	return nil, Cost{}, false
}

// mergeSiblings merges two sibling buffers of the same polarity into
// the larger of the two.
func (pb *Problem) mergeSiblings(src Source, root *Node, cost Cost) (
	*Node, Cost, bool) {

	var parents []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		parents = append(parents, n)
		for _, c := range n.Children {
			if c.Kind == KindBuffer {
				walk(c)
			}
		}
	}
	walk(root)

	for _, parent := range parents {
		for i, a := range parent.Children {
			if a.Kind != KindBuffer {
				continue
			}
			for _, b := range parent.Children[i+1:] {
				if b.Kind != KindBuffer ||
					inverting(a.Gate) != inverting(b.Gate) {
					continue
				}
				g := a.Gate
				if b.Gate.Area > g.Area {
					g = b.Gate
				}
				children := append(append([]*Node(nil), a.Children...),
					b.Children...)
				merged := Buffer(g, children...)
				tree, ok := replaceChild(root, parent, a, b, merged)
				if !ok {
					continue
				}
				c := pb.Evaluate(src, tree)
				if !cost.Better(c) {
					return tree, c, true
				}
			}
		}
	}
	return nil, Cost{}, false
}

// replaceChild returns a copy of the tree where the children a and b
// of parent are replaced with merged.
func replaceChild(root, parent, a, b, merged *Node) (*Node, bool) {
	var children []*Node
	for _, c := range parent.Children {
		switch c {
		case a:
			children = append(children, merged)
		case b:
		default:
			children = append(children, c)
		}
	}
	np := parent.withChildren(children)
	if root == parent {
		return np, true
	}
	return replace(root, parent, []*Node{np})
}
