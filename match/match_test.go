//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package match

import (
	"testing"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/utils"
)

func pattern(t *testing.T, expr string) *library.Pattern {
	pat, _, err := library.ParsePattern(expr)
	if err != nil {
		t.Fatalf("ParsePattern(%q): %v", expr, err)
	}
	for i := range pat.Vertices {
		pat.Vertices[i].Input = -1
	}
	pat.Leaves = nil
	for i, v := range pat.Vertices {
		if v.Leaf() {
			pat.Vertices[i].Input = len(pat.Leaves)
			pat.Leaves = append(pat.Leaves, i)
		}
	}
	return pat
}

func collect(net *network.Network, root network.NodeID,
	pat *library.Pattern, opts Options) []*Binding {

	var result []*Binding
	All(net, root, pat, func(b *Binding) bool {
		result = append(result, b)
		return true
	}, opts)
	return result
}

func TestTwoBindings(t *testing.T) {
	net := network.New("two")
	x := net.AddInput("x")
	y := net.AddInput("y")
	n := net.AddNode("n", network.Nand, x.ID, y.ID)
	i := net.AddNode("i", network.Inv, n.ID)
	net.AddOutput("o", i.ID)

	pat := pattern(t, "nand(a,b)")
	if len(pat.Vertices) != 3 {
		t.Fatalf("pattern has %d vertices", len(pat.Vertices))
	}
	bindings := collect(net, n.ID, pat, Options{})
	if len(bindings) != 2 {
		t.Fatalf("got %d bindings, expected 2", len(bindings))
	}
	a0, b0 := bindings[0].Input(0), bindings[0].Input(1)
	a1, b1 := bindings[1].Input(0), bindings[1].Input(1)
	if a0 != b1 || b0 != a1 || a0 == b0 {
		t.Errorf("bindings not distinct: %v %v", bindings[0], bindings[1])
	}
	if bindings[0].Root() != n.ID {
		t.Errorf("unexpected root %v", bindings[0].Root())
	}

	for _, id := range []network.NodeID{x.ID, i.ID} {
		if got := collect(net, id, pat, Options{}); len(got) != 0 {
			t.Errorf("node %d: unexpected bindings %v", id, got)
		}
	}
}

func TestStop(t *testing.T) {
	net := network.New("stop")
	x := net.AddInput("x")
	y := net.AddInput("y")
	n := net.AddNode("n", network.Nand, x.ID, y.ID)
	net.AddOutput("o", n.ID)

	var count int
	m := New(net, Options{})
	cont := m.All(n.ID, pattern(t, "nand(a,b)"), func(b *Binding) bool {
		count++
		return false
	})
	if cont || count != 1 {
		t.Errorf("enumeration not stopped: cont=%v, count=%d", cont, count)
	}
	for id, o := range m.owner {
		if o != -1 || m.leafRefs[id] != 0 {
			t.Errorf("residual binding state at node %d", id)
		}
	}
}

func TestInternalFanout(t *testing.T) {
	net := network.New("fanout")
	x := net.AddInput("x")
	y := net.AddInput("y")
	g := net.AddNode("g", network.Nand, x.ID, y.ID)
	h := net.AddNode("h", network.Inv, g.ID)
	net.AddOutput("o1", h.ID)
	net.AddOutput("o2", g.ID)

	pat := pattern(t, "and(a,b)")

	tests := []struct {
		opts     Options
		expected int
	}{
		{Options{Policy: utils.FanoutReject}, 0},
		{Options{Policy: utils.FanoutUnbounded}, 2},
		{Options{Policy: utils.FanoutBounded, Limit: 1}, 0},
		{Options{Policy: utils.FanoutBounded, Limit: 2}, 2},
		{Options{Policy: utils.FanoutUnbounded, LeafLevel: true}, 2},
	}
	for idx, test := range tests {
		got := collect(net, h.ID, pat, test.opts)
		if len(got) != test.expected {
			t.Errorf("test %d: got %d bindings, expected %d",
				idx, len(got), test.expected)
		}
	}
}

func TestLeafLevel(t *testing.T) {
	net := network.New("leaflevel")
	x := net.AddInput("x")
	y := net.AddInput("y")
	g := net.AddNode("g", network.Nand, x.ID, y.ID)
	h1 := net.AddNode("h1", network.Inv, g.ID)
	h2 := net.AddNode("h2", network.Inv, h1.ID)
	net.AddOutput("o1", h2.ID)
	net.AddOutput("o2", h1.ID)

	pat := pattern(t, "inv(and(a,b))")

	got := collect(net, h2.ID, pat, Options{
		Policy: utils.FanoutUnbounded,
	})
	if len(got) != 2 {
		t.Errorf("unbounded: got %d bindings, expected 2", len(got))
	}
	got = collect(net, h2.ID, pat, Options{
		Policy:    utils.FanoutUnbounded,
		LeafLevel: true,
	})
	if len(got) != 0 {
		t.Errorf("leaf-level: got %d bindings, expected 0", len(got))
	}
}

func TestSharedLeaves(t *testing.T) {
	net := network.New("shared")
	x := net.AddInput("x")
	n := net.AddNode("n", network.Nand, x.ID, x.ID)
	net.AddOutput("o", n.ID)

	got := collect(net, n.ID, pattern(t, "nand(a,b)"), Options{})
	if len(got) != 1 {
		t.Fatalf("got %d bindings, expected 1", len(got))
	}
	if got[0].Input(0) != x.ID || got[0].Input(1) != x.ID {
		t.Errorf("unexpected binding %v", got[0])
	}
}

func TestOutEdges(t *testing.T) {
	net := network.New("out")
	x := net.AddInput("x")
	y := net.AddInput("y")
	i := net.AddNode("i", network.Inv, x.ID)
	n1 := net.AddNode("n1", network.Nand, i.ID, y.ID)
	n2 := net.AddNode("n2", network.Nand, y.ID, i.ID)
	net.AddOutput("o1", n1.ID)
	net.AddOutput("o2", n2.ID)

	// The root inverter and its NAND consumer.
	pat := &library.Pattern{
		Vertices: []library.Vertex{
			{Op: network.Wire, Input: 0, Name: "a"},
			{Op: network.Inv, Fanins: []int{0}, Input: -1},
			{Op: network.Nand, Fanins: []int{1, 3}, Input: -1},
			{Op: network.Wire, Input: 1, Name: "b"},
		},
		Root: 1,
		Edges: []library.Edge{
			{From: 1, To: 0, Pin: 0, Dir: library.In},
			{From: 1, To: 2, Pin: 0, Dir: library.Out},
			{From: 2, To: 3, Pin: 1, Dir: library.In},
		},
		Leaves: []int{0, 3},
	}
	got := collect(net, i.ID, pat, Options{
		Policy: utils.FanoutUnbounded,
	})
	if len(got) != 2 {
		t.Fatalf("got %d bindings, expected 2", len(got))
	}
	seen := make(map[network.NodeID]bool)
	for _, b := range got {
		if b.Input(0) != x.ID || b.Input(1) != y.ID {
			t.Errorf("unexpected inputs %v", b.Inputs())
		}
		seen[b.Nodes[2]] = true
	}
	if !seen[n1.ID] || !seen[n2.ID] {
		t.Errorf("consumers not matched: %v", seen)
	}
}
