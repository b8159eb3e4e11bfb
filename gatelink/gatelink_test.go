//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package gatelink

import (
	"strings"
	"testing"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
)

const testLibrary = `
WIRE 0.5 0 0.5 0.5
GATE inv1 1 O=inv(a);
PIN * INV 1 8 1 1 1 1
GATE inv2 2 O=inv(a);
PIN * INV 2 8 1 0.5 1 0.5
GATE buf1 2 O=buf(a);
PIN * NONINV 1.5 8 2 1 2 1
GATE nand2 2 O=nand(a,b);
PIN * INV 1 8 1 1 1 1
`

const testNetwork = `
.input a
.input b
n = gate nand2 a b
w = wire n
x = gate inv1 w
y = gate inv1 n
.output ox x load=3
.output oy y
.output on n load=2
`

func setup(t *testing.T) (*network.Network, *library.Library) {
	lib, err := library.Parse(strings.NewReader(testLibrary), "test", nil)
	if err != nil {
		t.Fatalf("library: %v", err)
	}
	net, err := network.Parse(strings.NewReader(testNetwork), "test")
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	return net, lib
}

func TestBuild(t *testing.T) {
	net, lib := setup(t)

	if _, err := New(net, lib); err == nil {
		t.Fatalf("New accepted an unspliced wire node")
	}
	if count := SpliceWires(net); count != 1 {
		t.Fatalf("SpliceWires removed %d nodes", count)
	}
	g, err := New(net, lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := net.Lookup("n")
	links := g.Links(n.ID)
	if len(links) != 3 {
		t.Fatalf("node n has %d links, expected 3", len(links))
	}
	var outputs int
	for _, l := range links {
		if l.Pin == OutputPin {
			outputs++
			if l.Load != 2 {
				t.Errorf("output link load %v", l.Load)
			}
		} else if l.Load != 1 {
			t.Errorf("link %s load %v", l, l.Load)
		}
	}
	if outputs != 1 {
		t.Errorf("node n has %d output links", outputs)
	}
	// 1 + 1 + 2 plus the wire load of three links.
	if load := g.Load(n.ID); load != 4.5 {
		t.Errorf("Load(n)=%v, expected 4.5", load)
	}
	oy := net.Lookup("oy")
	y := net.Lookup("y")
	if l := g.Links(y.ID); len(l) != 1 || l[0].To != oy.ID ||
		l[0].Load != lib.DefaultLoad() {
		t.Errorf("links of y: %v", l)
	}
	if d, ok := g.Driver(y.ID, 0); !ok || d != n.ID {
		t.Errorf("Driver(y)=%v,%v", d, ok)
	}
	fanins := g.Fanins(n.ID)
	if len(fanins) != 2 || fanins[0] != net.Lookup("a").ID ||
		fanins[1] != net.Lookup("b").ID {
		t.Errorf("Fanins(n)=%v", fanins)
	}
}

func TestUniquePin(t *testing.T) {
	net, lib := setup(t)
	SpliceWires(net)
	g, err := New(net, lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("duplicate pin driver accepted")
		}
	}()
	g.Add(net.Lookup("a").ID, Link{
		To:  net.Lookup("x").ID,
		Pin: 0,
	})
}

func TestResize(t *testing.T) {
	net, lib := setup(t)
	SpliceWires(net)
	g, err := New(net, lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := net.Lookup("n")
	x := net.Lookup("x")
	before := g.Load(n.ID)
	g.SetGate(x.ID, lib.Gate("inv2"))
	if after := g.Load(n.ID); after != before+1 {
		t.Errorf("Load after resize %v, expected %v", after, before+1)
	}
	g.Materialize()
	if x.Gate != "inv2" {
		t.Errorf("resize not materialized: %s", x.Gate)
	}
}

func TestMaterialize(t *testing.T) {
	net, lib := setup(t)
	SpliceWires(net)
	g, err := New(net, lib)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n := net.Lookup("n")
	x := net.Lookup("x")
	y := net.Lookup("y")
	ox := net.Lookup("ox")
	buf := lib.Gate("buf1")

	// Delete x, drive ox from y, and move oy under a new buffer.
	removed := g.RemoveAll(n.ID)
	if len(removed) != 3 {
		t.Fatalf("RemoveAll returned %d links", len(removed))
	}
	g.RemoveAll(x.ID)
	g.Delete(x.ID)
	g.RemoveAll(y.ID)

	v := g.NewNode(buf)
	if !g.Virtual(v) || g.Node(v) != nil {
		t.Fatalf("NewNode did not create a virtual node")
	}
	g.Add(n.ID, Link{To: v, Pin: 0, Load: buf.Pins[0].Load})
	g.Add(n.ID, Link{To: y.ID, Pin: 0, Load: 1})
	for _, l := range removed {
		if l.Pin == OutputPin {
			g.Add(n.ID, l)
		}
	}
	g.Add(y.ID, Link{To: ox.ID, Pin: OutputPin, Load: 3})
	g.Add(v, Link{To: net.Lookup("oy").ID, Pin: OutputPin, Load: 1})

	fp := net.Fingerprint()
	ids := g.Materialize()
	if net.Fingerprint() == fp {
		t.Errorf("Materialize did not change the network")
	}
	id, ok := ids[v]
	if !ok {
		t.Fatalf("virtual node not materialized")
	}
	if net.Node(x.ID) != nil {
		t.Errorf("deleted node x still in network")
	}
	bn := net.Node(id)
	if bn.Gate != "buf1" || bn.Fanins[0] != n.ID {
		t.Errorf("buffer node %s: gate %s fanins %v", bn, bn.Gate, bn.Fanins)
	}
	if ox.Fanins[0] != y.ID {
		t.Errorf("ox driven by %v", ox.Fanins[0])
	}
	if oy := net.Lookup("oy"); oy.Fanins[0] != id {
		t.Errorf("oy driven by %v", oy.Fanins[0])
	}
	if n.NumFanouts() != 3 {
		t.Errorf("node n has %d fanouts", n.NumFanouts())
	}
	// The network must still be acyclic and complete.
	if len(net.TopoOrder()) != net.NumNodes() {
		t.Errorf("TopoOrder lost nodes")
	}
}
