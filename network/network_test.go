//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package network

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const netlist = `
# Full adder carry.
.model carry
.input a arrival=1/2
.input b
.input c drive=0.5/0.5
t1 = and a b
t2 = and a c
t3 = and b c
t4 = or t1 t2
co = or t4 t3
.output cout co required=10/10 load=2
`

func TestParse(t *testing.T) {
	net, err := Parse(strings.NewReader(netlist), "carry.net")
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	if net.Name != "carry" {
		t.Errorf("unexpected name %s", net.Name)
	}
	if len(net.Inputs()) != 3 || len(net.Outputs()) != 1 {
		t.Fatalf("unexpected IO: %s", net)
	}
	a := net.Lookup("a")
	if !a.HasArrival || a.Arrival.Fall != 2 {
		t.Errorf("arrival not parsed: %v", a.Arrival)
	}
	if a.NumFanouts() != 2 {
		t.Errorf("a has %d fanouts, expected 2", a.NumFanouts())
	}
	o := net.Outputs()[0]
	if !o.HasRequired || !o.HasLoad || o.Load != 2 {
		t.Errorf("output attributes not parsed")
	}

	var buf bytes.Buffer
	if err := net.Marshal(&buf); err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	again, err := Parse(&buf, "again.net")
	if err != nil {
		t.Fatalf("Parse marshalled: %s", err)
	}
	if again.Fingerprint() != net.Fingerprint() {
		t.Errorf("fingerprint changed over marshal")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"x = nand a\n",
		".input a\nx = foo a\n",
		".input a\nx = inv y\n",
		".input a\n.input a\n",
		".input a\nx = latch sideways a\n",
		".input a\nx = nand a y\ny = nand a x\n.output o x\n",
	}
	for _, test := range tests {
		_, err := Parse(strings.NewReader(test), "test")
		if err == nil {
			t.Errorf("Parse(%q) succeeded", test)
			continue
		}
		if errors.Cause(err) != ErrSyntax {
			t.Errorf("Parse(%q): unexpected error %v", test, err)
		}
	}
}

func TestTopoOrder(t *testing.T) {
	net := New("topo")
	a := net.AddInput("a")
	b := net.AddInput("b")
	x := net.AddNode("x", Nand, a.ID, b.ID)
	y := net.AddNode("y", Inv, x.ID)
	l := net.AddLatch("l", Rising, y.ID)
	z := net.AddNode("z", Nand, l.ID, x.ID)
	net.AddOutput("o", z.ID)

	pos := make(map[NodeID]int)
	for idx, n := range net.TopoOrder() {
		pos[n.ID] = idx
	}
	for _, n := range net.Nodes() {
		if n.Op == Latch {
			continue
		}
		for _, f := range n.Fanins {
			if pos[f] >= pos[n.ID] {
				t.Errorf("%s before its fanin %s", n, net.Node(f))
			}
		}
	}
	rev := net.ReverseTopoOrder()
	if rev[len(rev)-1].ID != net.TopoOrder()[0].ID {
		t.Errorf("reverse order mismatch")
	}
}

func TestTopoOrderCycle(t *testing.T) {
	net := New("cycle")
	a := net.AddInput("a")
	x := net.AddNode("x", Nand, a.ID, a.ID)
	y := net.AddNode("y", Inv, x.ID)
	net.AddOutput("o", y.ID)
	net.ReplaceFanin(x.ID, 1, y.ID)

	if _, err := net.topoOrder(); err == nil {
		t.Fatalf("topoOrder accepted a cycle")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("TopoOrder accepted a cycle")
		}
	}()
	net.TopoOrder()
}

func TestDecompose(t *testing.T) {
	net, err := Parse(strings.NewReader(netlist), "carry.net")
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	net.Decompose()
	for _, n := range net.Nodes() {
		if n.Kind != Internal {
			continue
		}
		if n.Op != Nand && n.Op != Inv {
			t.Errorf("node %s not decomposed: %s", n, n.Op)
		}
	}
	if net.Lookup("co") == nil {
		t.Errorf("root name lost in decomposition")
	}
}

func TestEditing(t *testing.T) {
	net := New("edit")
	a := net.AddInput("a")
	b := net.AddInput("b")
	x := net.AddNode("x", Nand, a.ID, b.ID)
	y := net.AddNode("y", Inv, x.ID)
	o := net.AddOutput("o", y.ID)

	before := net.Fingerprint()
	clone := net.Clone()

	net.ReplaceFanin(o.ID, 0, x.ID)
	if y.NumFanouts() != 0 || x.NumFanouts() != 2 {
		t.Fatalf("ReplaceFanin: fanouts not updated")
	}
	if removed := net.Prune(); removed != 1 {
		t.Errorf("Prune removed %d nodes, expected 1", removed)
	}
	if net.Node(y.ID) != nil {
		t.Errorf("pruned node still present")
	}
	if net.Fingerprint() == before {
		t.Errorf("fingerprint did not change")
	}
	if clone.Fingerprint() != before {
		t.Errorf("clone fingerprint changed")
	}
	net.Assign(clone)
	if net.Fingerprint() != before {
		t.Errorf("Assign did not restore the network")
	}
}
