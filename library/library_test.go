//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package library

import (
	"strings"
	"testing"

	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/pkg/errors"
)

const testLibrary = `
# Test library.
WIRE 0.1 0 0.2 0.3
GATE inv1 1 O=inv(a);
PIN * INV 1 10 1 1 1 1
GATE inv2 2 O=inv(a);
PIN * INV 2 20 0.8 0.5 0.8 0.5
GATE buf1 2 O=buf(a);
PIN * NONINV 1 10 2 1 2 1
GATE nand2 2 O=nand(a,b);
PIN * INV 1 10 1 1 1 1
GATE and2 3 O=and(a,b);
PIN a NONINV 1 10 2 1 2 1
PIN b NONINV 1 10 2 1 2 1
GATE and2 3 O=inv(nand(b,a));
GATE zero 0 O=const0();
GATE dff 6 O=latch(d);
PIN d NONINV 1 10 1 1 1 1
LATCH rising
`

func parseLibrary(t *testing.T, data string) *Library {
	lib, err := Parse(strings.NewReader(data), "test.genlib", nil)
	if err != nil {
		t.Fatalf("failed to parse library: %v", err)
	}
	return lib
}

func TestParsePattern(t *testing.T) {
	tests := []struct {
		expr     string
		inputs   []string
		vertices int
		tt       uint64
	}{
		{"inv(a)", []string{"a"}, 2, 0b01},
		{"buf(a)", []string{"a"}, 3, 0b10},
		{"nand(a,b)", []string{"a", "b"}, 3, 0b0111},
		{"and(a, b)", []string{"a", "b"}, 4, 0b1000},
		{"or(a,b)", []string{"a", "b"}, 5, 0b1110},
		{"nor(a,b)", []string{"a", "b"}, 6, 0b0001},
		{"nand(inv(a),inv(a))", []string{"a"}, 3, 0b10},
		{"nand(nand(a,b),c)", []string{"a", "b", "c"}, 5, 0b10001111},
		{"const1()", nil, 1, 0b1},
	}
	for _, test := range tests {
		pat, names, err := ParsePattern(test.expr)
		if err != nil {
			t.Errorf("ParsePattern(%q) failed: %v", test.expr, err)
			continue
		}
		if strings.Join(names, ",") != strings.Join(test.inputs, ",") {
			t.Errorf("%s: inputs %v, expected %v", test.expr, names, test.inputs)
		}
		if len(pat.Vertices) != test.vertices {
			t.Errorf("%s: %d vertices, expected %d",
				test.expr, len(pat.Vertices), test.vertices)
		}
		tt := pat.TruthTable(len(names))
		if tt != test.tt {
			t.Errorf("%s: truth table %b, expected %b", test.expr, tt, test.tt)
		}
	}

	for _, expr := range []string{"", "inv(a", "nand(a)", "foo(a)", "inv(a))",
		"inv(a,b)"} {
		if _, _, err := ParsePattern(expr); err == nil {
			t.Errorf("ParsePattern(%q) succeeded", expr)
		}
	}
}

func TestPatternEdges(t *testing.T) {
	pat, _, err := ParsePattern("nand(inv(a),inv(a))")
	if err != nil {
		t.Fatal(err)
	}
	root := pat.Vertices[pat.Root]
	if root.Fanins[0] != root.Fanins[1] {
		t.Fatalf("shared sub-expression not shared: %v", root.Fanins)
	}
	inv := pat.Vertices[root.Fanins[0]]
	if inv.Fanouts != 2 {
		t.Errorf("shared inverter fanouts %d, expected 2", inv.Fanouts)
	}
	// nand->inv, nand->inv, inv->a
	if len(pat.Edges) != 3 {
		t.Errorf("got %d edges, expected 3: %v", len(pat.Edges), pat.Edges)
	}
	for _, e := range pat.Edges {
		if e.Dir != In {
			t.Errorf("unexpected edge direction %v", e.Dir)
		}
	}
}

func TestLibrary(t *testing.T) {
	lib := parseLibrary(t, testLibrary)
	if err := lib.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	invs := lib.Inverters()
	if len(invs) != 2 || invs[0].Name != "inv1" || invs[1].Name != "inv2" {
		t.Errorf("unexpected inverters: %v", invs)
	}
	if lib.SmallestInverter().Name != "inv1" {
		t.Errorf("unexpected smallest inverter")
	}
	bufs := lib.Buffers()
	if len(bufs) != 1 || bufs[0].Name != "buf1" {
		t.Errorf("unexpected buffers: %v", bufs)
	}
	and2 := lib.Gate("and2")
	if len(and2.Patterns) != 2 {
		t.Errorf("and2 has %d patterns, expected 2", len(and2.Patterns))
	}
	if and2.Function != ttAnd2 {
		t.Errorf("and2 function %b", and2.Function)
	}
	if lib.Constant(false) == nil || lib.Constant(true) != nil {
		t.Errorf("unexpected constants")
	}
	dff := lib.Gate("dff")
	if dff.Seq != SeqLatch || dff.Edge != network.Rising || dff.Buffer() {
		t.Errorf("unexpected latch gate: %v %v", dff.Seq, dff.Edge)
	}
	if class := lib.Class(invs[1]); len(class) != 2 {
		t.Errorf("inverter class has %d gates", len(class))
	}

	wl := lib.WireLoad
	for n, expected := range map[int]float64{
		0: 0, 1: 0, 2: 0.2, 3: 0.3, 5: 0.5,
	} {
		if got := wl.Load(n); got < expected-1e-12 || got > expected+1e-12 {
			t.Errorf("WireLoad(%d)=%v, expected %v", n, got, expected)
		}
	}
}

func TestPinDelay(t *testing.T) {
	lib := parseLibrary(t, testLibrary)
	pin := lib.Gate("nand2").Pins[0]
	pin.MaxLoad = 2

	at := pin.Arrival(pwl.Delay{Rise: 1, Fall: 3}, 1, 10)
	// Inverting pin: rise output follows the fall input.
	if at.Rise != 3+2 || at.Fall != 1+2 {
		t.Errorf("unexpected arrival %v", at)
	}
	at = pin.Arrival(pwl.Delay{Rise: 1, Fall: 3}, 3, 10)
	if at.Rise != 3+4+10 {
		t.Errorf("penalty not applied: %v", at)
	}

	rise, fall := pin.Lines(pwl.Delay{Rise: 1, Fall: 3}, 10, 7)
	if len(rise) != 2 || len(fall) != 2 {
		t.Fatalf("expected penalty lines")
	}
	for _, load := range []float64{0, 1, 2, 3, 5} {
		at := pin.Arrival(pwl.Delay{Rise: 1, Fall: 3}, load, 10)
		var best float64
		for i, l := range rise {
			if i == 0 || l.Eval(load) > best {
				best = l.Eval(load)
			}
		}
		if best < at.Rise-1e-9 || best > at.Rise+1e-9 {
			t.Errorf("load %v: lines %v, arrival %v", load, best, at.Rise)
		}
	}
}

func TestIncomplete(t *testing.T) {
	lib := parseLibrary(t, `
GATE inv1 1 O=inv(a);
PIN * INV 1 10 1 1 1 1
GATE buf1 2 O=buf(a);
PIN * NONINV 1 10 2 1 2 1
`)
	err := lib.Check()
	if err == nil {
		t.Fatalf("Check succeeded for incomplete library")
	}
	if errors.Cause(err) != ErrIncomplete {
		t.Errorf("unexpected error: %v", err)
	}

	lib = parseLibrary(t, `
GATE nor2 2 O=nor(a,b);
PIN * INV 1 10 1 1 1 1
`)
	if errors.Cause(lib.Check()) != ErrIncomplete {
		t.Errorf("library without inverter passed Check")
	}

	lib = parseLibrary(t, testLibrary)
	net := network.New("latch")
	a := net.AddInput("a")
	l := net.AddLatch("l", network.Falling, a.ID)
	c := net.AddNode("c", network.Const1)
	net.AddOutput("o", l.ID)
	net.AddOutput("p", c.ID)
	if errors.Cause(lib.CheckNetwork(net)) != ErrIncomplete {
		t.Errorf("CheckNetwork accepted network with const1")
	}
}

func TestParseErrors(t *testing.T) {
	for _, data := range []string{
		"PIN a INV 1 1 1 1 1 1\n",
		"GATE inv1 1 O=inv(a);\nPIN a INV 1 1 1\n",
		"GATE inv1 x O=inv(a);\n",
		"GATE inv1 1 O=inv(a);\nPIN a BAD 1 1 1 1 1 1\n",
		"GATE inv1 1 O=inv(a);\nPIN b INV 1 1 1 1 1 1\n",
		"GATE nand2 1 O=nand(a,b);\nPIN * INV 1 1 1 1 1 1\nGATE nand2 1 O=and(a,b);\n",
		"FOO\n",
	} {
		_, err := Parse(strings.NewReader(data), "err.genlib", nil)
		if err == nil {
			t.Errorf("Parse succeeded for %q", data)
		}
	}
}
