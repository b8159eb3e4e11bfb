//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mapper

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/timing"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

const carry = `
.model carry
.input a
.input b
.input c
t1 = and a b
t2 = and a c
t3 = and b c
t4 = or t1 t2
co = or t4 t3
s1 = xor a b
s = xor s1 c
.output cout co load=1
.output sum s load=1
`

const tree = `
.model tree
.input a
.input b
.input c
.input d
.input e arrival=3
t1 = and a b
t2 = or t1 c
t3 = nand t2 d
t4 = nor t3 e
.output o t4 load=2
`

func loadLibrary(t *testing.T) *library.Library {
	f, err := os.Open("../testsuite/lib.genlib")
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	defer f.Close()
	lib, err := library.Parse(f, "lib.genlib", nil)
	if err != nil {
		t.Fatalf("failed to parse library: %v", err)
	}
	return lib
}

func parseNetwork(t *testing.T, data string) *network.Network {
	net, err := network.Parse(strings.NewReader(data), "test.net")
	if err != nil {
		t.Fatalf("failed to parse network: %v", err)
	}
	return net
}

// simulate evaluates the combinational network for the input values
// encoded in the bits of row.
func simulate(net *network.Network, lib *library.Library,
	row uint) map[string]bool {

	val := make(map[network.NodeID]bool)
	for i, n := range net.Inputs() {
		val[n.ID] = row&(1<<uint(i)) != 0
	}
	result := make(map[string]bool)
	for _, n := range net.TopoOrder() {
		var in []bool
		for _, f := range n.Fanins {
			in = append(in, val[f])
		}
		switch {
		case n.IsInput():
			continue
		case n.IsOutput():
			val[n.ID] = in[0]
			result[n.Name] = in[0]
			continue
		}
		switch n.Op {
		case network.Gate:
			var r uint
			for i, v := range in {
				if v {
					r |= 1 << uint(i)
				}
			}
			val[n.ID] = lib.Gate(n.Gate).Function&(1<<r) != 0
		case network.Const0:
			val[n.ID] = false
		case network.Const1:
			val[n.ID] = true
		case network.Wire, network.Buf:
			val[n.ID] = in[0]
		case network.Inv:
			val[n.ID] = !in[0]
		case network.Nand:
			val[n.ID] = !(in[0] && in[1])
		case network.And:
			val[n.ID] = in[0] && in[1]
		case network.Or:
			val[n.ID] = in[0] || in[1]
		case network.Nor:
			val[n.ID] = !(in[0] || in[1])
		case network.Xor:
			val[n.ID] = in[0] != in[1]
		case network.Xnor:
			val[n.ID] = in[0] == in[1]
		}
	}
	return result
}

func equivalent(t *testing.T, a, b *network.Network, lib *library.Library) {
	t.Helper()
	n := len(a.Inputs())
	for row := uint(0); row < 1<<uint(n); row++ {
		ra := simulate(a, lib, row)
		rb := simulate(b, lib, row)
		for name, v := range ra {
			if rb[name] != v {
				t.Fatalf("output %s differs for inputs %b", name, row)
			}
		}
	}
}

func mapNetwork(t *testing.T, lib *library.Library, params *utils.Params,
	data string) (*network.Network, *timing.Analysis) {

	t.Helper()
	net := parseNetwork(t, data)
	orig := net.Clone()
	if err := New(lib, params, nil).Map(net); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	for _, n := range net.Nodes() {
		if n.Kind == network.Internal && !n.Mapped() {
			t.Errorf("node %s not mapped", n)
		}
	}
	equivalent(t, orig, net, lib)

	a, err := timing.Analyze(net, lib, params)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return net, a
}

func TestModes(t *testing.T) {
	lib := loadLibrary(t)

	for _, mode := range []utils.Mode{utils.ModeArea, utils.ModeDelay,
		utils.ModeBlend, utils.ModeThreshold, utils.ModeSlack} {
		for _, cost := range []utils.CostFunc{utils.CostMax,
			utils.CostAverage} {
			for _, est := range []utils.LoadEstimate{utils.LoadIgnore,
				utils.LoadLinear, utils.LoadTree} {

				params := utils.NewParams()
				params.Mode = mode
				params.Cost = cost
				params.LoadEstimate = est
				params.Threshold = 0.5

				for _, data := range []string{carry, tree} {
					_, a := mapNetwork(t, lib, params, data)
					if a.Gates == 0 || a.Area <= 0 {
						t.Errorf("%s/%s/%s: empty mapping: %s",
							mode, cost, est, a)
					}
				}
			}
		}
	}
}

func TestTreeOptimality(t *testing.T) {
	lib := loadLibrary(t)

	// With equal rise and fall parameters the delay cost is exact.
	for _, g := range lib.Gates {
		for i := range g.Pins {
			g.Pins[i].Block.Fall = g.Pins[i].Block.Rise
			g.Pins[i].Drive.Fall = g.Pins[i].Drive.Rise
		}
	}

	params := utils.NewParams()
	params.Mode = utils.ModeArea
	_, area := mapNetwork(t, lib, params, tree)

	params.Mode = utils.ModeDelay
	_, delay := mapNetwork(t, lib, params, tree)

	if area.Area > delay.Area+1e-9 {
		t.Errorf("area mode area %v > delay mode area %v",
			area.Area, delay.Area)
	}
	if delay.Delay > area.Delay+1e-9 {
		t.Errorf("delay mode delay %v > area mode delay %v",
			delay.Delay, area.Delay)
	}
}

func TestAreaMonotone(t *testing.T) {
	params := utils.NewParams()
	params.Mode = utils.ModeArea

	for _, name := range []string{"aoi21", "nand2", "inv1", "nor2"} {
		prev := -1.0
		for step := 0; step < 8; step++ {
			lib := loadLibrary(t)
			lib.Gate(name).Area += float64(step)

			_, a := mapNetwork(t, lib, params, tree)
			if a.Area < prev-1e-9 {
				t.Errorf("%s area +%d: total area %v < %v",
					name, step, a.Area, prev)
			}
			prev = a.Area
		}
	}
}

func TestIncomplete(t *testing.T) {
	lib, err := library.Parse(strings.NewReader(`
GATE inv1 1 O=inv(a);
PIN * INV 1 8 1 1 1 1
GATE buf1 2 O=buf(a);
PIN * NONINV 1 8 2 1 2 1
`), "incomplete.genlib", nil)
	if err != nil {
		t.Fatal(err)
	}
	net := parseNetwork(t, carry)
	fp := net.Fingerprint()

	err = New(lib, utils.NewParams(), nil).Map(net)
	if errors.Cause(err) != library.ErrIncomplete {
		t.Errorf("expected incomplete library, got %v", err)
	}
	if net.Fingerprint() != fp {
		t.Errorf("network modified by failed mapping")
	}

	// Check passes but a NAND node has no match.
	lib, err = library.Parse(strings.NewReader(`
GATE inv1 1 O=inv(a);
PIN * INV 1 8 1 1 1 1
GATE nor2 2 O=nor(a,b);
PIN * INV 1 8 1 1 1 1
`), "nor.genlib", nil)
	if err != nil {
		t.Fatal(err)
	}
	err = New(lib, utils.NewParams(), nil).Map(net)
	if errors.Cause(err) != library.ErrIncomplete {
		t.Errorf("expected incomplete library, got %v", err)
	}
	if net.Fingerprint() != fp {
		t.Errorf("network modified by failed mapping")
	}
}

func TestLatchRetry(t *testing.T) {
	lib := loadLibrary(t)
	net := parseNetwork(t, `
.model seq
.input a
.input b
n = nand a q
q = latch falling n
x = and q b
.output o x
`)
	var buf bytes.Buffer
	log := utils.NewLogger(&buf, 0)
	if err := New(lib, utils.NewParams(), log).Map(net); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if !strings.Contains(buf.String(), "warning") {
		t.Errorf("no warning about latch edge: %s", buf.String())
	}
	q := net.Lookup("q")
	if q == nil || q.Gate != "dff" || !q.Seq || len(q.Fanins) != 1 {
		t.Fatalf("latch not mapped: %v", q)
	}
	if net.Node(q.Fanins[0]).Name != "n" {
		t.Errorf("latch input %s", net.Node(q.Fanins[0]))
	}
	if _, err := timing.Analyze(net, lib, utils.NewParams()); err != nil {
		t.Errorf("Analyze failed: %v", err)
	}
}

func TestRemap(t *testing.T) {
	lib := loadLibrary(t)
	params := utils.NewParams()

	net := parseNetwork(t, carry)
	orig := net.Clone()
	m := New(lib, params, nil)
	if err := m.Map(net); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if err := m.Map(net); err != nil {
		t.Fatalf("re-Map failed: %v", err)
	}
	equivalent(t, orig, net, lib)
}

func TestInputWarning(t *testing.T) {
	lib := loadLibrary(t)

	var buf bytes.Buffer
	net := parseNetwork(t, tree)
	params := utils.NewParams()
	params.Mode = utils.ModeSlack
	if err := New(lib, params, utils.NewLogger(&buf, 0)).Map(net); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if n := strings.Count(buf.String(), "input "); n != 1 {
		t.Errorf("got %d input warnings:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), "input a: no arrival, drive, maxload") {
		t.Errorf("unexpected warning:\n%s", buf.String())
	}

	buf.Reset()
	net = parseNetwork(t, `
.input a arrival=0/0 drive=1/1 maxload=4
.input b arrival=0/0 drive=1/1 maxload=4
n = nand a b
.output o n load=1
`)
	if err := New(lib, params, utils.NewLogger(&buf, 0)).Map(net); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if strings.Contains(buf.String(), "input ") {
		t.Errorf("unexpected warning for declared inputs:\n%s", buf.String())
	}
}
