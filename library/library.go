//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package library implements the cell library consumed by the
// technology mapper and the fanout optimizer.
package library

import (
	"fmt"
	"sort"

	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/pkg/errors"
)

// ErrIncomplete is returned when the library misses a gate that
// mapping requires.
var ErrIncomplete = errors.New("library incomplete")

// Truth tables of the primitive functions over two inputs.
const (
	ttNand2 = 0b0111
	ttAnd2  = 0b1000
	ttOr2   = 0b1110
	ttNor2  = 0b0001
)

// WireLoad models the interconnect load as a function of the fanout
// count. Table[i] is the load of i+1 fanouts; counts beyond the table
// are extrapolated with Slope.
type WireLoad struct {
	Slope float64
	Table []float64
}

// Load returns the wire load of fanouts consumers. Single fanout
// connections have no wire load.
func (w WireLoad) Load(fanouts int) float64 {
	if fanouts <= 1 {
		return 0
	}
	n := len(w.Table)
	if n == 0 {
		return w.Slope * float64(fanouts)
	}
	if fanouts <= n {
		return w.Table[fanouts-1]
	}
	return w.Table[n-1] + w.Slope*float64(fanouts-n)
}

// Library implements a cell library.
type Library struct {
	Name     string
	Gates    []*Gate
	WireLoad WireLoad
	byName   map[string]*Gate
}

// New creates a new empty library.
func New(name string) *Library {
	return &Library{
		Name:   name,
		byName: make(map[string]*Gate),
	}
}

func (lib *Library) String() string {
	return fmt.Sprintf("%s: #gates=%d", lib.Name, len(lib.Gates))
}

// NewGate creates a gate from its pattern expression and pin
// parameters. A single pin named "*" applies to all inputs in the
// order of their first appearance in the expression.
func NewGate(name string, area float64, expr string, pins ...Pin) (
	*Gate, error) {

	pat, names, err := ParsePattern(expr)
	if err != nil {
		return nil, err
	}
	if len(pins) == 1 && pins[0].Name == "*" {
		tmpl := pins[0]
		pins = nil
		for _, n := range names {
			pin := tmpl
			pin.Name = n
			pins = append(pins, pin)
		}
	}
	if len(names) != len(pins) {
		return nil, errors.Errorf("gate %s: %d inputs, %d pins",
			name, len(names), len(pins))
	}
	if len(pins) > 6 {
		return nil, errors.Errorf("gate %s: too many pins", name)
	}
	g := &Gate{
		Name: name,
		Area: area,
		Pins: pins,
	}
	if err := g.AddPattern(pat); err != nil {
		return nil, err
	}
	return g, nil
}

// AddPattern adds an alternative pattern for the gate. The pattern
// inputs are bound to the gate pins by name and the pattern function
// must agree with the gate's existing patterns.
func (g *Gate) AddPattern(pat *Pattern) error {
	pat.Gate = g
	pat.Leaves = make([]int, len(g.Pins))
	for i := range pat.Leaves {
		pat.Leaves[i] = -1
	}
	var latch bool
	for idx := range pat.Vertices {
		v := &pat.Vertices[idx]
		if v.Op == network.Latch {
			latch = true
		}
		if !v.Leaf() {
			continue
		}
		v.Input = -1
		for i, pin := range g.Pins {
			if pin.Name == v.Name {
				v.Input = i
				pat.Leaves[i] = idx
			}
		}
		if v.Input < 0 {
			return errors.Errorf("gate %s: unknown input %s", g.Name, v.Name)
		}
	}
	for i, l := range pat.Leaves {
		if l < 0 {
			return errors.Errorf("gate %s: pin %s not used in %s",
				g.Name, g.Pins[i].Name, pat.Expr)
		}
	}
	tt := pat.TruthTable(len(g.Pins))
	if len(g.Patterns) > 0 && tt != g.Function {
		return errors.Errorf("gate %s: pattern %s has different function",
			g.Name, pat.Expr)
	}
	g.Function = tt
	if latch {
		g.Seq = SeqLatch
	}
	g.Patterns = append(g.Patterns, pat)
	return nil
}

// AddGate adds the gate to the library.
func (lib *Library) AddGate(g *Gate) error {
	if _, ok := lib.byName[g.Name]; ok {
		return errors.Errorf("gate %s redefined", g.Name)
	}
	g.ID = len(lib.Gates)
	lib.Gates = append(lib.Gates, g)
	lib.byName[g.Name] = g
	return nil
}

// Gate returns the named gate or nil if the gate is unknown.
func (lib *Library) Gate(name string) *Gate {
	return lib.byName[name]
}

// Patterns returns all non-trivial patterns of the library in gate
// order.
func (lib *Library) Patterns() []*Pattern {
	var result []*Pattern
	for _, g := range lib.Gates {
		for _, p := range g.Patterns {
			if !p.Trivial() {
				result = append(result, p)
			}
		}
	}
	return result
}

// Inverters returns the inverters of the library in increasing area
// order.
func (lib *Library) Inverters() []*Gate {
	return lib.filter(func(g *Gate) bool {
		return g.Inverter()
	})
}

// Buffers returns the buffers of the library in increasing area
// order.
func (lib *Library) Buffers() []*Gate {
	return lib.filter(func(g *Gate) bool {
		return g.Buffer()
	})
}

// Class returns the gates that are functionally equivalent with g,
// including g, in increasing area order.
func (lib *Library) Class(g *Gate) []*Gate {
	return lib.filter(func(o *Gate) bool {
		return o.Seq == g.Seq && o.Edge == g.Edge &&
			len(o.Pins) == len(g.Pins) && o.Function == g.Function
	})
}

// Complements returns the combinational gates that compute the
// complement of g over the same pins, in increasing area order.
func (lib *Library) Complements(g *Gate) []*Gate {
	if g.Seq != Combinational {
		return nil
	}
	mask := uint64(1)<<(uint(1)<<uint(len(g.Pins))) - 1
	return lib.filter(func(o *Gate) bool {
		return o.Seq == Combinational && len(o.Pins) == len(g.Pins) &&
			o.Function == ^g.Function&mask
	})
}

func (lib *Library) filter(f func(g *Gate) bool) []*Gate {
	var result []*Gate
	for _, g := range lib.Gates {
		if f(g) {
			result = append(result, g)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Area < result[j].Area
	})
	return result
}

// SmallestInverter returns the inverter with the smallest area or nil
// if the library has no inverters.
func (lib *Library) SmallestInverter() *Gate {
	invs := lib.Inverters()
	if len(invs) == 0 {
		return nil
	}
	return invs[0]
}

// Constant returns the smallest constant gate of the value or nil if
// the library has no such gate.
func (lib *Library) Constant(value bool) *Gate {
	var tt uint64
	if value {
		tt = 1
	}
	gates := lib.filter(func(g *Gate) bool {
		return len(g.Pins) == 0 && g.Function == tt
	})
	if len(gates) == 0 {
		return nil
	}
	return gates[0]
}

// Check verifies that the library contains the primitives that the
// mapper requires: an inverter and a two-input NAND, NOR, AND, or OR
// equivalent.
func (lib *Library) Check() error {
	if lib.SmallestInverter() == nil {
		return errors.Wrap(ErrIncomplete, "no inverter")
	}
	for _, g := range lib.Gates {
		if g.Seq != Combinational || len(g.Pins) != 2 {
			continue
		}
		switch g.Function {
		case ttNand2, ttAnd2, ttOr2, ttNor2:
			for _, p := range g.Patterns {
				if !p.Trivial() {
					return nil
				}
			}
		}
	}
	return errors.Wrap(ErrIncomplete,
		"no two-input NAND, NOR, AND, or OR gate")
}

// CheckNetwork verifies that the library can map the network's
// constant and latch nodes.
func (lib *Library) CheckNetwork(net *network.Network) error {
	for _, n := range net.Nodes() {
		switch n.Op {
		case network.Const0, network.Const1:
			if lib.Constant(n.Op == network.Const1) == nil {
				return errors.Wrapf(ErrIncomplete, "no %s gate", n.Op)
			}
		case network.Latch:
			var found bool
			for _, g := range lib.Gates {
				if g.Seq == SeqLatch {
					found = true
					break
				}
			}
			if !found {
				return errors.Wrap(ErrIncomplete, "no latch gate")
			}
		}
	}
	return nil
}

// DefaultLoad returns the load of undeclared primary output loads:
// the input pin load of the smallest inverter.
func (lib *Library) DefaultLoad() float64 {
	inv := lib.SmallestInverter()
	if inv == nil {
		return 0
	}
	return inv.Pins[0].Load
}

// DefaultDrive returns the drive of primary inputs without declared
// drive: the drive of the smallest inverter.
func (lib *Library) DefaultDrive() pwl.Delay {
	inv := lib.SmallestInverter()
	if inv == nil {
		return pwl.Delay{}
	}
	return inv.Pins[0].Drive
}

// DefaultMaxLoad returns the load limit of primary inputs without
// declared limit: the limit of the smallest inverter.
func (lib *Library) DefaultMaxLoad() float64 {
	inv := lib.SmallestInverter()
	if inv == nil {
		return 0
	}
	return inv.Pins[0].MaxLoad
}
