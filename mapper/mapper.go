//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package mapper implements delay-driven technology mapping of
// NAND2/INV subject graphs into library gates.
package mapper

import (
	"strings"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/match"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/timing"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

// state is the per-node matching record.
type state struct {
	best       pwl.Func
	minArea    float64
	areaBucket int

	needed bool
	load   float64
	refs   int
	choice int
}

// Mapper maps networks into library gates.
type Mapper struct {
	lib    *library.Library
	params *utils.Params
	log    *utils.Logger

	patterns    []*library.Pattern
	buffers     []*library.Gate
	defaultLoad float64

	net      *network.Network
	order    []*network.Node
	matcher  *match.Matcher
	buckets  []bucket
	nodes    []state
	critical []bool
	ids      []network.NodeID
	warned   bool
}

// New creates a new mapper for the library.
func New(lib *library.Library, params *utils.Params,
	log *utils.Logger) *Mapper {

	return &Mapper{
		lib:         lib,
		params:      params,
		log:         log,
		patterns:    lib.Patterns(),
		buffers:     lib.Buffers(),
		defaultLoad: lib.DefaultLoad(),
	}
}

func (m *Mapper) loc() utils.Point {
	return utils.Pass("map")
}

// Map maps the network into library gates. Mapped nodes of the
// network are first expanded back into the subject graph so that a
// mapped network can be re-mapped. On success the network is
// replaced with the mapped network; on failure it is left unchanged.
func (m *Mapper) Map(net *network.Network) error {
	if err := m.lib.Check(); err != nil {
		return err
	}
	work := net.Clone()
	if err := Expand(work, m.lib); err != nil {
		return err
	}
	work.Decompose()
	if err := m.lib.CheckNetwork(work); err != nil {
		return err
	}
	m.checkInputs(work)

	var mapped *network.Network
	var err error

	if m.params.Mode == utils.ModeSlack {
		m.critical = nil
		mapped, err = m.run(work, utils.ModeDelay)
		if err != nil {
			return err
		}
		analysis, err := timing.Analyze(mapped, m.lib, m.params)
		if err != nil {
			return err
		}
		m.critical = make([]bool, work.MaxID())
		for id := range m.critical {
			st := &m.nodes[id]
			if !st.needed {
				m.critical[id] = true
				continue
			}
			c := m.ids[id]
			m.critical[id] = c == network.None ||
				analysis.NodeSlack(c) <= m.params.Threshold
		}
	}
	mapped, err = m.run(work, m.params.Mode)
	if err != nil {
		return err
	}
	m.log.Debugf(1, "map: %s\n", mapped)
	net.Assign(mapped)
	return nil
}

func (m *Mapper) run(net *network.Network, mode utils.Mode) (
	*network.Network, error) {

	m.net = net
	m.order = net.TopoOrder()
	m.matcher = match.New(net, match.NewOptions(m.params))
	m.buckets = nil
	m.nodes = make([]state, net.MaxID())
	m.warned = false

	if err := m.bottomUp(mode); err != nil {
		return nil, err
	}
	m.topDown()
	return m.build(), nil
}

// checkInputs warns about the first primary input without declared
// timing parameters.
func (m *Mapper) checkInputs(net *network.Network) {
	for _, n := range net.Inputs() {
		var missing []string
		if !n.HasArrival {
			missing = append(missing, "arrival")
		}
		if !n.HasDrive {
			missing = append(missing, "drive")
		}
		if !n.HasMaxLoad {
			missing = append(missing, "maxload")
		}
		if len(missing) > 0 {
			m.log.Warningf(m.loc(), "input %s: no %s, using library defaults",
				n, strings.Join(missing, ", "))
			return
		}
	}
}

// Expand replaces the mapped nodes of the network with the subject
// graph of their gate's first pattern.
func Expand(net *network.Network, lib *library.Library) error {
	for _, n := range net.Nodes() {
		if n.Op != network.Gate {
			continue
		}
		g := lib.Gate(n.Gate)
		if g == nil {
			return errors.Wrapf(library.ErrIncomplete, "unknown gate %s",
				n.Gate)
		}
		if len(g.Pins) != len(n.Fanins) {
			return errors.Errorf("node %s: gate %s has %d pins, node has %d",
				n, g.Name, len(g.Pins), len(n.Fanins))
		}
		pat := g.Patterns[0]
		ids := make([]network.NodeID, len(pat.Vertices))
		for v, vertex := range pat.Vertices {
			if vertex.Leaf() {
				ids[v] = n.Fanins[vertex.Input]
				continue
			}
			var name string
			if v == pat.Root {
				name = n.Name
			}
			fanins := make([]network.NodeID, len(vertex.Fanins))
			for i, f := range vertex.Fanins {
				fanins[i] = ids[f]
			}
			c := net.AddNode(name, vertex.Op, fanins...)
			if vertex.Op == network.Latch {
				c.Edge = g.Edge
			}
			ids[v] = c.ID
		}
		root := ids[pat.Root]
		for _, f := range n.Fanouts() {
			net.ReplaceFanin(f.Node, f.Pin, root)
		}
		net.Delete(n.ID)
	}
	return nil
}
