//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mapper

import (
	"fmt"
	"math"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/match"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/timing"
	"github.com/markkurossi/techmap/utils"
)

// bucket is a mapping decision: a gate and its input binding at a
// node. Buckets live in the mapper's arena and are referenced by
// their index from the provenance data of the cost functions.
type bucket struct {
	node    network.NodeID
	gate    *library.Gate
	binding *match.Binding
	inputs  []pwl.Delay
	arrival pwl.Pair
	cost    pwl.Func
	area    float64
}

func (b *bucket) String() string {
	return fmt.Sprintf("%s@%d", b.binding, b.node)
}

// candidate creates the decision bucket for the gate at the binding
// and returns its handle.
func (m *Mapper) candidate(n *network.Node, g *library.Gate,
	b *match.Binding) int {

	h := len(m.buckets)
	bk := bucket{
		node:    n.ID,
		gate:    g,
		binding: b,
		area:    g.Area,
	}
	clock := pwl.Both(m.params.DefaultArrival)

	var rise, fall []pwl.Line
	for pin := range g.Pins {
		p := &g.Pins[pin]
		var in pwl.Delay
		if g.Seq == library.SeqLatch {
			in = clock
		} else {
			u := b.Input(pin)
			in = m.inputArrival(u, p.Load)
			bk.area += m.areaFlow(u)
		}
		bk.inputs = append(bk.inputs, in)
		r, f := p.Lines(in, m.params.LoadPenalty, h)
		rise = append(rise, r...)
		fall = append(fall, f...)
	}
	if len(g.Pins) == 0 {
		bk.arrival = pwl.Pair{
			Rise: pwl.Constant(m.params.DefaultArrival, h),
			Fall: pwl.Constant(m.params.DefaultArrival, h),
		}
	} else {
		bk.arrival = pwl.Pair{
			Rise: pwl.LinearMax(rise),
			Fall: pwl.LinearMax(fall),
		}
	}
	switch m.params.Cost {
	case utils.CostAverage:
		bk.cost = pwl.Scale(pwl.Sum(bk.arrival.Rise, bk.arrival.Fall), 0.5)
	default:
		bk.cost = pwl.Max(bk.arrival.Rise, bk.arrival.Fall)
	}
	bk.cost = pwl.SetData(bk.cost, h)

	m.buckets = append(m.buckets, bk)
	return h
}

// arrivalAt returns the arrival of the node when it drives load.
func (m *Mapper) arrivalAt(id network.NodeID, load float64) pwl.Delay {
	n := m.net.Node(id)
	if n.IsInput() {
		return timing.InputArrival(n, m.lib, m.params, load)
	}
	st := &m.nodes[id]
	if st.best == nil {
		panic(fmt.Sprintf("mapper: node %s used before it is mapped", n))
	}
	return m.buckets[st.best.Lookup(load).Data].arrival.Eval(load)
}

// inputArrival returns the arrival of the node at an input pin of
// pinLoad. Multi-fanout nodes see the load of all their consumers as
// estimated by the load estimation mode.
func (m *Mapper) inputArrival(id network.NodeID,
	pinLoad float64) pwl.Delay {

	n := m.net.Node(id)
	count := n.NumFanouts()
	if count <= 1 || m.params.LoadEstimate == utils.LoadIgnore {
		return m.arrivalAt(id, pinLoad)
	}
	wire := m.lib.WireLoad
	linear := m.arrivalAt(id, pinLoad*float64(count)+wire.Load(count))

	if m.params.LoadEstimate != utils.LoadTree || count <= 2 ||
		len(m.buffers) == 0 {
		return linear
	}

	// A two-level tree of k buffers driving count/k sinks each.
	buf := &m.buffers[0].Pins[0]
	k := int(math.Ceil(math.Sqrt(float64(count))))
	per := (count + k - 1) / k
	at := m.arrivalAt(id, buf.Load*float64(k)+wire.Load(k))
	at = buf.Arrival(at, pinLoad*float64(per)+wire.Load(per),
		m.params.LoadPenalty)
	if at.Max() < linear.Max() {
		return at
	}
	return linear
}

// areaFlow returns the share of the node's minimum area charged to
// one of its consumers.
func (m *Mapper) areaFlow(id network.NodeID) float64 {
	n := m.net.Node(id)
	if n.Kind != network.Internal {
		return 0
	}
	st := &m.nodes[id]
	if st.best == nil {
		return 0
	}
	count := n.NumFanouts()
	if count < 1 {
		count = 1
	}
	return st.minArea / float64(count)
}

// estimatedLoad returns the load of the node's output as seen during
// the bottom-up pass.
func (m *Mapper) estimatedLoad(n *network.Node) float64 {
	var load float64
	for _, f := range n.Fanouts() {
		c := m.net.Node(f.Node)
		if c.IsOutput() {
			load += timing.OutputLoad(c, m.lib)
		} else {
			load += m.defaultLoad
		}
	}
	return load + m.lib.WireLoad.Load(n.NumFanouts())
}
