//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mapper

import (
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/timing"
)

// topDown commits the decisions at the actual loads in fanout to
// fanin order.
func (m *Mapper) topDown() {
	for _, o := range m.net.Outputs() {
		if !o.HasLoad && !m.warned {
			m.log.Warningf(m.loc(),
				"output %s: no load, using %g", o, m.lib.DefaultLoad())
			m.warned = true
		}
		m.require(o.Fanins[0], timing.OutputLoad(o, m.lib))
	}
	// Latches break the traversal order and are committed first at
	// their estimated loads.
	for _, n := range m.order {
		if n.Op == network.Latch {
			m.nodes[n.ID].needed = true
			m.commit(n, m.estimatedLoad(n))
		}
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.order[i]
		st := &m.nodes[n.ID]
		if n.Kind != network.Internal || !st.needed || n.Op == network.Latch {
			continue
		}
		m.commit(n, st.load+m.lib.WireLoad.Load(st.refs))
	}
}

func (m *Mapper) require(id network.NodeID, load float64) {
	st := &m.nodes[id]
	st.needed = true
	st.load += load
	st.refs++
}

func (m *Mapper) commit(n *network.Node, load float64) {
	st := &m.nodes[n.ID]
	st.choice = st.best.Lookup(load).Data
	bk := &m.buckets[st.choice]

	m.log.Debugf(2, "%s: load %.3f, gate %s, arrival %v\n",
		n, load, bk.gate, bk.arrival.Eval(load))

	for pin, u := range bk.binding.Inputs() {
		m.require(u, bk.gate.Pins[pin].Load)
	}
}

// build creates the mapped network from the committed decisions.
func (m *Mapper) build() *network.Network {
	mapped := network.New(m.net.Name)
	m.ids = make([]network.NodeID, m.net.MaxID())
	for i := range m.ids {
		m.ids[i] = network.None
	}

	for _, n := range m.net.Inputs() {
		c := mapped.AddInput(n.Name)
		c.Arrival = n.Arrival
		c.Drive = n.Drive
		c.MaxLoad = n.MaxLoad
		c.HasArrival = n.HasArrival
		c.HasDrive = n.HasDrive
		c.HasMaxLoad = n.HasMaxLoad
		m.ids[n.ID] = c.ID
	}

	var latches []*network.Node
	for _, n := range m.order {
		st := &m.nodes[n.ID]
		if n.Kind != network.Internal || !st.needed {
			continue
		}
		bk := &m.buckets[st.choice]
		fanins := make([]network.NodeID, len(bk.gate.Pins))
		for pin := range fanins {
			if bk.gate.Seq == library.SeqLatch {
				fanins[pin] = network.None
			} else {
				fanins[pin] = m.ids[bk.binding.Input(pin)]
			}
		}
		var c *network.Node
		if bk.gate.Seq == library.SeqLatch {
			c = mapped.AddSeqGate(n.Name, bk.gate.Name, bk.gate.Edge, fanins...)
			latches = append(latches, n)
		} else {
			c = mapped.AddGate(n.Name, bk.gate.Name, fanins...)
		}
		m.ids[n.ID] = c.ID
	}
	for _, n := range latches {
		bk := &m.buckets[m.nodes[n.ID].choice]
		for pin := range bk.gate.Pins {
			mapped.ReplaceFanin(m.ids[n.ID], pin,
				m.ids[bk.binding.Input(pin)])
		}
	}

	for _, o := range m.net.Outputs() {
		c := mapped.AddOutput(o.Name, m.ids[o.Fanins[0]])
		c.Required = o.Required
		c.Load = o.Load
		c.HasRequired = o.HasRequired
		c.HasLoad = o.HasLoad
	}
	return mapped
}
