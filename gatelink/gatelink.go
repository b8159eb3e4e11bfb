//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package gatelink implements the gate-link graph: the virtual
// producer to consumer-pin edges that the fanout optimizer edits
// before the changes are materialized into the network.
package gatelink

import (
	"fmt"
	"sort"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/pkg/errors"
)

// OutputPin is the pin index of primary output sinks.
const OutputPin = -1

// Link is a virtual edge from a producer to the consumer pin.
type Link struct {
	To       network.NodeID
	Pin      int
	Load     float64
	Required pwl.Delay
}

func (l Link) String() string {
	if l.Pin == OutputPin {
		return fmt.Sprintf("%d/PO", l.To)
	}
	return fmt.Sprintf("%d/%d", l.To, l.Pin)
}

type pinKey struct {
	to  network.NodeID
	pin int
}

// Graph implements the gate-link graph of a mapped network. Node IDs
// of the network are used as they are; nodes created with NewNode get
// virtual IDs above the network's ID range.
type Graph struct {
	net     *network.Network
	wire    library.WireLoad
	base    network.NodeID
	next    network.NodeID
	links   map[network.NodeID][]Link
	drivers map[pinKey]network.NodeID
	gates   map[network.NodeID]*library.Gate
	resized map[network.NodeID]bool
	deleted map[network.NodeID]bool
	virtual []network.NodeID
}

// New creates the gate-link graph of the mapped network. The link
// required times are initialized to +inf.
func New(net *network.Network, lib *library.Library) (*Graph, error) {
	g := &Graph{
		net:     net,
		wire:    lib.WireLoad,
		base:    network.NodeID(net.MaxID()),
		next:    network.NodeID(net.MaxID()),
		links:   make(map[network.NodeID][]Link),
		drivers: make(map[pinKey]network.NodeID),
		gates:   make(map[network.NodeID]*library.Gate),
		resized: make(map[network.NodeID]bool),
		deleted: make(map[network.NodeID]bool),
	}
	nodes := net.Nodes()
	for _, n := range nodes {
		if !n.Mapped() {
			if n.Kind == network.Internal {
				return nil, errors.Errorf("node %s: not mapped", n)
			}
			continue
		}
		gate := lib.Gate(n.Gate)
		if gate == nil {
			return nil, errors.Errorf("node %s: unknown gate %s", n, n.Gate)
		}
		g.gates[n.ID] = gate
	}
	for _, n := range nodes {
		for _, f := range n.Fanouts() {
			c := net.Node(f.Node)
			l := Link{
				To:       f.Node,
				Pin:      f.Pin,
				Required: pwl.Inf(1),
			}
			if c.IsOutput() {
				l.Pin = OutputPin
				if c.HasLoad {
					l.Load = c.Load
				} else {
					l.Load = lib.DefaultLoad()
				}
			} else {
				l.Load = g.gates[c.ID].Pins[f.Pin].Load
			}
			g.Add(n.ID, l)
		}
	}
	return g, nil
}

// SpliceWires removes the internal wire nodes of the network by
// connecting their consumers directly to their drivers. It returns the
// number of removed nodes.
func SpliceWires(net *network.Network) int {
	var count int
	for _, n := range net.Nodes() {
		if n.Kind != network.Internal || n.Op != network.Wire {
			continue
		}
		driver := n.Fanins[0]
		for _, f := range n.Fanouts() {
			net.ReplaceFanin(f.Node, f.Pin, driver)
		}
		net.Delete(n.ID)
		count++
	}
	return count
}

// Network returns the network of the graph.
func (g *Graph) Network() *network.Network {
	return g.net
}

// Virtual tests if the node was created with NewNode.
func (g *Graph) Virtual(id network.NodeID) bool {
	return id >= g.base
}

// Node returns the network node of id or nil for virtual nodes.
func (g *Graph) Node(id network.NodeID) *network.Node {
	if g.Virtual(id) {
		return nil
	}
	return g.net.Node(id)
}

// Gate returns the library gate of the node or nil if the node is not
// mapped.
func (g *Graph) Gate(id network.NodeID) *library.Gate {
	return g.gates[id]
}

// SetGate sets the library gate of the mapped node. The new gate must
// have the same number of pins.
func (g *Graph) SetGate(id network.NodeID, gate *library.Gate) {
	old, ok := g.gates[id]
	if !ok {
		panic(fmt.Sprintf("SetGate: node %d is not mapped", id))
	}
	if len(old.Pins) != len(gate.Pins) {
		panic(fmt.Sprintf("SetGate: %s and %s differ in pins", old, gate))
	}
	if old == gate {
		return
	}
	g.gates[id] = gate
	g.resized[id] = true

	// Update the loads that the node's pins present to their drivers.
	for pin := range gate.Pins {
		driver, ok := g.drivers[pinKey{id, pin}]
		if !ok {
			continue
		}
		links := g.links[driver]
		for i := range links {
			if links[i].To == id && links[i].Pin == pin {
				links[i].Load = gate.Pins[pin].Load
			}
		}
	}
}

// NewNode creates a new virtual node mapped to the gate.
func (g *Graph) NewNode(gate *library.Gate) network.NodeID {
	id := g.next
	g.next++
	g.gates[id] = gate
	g.virtual = append(g.virtual, id)
	return id
}

// Delete deletes the node. The node must not drive any links. The
// links driving the node's pins are removed.
func (g *Graph) Delete(id network.NodeID) {
	if len(g.links[id]) > 0 {
		panic(fmt.Sprintf("Delete: node %d has %d links", id, len(g.links[id])))
	}
	if g.deleted[id] {
		panic(fmt.Sprintf("Delete: node %d already deleted", id))
	}
	gate := g.gates[id]
	if gate != nil {
		for pin := range gate.Pins {
			driver, ok := g.drivers[pinKey{id, pin}]
			if ok {
				g.Remove(driver, id, pin)
			}
		}
	}
	delete(g.links, id)
	g.deleted[id] = true
}

// Deleted tests if the node is deleted.
func (g *Graph) Deleted(id network.NodeID) bool {
	return g.deleted[id]
}

// Links returns the links of the producer in insertion order. The
// returned slice must not be modified.
func (g *Graph) Links(from network.NodeID) []Link {
	return g.links[from]
}

// Add adds the link to the producer. The consumer pin must not have a
// driver.
func (g *Graph) Add(from network.NodeID, l Link) {
	if g.deleted[from] || g.deleted[l.To] {
		panic(fmt.Sprintf("Add: link %d->%s touches a deleted node", from, l))
	}
	key := pinKey{l.To, l.Pin}
	if d, ok := g.drivers[key]; ok {
		panic(fmt.Sprintf("Add: pin %s already driven by %d", l, d))
	}
	g.drivers[key] = from
	g.links[from] = append(g.links[from], l)
}

// Remove removes the link from the producer to the consumer pin. It
// returns false if the link does not exist.
func (g *Graph) Remove(from, to network.NodeID, pin int) bool {
	links := g.links[from]
	for i, l := range links {
		if l.To == to && l.Pin == pin {
			g.links[from] = append(links[:i], links[i+1:]...)
			delete(g.drivers, pinKey{to, pin})
			return true
		}
	}
	return false
}

// RemoveAll removes all links of the producer and returns them.
func (g *Graph) RemoveAll(from network.NodeID) []Link {
	links := g.links[from]
	for _, l := range links {
		delete(g.drivers, pinKey{l.To, l.Pin})
	}
	delete(g.links, from)
	return links
}

// Driver returns the producer driving the consumer pin.
func (g *Graph) Driver(to network.NodeID, pin int) (network.NodeID, bool) {
	id, ok := g.drivers[pinKey{to, pin}]
	return id, ok
}

// Fanins returns the drivers of the node's pins. Unconnected pins
// are network.None.
func (g *Graph) Fanins(id network.NodeID) []network.NodeID {
	gate := g.gates[id]
	if gate == nil {
		n := g.Node(id)
		if n == nil || !n.IsOutput() {
			return nil
		}
		d, ok := g.drivers[pinKey{id, OutputPin}]
		if !ok {
			d = network.None
		}
		return []network.NodeID{d}
	}
	result := make([]network.NodeID, len(gate.Pins))
	for pin := range gate.Pins {
		d, ok := g.drivers[pinKey{id, pin}]
		if !ok {
			d = network.None
		}
		result[pin] = d
	}
	return result
}

// SetRequired sets the required time of the link from the producer to
// the consumer pin.
func (g *Graph) SetRequired(from, to network.NodeID, pin int, req pwl.Delay) {
	links := g.links[from]
	for i := range links {
		if links[i].To == to && links[i].Pin == pin {
			links[i].Required = req
			return
		}
	}
	panic(fmt.Sprintf("SetRequired: no link %d->%d/%d", from, to, pin))
}

// Load returns the aggregate load of the producer: the sum of its
// link loads plus the wire load of the link count.
func (g *Graph) Load(from network.NodeID) float64 {
	var load float64
	links := g.links[from]
	for _, l := range links {
		load += l.Load
	}
	return load + g.wire.Load(len(links))
}

// Materialize applies the graph to its network: virtual nodes are
// created, resized gates are updated, consumer pins are connected to
// their link drivers, and deleted nodes are removed. It returns the
// network IDs of the created nodes by their virtual IDs.
func (g *Graph) Materialize() map[network.NodeID]network.NodeID {
	ids := make(map[network.NodeID]network.NodeID)
	for _, v := range g.virtual {
		if g.deleted[v] {
			continue
		}
		gate := g.gates[v]
		fanins := make([]network.NodeID, len(gate.Pins))
		for i := range fanins {
			fanins[i] = network.None
		}
		name := fmt.Sprintf("fo%d", g.net.MaxID())
		n := g.net.AddGate(name, gate.Name, fanins...)
		ids[v] = n.ID
	}
	resolve := func(id network.NodeID) network.NodeID {
		if r, ok := ids[id]; ok {
			return r
		}
		return id
	}
	for _, id := range g.sortedIDs(g.resized) {
		if g.deleted[id] || g.Virtual(id) {
			continue
		}
		g.net.Node(id).Gate = g.gates[id].Name
	}

	producers := make([]network.NodeID, 0, len(g.links))
	for id := range g.links {
		producers = append(producers, id)
	}
	sort.Slice(producers, func(i, j int) bool {
		return producers[i] < producers[j]
	})
	for _, from := range producers {
		driver := resolve(from)
		for _, l := range g.links[from] {
			to := resolve(l.To)
			pin := l.Pin
			if pin == OutputPin {
				pin = 0
			}
			if g.net.Node(to).Fanins[pin] != driver {
				g.net.ReplaceFanin(to, pin, driver)
			}
		}
	}

	// Delete removed nodes, consumers first.
	pending := g.sortedIDs(g.deleted)
	for len(pending) > 0 {
		var next []network.NodeID
		for _, id := range pending {
			if g.Virtual(id) {
				continue
			}
			n := g.net.Node(id)
			if n == nil {
				continue
			}
			if n.NumFanouts() > 0 {
				next = append(next, id)
				continue
			}
			g.net.Delete(id)
		}
		if len(next) == len(pending) {
			panic(fmt.Sprintf("Materialize: deleted nodes %v still in use", next))
		}
		pending = next
	}
	return ids
}

func (g *Graph) sortedIDs(m map[network.NodeID]bool) []network.NodeID {
	var result []network.NodeID
	for id, ok := range m {
		if ok {
			result = append(result, id)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i] < result[j]
	})
	return result
}
