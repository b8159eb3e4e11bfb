//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

// Package network implements the Boolean network consumed by the
// technology mapper and the fanout optimizer.
package network

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// Stats holds node counts by function.
type Stats map[string]int

// Network implements a Boolean network of primary inputs, primary
// outputs and internal nodes.
type Network struct {
	Name    string
	nodes   []*Node
	inputs  []NodeID
	outputs []NodeID
}

// New creates a new empty network.
func New(name string) *Network {
	return &Network{
		Name: name,
	}
}

func (net *Network) String() string {
	return fmt.Sprintf("%s: #inputs=%d #outputs=%d #nodes=%d",
		net.Name, len(net.inputs), len(net.outputs), net.NumNodes())
}

func (net *Network) newNode(name string, kind Kind, op Op) *Node {
	n := &Node{
		ID:   NodeID(len(net.nodes)),
		Name: name,
		Kind: kind,
		Op:   op,
	}
	net.nodes = append(net.nodes, n)
	return n
}

// AddInput adds a primary input to the network.
func (net *Network) AddInput(name string) *Node {
	n := net.newNode(name, Input, Wire)
	net.inputs = append(net.inputs, n.ID)
	return n
}

// AddOutput adds a primary output driven by driver.
func (net *Network) AddOutput(name string, driver NodeID) *Node {
	n := net.newNode(name, Output, Wire)
	net.outputs = append(net.outputs, n.ID)
	net.connect(n, driver)
	return n
}

// AddNode adds an internal node computing op from the fanins.
func (net *Network) AddNode(name string, op Op, fanins ...NodeID) *Node {
	if op == Gate {
		panic("AddNode: use AddGate for mapped nodes")
	}
	if op.Arity() != len(fanins) {
		panic(fmt.Sprintf("AddNode: %s expects %d fanins, got %d",
			op, op.Arity(), len(fanins)))
	}
	n := net.newNode(name, Internal, op)
	for _, f := range fanins {
		net.connect(n, f)
	}
	return n
}

// AddGate adds an internal node mapped to the combinational library
// gate. A None fanin leaves the pin unconnected until it is set with
// ReplaceFanin.
func (net *Network) AddGate(name, gate string, fanins ...NodeID) *Node {
	n := net.newNode(name, Internal, Gate)
	n.Gate = gate
	for _, f := range fanins {
		net.connect(n, f)
	}
	return n
}

// AddSeqGate adds an internal node mapped to the sequential library
// gate with the active edge.
func (net *Network) AddSeqGate(name, gate string, edge Edge,
	fanins ...NodeID) *Node {

	n := net.AddGate(name, gate, fanins...)
	n.Edge = edge
	n.Seq = true
	return n
}

// AddLatch adds a latch node with the active edge.
func (net *Network) AddLatch(name string, edge Edge, fanin NodeID) *Node {
	n := net.AddNode(name, Latch, fanin)
	n.Edge = edge
	return n
}

func (net *Network) connect(n *Node, driver NodeID) {
	if driver == None {
		n.Fanins = append(n.Fanins, None)
		return
	}
	d := net.Node(driver)
	if d == nil {
		panic(fmt.Sprintf("connect: unknown driver %d", driver))
	}
	d.addFanout(Fanout{
		Node: n.ID,
		Pin:  len(n.Fanins),
	})
	n.Fanins = append(n.Fanins, driver)
}

// Node returns the node by its ID or nil if the node does not exist.
func (net *Network) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(net.nodes) {
		return nil
	}
	return net.nodes[id]
}

// MaxID returns an upper bound for node IDs in the network. It can be
// used to size dense per-node tables.
func (net *Network) MaxID() int {
	return len(net.nodes)
}

// NumNodes returns the number of live nodes.
func (net *Network) NumNodes() int {
	var count int
	for _, n := range net.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// Nodes returns all live nodes in ID order.
func (net *Network) Nodes() []*Node {
	var result []*Node
	for _, n := range net.nodes {
		if n != nil {
			result = append(result, n)
		}
	}
	return result
}

// Inputs returns the primary inputs.
func (net *Network) Inputs() []*Node {
	return net.lookup(net.inputs)
}

// Outputs returns the primary outputs.
func (net *Network) Outputs() []*Node {
	return net.lookup(net.outputs)
}

func (net *Network) lookup(ids []NodeID) []*Node {
	result := make([]*Node, 0, len(ids))
	for _, id := range ids {
		result = append(result, net.nodes[id])
	}
	return result
}

// Lookup finds a node by its name.
func (net *Network) Lookup(name string) *Node {
	for _, n := range net.nodes {
		if n != nil && n.Name == name {
			return n
		}
	}
	return nil
}

// Fanouts returns the consumer pins of the node id.
func (net *Network) Fanouts(id NodeID) []Fanout {
	return net.mustNode(id).Fanouts()
}

func (net *Network) mustNode(id NodeID) *Node {
	n := net.Node(id)
	if n == nil {
		panic(fmt.Sprintf("unknown node %d", id))
	}
	return n
}

// ReplaceFanin connects the pin of node id to driver.
func (net *Network) ReplaceFanin(id NodeID, pin int, driver NodeID) {
	n := net.mustNode(id)
	if pin < 0 || pin >= len(n.Fanins) {
		panic(fmt.Sprintf("ReplaceFanin: %s has no pin %d", n, pin))
	}
	f := Fanout{
		Node: id,
		Pin:  pin,
	}
	if n.Fanins[pin] != None {
		net.mustNode(n.Fanins[pin]).removeFanout(f)
	}
	net.mustNode(driver).addFanout(f)
	n.Fanins[pin] = driver
}

// Delete deletes the internal node id. The node must not have any
// fanouts.
func (net *Network) Delete(id NodeID) {
	n := net.mustNode(id)
	if n.Kind != Internal {
		panic(fmt.Sprintf("Delete: %s is not an internal node", n))
	}
	if len(n.fanouts) > 0 {
		panic(fmt.Sprintf("Delete: %s has fanouts", n))
	}
	for pin, f := range n.Fanins {
		if f == None {
			continue
		}
		net.mustNode(f).removeFanout(Fanout{
			Node: id,
			Pin:  pin,
		})
	}
	net.nodes[id] = nil
}

// Prune removes all internal nodes whose outputs are unused. It
// returns the number of removed nodes.
func (net *Network) Prune() int {
	var count int
	for i := len(net.nodes) - 1; i >= 0; i-- {
		n := net.nodes[i]
		if n == nil || n.Kind != Internal || len(n.fanouts) > 0 {
			continue
		}
		fanins := n.Fanins
		net.Delete(n.ID)
		count++
		for _, f := range fanins {
			count += net.pruneFrom(f)
		}
	}
	return count
}

func (net *Network) pruneFrom(id NodeID) int {
	if id == None {
		return 0
	}
	n := net.nodes[id]
	if n == nil || n.Kind != Internal || len(n.fanouts) > 0 {
		return 0
	}
	fanins := n.Fanins
	net.Delete(id)
	count := 1
	for _, f := range fanins {
		count += net.pruneFrom(f)
	}
	return count
}

// TopoOrder returns the live nodes in fanin-before-fanout order. The
// inputs of sequential nodes are cut so that they appear as sources.
// The order is deterministic for a given network.
func (net *Network) TopoOrder() []*Node {
	order, err := net.topoOrder()
	if err != nil {
		panic(fmt.Sprintf("TopoOrder: %s", err))
	}
	return order
}

func (net *Network) topoOrder() ([]*Node, error) {
	indeg := make([]int, len(net.nodes))
	var queue []NodeID

	for _, n := range net.nodes {
		if n == nil {
			continue
		}
		if !n.Sequential() {
			indeg[n.ID] = len(n.Fanins)
		}
		if indeg[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	result := make([]*Node, 0, len(net.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := net.nodes[id]
		result = append(result, n)

		fanouts := n.Fanouts()
		sort.Slice(fanouts, func(i, j int) bool {
			return fanouts[i].Node < fanouts[j].Node
		})
		for _, f := range fanouts {
			if net.nodes[f.Node].Sequential() {
				continue
			}
			indeg[f.Node]--
			if indeg[f.Node] == 0 {
				queue = append(queue, f.Node)
			}
		}
	}
	if len(result) != net.NumNodes() {
		return nil, errors.New("combinational cycle in network")
	}
	return result, nil
}

// ReverseTopoOrder returns the live nodes in fanout-before-fanin
// order.
func (net *Network) ReverseTopoOrder() []*Node {
	order := net.TopoOrder()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Clone creates a deep copy of the network. Node IDs are preserved.
func (net *Network) Clone() *Network {
	result := &Network{
		Name:    net.Name,
		nodes:   make([]*Node, len(net.nodes)),
		inputs:  append([]NodeID(nil), net.inputs...),
		outputs: append([]NodeID(nil), net.outputs...),
	}
	for i, n := range net.nodes {
		if n == nil {
			continue
		}
		c := *n
		c.Fanins = append([]NodeID(nil), n.Fanins...)
		c.fanouts = append([]Fanout(nil), n.fanouts...)
		result.nodes[i] = &c
	}
	return result
}

// Assign replaces the contents of the network with the contents of o.
func (net *Network) Assign(o *Network) {
	*net = *o.Clone()
}

// Stats returns node counts by function.
func (net *Network) Stats() Stats {
	stats := make(Stats)
	for _, n := range net.nodes {
		if n == nil || n.Kind != Internal {
			continue
		}
		stats[n.Function()]++
	}
	return stats
}

// Dump prints a debug dump of the network.
func (net *Network) Dump(out io.Writer) {
	fmt.Fprintf(out, "network %s\n", net)
	for _, n := range net.TopoOrder() {
		fmt.Fprintf(out, "%04d\t%s\t%s", n.ID, n, n.Function())
		for _, f := range n.Fanins {
			fmt.Fprintf(out, " %s", net.nodes[f])
		}
		fmt.Fprintln(out)
	}
}
