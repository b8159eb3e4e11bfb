//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

// Package match implements structural matching of library patterns
// against the subject graph.
package match

import (
	"fmt"
	"strings"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/utils"
)

// Options control the matching of internal pattern vertices whose
// network fanout count differs from the pattern's declared fanout
// count.
type Options struct {
	Policy    utils.FanoutPolicy
	Limit     int
	LeafLevel bool
}

// NewOptions creates matcher options from the mapping parameters.
func NewOptions(params *utils.Params) Options {
	return Options{
		Policy:    params.InternalFanout,
		Limit:     params.FanoutLimit,
		LeafLevel: params.LeafLevelFanout,
	}
}

// Binding binds pattern vertices to network nodes. Nodes[v] is the
// network node of the pattern vertex v.
type Binding struct {
	Pattern *library.Pattern
	Nodes   []network.NodeID
}

// Root returns the node bound to the pattern root.
func (b *Binding) Root() network.NodeID {
	return b.Nodes[b.Pattern.Root]
}

// Input returns the node bound to the gate input pin.
func (b *Binding) Input(pin int) network.NodeID {
	return b.Nodes[b.Pattern.Leaves[pin]]
}

// Inputs returns the nodes bound to the gate input pins in pin order.
func (b *Binding) Inputs() []network.NodeID {
	result := make([]network.NodeID, len(b.Pattern.Leaves))
	for pin := range result {
		result[pin] = b.Input(pin)
	}
	return result
}

// Internal returns the nodes covered by the pattern's non-root,
// non-leaf vertices.
func (b *Binding) Internal() []network.NodeID {
	var result []network.NodeID
	for v, vertex := range b.Pattern.Vertices {
		if v == b.Pattern.Root || vertex.Leaf() {
			continue
		}
		result = append(result, b.Nodes[v])
	}
	return result
}

func (b *Binding) String() string {
	var sb strings.Builder
	sb.WriteString(b.Pattern.String())
	sb.WriteString(" {")
	for i, id := range b.Inputs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d", id)
	}
	sb.WriteString("}")
	return sb.String()
}

// Matcher enumerates pattern matches in one network. The matcher
// keeps its binding state in dense per-node tables so that node
// identity tests are constant time.
type Matcher struct {
	net  *network.Network
	opts Options

	pat     *library.Pattern
	visit   func(b *Binding) bool
	nodes   []network.NodeID
	swapped []bool

	owner    []int
	leafRefs []int
}

// New creates a matcher for the network.
func New(net *network.Network, opts Options) *Matcher {
	m := &Matcher{
		net:      net,
		opts:     opts,
		owner:    make([]int, net.MaxID()),
		leafRefs: make([]int, net.MaxID()),
	}
	for i := range m.owner {
		m.owner[i] = -1
	}
	return m
}

// All calls visit for every match of the pattern rooted at the node
// root. The visit function returns true to continue the enumeration
// and false to stop it. All returns false if the enumeration was
// stopped.
func (m *Matcher) All(root network.NodeID, pat *library.Pattern,
	visit func(b *Binding) bool) bool {

	if pat.Trivial() {
		return true
	}
	m.pat = pat
	m.visit = visit
	m.nodes = make([]network.NodeID, len(pat.Vertices))
	for i := range m.nodes {
		m.nodes[i] = network.None
	}
	m.swapped = make([]bool, len(pat.Vertices))

	return m.bind(pat.Root, root, -1, func() bool {
		return m.step(0)
	})
}

// All enumerates the pattern matches rooted at the node.
func All(net *network.Network, root network.NodeID, pat *library.Pattern,
	visit func(b *Binding) bool, opts Options) bool {
	return New(net, opts).All(root, pat, visit)
}

func (m *Matcher) step(i int) bool {
	if i >= len(m.pat.Edges) {
		b := &Binding{
			Pattern: m.pat,
			Nodes:   append([]network.NodeID(nil), m.nodes...),
		}
		return m.visit(b)
	}
	e := m.pat.Edges[i]
	from := m.net.Node(m.nodes[e.From])

	if e.Dir == library.In {
		pin := e.Pin
		if m.swapped[e.From] {
			pin = 1 - pin
		}
		n := from.Fanins[pin]
		if m.nodes[e.To] != network.None {
			if m.nodes[e.To] != n {
				return true
			}
			return m.step(i + 1)
		}
		return m.bind(e.To, n, -1, func() bool {
			return m.step(i + 1)
		})
	}

	commutative := m.pat.Vertices[e.To].Op.Commutative()
	for _, f := range from.Fanouts() {
		if !commutative && f.Pin != e.Pin {
			continue
		}
		swap := 0
		if f.Pin != e.Pin {
			swap = 1
		}
		if m.nodes[e.To] != network.None {
			if m.nodes[e.To] != f.Node || m.swapped[e.To] != (swap == 1) {
				continue
			}
			if !m.step(i + 1) {
				return false
			}
			continue
		}
		if !m.bind(e.To, f.Node, swap, func() bool {
			return m.step(i + 1)
		}) {
			return false
		}
	}
	return true
}

// bind binds the pattern vertex v to the node n and calls cont for
// each admissible fanin ordering. A non-negative swap forces the
// ordering. The binding is undone before bind returns.
func (m *Matcher) bind(v int, n network.NodeID, swap int,
	cont func() bool) bool {

	vertex := &m.pat.Vertices[v]
	node := m.net.Node(n)
	if node == nil || node.Kind == network.Output {
		return true
	}

	if vertex.Leaf() {
		if m.owner[n] >= 0 {
			return true
		}
		m.leafRefs[n]++
		m.nodes[v] = n
		result := cont()
		m.nodes[v] = network.None
		m.leafRefs[n]--
		return result
	}

	if node.Kind != network.Internal || node.Op != vertex.Op ||
		len(node.Fanins) != len(vertex.Fanins) {
		return true
	}
	if m.owner[n] >= 0 || m.leafRefs[n] > 0 {
		return true
	}
	if v != m.pat.Root && !m.fanoutOK(vertex, node) {
		return true
	}

	swaps := []bool{false}
	if swap >= 0 {
		swaps[0] = swap == 1
	} else if vertex.Op.Commutative() && len(vertex.Fanins) == 2 &&
		vertex.Fanins[0] != vertex.Fanins[1] &&
		node.Fanins[0] != node.Fanins[1] {
		swaps = append(swaps, true)
	}

	m.owner[n] = v
	m.nodes[v] = n
	defer func() {
		m.nodes[v] = network.None
		m.owner[n] = -1
		m.swapped[v] = false
	}()

	for _, s := range swaps {
		m.swapped[v] = s
		if !cont() {
			return false
		}
	}
	return true
}

// fanoutOK tests if the node can be covered by the internal pattern
// vertex.
func (m *Matcher) fanoutOK(vertex *library.Vertex, node *network.Node) bool {
	count := node.NumFanouts()
	if count == vertex.Fanouts {
		return true
	}
	if m.opts.LeafLevel && !m.leafLevel(vertex) {
		return false
	}
	switch m.opts.Policy {
	case utils.FanoutBounded:
		return count <= m.opts.Limit
	case utils.FanoutUnbounded:
		return true
	default:
		return false
	}
}

func (m *Matcher) leafLevel(vertex *library.Vertex) bool {
	for _, f := range vertex.Fanins {
		if !m.pat.Vertices[f].Leaf() {
			return false
		}
	}
	return true
}
