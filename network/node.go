//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package network

import (
	"fmt"

	"github.com/markkurossi/techmap/pwl"
)

// NodeID is a stable node identity. IDs are dense and never reused
// within one network.
type NodeID int

// None identifies an unassigned node.
const None NodeID = -1

// Kind specifies the node kind.
type Kind byte

// Node kinds.
const (
	Internal Kind = iota
	Input
	Output
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("{Kind %d}", k)
	}
}

// Op specifies the logic function of an internal node.
type Op byte

// Node functions. Gate nodes are mapped to a library gate and their
// function is defined by the gate.
const (
	Wire Op = iota
	Const0
	Const1
	Buf
	Inv
	Nand
	Nor
	And
	Or
	Xor
	Xnor
	Latch
	Gate
)

var opNames = map[Op]string{
	Wire:   "wire",
	Const0: "const0",
	Const1: "const1",
	Buf:    "buf",
	Inv:    "inv",
	Nand:   "nand",
	Nor:    "nor",
	And:    "and",
	Or:     "or",
	Xor:    "xor",
	Xnor:   "xnor",
	Latch:  "latch",
	Gate:   "gate",
}

func (op Op) String() string {
	name, ok := opNames[op]
	if ok {
		return name
	}
	return fmt.Sprintf("{Op %d}", op)
}

// Arity returns the number of fanins of the operation. Gate nodes
// return -1 as their arity is defined by the library gate.
func (op Op) Arity() int {
	switch op {
	case Const0, Const1:
		return 0
	case Wire, Buf, Inv, Latch:
		return 1
	case Nand, Nor, And, Or, Xor, Xnor:
		return 2
	default:
		return -1
	}
}

// Commutative tests if the operation's fanins can be swapped.
func (op Op) Commutative() bool {
	switch op {
	case Nand, Nor, And, Or, Xor, Xnor:
		return true
	default:
		return false
	}
}

// Edge specifies the active clock edge or level of a latch.
type Edge byte

// Latch edges.
const (
	Rising Edge = iota
	Falling
	ActiveHigh
	ActiveLow
)

var edgeNames = map[Edge]string{
	Rising:     "rising",
	Falling:    "falling",
	ActiveHigh: "high",
	ActiveLow:  "low",
}

func (e Edge) String() string {
	name, ok := edgeNames[e]
	if ok {
		return name
	}
	return fmt.Sprintf("{Edge %d}", e)
}

// Opposite returns the opposite active edge or level.
func (e Edge) Opposite() Edge {
	switch e {
	case Rising:
		return Falling
	case Falling:
		return Rising
	case ActiveHigh:
		return ActiveLow
	default:
		return ActiveHigh
	}
}

// ParseEdge parses the latch edge name.
func ParseEdge(val string) (Edge, bool) {
	for k, v := range edgeNames {
		if v == val {
			return k, true
		}
	}
	return Rising, false
}

// Fanout specifies a consumer pin of a node's output.
type Fanout struct {
	Node NodeID
	Pin  int
}

// Node implements a network node.
type Node struct {
	ID     NodeID
	Name   string
	Kind   Kind
	Op     Op
	Gate   string
	Edge   Edge
	Seq    bool
	Fanins []NodeID

	// Primary input attributes.
	Arrival    pwl.Delay
	Drive      pwl.Delay
	MaxLoad    float64
	HasArrival bool
	HasDrive   bool
	HasMaxLoad bool

	// Primary output attributes.
	Required    pwl.Delay
	Load        float64
	HasRequired bool
	HasLoad     bool

	fanouts []Fanout
}

func (n *Node) String() string {
	if len(n.Name) > 0 {
		return n.Name
	}
	return fmt.Sprintf("_%d", n.ID)
}

// IsInput tests if the node is a primary input.
func (n *Node) IsInput() bool {
	return n.Kind == Input
}

// IsOutput tests if the node is a primary output.
func (n *Node) IsOutput() bool {
	return n.Kind == Output
}

// Mapped tests if the node is mapped to a library gate.
func (n *Node) Mapped() bool {
	return n.Op == Gate
}

// Sequential tests if the node is a latch or a node mapped to a
// sequential gate.
func (n *Node) Sequential() bool {
	return n.Op == Latch || (n.Op == Gate && n.Seq)
}

// Function returns the node function label: the gate name for mapped
// nodes and the operation name otherwise.
func (n *Node) Function() string {
	switch n.Kind {
	case Input:
		return "PI"
	case Output:
		return "PO"
	}
	if n.Op == Gate {
		return n.Gate
	}
	return n.Op.String()
}

// NumFanouts returns the number of consumer pins of the node.
func (n *Node) NumFanouts() int {
	return len(n.fanouts)
}

// Fanouts returns the node's consumer pins.
func (n *Node) Fanouts() []Fanout {
	result := make([]Fanout, len(n.fanouts))
	copy(result, n.fanouts)
	return result
}

func (n *Node) addFanout(f Fanout) {
	n.fanouts = append(n.fanouts, f)
}

func (n *Node) removeFanout(f Fanout) {
	for i, o := range n.fanouts {
		if o == f {
			n.fanouts = append(n.fanouts[:i], n.fanouts[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("node %s has no fanout %v", n, f))
}
