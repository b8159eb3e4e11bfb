//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"fmt"
	"io"
	"strings"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/text/superscript"
	"github.com/pkg/errors"
)

// Kind specifies the fanout tree node type.
type Kind byte

// Fanout tree node types.
const (
	KindSink Kind = iota
	KindBuffer
	KindSource
)

func (k Kind) String() string {
	switch k {
	case KindSink:
		return "sink"
	case KindBuffer:
		return "buffer"
	case KindSource:
		return "source"
	default:
		return fmt.Sprintf("{Kind %d}", k)
	}
}

// Node is a fanout tree node. Trees are values: they are never
// modified after construction and transformations build new trees
// that may share subtrees with the old ones.
type Node struct {
	Kind     Kind
	Gate     *library.Gate
	Sink     int
	Children []*Node
}

// Leaf creates a sink node for the problem sink index.
func Leaf(sink int) *Node {
	return &Node{
		Kind: KindSink,
		Sink: sink,
	}
}

// Buffer creates a buffer node of the gate driving the children.
func Buffer(g *library.Gate, children ...*Node) *Node {
	return &Node{
		Kind:     KindBuffer,
		Gate:     g,
		Children: append([]*Node(nil), children...),
	}
}

// Root creates a source node of the gate driving the children. The
// gate is nil for primary input sources.
func Root(g *library.Gate, children ...*Node) *Node {
	return &Node{
		Kind:     KindSource,
		Gate:     g,
		Children: append([]*Node(nil), children...),
	}
}

// withChildren returns a copy of n with the children.
func (n *Node) withChildren(children []*Node) *Node {
	return &Node{
		Kind:     n.Kind,
		Gate:     n.Gate,
		Sink:     n.Sink,
		Children: children,
	}
}

// withGate returns a copy of n with the gate.
func (n *Node) withGate(g *library.Gate) *Node {
	return &Node{
		Kind:     n.Kind,
		Gate:     g,
		Sink:     n.Sink,
		Children: n.Children,
	}
}

func (n *Node) String() string {
	var sb strings.Builder
	n.format(&sb)
	return sb.String()
}

func (n *Node) format(sb *strings.Builder) {
	switch n.Kind {
	case KindSink:
		fmt.Fprintf(sb, "s%d", n.Sink)
		return
	case KindSource:
		if n.Gate == nil {
			sb.WriteString("PI")
		} else {
			sb.WriteString(n.Gate.Name)
		}
	default:
		sb.WriteString(n.Gate.Name)
	}
	sb.WriteRune('(')
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteRune(' ')
		}
		c.format(sb)
	}
	sb.WriteRune(')')
}

// Buffers returns the number of buffer nodes in the tree.
func (n *Node) Buffers() int {
	var count int
	if n.Kind == KindBuffer {
		count++
	}
	for _, c := range n.Children {
		count += c.Buffers()
	}
	return count
}

// Item is an element of a flattened tree.
type Item struct {
	Kind  Kind
	Gate  *library.Gate
	Arity int
	Sink  int
}

// Flatten linearizes the tree in pre-order.
func (n *Node) Flatten() []Item {
	var result []Item
	var walk func(n *Node)
	walk = func(n *Node) {
		result = append(result, Item{
			Kind:  n.Kind,
			Gate:  n.Gate,
			Arity: len(n.Children),
			Sink:  n.Sink,
		})
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return result
}

// Expand rebuilds the tree from its flattened items.
func Expand(items []Item) (*Node, error) {
	var pos int
	var build func() (*Node, error)
	build = func() (*Node, error) {
		if pos >= len(items) {
			return nil, errors.New("truncated fanout tree")
		}
		it := items[pos]
		pos++
		if it.Kind == KindSink {
			if it.Arity != 0 {
				return nil, errors.Errorf("sink %d with %d children",
					it.Sink, it.Arity)
			}
			return Leaf(it.Sink), nil
		}
		children := make([]*Node, it.Arity)
		for i := range children {
			c, err := build()
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return &Node{
			Kind:     it.Kind,
			Gate:     it.Gate,
			Children: children,
		}, nil
	}
	root, err := build()
	if err != nil {
		return nil, err
	}
	if pos != len(items) {
		return nil, errors.Errorf("%d trailing fanout tree items",
			len(items)-pos)
	}
	return root, nil
}

// Dump prints the tree with one node per line. Buffer levels are shown
// as superscripts.
func (n *Node) Dump(out io.Writer, pb *Problem) {
	n.dump(out, pb, 0)
}

func (n *Node) dump(out io.Writer, pb *Problem, level int) {
	indent := strings.Repeat("  ", level)
	switch n.Kind {
	case KindSink:
		s := pb.Sinks[n.Sink]
		fmt.Fprintf(out, "%s%s\tload=%.2f req=%s\n",
			indent, s.Link, s.Link.Load, s.Link.Required)
		return
	case KindSource:
		name := "PI"
		if n.Gate != nil {
			name = n.Gate.Name
		}
		fmt.Fprintf(out, "%s%s\n", indent, name)
	default:
		fmt.Fprintf(out, "%s%s%s\n", indent, n.Gate.Name,
			superscript.Itoa(level))
	}
	for _, c := range n.Children {
		c.dump(out, pb, level+1)
	}
}
