//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package library

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/markkurossi/techmap/network"
	"github.com/pkg/errors"
)

// Vertex is a pattern vertex. Leaf vertices have the Wire operation
// and bind to any network node.
type Vertex struct {
	Op      network.Op
	Fanins  []int
	Input   int
	Fanouts int
	Name    string
}

// Leaf tests if the vertex is a pattern input port.
func (v *Vertex) Leaf() bool {
	return v.Op == network.Wire
}

// Direction specifies the traversal direction of a pattern edge.
type Direction byte

// Edge directions.
const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "in"
	}
	return "out"
}

// Edge is a pattern traversal step. For In edges, To is the Pin:th
// fanin of the bound vertex From. For Out edges, To is a fanout of
// From and From is the Pin:th fanin of To.
type Edge struct {
	From int
	To   int
	Pin  int
	Dir  Direction
}

// Pattern is a small rooted DAG of subject graph operations with
// labeled input ports.
type Pattern struct {
	Gate     *Gate
	Expr     string
	Vertices []Vertex
	Root     int
	Edges    []Edge
	Leaves   []int
}

func (p *Pattern) String() string {
	if p.Gate != nil {
		return fmt.Sprintf("%s:%s", p.Gate.Name, p.Expr)
	}
	return p.Expr
}

// Trivial tests if the pattern root is a leaf. Trivial patterns never
// match in the subject graph.
func (p *Pattern) Trivial() bool {
	return p.Vertices[p.Root].Leaf()
}

// Compile computes the pattern's edge list in depth-first order from
// the root and the vertex fanout counts. The traversal order is
// deterministic.
func (p *Pattern) Compile() {
	for i := range p.Vertices {
		p.Vertices[i].Fanouts = 0
	}
	for _, v := range p.Vertices {
		for _, f := range v.Fanins {
			p.Vertices[f].Fanouts++
		}
	}

	p.Edges = p.Edges[:0]
	visited := make([]bool, len(p.Vertices))
	visited[p.Root] = true

	var visit func(u int)
	visit = func(u int) {
		for pin, v := range p.Vertices[u].Fanins {
			p.Edges = append(p.Edges, Edge{
				From: u,
				To:   v,
				Pin:  pin,
				Dir:  In,
			})
			if !visited[v] {
				visited[v] = true
				visit(v)
			}
		}
	}
	visit(p.Root)
}

// Eval evaluates the pattern function for the truth table row.
func (p *Pattern) Eval(row uint) bool {
	return p.eval(p.Root, row)
}

func (p *Pattern) eval(v int, row uint) bool {
	vertex := &p.Vertices[v]
	switch vertex.Op {
	case network.Wire:
		return row&(1<<uint(vertex.Input)) != 0
	case network.Const0:
		return false
	case network.Const1:
		return true
	case network.Inv:
		return !p.eval(vertex.Fanins[0], row)
	case network.Latch, network.Buf:
		return p.eval(vertex.Fanins[0], row)
	case network.Nand:
		return !(p.eval(vertex.Fanins[0], row) &&
			p.eval(vertex.Fanins[1], row))
	default:
		panic(fmt.Sprintf("pattern: unsupported operation %s", vertex.Op))
	}
}

// TruthTable computes the pattern truth table over n inputs.
func (p *Pattern) TruthTable(n int) uint64 {
	if n > 6 {
		panic(fmt.Sprintf("pattern: too many inputs: %d", n))
	}
	var tt uint64
	for row := uint(0); row < 1<<uint(n); row++ {
		if p.Eval(row) {
			tt |= 1 << row
		}
	}
	return tt
}

// ParsePattern parses the pattern expression. It returns the pattern
// and its input names in the order of their first appearance.
// Identical sub-expressions are shared.
//
//	EXPR := NAME | OP '(' EXPR {',' EXPR} ')'
//	OP   := inv | nand | latch | const0 | const1 | buf | and | or | nor
func ParsePattern(expr string) (*Pattern, []string, error) {
	p := &pexpr{
		input:  expr,
		pat:    &Pattern{Expr: expr},
		shared: make(map[string]int),
		leaves: make(map[string]int),
	}
	root, err := p.parse()
	if err != nil {
		return nil, nil, err
	}
	if tok := p.next(); len(tok) > 0 {
		return nil, nil, p.errorf("unexpected token %q", tok)
	}
	p.pat.Root = root
	for i, name := range p.names {
		p.pat.Vertices[p.leaves[name]].Input = i
	}
	p.pat.Compile()
	return p.pat, p.names, nil
}

type pexpr struct {
	input  string
	pos    int
	pat    *Pattern
	shared map[string]int
	leaves map[string]int
	names  []string
}

func (p *pexpr) errorf(format string, a ...interface{}) error {
	return errors.Errorf("pattern %q: %s", p.input, fmt.Sprintf(format, a...))
}

func (p *pexpr) next() string {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
	if p.pos >= len(p.input) {
		return ""
	}
	start := p.pos
	switch p.input[p.pos] {
	case '(', ')', ',':
		p.pos++
		return p.input[start:p.pos]
	}
	for p.pos < len(p.input) {
		r := rune(p.input[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *pexpr) peek() string {
	pos := p.pos
	tok := p.next()
	p.pos = pos
	return tok
}

func (p *pexpr) parse() (int, error) {
	name := p.next()
	if len(name) == 0 {
		return 0, p.errorf("unexpected end of expression")
	}
	if p.peek() != "(" {
		return p.leaf(name)
	}
	p.next()

	var args []int
	if p.peek() == ")" {
		p.next()
	} else {
		for {
			arg, err := p.parse()
			if err != nil {
				return 0, err
			}
			args = append(args, arg)
			tok := p.next()
			if tok == ")" {
				break
			}
			if tok != "," {
				return 0, p.errorf("unexpected token %q", tok)
			}
		}
	}

	op := strings.ToLower(name)
	arity := map[string]int{
		"inv": 1, "buf": 1, "latch": 1,
		"nand": 2, "and": 2, "or": 2, "nor": 2,
		"const0": 0, "const1": 0,
	}
	n, ok := arity[op]
	if !ok {
		return 0, p.errorf("unknown operation %s", name)
	}
	if n != len(args) {
		return 0, p.errorf("%s expects %d arguments, got %d",
			op, n, len(args))
	}

	switch op {
	case "inv":
		return p.vertex(network.Inv, args...), nil
	case "latch":
		return p.vertex(network.Latch, args...), nil
	case "nand":
		return p.vertex(network.Nand, args...), nil
	case "const0":
		return p.vertex(network.Const0), nil
	case "const1":
		return p.vertex(network.Const1), nil
	case "buf":
		return p.vertex(network.Inv, p.vertex(network.Inv, args[0])), nil
	case "and":
		return p.vertex(network.Inv, p.vertex(network.Nand, args...)), nil
	case "or":
		return p.or(args[0], args[1]), nil
	default:
		return p.vertex(network.Inv, p.or(args[0], args[1])), nil
	}
}

func (p *pexpr) or(a, b int) int {
	return p.vertex(network.Nand,
		p.vertex(network.Inv, a), p.vertex(network.Inv, b))
}

func (p *pexpr) leaf(name string) (int, error) {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return 0, p.errorf("invalid input name %q", name)
		}
	}
	idx, ok := p.leaves[name]
	if ok {
		return idx, nil
	}
	idx = len(p.pat.Vertices)
	p.pat.Vertices = append(p.pat.Vertices, Vertex{
		Op:    network.Wire,
		Input: -1,
		Name:  name,
	})
	p.leaves[name] = idx
	p.names = append(p.names, name)
	return idx, nil
}

func (p *pexpr) vertex(op network.Op, fanins ...int) int {
	key := fmt.Sprintf("%d%v", op, fanins)
	idx, ok := p.shared[key]
	if ok {
		return idx
	}
	idx = len(p.pat.Vertices)
	p.pat.Vertices = append(p.pat.Vertices, Vertex{
		Op:     op,
		Fanins: fanins,
		Input:  -1,
	})
	p.shared[key] = idx
	return idx
}
