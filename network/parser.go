//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package network

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

// ErrSyntax is returned for malformed netlist input.
var ErrSyntax = errors.New("syntax error")

var reParts = regexp.MustCompilePOSIX("[[:space:]]+")

type statement struct {
	loc    utils.Point
	node   *Node
	fanins []string
}

// Parse parses a netlist from the input reader. The source names the
// input in diagnostics.
//
//	.model NAME
//	.input NAME [arrival=R/F] [drive=R/F] [maxload=C]
//	.output NAME DRIVER [required=R/F] [load=C]
//	NAME = OP FANIN...
//	NAME = latch EDGE FANIN
//	NAME = gate GATE [@EDGE] FANIN...
func Parse(in io.Reader, source string) (*Network, error) {
	net := New(source)
	names := make(map[string]NodeID)
	var stmts []statement
	var outputs []statement

	scanner := bufio.NewScanner(in)
	var line int
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if idx := strings.IndexByte(text, '#'); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		if len(text) == 0 {
			continue
		}
		loc := utils.Point{
			Source: source,
			Line:   line,
		}
		parts := reParts.Split(text, -1)

		switch parts[0] {
		case ".model":
			if len(parts) != 2 {
				return nil, syntaxError(loc, "invalid .model")
			}
			net.Name = parts[1]

		case ".input":
			if len(parts) < 2 {
				return nil, syntaxError(loc, "invalid .input")
			}
			if _, ok := names[parts[1]]; ok {
				return nil, syntaxError(loc, "node %s redefined", parts[1])
			}
			n := net.AddInput(parts[1])
			names[n.Name] = n.ID
			if err := parseAttrs(loc, n, parts[2:]); err != nil {
				return nil, err
			}

		case ".output":
			if len(parts) < 3 {
				return nil, syntaxError(loc, "invalid .output")
			}
			n := &Node{
				Name: parts[1],
				Kind: Output,
			}
			if err := parseAttrs(loc, n, parts[3:]); err != nil {
				return nil, err
			}
			outputs = append(outputs, statement{
				loc:    loc,
				node:   n,
				fanins: parts[2:3],
			})

		default:
			if len(parts) < 3 || parts[1] != "=" {
				return nil, syntaxError(loc, "invalid statement")
			}
			if _, ok := names[parts[0]]; ok {
				return nil, syntaxError(loc, "node %s redefined", parts[0])
			}
			n, fanins, err := parseNode(loc, net, parts[0], parts[2:])
			if err != nil {
				return nil, err
			}
			names[n.Name] = n.ID
			stmts = append(stmts, statement{
				loc:    loc,
				node:   n,
				fanins: fanins,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, stmt := range stmts {
		for _, name := range stmt.fanins {
			id, ok := names[name]
			if !ok {
				return nil, syntaxError(stmt.loc, "undefined node %s", name)
			}
			net.connect(stmt.node, id)
		}
	}
	for _, stmt := range outputs {
		id, ok := names[stmt.fanins[0]]
		if !ok {
			return nil, syntaxError(stmt.loc, "undefined node %s",
				stmt.fanins[0])
		}
		n := net.AddOutput(stmt.node.Name, id)
		n.Required = stmt.node.Required
		n.HasRequired = stmt.node.HasRequired
		n.Load = stmt.node.Load
		n.HasLoad = stmt.node.HasLoad
	}

	if _, err := net.topoOrder(); err != nil {
		return nil, errors.Wrap(ErrSyntax, err.Error())
	}

	return net, nil
}

func parseNode(loc utils.Point, net *Network, name string, parts []string) (
	*Node, []string, error) {

	for op, opName := range opNames {
		if opName != parts[0] {
			continue
		}
		switch op {
		case Gate:
			if len(parts) < 2 {
				return nil, nil, syntaxError(loc, "gate name missing")
			}
			n := net.newNode(name, Internal, Gate)
			n.Gate = parts[1]
			fanins := parts[2:]
			if len(fanins) > 0 && strings.HasPrefix(fanins[0], "@") {
				edge, ok := ParseEdge(fanins[0][1:])
				if !ok {
					return nil, nil, syntaxError(loc, "invalid gate edge %s",
						fanins[0])
				}
				n.Edge = edge
				n.Seq = true
				fanins = fanins[1:]
			}
			return n, fanins, nil

		case Latch:
			if len(parts) != 3 {
				return nil, nil, syntaxError(loc, "invalid latch")
			}
			edge, ok := ParseEdge(parts[1])
			if !ok {
				return nil, nil, syntaxError(loc, "invalid latch edge %s",
					parts[1])
			}
			n := net.newNode(name, Internal, Latch)
			n.Edge = edge
			return n, parts[2:], nil

		default:
			if op.Arity() != len(parts)-1 {
				return nil, nil, syntaxError(loc,
					"%s expects %d fanins, got %d",
					op, op.Arity(), len(parts)-1)
			}
			return net.newNode(name, Internal, op), parts[1:], nil
		}
	}
	return nil, nil, syntaxError(loc, "unknown operation %s", parts[0])
}

func parseAttrs(loc utils.Point, n *Node, attrs []string) error {
	for _, attr := range attrs {
		kv := strings.SplitN(attr, "=", 2)
		if len(kv) != 2 {
			return syntaxError(loc, "invalid attribute %s", attr)
		}
		var err error
		switch kv[0] {
		case "arrival":
			n.Arrival, err = parseDelay(kv[1])
			n.HasArrival = true
		case "drive":
			n.Drive, err = parseDelay(kv[1])
			n.HasDrive = true
		case "maxload":
			n.MaxLoad, err = strconv.ParseFloat(kv[1], 64)
			n.HasMaxLoad = true
		case "required":
			n.Required, err = parseDelay(kv[1])
			n.HasRequired = true
		case "load":
			n.Load, err = strconv.ParseFloat(kv[1], 64)
			n.HasLoad = true
		default:
			return syntaxError(loc, "unknown attribute %s", kv[0])
		}
		if err != nil {
			return syntaxError(loc, "invalid %s value: %s", kv[0], err)
		}
	}
	return nil
}

func parseDelay(val string) (pwl.Delay, error) {
	parts := strings.SplitN(val, "/", 2)
	rise, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return pwl.Delay{}, err
	}
	fall := rise
	if len(parts) == 2 {
		fall, err = strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return pwl.Delay{}, err
		}
	}
	return pwl.Delay{
		Rise: rise,
		Fall: fall,
	}, nil
}

func syntaxError(loc utils.Point, format string, a ...interface{}) error {
	return errors.Wrapf(ErrSyntax, "%s: %s", loc, fmt.Sprintf(format, a...))
}

// Marshal writes the network in the netlist format accepted by Parse.
func (net *Network) Marshal(out io.Writer) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, ".model %s\n", net.Name)
	for _, n := range net.Inputs() {
		fmt.Fprintf(w, ".input %s", n)
		if n.HasArrival {
			fmt.Fprintf(w, " arrival=%g/%g", n.Arrival.Rise, n.Arrival.Fall)
		}
		if n.HasDrive {
			fmt.Fprintf(w, " drive=%g/%g", n.Drive.Rise, n.Drive.Fall)
		}
		if n.HasMaxLoad {
			fmt.Fprintf(w, " maxload=%g", n.MaxLoad)
		}
		fmt.Fprintln(w)
	}
	for _, n := range net.TopoOrder() {
		if n.Kind != Internal {
			continue
		}
		fmt.Fprintf(w, "%s = %s", n, n.Op)
		switch n.Op {
		case Gate:
			fmt.Fprintf(w, " %s", n.Gate)
			if n.Seq {
				fmt.Fprintf(w, " @%s", n.Edge)
			}
		case Latch:
			fmt.Fprintf(w, " %s", n.Edge)
		}
		for _, f := range n.Fanins {
			fmt.Fprintf(w, " %s", net.nodes[f])
		}
		fmt.Fprintln(w)
	}
	for _, n := range net.Outputs() {
		fmt.Fprintf(w, ".output %s %s", n, net.nodes[n.Fanins[0]])
		if n.HasRequired {
			fmt.Fprintf(w, " required=%g/%g", n.Required.Rise,
				n.Required.Fall)
		}
		if n.HasLoad {
			fmt.Fprintf(w, " load=%g", n.Load)
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}
