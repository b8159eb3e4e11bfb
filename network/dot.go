//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package network

import (
	"fmt"
	"io"
)

// Dot creates graphviz dot output of the network.
func (net *Network) Dot(out io.Writer) {
	fmt.Fprintf(out, "digraph %q\n{\n", net.Name)
	fmt.Fprintf(out, "  overlap=scale;\n")
	fmt.Fprintf(out, "  node\t[fontname=\"Helvetica\"];\n")

	fmt.Fprintf(out, "  {\n    node [shape=plaintext];\n")
	for _, n := range net.Inputs() {
		fmt.Fprintf(out, "    n%d\t[label=%q];\n", n.ID, n.String())
	}
	for _, n := range net.Outputs() {
		fmt.Fprintf(out, "    n%d\t[label=%q];\n", n.ID, n.String())
	}
	fmt.Fprintf(out, "  }\n")

	fmt.Fprintf(out, "  {\n    node [shape=box];\n")
	for _, n := range net.Nodes() {
		if n.Kind != Internal {
			continue
		}
		fmt.Fprintf(out, "    n%d\t[label=\"%s\\n%s\"];\n",
			n.ID, n, n.Function())
	}
	fmt.Fprintf(out, "  }\n")

	fmt.Fprintf(out, "  {  rank=same")
	for _, n := range net.Inputs() {
		fmt.Fprintf(out, "; n%d", n.ID)
	}
	fmt.Fprintf(out, ";}\n")

	fmt.Fprintf(out, "  {  rank=same")
	for _, n := range net.Outputs() {
		fmt.Fprintf(out, "; n%d", n.ID)
	}
	fmt.Fprintf(out, ";}\n")

	for _, n := range net.Nodes() {
		for pin, f := range n.Fanins {
			fmt.Fprintf(out, "  n%d -> n%d\t[label=\"%d\"];\n", f, n.ID, pin)
		}
	}
	fmt.Fprintf(out, "}\n")
}
