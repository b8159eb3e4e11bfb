//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package network

// Decompose rewrites the network into the NAND2/INV subject graph
// used by the pattern matcher. Buffers and wires are spliced out. It
// returns the number of rewritten nodes.
func (net *Network) Decompose() int {
	var count int

	for _, n := range net.TopoOrder() {
		if n.Kind != Internal {
			continue
		}
		var root *Node

		switch n.Op {
		case Wire, Buf:
			net.moveFanouts(n, n.Fanins[0])
			net.Delete(n.ID)
			count++
			continue

		case And:
			root = net.AddNode("", Inv,
				net.AddNode("", Nand, n.Fanins[0], n.Fanins[1]).ID)

		case Or:
			root = net.or(n.Fanins[0], n.Fanins[1])

		case Nor:
			root = net.AddNode("", Inv,
				net.or(n.Fanins[0], n.Fanins[1]).ID)

		case Xor:
			root = net.xor(n.Fanins[0], n.Fanins[1])

		case Xnor:
			root = net.AddNode("", Inv,
				net.xor(n.Fanins[0], n.Fanins[1]).ID)

		default:
			continue
		}
		root.Name = n.Name
		n.Name = ""
		net.moveFanouts(n, root.ID)
		net.Delete(n.ID)
		count++
	}
	net.Prune()

	return count
}

func (net *Network) or(a, b NodeID) *Node {
	return net.AddNode("", Nand,
		net.AddNode("", Inv, a).ID,
		net.AddNode("", Inv, b).ID)
}

func (net *Network) xor(a, b NodeID) *Node {
	t := net.AddNode("", Nand, a, b)
	return net.AddNode("", Nand,
		net.AddNode("", Nand, a, t.ID).ID,
		net.AddNode("", Nand, b, t.ID).ID)
}

// moveFanouts reconnects all consumers of n to driver.
func (net *Network) moveFanouts(n *Node, driver NodeID) {
	for _, f := range n.Fanouts() {
		net.ReplaceFanin(f.Node, f.Pin, driver)
	}
}
