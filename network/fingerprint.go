//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package network

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Fingerprint computes a structural digest of the network. Two
// networks have the same fingerprint if they have the same node
// functions and connectivity in topological order. The names of
// internal nodes do not contribute to the digest.
func (net *Network) Fingerprint() string {
	h := sha3.New256()
	order := net.TopoOrder()

	index := make(map[NodeID]uint32)
	for idx, n := range order {
		index[n.ID] = uint32(idx)
	}

	var buf [4]byte
	for _, n := range order {
		h.Write([]byte{byte(n.Kind), byte(n.Op), byte(n.Edge)})
		if n.Seq {
			h.Write([]byte{1})
		}
		if n.Kind != Internal {
			h.Write([]byte(n.Name))
		}
		h.Write([]byte(n.Gate))
		binary.BigEndian.PutUint32(buf[:], uint32(len(n.Fanins)))
		h.Write(buf[:])
		for _, f := range n.Fanins {
			binary.BigEndian.PutUint32(buf[:], index[f])
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
