//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package mapper

import (
	"math"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/match"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

func (m *Mapper) bottomUp(mode utils.Mode) error {
	for _, n := range m.order {
		if n.Kind != network.Internal {
			continue
		}
		cands := m.candidates(n, n.Edge)
		if len(cands) == 0 && n.Op == network.Latch {
			m.log.Warningf(m.loc(), "latch %s: no %s latch, using %s",
				n, n.Edge, n.Edge.Opposite())
			cands = m.candidates(n, n.Edge.Opposite())
		}
		if len(cands) == 0 {
			return errors.Wrapf(library.ErrIncomplete,
				"no match for node %s (%s)", n, n.Op)
		}
		m.choose(n, cands, mode)

		if m.log.Verbose() > 1 {
			st := &m.nodes[n.ID]
			m.log.Debugf(2, "%s: %d candidates, area %.2f, cost %v\n",
				n, len(cands), st.minArea, st.best)
		}
	}
	return nil
}

// candidates creates decision buckets for all matches of all library
// patterns at the node. Latch nodes match latch gates with the active
// edge.
func (m *Mapper) candidates(n *network.Node, edge network.Edge) []int {
	var result []int
	for _, pat := range m.patterns {
		g := pat.Gate
		if pat.Vertices[pat.Root].Op != n.Op {
			continue
		}
		if g.Seq == library.SeqLatch && g.Edge != edge {
			continue
		}
		m.matcher.All(n.ID, pat, func(b *match.Binding) bool {
			result = append(result, m.candidate(n, g, b))
			return true
		})
	}
	return result
}

// choose selects the node's decisions from the candidate buckets
// according to the mapping mode.
func (m *Mapper) choose(n *network.Node, cands []int, mode utils.Mode) {
	st := &m.nodes[n.ID]
	load := m.estimatedLoad(n)

	st.areaBucket = cands[0]
	for _, h := range cands[1:] {
		if m.smaller(h, st.areaBucket, load) {
			st.areaBucket = h
		}
	}
	st.minArea = m.buckets[st.areaBucket].area

	if mode == utils.ModeSlack {
		if m.critical != nil && !m.critical[n.ID] {
			mode = utils.ModeArea
		} else {
			mode = utils.ModeDelay
		}
	}
	prefer := func(a, b int) bool {
		return m.smaller(a, b, load)
	}

	switch mode {
	case utils.ModeArea:
		st.best = m.buckets[st.areaBucket].cost

	case utils.ModeBlend:
		w := math.Max(0, math.Min(1, m.params.Blend))
		var best pwl.Func
		for _, h := range cands {
			bk := &m.buckets[h]
			f := pwl.Shift(pwl.Scale(bk.cost, 1-w), w*bk.area)
			if best == nil {
				best = f
			} else {
				best = pwl.MinBy(best, f, prefer)
			}
		}
		st.best = best

	case utils.ModeThreshold:
		delay := m.minDelay(cands, prefer)
		limit := delay.Eval(load) + m.params.Threshold
		choice := -1
		for _, h := range cands {
			bk := &m.buckets[h]
			if pwl.Less(limit, bk.cost.Eval(load)) {
				continue
			}
			if choice < 0 || m.smaller(h, choice, load) {
				choice = h
			}
		}
		if choice < 0 {
			st.best = delay
		} else {
			st.best = m.buckets[choice].cost
		}

	default:
		st.best = m.minDelay(cands, prefer)
	}
}

func (m *Mapper) minDelay(cands []int, prefer func(a, b int) bool) pwl.Func {
	best := m.buckets[cands[0]].cost
	for _, h := range cands[1:] {
		best = pwl.MinBy(best, m.buckets[h].cost, prefer)
	}
	return best
}

// smaller tests if the bucket a has smaller area than the bucket b.
// Ties are broken by the worst arrival at load.
func (m *Mapper) smaller(a, b int, load float64) bool {
	ba := &m.buckets[a]
	bb := &m.buckets[b]
	if !pwl.Equal(ba.area, bb.area) {
		return ba.area < bb.area
	}
	return pwl.Less(ba.arrival.Eval(load).Max(), bb.arrival.Eval(load).Max())
}
