//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package techmap implements delay-driven technology mapping and
// fanout optimization of Boolean networks.
package techmap

import (
	"fmt"
	"io"
	"sort"

	"github.com/markkurossi/tabulate"
	"github.com/markkurossi/techmap/fanout"
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/mapper"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/timing"
	"github.com/markkurossi/techmap/utils"
)

// Report describes the result of a synthesis run.
type Report struct {
	Net    *network.Network
	Timing *timing.Analysis
	Fanout fanout.Stats

	// Changed tells if the fanout optimizer changed the structure of
	// the mapped network in the last iteration.
	Changed bool

	Profile *utils.Timing
}

// Synthesize maps the network into the library gates and optimizes
// its fanout trees, alternating the two params.Iterations times. On
// success the network is replaced with the result; on failure it is
// left unchanged.
func Synthesize(net *network.Network, lib *library.Library,
	params *utils.Params, log *utils.Logger) (*Report, error) {

	report := &Report{
		Profile: utils.NewTiming(),
	}
	iterations := params.Iterations
	if iterations < 1 {
		iterations = 1
	}
	work := net.Clone()
	m := mapper.New(lib, params, log)
	opt := fanout.New(lib, params, log)

	for i := 0; i < iterations; i++ {
		if err := m.Map(work); err != nil {
			return nil, err
		}
		report.Profile.Sample(fmt.Sprintf("map #%d", i),
			fmt.Sprintf("%d nodes", work.NumNodes()))

		fp := work.Fingerprint()
		stats, err := opt.Optimize(work)
		if err != nil {
			return nil, err
		}
		report.Changed = fp != work.Fingerprint()
		report.Fanout.Passes += stats.Passes
		report.Fanout.Visited += stats.Visited
		report.Fanout.Commits += stats.Commits
		report.Fanout.Resized += stats.Resized

		report.Profile.Sample(fmt.Sprintf("fanout #%d", i),
			fmt.Sprintf("%d commits", stats.Commits))
	}

	a, err := timing.Analyze(work, lib, params)
	if err != nil {
		return nil, err
	}
	report.Profile.Sample("timing", a.String())

	net.Assign(work)
	report.Net = net
	a.Net = net
	report.Timing = a
	return report, nil
}

// PrintGates prints the gate assignment of the mapped nodes.
func (r *Report) PrintGates(out io.Writer) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Node").SetAlign(tabulate.ML)
	tab.Header("Gate").SetAlign(tabulate.ML)
	tab.Header("Fanins").SetAlign(tabulate.ML)
	tab.Header("Arrival").SetAlign(tabulate.MR)
	tab.Header("Required").SetAlign(tabulate.MR)
	tab.Header("Slack").SetAlign(tabulate.MR)

	for _, n := range r.Net.TopoOrder() {
		if !n.Mapped() {
			continue
		}
		row := tab.Row()
		row.Column(n.String())
		row.Column(n.Gate)
		var fanins string
		for i, f := range n.Fanins {
			if i > 0 {
				fanins += " "
			}
			fanins += r.Net.Node(f).String()
		}
		row.Column(fanins)
		row.Column(r.Timing.Arrival[n.ID].String())
		row.Column(r.Timing.Required[n.ID].String())
		slack := r.Timing.NodeSlack(n.ID)
		col := row.Column(fmt.Sprintf("%.3f", slack))
		if slack < 0 {
			col.SetFormat(tabulate.FmtBold)
		}
	}
	tab.Print(out)
}

// PrintStats prints the gate counts and the area and timing totals.
func (r *Report) PrintStats(out io.Writer) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Function").SetAlign(tabulate.ML)
	tab.Header("Count").SetAlign(tabulate.MR)

	stats := r.Net.Stats()
	var keys []string
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row := tab.Row()
		row.Column(k)
		row.Column(fmt.Sprintf("%d", stats[k]))
	}
	total := func(label, value string) {
		row := tab.Row()
		row.Column(label).SetFormat(tabulate.FmtItalic)
		row.Column(value).SetFormat(tabulate.FmtItalic)
	}
	total("Area", fmt.Sprintf("%.2f", r.Timing.Area))
	total("Delay", fmt.Sprintf("%.3f", r.Timing.Delay))
	total("Slack", fmt.Sprintf("%.3f", r.Timing.Slack))
	total("Fanout commits", fmt.Sprintf("%d", r.Fanout.Commits))
	total("Resized", fmt.Sprintf("%d", r.Fanout.Resized))
	total("Changed", fmt.Sprintf("%v", r.Changed))
	tab.Print(out)
}
