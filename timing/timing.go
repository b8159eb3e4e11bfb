//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package timing implements static timing analysis of mapped
// networks.
package timing

import (
	"fmt"
	"io"
	"math"

	"github.com/markkurossi/tabulate"
	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

// Analysis holds the static timing of a mapped network. The per-node
// tables are indexed by node ID.
type Analysis struct {
	Net      *network.Network
	Arrival  []pwl.Delay
	Required []pwl.Delay
	Load     []float64

	Area  float64
	Delay float64
	Slack float64
	Gates int
}

// Analyze computes the arrival, required, and load of every node of
// the mapped network. Primary outputs without declared required time
// use params.DefaultRequired, or the worst output arrival if it is
// zero.
func Analyze(net *network.Network, lib *library.Library,
	params *utils.Params) (*Analysis, error) {

	size := net.MaxID()
	a := &Analysis{
		Net:      net,
		Arrival:  make([]pwl.Delay, size),
		Required: make([]pwl.Delay, size),
		Load:     make([]float64, size),
	}
	order := net.TopoOrder()
	gates := make([]*library.Gate, size)

	for _, n := range order {
		if n.Kind != network.Internal {
			continue
		}
		switch n.Op {
		case network.Gate:
			g := lib.Gate(n.Gate)
			if g == nil {
				return nil, errors.Errorf("node %s: unknown gate %s",
					n, n.Gate)
			}
			if len(g.Pins) != len(n.Fanins) {
				return nil, errors.Errorf("node %s: gate %s has %d pins",
					n, g.Name, len(g.Pins))
			}
			gates[n.ID] = g
			a.Area += g.Area
			a.Gates++
		case network.Wire:
		default:
			return nil, errors.Errorf("node %s: not mapped", n)
		}
	}

	// Loads.
	for _, n := range order {
		var count int
		for _, f := range n.Fanouts() {
			c := net.Node(f.Node)
			switch {
			case c.IsOutput():
				a.Load[n.ID] += OutputLoad(c, lib)
			case gates[c.ID] != nil:
				a.Load[n.ID] += gates[c.ID].Pins[f.Pin].Load
			}
			count++
		}
		a.Load[n.ID] += lib.WireLoad.Load(count)
	}

	// Arrival times.
	clock := pwl.Both(params.DefaultArrival)
	for _, n := range order {
		switch {
		case n.IsInput():
			a.Arrival[n.ID] = InputArrival(n, lib, params, a.Load[n.ID])
		case n.IsOutput():
			a.Arrival[n.ID] = a.Arrival[n.Fanins[0]]
		case gates[n.ID] == nil:
			a.Arrival[n.ID] = a.Arrival[n.Fanins[0]]
		default:
			g := gates[n.ID]
			in := make([]pwl.Delay, len(n.Fanins))
			for i, f := range n.Fanins {
				if g.Seq == library.SeqLatch {
					in[i] = clock
				} else {
					in[i] = a.Arrival[f]
				}
			}
			a.Arrival[n.ID] = g.Arrival(in, a.Load[n.ID], params.LoadPenalty)
		}
	}
	a.Delay = math.Inf(-1)
	for _, o := range net.Outputs() {
		a.Delay = math.Max(a.Delay, a.Arrival[o.ID].Max())
	}
	if len(net.Outputs()) == 0 {
		a.Delay = 0
	}

	// Required times.
	for i := range a.Required {
		a.Required[i] = pwl.Inf(1)
	}
	deflt := params.DefaultRequired
	if deflt == 0 {
		deflt = a.Delay
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if n.IsOutput() {
			if n.HasRequired {
				a.Required[n.ID] = n.Required
			} else {
				a.Required[n.ID] = pwl.Both(deflt)
			}
		}
		req := a.Required[n.ID]
		for pin, f := range n.Fanins {
			var r pwl.Delay
			g := gates[n.ID]
			switch {
			case g == nil:
				r = req
			case g.Seq == library.SeqLatch:
				r = pwl.Both(deflt)
			default:
				r = g.Pins[pin].Required(req, a.Load[n.ID], params.LoadPenalty)
			}
			a.Required[f] = pwl.MinDelay(a.Required[f], r)
		}
	}

	a.Slack = math.Inf(1)
	for _, n := range order {
		if n.Kind == network.Internal && len(n.Fanouts()) == 0 {
			continue
		}
		a.Slack = math.Min(a.Slack, a.NodeSlack(n.ID))
	}
	if math.IsInf(a.Slack, 1) {
		a.Slack = 0
	}
	return a, nil
}

// NodeSlack returns the worst of the rise and fall slacks of the node.
func (a *Analysis) NodeSlack(id network.NodeID) float64 {
	return a.Required[id].Sub(a.Arrival[id]).Min()
}

// OutputLoad returns the load of the primary output.
func OutputLoad(n *network.Node, lib *library.Library) float64 {
	if n.HasLoad {
		return n.Load
	}
	return lib.DefaultLoad()
}

// InputArrival returns the arrival time of the primary input when it
// drives load.
func InputArrival(n *network.Node, lib *library.Library,
	params *utils.Params, load float64) pwl.Delay {

	arrival := pwl.Both(params.DefaultArrival)
	if n.HasArrival {
		arrival = n.Arrival
	}
	drive := InputDrive(n, lib)
	d := pwl.Delay{
		Rise: arrival.Rise + drive.Rise*load,
		Fall: arrival.Fall + drive.Fall*load,
	}
	limit := InputMaxLoad(n, lib)
	if limit > 0 && load > limit {
		excess := params.LoadPenalty * (load - limit)
		d.Rise += excess
		d.Fall += excess
	}
	return d
}

// InputMaxLoad returns the load limit of the primary input. Zero
// means no limit.
func InputMaxLoad(n *network.Node, lib *library.Library) float64 {
	if n.HasMaxLoad {
		return n.MaxLoad
	}
	return lib.DefaultMaxLoad()
}

// InputDrive returns the drive of the primary input.
func InputDrive(n *network.Node, lib *library.Library) pwl.Delay {
	if n.HasDrive {
		return n.Drive
	}
	return lib.DefaultDrive()
}

func (a *Analysis) String() string {
	return fmt.Sprintf("area=%.2f delay=%.3f slack=%.3f gates=%d",
		a.Area, a.Delay, a.Slack, a.Gates)
}

// Print prints the per-output timing table.
func (a *Analysis) Print(out io.Writer) {
	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Output").SetAlign(tabulate.ML)
	tab.Header("Arrival").SetAlign(tabulate.MR)
	tab.Header("Required").SetAlign(tabulate.MR)
	tab.Header("Slack").SetAlign(tabulate.MR)

	for _, o := range a.Net.Outputs() {
		row := tab.Row()
		row.Column(o.String())
		row.Column(a.Arrival[o.ID].String())
		row.Column(a.Required[o.ID].String())
		slack := a.NodeSlack(o.ID)
		col := row.Column(fmt.Sprintf("%.3f", slack))
		if slack < 0 {
			col.SetFormat(tabulate.FmtBold)
		}
	}
	row := tab.Row()
	row.Column("Total").SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("%.3f", a.Delay)).SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("area %.2f", a.Area)).SetFormat(tabulate.FmtItalic)
	row.Column(fmt.Sprintf("%.3f", a.Slack)).SetFormat(tabulate.FmtItalic)
	tab.Print(out)
}
