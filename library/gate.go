//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package library

import (
	"fmt"
	"math"

	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
)

// Phase specifies the input-to-output phase relationship of a pin.
type Phase byte

// Pin phases.
const (
	PhaseNonInv Phase = iota
	PhaseInv
	PhaseUnknown
)

func (p Phase) String() string {
	switch p {
	case PhaseNonInv:
		return "NONINV"
	case PhaseInv:
		return "INV"
	case PhaseUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("{Phase %d}", p)
	}
}

// Pin specifies the delay parameters of a gate input pin. Block and
// Drive are indexed by the output transition.
type Pin struct {
	Name    string
	Phase   Phase
	Load    float64
	MaxLoad float64
	Block   pwl.Delay
	Drive   pwl.Delay
}

// Delay returns the pin-to-output delay when driving load. Loads
// above MaxLoad are penalized by penalty times the excess load.
func (p *Pin) Delay(load, penalty float64) pwl.Delay {
	d := pwl.Delay{
		Rise: p.Block.Rise + p.Drive.Rise*load,
		Fall: p.Block.Fall + p.Drive.Fall*load,
	}
	if p.MaxLoad > 0 && load > p.MaxLoad {
		excess := penalty * (load - p.MaxLoad)
		d.Rise += excess
		d.Fall += excess
	}
	return d
}

// Arrival returns the output arrival time caused by the input arrival
// in when the gate drives load.
func (p *Pin) Arrival(in pwl.Delay, load, penalty float64) pwl.Delay {
	d := p.Delay(load, penalty)
	switch p.Phase {
	case PhaseNonInv:
		return in.Add(d)
	case PhaseInv:
		return in.Swap().Add(d)
	default:
		return pwl.Both(in.Max()).Add(d)
	}
}

// Required returns the required time at the pin for the output
// required time out when the gate drives load.
func (p *Pin) Required(out pwl.Delay, load, penalty float64) pwl.Delay {
	d := p.Delay(load, penalty)
	switch p.Phase {
	case PhaseNonInv:
		return out.Sub(d)
	case PhaseInv:
		return out.Sub(d).Swap()
	default:
		return pwl.Both(out.Sub(d).Min())
	}
}

// Lines returns the affine output arrival bids of the pin as
// functions of the output load, for the input arrival in. The load
// penalty above MaxLoad is modeled with an additional steeper bid.
func (p *Pin) Lines(in pwl.Delay, penalty float64, data int) (
	rise, fall []pwl.Line) {

	at := p.Arrival(in, 0, 0)
	rise = append(rise, pwl.Line{
		Value: at.Rise,
		Slope: p.Drive.Rise,
		Data:  data,
	})
	fall = append(fall, pwl.Line{
		Value: at.Fall,
		Slope: p.Drive.Fall,
		Data:  data,
	})
	if p.MaxLoad > 0 && penalty > 0 {
		rise = append(rise, pwl.Line{
			Value: at.Rise - penalty*p.MaxLoad,
			Slope: p.Drive.Rise + penalty,
			Data:  data,
		})
		fall = append(fall, pwl.Line{
			Value: at.Fall - penalty*p.MaxLoad,
			Slope: p.Drive.Fall + penalty,
			Data:  data,
		})
	}
	return
}

// SeqRole specifies the sequential role of a gate.
type SeqRole byte

// Sequential roles.
const (
	Combinational SeqRole = iota
	SeqLatch
)

// Gate specifies a library cell.
type Gate struct {
	ID       int
	Name     string
	Area     float64
	Pins     []Pin
	Patterns []*Pattern
	Seq      SeqRole
	Edge     network.Edge

	// Function is the truth table of the gate over its pins. Pin i is
	// bit i of the row index.
	Function uint64
}

func (g *Gate) String() string {
	return g.Name
}

// NumInputs returns the number of gate input pins.
func (g *Gate) NumInputs() int {
	return len(g.Pins)
}

// Inverter tests if the gate is a combinational inverter.
func (g *Gate) Inverter() bool {
	return g.Seq == Combinational && len(g.Pins) == 1 && g.Function == 0b01
}

// Buffer tests if the gate is a combinational buffer.
func (g *Gate) Buffer() bool {
	return g.Seq == Combinational && len(g.Pins) == 1 && g.Function == 0b10
}

// Arrival computes the gate output arrival from the pin arrivals when
// driving load.
func (g *Gate) Arrival(in []pwl.Delay, load, penalty float64) pwl.Delay {
	if len(in) != len(g.Pins) {
		panic(fmt.Sprintf("gate %s: %d arrivals for %d pins",
			g.Name, len(in), len(g.Pins)))
	}
	result := pwl.Inf(-1)
	for i := range g.Pins {
		result = pwl.MaxDelay(result, g.Pins[i].Arrival(in[i], load, penalty))
	}
	if len(g.Pins) == 0 {
		return pwl.Delay{}
	}
	return result
}

// Slack computes the minimum slack over the gate pins when the gate
// output is required at out, the gate drives load, and its pins see
// the arrivals in.
func (g *Gate) Slack(in []pwl.Delay, out pwl.Delay, load,
	penalty float64) float64 {

	slack := math.Inf(1)
	for i := range g.Pins {
		req := g.Pins[i].Required(out, load, penalty)
		slack = math.Min(slack, req.Sub(in[i]).Min())
	}
	return slack
}
