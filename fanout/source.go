//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package fanout

import (
	"fmt"

	"github.com/markkurossi/techmap/library"
	"github.com/markkurossi/techmap/pwl"
)

// Source is the driver of a fanout tree. The set of sources is closed:
// gate outputs, primary inputs, and buffers or inverters chained to
// another source.
type Source interface {
	// Polarity returns the output polarity of the source relative to
	// the fanout point.
	Polarity() int

	// Sizes returns the candidate gates of the source. Primary input
	// sources have the single candidate nil.
	Sizes() []*library.Gate

	// Arrival returns the output arrival time of the source of size
	// g when it drives load.
	Arrival(g *library.Gate, load float64) pwl.Delay

	// Slack returns the worst slack at the source inputs when the
	// source of size g drives load and its output is required at req.
	Slack(g *library.Gate, req pwl.Delay, load float64) float64

	// Area returns the area of the source of size g.
	Area(g *library.Gate) float64

	String() string

	source()
}

type gateSource struct {
	name     string
	gates    []*library.Gate
	in       []pwl.Delay
	polarity int
	penalty  float64
}

// NewGateSource creates a source for a gate output. The gates are the
// functionally equivalent candidate sizes and in holds the arrival
// times at the gate pins.
func NewGateSource(name string, gates []*library.Gate, in []pwl.Delay,
	polarity int, penalty float64) Source {

	if len(gates) == 0 {
		panic("NewGateSource: no gates")
	}
	for _, g := range gates {
		if len(g.Pins) != len(in) {
			panic(fmt.Sprintf("NewGateSource: gate %s has %d pins, %d arrivals",
				g, len(g.Pins), len(in)))
		}
	}
	return &gateSource{
		name:     name,
		gates:    gates,
		in:       in,
		polarity: polarity,
		penalty:  penalty,
	}
}

func (s *gateSource) source() {}

func (s *gateSource) Polarity() int {
	return s.polarity
}

func (s *gateSource) Sizes() []*library.Gate {
	return s.gates
}

func (s *gateSource) Arrival(g *library.Gate, load float64) pwl.Delay {
	return g.Arrival(s.in, load, s.penalty)
}

func (s *gateSource) Slack(g *library.Gate, req pwl.Delay,
	load float64) float64 {
	return g.Slack(s.in, req, load, s.penalty)
}

func (s *gateSource) Area(g *library.Gate) float64 {
	return g.Area
}

func (s *gateSource) String() string {
	return fmt.Sprintf("%s[%s]", s.name, s.gates[0])
}

type inputSource struct {
	name    string
	arrival pwl.Delay
	drive   pwl.Delay
	maxLoad float64
	penalty float64
}

// NewInputSource creates a source for a primary input with the
// arrival time and drive. Loads above maxLoad are penalized by
// penalty times the excess load; zero maxLoad means no limit.
func NewInputSource(name string, arrival, drive pwl.Delay,
	maxLoad, penalty float64) Source {

	return &inputSource{
		name:    name,
		arrival: arrival,
		drive:   drive,
		maxLoad: maxLoad,
		penalty: penalty,
	}
}

func (s *inputSource) source() {}

func (s *inputSource) Polarity() int {
	return 0
}

func (s *inputSource) Sizes() []*library.Gate {
	return []*library.Gate{nil}
}

func (s *inputSource) Arrival(g *library.Gate, load float64) pwl.Delay {
	d := pwl.Delay{
		Rise: s.arrival.Rise + s.drive.Rise*load,
		Fall: s.arrival.Fall + s.drive.Fall*load,
	}
	if s.maxLoad > 0 && load > s.maxLoad {
		excess := s.penalty * (load - s.maxLoad)
		d.Rise += excess
		d.Fall += excess
	}
	return d
}

func (s *inputSource) Slack(g *library.Gate, req pwl.Delay,
	load float64) float64 {
	return req.Sub(s.Arrival(g, load)).Min()
}

func (s *inputSource) Area(g *library.Gate) float64 {
	return 0
}

func (s *inputSource) String() string {
	return s.name
}

type chainSource struct {
	from     Source
	fromGate *library.Gate
	gates    []*library.Gate
	penalty  float64
}

// NewChainSource creates a source for a buffer or inverter that is the
// only load of the source from of size fromGate. The gates are the
// candidate sizes of the chained gate.
func NewChainSource(from Source, fromGate *library.Gate,
	gates []*library.Gate, penalty float64) Source {

	if len(gates) == 0 {
		panic("NewChainSource: no gates")
	}
	for _, g := range gates {
		if inverting(g) != inverting(gates[0]) ||
			(!g.Buffer() && !g.Inverter()) {
			panic(fmt.Sprintf("NewChainSource: invalid chain gate %s", g))
		}
	}
	return &chainSource{
		from:     from,
		fromGate: fromGate,
		gates:    gates,
		penalty:  penalty,
	}
}

func (s *chainSource) source() {}

func (s *chainSource) Polarity() int {
	return s.from.Polarity() ^ inverting(s.gates[0])
}

func (s *chainSource) Sizes() []*library.Gate {
	return s.gates
}

func (s *chainSource) Arrival(g *library.Gate, load float64) pwl.Delay {
	pin := &g.Pins[0]
	in := s.from.Arrival(s.fromGate, pin.Load)
	return pin.Arrival(in, load, s.penalty)
}

func (s *chainSource) Slack(g *library.Gate, req pwl.Delay,
	load float64) float64 {
	pin := &g.Pins[0]
	return s.from.Slack(s.fromGate, pin.Required(req, load, s.penalty),
		pin.Load)
}

func (s *chainSource) Area(g *library.Gate) float64 {
	return g.Area + s.from.Area(s.fromGate)
}

func (s *chainSource) String() string {
	return fmt.Sprintf("%s>%s", s.from, s.gates[0])
}
