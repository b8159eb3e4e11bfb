//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package utils

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Mode specifies the technology mapping objective.
type Mode int

// Mapping objectives.
const (
	ModeArea Mode = iota
	ModeDelay
	ModeBlend
	ModeThreshold
	ModeSlack
)

var modeNames = map[Mode]string{
	ModeArea:      "area",
	ModeDelay:     "delay",
	ModeBlend:     "blend",
	ModeThreshold: "threshold",
	ModeSlack:     "slack",
}

func (m Mode) String() string {
	name, ok := modeNames[m]
	if ok {
		return name
	}
	return fmt.Sprintf("{Mode %d}", m)
}

// ParseMode parses the mapping objective name.
func ParseMode(val string) (Mode, error) {
	for k, v := range modeNames {
		if v == val {
			return k, nil
		}
	}
	return ModeArea, errors.Errorf("unknown mapping mode: %s", val)
}

// CostFunc specifies how a (rise, fall) pair is reduced into a scalar
// cost.
type CostFunc int

// Cost functions.
const (
	CostMax CostFunc = iota
	CostAverage
)

func (c CostFunc) String() string {
	switch c {
	case CostMax:
		return "max"
	case CostAverage:
		return "average"
	default:
		return fmt.Sprintf("{CostFunc %d}", c)
	}
}

// FanoutPolicy specifies how the pattern matcher treats network nodes
// that are internal to a match but have fanout outside of it.
type FanoutPolicy int

// Internal fanout policies.
const (
	FanoutReject FanoutPolicy = iota
	FanoutBounded
	FanoutUnbounded
)

func (p FanoutPolicy) String() string {
	switch p {
	case FanoutReject:
		return "reject"
	case FanoutBounded:
		return "bounded"
	case FanoutUnbounded:
		return "unbounded"
	default:
		return fmt.Sprintf("{FanoutPolicy %d}", p)
	}
}

// LoadEstimate specifies how the mapper estimates the load of a
// multi-fanout node during the bottom-up pass.
type LoadEstimate int

// Load estimation modes.
const (
	LoadIgnore LoadEstimate = iota
	LoadLinear
	LoadTree
)

func (l LoadEstimate) String() string {
	switch l {
	case LoadIgnore:
		return "ignore"
	case LoadLinear:
		return "linear"
	case LoadTree:
		return "tree"
	default:
		return fmt.Sprintf("{LoadEstimate %d}", l)
	}
}

// AlgParams configure one fanout-tree synthesis algorithm.
type AlgParams struct {
	Enabled  bool
	MinSize  int
	Peephole bool
}

// FanoutParams configure the fanout optimizer and its algorithms.
type FanoutParams struct {
	NoAlg    AlgParams
	TwoLevel AlgParams
	Balanced AlgParams
	LTTrees  AlgParams
	MixedLT  AlgParams
	BottomUp AlgParams
	TopDown  AlgParams

	// MaxGaps bounds the number of opposite polarity stages on one
	// LT-tree branch.
	MaxGaps int

	// PeepholeSteps bounds the resize steps of the peephole pass.
	PeepholeSteps int

	// ForceRequired shifts all primary output required times
	// negative so that every fanout point is optimized for delay.
	ForceRequired bool

	// AreaRecovery re-runs the optimization with the real required
	// times after timing is closed.
	AreaRecovery bool

	// Resize enables the global gate resize pass of area recovery.
	Resize bool

	// Disabled disables the fanout optimizer altogether.
	Disabled bool
}

// Params specify the mapping and fanout optimization parameters.
type Params struct {
	Verbose int

	Mode      Mode
	Blend     float64
	Threshold float64
	Cost      CostFunc

	InternalFanout  FanoutPolicy
	FanoutLimit     int
	LeafLevelFanout bool

	AllowDuplication bool

	LoadEstimate LoadEstimate
	LoadPenalty  float64

	Iterations int

	DefaultArrival  float64
	DefaultRequired float64

	Fanout FanoutParams
}

// NewParams returns new parameters object, initialized with the
// default values.
func NewParams() *Params {
	return &Params{
		Mode:           ModeDelay,
		Blend:          0.5,
		Cost:           CostMax,
		InternalFanout: FanoutReject,
		FanoutLimit:    4,
		LoadEstimate:   LoadLinear,
		LoadPenalty:    1.0,
		Iterations:     1,
		Fanout: FanoutParams{
			NoAlg: AlgParams{
				Enabled: true,
			},
			TwoLevel: AlgParams{
				Enabled:  true,
				MinSize:  2,
				Peephole: true,
			},
			Balanced: AlgParams{
				Enabled: true,
				MinSize: 2,
			},
			LTTrees: AlgParams{
				Enabled:  true,
				MinSize:  3,
				Peephole: true,
			},
			MixedLT: AlgParams{
				Enabled: true,
				MinSize: 3,
			},
			BottomUp: AlgParams{
				Enabled:  true,
				MinSize:  3,
				Peephole: true,
			},
			TopDown: AlgParams{
				MinSize: 4,
			},
			MaxGaps:       1,
			PeepholeSteps: 16,
		},
	}
}

// SetAlgorithms enables the named fanout algorithms and disables all
// others. The names are separated by commas.
func (p *Params) SetAlgorithms(names string) error {
	algs := map[string]*AlgParams{
		"noalg":     &p.Fanout.NoAlg,
		"two_level": &p.Fanout.TwoLevel,
		"balanced":  &p.Fanout.Balanced,
		"lt_trees":  &p.Fanout.LTTrees,
		"mixed_lt":  &p.Fanout.MixedLT,
		"bottom_up": &p.Fanout.BottomUp,
		"top_down":  &p.Fanout.TopDown,
	}
	for _, alg := range algs {
		alg.Enabled = false
	}
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if len(name) == 0 {
			continue
		}
		alg, ok := algs[name]
		if !ok {
			return errors.Errorf("unknown fanout algorithm: %s", name)
		}
		alg.Enabled = true
	}
	return nil
}
