//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//

package library

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/markkurossi/techmap/network"
	"github.com/markkurossi/techmap/pwl"
	"github.com/markkurossi/techmap/utils"
	"github.com/pkg/errors"
)

var (
	reParts = regexp.MustCompilePOSIX("[[:space:]]+")
	reGate  = regexp.MustCompilePOSIX(
		`^GATE[[:space:]]+([^[:space:]]+)[[:space:]]+([^[:space:]]+)[[:space:]]+[^=]+=(.+);$`)
)

type pendingGate struct {
	loc  utils.Point
	name string
	area float64
	expr string
	pins []Pin
	edge *network.Edge
}

// Parse parses a cell library from the input reader. The source names
// the input in diagnostics. The format follows genlib with pattern
// expressions over the subject graph operations:
//
//	GATE NAME AREA OUT=EXPR;
//	PIN NAME|* INV|NONINV|UNKNOWN LOAD MAXLOAD RBLOCK RDRIVE FBLOCK FDRIVE
//	LATCH rising|falling|high|low
//	WIRE SLOPE [LOAD...]
//
// A gate name repeated with a new GATE line adds an alternative
// pattern to the gate.
func Parse(in io.Reader, source string, log *utils.Logger) (*Library, error) {
	lib := New(source)
	var pending []*pendingGate
	var current *pendingGate

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

		switch strings.ToUpper(parts[0]) {
		case "GATE":
			m := reGate.FindStringSubmatch(text)
			if m == nil {
				return nil, log.Errorf(loc, "invalid GATE: %s", text)
			}
			area, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				return nil, log.Errorf(loc, "invalid area: %s", m[2])
			}
			current = &pendingGate{
				loc:  loc,
				name: m[1],
				area: area,
				expr: strings.TrimSpace(m[3]),
			}
			pending = append(pending, current)

		case "PIN":
			if current == nil {
				return nil, log.Errorf(loc, "PIN outside of GATE")
			}
			pin, err := parsePin(parts)
			if err != nil {
				return nil, log.Errorf(loc, "%s", err)
			}
			current.pins = append(current.pins, pin)

		case "LATCH":
			if current == nil || len(parts) != 2 {
				return nil, log.Errorf(loc, "invalid LATCH")
			}
			edge, ok := network.ParseEdge(strings.ToLower(parts[1]))
			if !ok {
				return nil, log.Errorf(loc, "invalid latch edge %s", parts[1])
			}
			current.edge = &edge

		case "WIRE":
			if len(parts) < 2 {
				return nil, log.Errorf(loc, "invalid WIRE")
			}
			var vals []float64
			for _, p := range parts[1:] {
				v, err := strconv.ParseFloat(p, 64)
				if err != nil {
					return nil, log.Errorf(loc, "invalid wire load %s", p)
				}
				vals = append(vals, v)
			}
			lib.WireLoad = WireLoad{
				Slope: vals[0],
				Table: vals[1:],
			}

		default:
			return nil, log.Errorf(loc, "unknown statement %s", parts[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, p := range pending {
		if err := lib.define(p); err != nil {
			return nil, log.Errorf(p.loc, "%s", err)
		}
	}
	if log.Verbose() > 0 {
		log.Debugf(1, "library %s\n", lib)
	}
	return lib, nil
}

func (lib *Library) define(p *pendingGate) error {
	g := lib.Gate(p.name)
	if g != nil {
		pat, _, err := ParsePattern(p.expr)
		if err != nil {
			return err
		}
		if g.Area != p.area {
			return errors.Errorf("gate %s redefined with area %g",
				p.name, p.area)
		}
		return g.AddPattern(pat)
	}
	g, err := NewGate(p.name, p.area, p.expr, p.pins...)
	if err != nil {
		return err
	}
	if p.edge != nil {
		if g.Seq != SeqLatch {
			return errors.Errorf("LATCH for combinational gate %s", p.name)
		}
		g.Edge = *p.edge
	}
	return lib.AddGate(g)
}

func parsePin(parts []string) (Pin, error) {
	var pin Pin
	if len(parts) != 9 {
		return pin, errors.Errorf("PIN expects 8 fields, got %d",
			len(parts)-1)
	}
	pin.Name = parts[1]
	switch strings.ToUpper(parts[2]) {
	case "INV":
		pin.Phase = PhaseInv
	case "NONINV":
		pin.Phase = PhaseNonInv
	case "UNKNOWN":
		pin.Phase = PhaseUnknown
	default:
		return pin, errors.Errorf("invalid phase %s", parts[2])
	}
	var vals [6]float64
	for i := range vals {
		v, err := strconv.ParseFloat(parts[3+i], 64)
		if err != nil {
			return pin, errors.Errorf("invalid PIN value %s", parts[3+i])
		}
		vals[i] = v
	}
	pin.Load = vals[0]
	pin.MaxLoad = vals[1]
	pin.Block = pwl.Delay{
		Rise: vals[2],
		Fall: vals[4],
	}
	pin.Drive = pwl.Delay{
		Rise: vals[3],
		Fall: vals[5],
	}
	return pin, nil
}
