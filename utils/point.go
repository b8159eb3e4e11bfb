//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package utils

import (
	"fmt"
)

// Locator is implemented by items that know their position in the
// library or netlist input.
type Locator interface {
	Location() Point
}

// Point specifies a position in a library or netlist file. Engine
// diagnostics that have no input position use a Point with only the
// Source set, naming the pass that produced the message.
type Point struct {
	Source string
	Line   int // 1-based
	Col    int // 0-based
}

// Pass returns an undefined Point naming the engine pass name.
func Pass(name string) Point {
	return Point{
		Source: name,
	}
}

// Location implements the Locator interface.
func (p Point) Location() Point {
	return p
}

func (p Point) String() string {
	if p.Undefined() {
		return p.Source
	}
	return fmt.Sprintf("%s:%d:%d", p.Source, p.Line, p.Col)
}

// Undefined tests if the input position is undefined.
func (p Point) Undefined() bool {
	return p.Line == 0
}
