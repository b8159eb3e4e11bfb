//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package utils

import (
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	for mode, name := range modeNames {
		m, err := ParseMode(name)
		if err != nil {
			t.Errorf("ParseMode(%s): %v", name, err)
		}
		if m != mode {
			t.Errorf("ParseMode(%s) = %s", name, m)
		}
	}
	_, err := ParseMode("speed")
	if err == nil || !strings.Contains(err.Error(), "speed") {
		t.Errorf("ParseMode(speed): unexpected error %v", err)
	}
}

func TestSetAlgorithms(t *testing.T) {
	p := NewParams()
	if err := p.SetAlgorithms("noalg, lt_trees"); err != nil {
		t.Fatalf("SetAlgorithms: %v", err)
	}
	if !p.Fanout.NoAlg.Enabled || !p.Fanout.LTTrees.Enabled ||
		p.Fanout.TwoLevel.Enabled || p.Fanout.TopDown.Enabled {
		t.Errorf("unexpected algorithms: %+v", p.Fanout)
	}
	err := p.SetAlgorithms("noalg,greedy")
	if err == nil || !strings.Contains(err.Error(), "greedy") {
		t.Errorf("SetAlgorithms(greedy): unexpected error %v", err)
	}
}
