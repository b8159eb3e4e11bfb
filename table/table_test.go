//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package table

import (
	"testing"
)

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

func TestTable2(t *testing.T) {
	tab := New2[int](3, 4)
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			tab.Set(i, j, i*10+j)
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			if v := tab.Get(i, j); v != i*10+j {
				t.Errorf("Get(%d,%d)=%d", i, j, v)
			}
		}
	}
	*tab.At(2, 3) = 99
	if tab.Get(2, 3) != 99 {
		t.Errorf("At did not update the element")
	}
	expectPanic(t, "row", func() { tab.Get(3, 0) })
	expectPanic(t, "col", func() { tab.Get(0, 4) })
	expectPanic(t, "neg", func() { tab.Set(-1, 0, 1) })
}

func TestTable5(t *testing.T) {
	type entry struct {
		valid bool
		value float64
	}
	tab := New5[entry](2, 2, 3, 4, 5)
	d0, d1, d2, d3, d4 := tab.Shape()
	if d0 != 2 || d1 != 2 || d2 != 3 || d3 != 4 || d4 != 5 {
		t.Fatalf("Shape: %d %d %d %d %d", d0, d1, d2, d3, d4)
	}
	seen := make(map[*entry]bool)
	for a := 0; a < d0; a++ {
		for b := 0; b < d1; b++ {
			for c := 0; c < d2; c++ {
				for d := 0; d < d3; d++ {
					for e := 0; e < d4; e++ {
						p := tab.At(a, b, c, d, e)
						if p.valid {
							t.Fatalf("element (%d,%d,%d,%d,%d) not zero",
								a, b, c, d, e)
						}
						if seen[p] {
							t.Fatalf("element (%d,%d,%d,%d,%d) aliases",
								a, b, c, d, e)
						}
						seen[p] = true
						p.valid = true
						p.value = float64(a + b + c + d + e)
					}
				}
			}
		}
	}
	if len(seen) != 2*2*3*4*5 {
		t.Errorf("visited %d elements", len(seen))
	}
	if v := tab.Get(1, 1, 2, 3, 4); !v.valid || v.value != 11 {
		t.Errorf("Get: %v", v)
	}
	expectPanic(t, "axis 2", func() { tab.At(0, 0, 3, 0, 0) })
	expectPanic(t, "axis 4", func() { tab.At(0, 0, 0, 0, 5) })
}

func TestTable34(t *testing.T) {
	t3 := New3[string](1, 2, 3)
	t3.Set(0, 1, 2, "x")
	if t3.Get(0, 1, 2) != "x" || t3.Get(0, 1, 1) != "" {
		t.Errorf("Table3 Set/Get")
	}
	t4 := New4[int](2, 1, 1, 2)
	t4.Set(1, 0, 0, 1, 7)
	if t4.Get(1, 0, 0, 1) != 7 || t4.Get(0, 0, 0, 1) != 0 {
		t.Errorf("Table4 Set/Get")
	}
	expectPanic(t, "Table4", func() { t4.Get(0, 1, 0, 0) })
	expectPanic(t, "negative extent", func() { New3[int](1, -1, 1) })
}
