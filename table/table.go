//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package table implements dense multi-dimensional tables for dynamic
// programming. The rank of a table is part of its type and every
// access is bounds-checked.
package table

import (
	"fmt"
)

func check(name string, idx, extent []int) {
	for i := range idx {
		if idx[i] < 0 || idx[i] >= extent[i] {
			panic(fmt.Sprintf("%s: index %v out of shape %v", name, idx, extent))
		}
	}
}

func size(name string, extent ...int) int {
	n := 1
	for _, e := range extent {
		if e < 0 {
			panic(fmt.Sprintf("%s: negative extent in shape %v", name, extent))
		}
		n *= e
	}
	return n
}

// Table2 implements a two-dimensional table.
type Table2[T any] struct {
	shape [2]int
	data  []T
}

// New2 creates a new table with the extents d0 and d1.
func New2[T any](d0, d1 int) *Table2[T] {
	return &Table2[T]{
		shape: [2]int{d0, d1},
		data:  make([]T, size("Table2", d0, d1)),
	}
}

// Shape returns the table extents.
func (t *Table2[T]) Shape() (int, int) {
	return t.shape[0], t.shape[1]
}

func (t *Table2[T]) index(i0, i1 int) int {
	check("Table2", []int{i0, i1}, t.shape[:])
	return i0*t.shape[1] + i1
}

// At returns a pointer to the table element.
func (t *Table2[T]) At(i0, i1 int) *T {
	return &t.data[t.index(i0, i1)]
}

// Get returns the table element.
func (t *Table2[T]) Get(i0, i1 int) T {
	return t.data[t.index(i0, i1)]
}

// Set sets the table element.
func (t *Table2[T]) Set(i0, i1 int, v T) {
	t.data[t.index(i0, i1)] = v
}

// Table3 implements a three-dimensional table.
type Table3[T any] struct {
	shape [3]int
	data  []T
}

// New3 creates a new table with the extents d0, d1, and d2.
func New3[T any](d0, d1, d2 int) *Table3[T] {
	return &Table3[T]{
		shape: [3]int{d0, d1, d2},
		data:  make([]T, size("Table3", d0, d1, d2)),
	}
}

// Shape returns the table extents.
func (t *Table3[T]) Shape() (int, int, int) {
	return t.shape[0], t.shape[1], t.shape[2]
}

func (t *Table3[T]) index(i0, i1, i2 int) int {
	check("Table3", []int{i0, i1, i2}, t.shape[:])
	return (i0*t.shape[1]+i1)*t.shape[2] + i2
}

// At returns a pointer to the table element.
func (t *Table3[T]) At(i0, i1, i2 int) *T {
	return &t.data[t.index(i0, i1, i2)]
}

// Get returns the table element.
func (t *Table3[T]) Get(i0, i1, i2 int) T {
	return t.data[t.index(i0, i1, i2)]
}

// Set sets the table element.
func (t *Table3[T]) Set(i0, i1, i2 int, v T) {
	t.data[t.index(i0, i1, i2)] = v
}

// Table4 implements a four-dimensional table.
type Table4[T any] struct {
	shape [4]int
	data  []T
}

// New4 creates a new table with the extents d0, d1, d2, and d3.
func New4[T any](d0, d1, d2, d3 int) *Table4[T] {
	return &Table4[T]{
		shape: [4]int{d0, d1, d2, d3},
		data:  make([]T, size("Table4", d0, d1, d2, d3)),
	}
}

// Shape returns the table extents.
func (t *Table4[T]) Shape() (int, int, int, int) {
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3]
}

func (t *Table4[T]) index(i0, i1, i2, i3 int) int {
	check("Table4", []int{i0, i1, i2, i3}, t.shape[:])
	return ((i0*t.shape[1]+i1)*t.shape[2]+i2)*t.shape[3] + i3
}

// At returns a pointer to the table element.
func (t *Table4[T]) At(i0, i1, i2, i3 int) *T {
	return &t.data[t.index(i0, i1, i2, i3)]
}

// Get returns the table element.
func (t *Table4[T]) Get(i0, i1, i2, i3 int) T {
	return t.data[t.index(i0, i1, i2, i3)]
}

// Set sets the table element.
func (t *Table4[T]) Set(i0, i1, i2, i3 int, v T) {
	t.data[t.index(i0, i1, i2, i3)] = v
}

// Table5 implements a five-dimensional table.
type Table5[T any] struct {
	shape [5]int
	data  []T
}

// New5 creates a new table with the extents d0, d1, d2, d3, and d4.
func New5[T any](d0, d1, d2, d3, d4 int) *Table5[T] {
	return &Table5[T]{
		shape: [5]int{d0, d1, d2, d3, d4},
		data:  make([]T, size("Table5", d0, d1, d2, d3, d4)),
	}
}

// Shape returns the table extents.
func (t *Table5[T]) Shape() (int, int, int, int, int) {
	return t.shape[0], t.shape[1], t.shape[2], t.shape[3], t.shape[4]
}

func (t *Table5[T]) index(i0, i1, i2, i3, i4 int) int {
	check("Table5", []int{i0, i1, i2, i3, i4}, t.shape[:])
	return (((i0*t.shape[1]+i1)*t.shape[2]+i2)*t.shape[3]+i3)*t.shape[4] + i4
}

// At returns a pointer to the table element.
func (t *Table5[T]) At(i0, i1, i2, i3, i4 int) *T {
	return &t.data[t.index(i0, i1, i2, i3, i4)]
}

// Get returns the table element.
func (t *Table5[T]) Get(i0, i1, i2, i3, i4 int) T {
	return t.data[t.index(i0, i1, i2, i3, i4)]
}

// Set sets the table element.
func (t *Table5[T]) Set(i0, i1, i2, i3, i4 int, v T) {
	t.data[t.index(i0, i1, i2, i3, i4)] = v
}
