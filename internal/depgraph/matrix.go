// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package depgraph

import (
	"errors"
	"fmt"
)

// ErrCycle is returned when the relation contains a dependency cycle.
var ErrCycle = errors.New("depgraph: dependency cycle")

// Matrix is an adjacency matrix over n task nodes and one sink node.
// The zero value is not usable; create matrices with New.
type Matrix struct {
	n     int
	edges []bool
}

// New returns an empty matrix over tasks task nodes plus the sink.
func New(tasks int) *Matrix {
	size := tasks + 1
	return &Matrix{n: tasks, edges: make([]bool, size*size)}
}

// Len returns the number of task nodes, excluding the sink.
func (m *Matrix) Len() int { return m.n }

// Sink returns the index of the virtual sink node.
func (m *Matrix) Sink() int { return m.n }

func (m *Matrix) at(from, to int) int { return from*(m.n+1) + to }

// Set records that to depends on from. Self edges are ignored.
func (m *Matrix) Set(from, to int) {
	if from == to {
		return
	}
	m.edges[m.at(from, to)] = true
}

// Clear removes the edge from -> to.
func (m *Matrix) Clear(from, to int) {
	m.edges[m.at(from, to)] = false
}

// Has reports whether to depends directly on from.
func (m *Matrix) Has(from, to int) bool {
	return m.edges[m.at(from, to)]
}

// Linked reports whether an edge exists between a and b in either direction.
func (m *Matrix) Linked(a, b int) bool {
	return m.Has(a, b) || m.Has(b, a)
}

// Dependencies returns the direct dependencies of node in ascending order.
func (m *Matrix) Dependencies(node int) []int {
	var deps []int
	for i := 0; i <= m.n; i++ {
		if m.Has(i, node) {
			deps = append(deps, i)
		}
	}
	return deps
}

// Dependents returns the nodes that depend directly on node in ascending order.
func (m *Matrix) Dependents(node int) []int {
	var out []int
	for i := 0; i <= m.n; i++ {
		if m.Has(node, i) {
			out = append(out, i)
		}
	}
	return out
}

// Reduce removes every edge a -> c for which a longer path a -> ... -> c
// exists. It fails with ErrCycle when the relation is not acyclic; the
// matrix is left untouched in that case.
func (m *Matrix) Reduce() error {
	if cycle := m.findCycle(); cycle != nil {
		return fmt.Errorf("%w through nodes %v", ErrCycle, cycle)
	}

	size := m.n + 1
	reach := make([][]bool, size)
	for i := range reach {
		reach[i] = m.reachable(i)
	}

	for a := 0; a < size; a++ {
		for _, b := range m.Dependents(a) {
			for c := 0; c < size; c++ {
				if c != b && reach[b][c] && m.Has(a, c) {
					m.Clear(a, c)
				}
			}
		}
	}
	return nil
}

// reachable marks every node reachable from start through one or more edges.
func (m *Matrix) reachable(start int) []bool {
	seen := make([]bool, m.n+1)
	stack := []int{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, w := range m.Dependents(v) {
			if !seen[w] {
				seen[w] = true
				stack = append(stack, w)
			}
		}
	}
	return seen
}

const (
	white = iota
	grey
	black
)

// findCycle returns the nodes of one cycle, or nil.
func (m *Matrix) findCycle() []int {
	color := make([]int, m.n+1)
	var path []int
	var cycle []int

	var visit func(v int) bool
	visit = func(v int) bool {
		color[v] = grey
		path = append(path, v)
		for _, w := range m.Dependents(v) {
			switch color[w] {
			case grey:
				for i, p := range path {
					if p == w {
						cycle = append([]int(nil), path[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(w) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[v] = black
		return false
	}

	for v := 0; v <= m.n; v++ {
		if color[v] == white && visit(v) {
			return cycle
		}
	}
	return nil
}
