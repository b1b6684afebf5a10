// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package depgraph

// Sort returns the forward execution order of the task nodes that can reach
// the sink. Nodes that cannot reach the sink are returned separately as
// culled, in ascending order.
//
// The walk starts at the sink and moves against the edges. A node is
// emitted once every node depending on it has been emitted, so diamonds
// collapse to a single appearance. When an emitted node has exactly one
// dependency and that dependency just became ready, the walk follows it
// immediately, keeping linear chains contiguous in the result. Ties are
// broken by ascending node index, i.e. declaration order.
//
// Sort expects a reduced, acyclic matrix.
func (m *Matrix) Sort() (order, culled []int) {
	sink := m.Sink()
	live := m.reaching(sink)

	pending := make([]int, m.n)
	for v := 0; v < m.n; v++ {
		if !live[v] {
			culled = append(culled, v)
			continue
		}
		for _, w := range m.Dependents(v) {
			if w == sink || live[w] {
				pending[v]++
			}
		}
	}

	release := func(v int) []int {
		var ready []int
		for _, d := range m.Dependencies(v) {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
		return ready
	}

	queue := release(sink)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for {
			order = append(order, v)
			deps := m.Dependencies(v)
			ready := release(v)
			if len(deps) == 1 && len(ready) == 1 {
				v = ready[0]
				continue
			}
			queue = append(queue, ready...)
			break
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, culled
}

// reaching marks every node with a path to target.
func (m *Matrix) reaching(target int) []bool {
	seen := make([]bool, m.n+1)
	stack := []int{target}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range m.Dependencies(v) {
			if !seen[d] {
				seen[d] = true
				stack = append(stack, d)
			}
		}
	}
	return seen
}
