// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/internal/depgraph"
)

// plan is the analysis of one declaration set: the reduced dependency
// matrix over declaration indices and the resulting execution order.
type plan struct {
	infos  []*TaskInfo
	index  map[string]int
	matrix *depgraph.Matrix

	order  []*TaskInfo
	culled []string

	// consumed holds every resource some task depends on by name.
	consumed map[string]bool
}

type resourceClass uint8

const (
	classColor resourceClass = iota
	classDepth
	classBuffer
)

// resourceDecl is the first declaration seen for a resource name.
type resourceDecl struct {
	class  resourceClass
	format gputypes.TextureFormat
	task   string
}

// newPlan builds the dependency matrix for infos and sorts it.
//
// Edges are set when a task depends on another task's name or one of its
// outputs, and between two writers of the same resource that are not
// otherwise ordered, earlier declaration first. Writers of output get an
// edge into the sink; shared writes of output are left unordered so that
// each writer only waits on what it actually depends on.
func newPlan(infos []*TaskInfo, output string) (*plan, error) {
	p := &plan{
		infos:    infos,
		index:    make(map[string]int, len(infos)),
		matrix:   depgraph.New(len(infos)),
		consumed: make(map[string]bool),
	}
	for i, info := range infos {
		p.index[info.Name] = i
	}

	writers := make(map[string][]int)
	decls := make(map[string]resourceDecl)
	declare := func(i int, name string, d resourceDecl) error {
		if prev, ok := decls[name]; ok {
			if prev.class != d.class || prev.format != d.format {
				return fmt.Errorf("%w: %q declared by %q and %q with different types",
					ErrResourceMismatch, name, prev.task, d.task)
			}
		} else {
			decls[name] = d
		}
		writers[name] = append(writers[name], i)
		return nil
	}
	for i, info := range infos {
		for _, c := range info.Colors {
			if err := declare(i, c.Name, resourceDecl{classColor, c.Format, info.Name}); err != nil {
				return nil, err
			}
		}
		if info.Depth != nil {
			if err := declare(i, info.Depth.Name, resourceDecl{classDepth, info.Depth.Format, info.Name}); err != nil {
				return nil, err
			}
		}
		for _, b := range info.Buffers {
			if err := declare(i, b.Name, resourceDecl{classBuffer, 0, info.Name}); err != nil {
				return nil, err
			}
		}
	}

	m := p.matrix
	for y, info := range infos {
		for _, dep := range info.Dependencies {
			found := false
			if x, ok := p.index[dep]; ok {
				m.Set(x, y)
				found = true
				for _, name := range infos[x].outputs() {
					p.consumed[name] = true
				}
			}
			for _, x := range writers[dep] {
				if x != y {
					m.Set(x, y)
					found = true
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: %q required by task %q", ErrUnknownResource, dep, info.Name)
			}
			p.consumed[dep] = true
		}
	}

	for name, ws := range writers {
		if name == output {
			continue
		}
		for i, x := range ws {
			for _, y := range ws[i+1:] {
				if !m.Linked(x, y) {
					m.Set(x, y)
				}
			}
		}
	}

	for _, x := range writers[output] {
		m.Set(x, m.Sink())
	}

	if err := m.Reduce(); err != nil {
		return nil, fmt.Errorf("rendergraph: %w", err)
	}

	order, culled := m.Sort()
	p.order = make([]*TaskInfo, len(order))
	for i, v := range order {
		p.order[i] = infos[v]
	}
	for _, v := range culled {
		p.culled = append(p.culled, infos[v].Name)
	}
	return p, nil
}

// dependencies returns the direct dependencies of the task called name.
func (p *plan) dependencies(name string) []string {
	i, ok := p.index[name]
	if !ok {
		return nil
	}
	var deps []string
	for _, d := range p.matrix.Dependencies(i) {
		deps = append(deps, p.infos[d].Name)
	}
	return deps
}
