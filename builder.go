// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"slices"
	"sync"
)

// devices tracks the devices of live builders for logger propagation.
var (
	devicesMu sync.Mutex
	devices   []Device
)

func registerDevice(d Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices = append(devices, d)
	propagateLogger(d, Logger())
}

func unregisterDevice(d Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	if i := slices.Index(devices, d); i >= 0 {
		devices = slices.Delete(devices, i, i+1)
	}
}

// Builder is the mutable declaration surface of a render graph.
//
// Tasks are added, updated and removed between frames; Build turns the
// current declarations into a runnable RenderGraph. The first Build creates
// the graph, later calls update it in place and only recreate the GPU
// objects of tasks that changed.
//
// Builder is not safe for concurrent use.
type Builder struct {
	device Device
	opts   options

	tasks  []TaskInfo
	index  map[string]int
	output string
	chain  *OutputChain

	// updated holds names declared, replaced or removed since the last
	// successful Build.
	updated      map[string]bool
	chainChanged bool

	graph *RenderGraph
}

// NewBuilder returns an empty Builder creating its objects on device.
func NewBuilder(device Device, opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	registerDevice(device)
	return &Builder{
		device:  device,
		opts:    o,
		index:   make(map[string]int),
		updated: make(map[string]bool),
	}
}

// AddTask declares a new task.
func (b *Builder) AddTask(info TaskInfo) error {
	if err := info.validate(); err != nil {
		return err
	}
	if _, ok := b.index[info.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTask, info.Name)
	}
	if info.Handler == nil {
		info.Handler = TaskFuncs[struct{}]{}
	}
	b.index[info.Name] = len(b.tasks)
	b.tasks = append(b.tasks, info)
	b.updated[info.Name] = true
	return nil
}

// UpdateTask replaces the declaration of an existing task. The task keeps
// its declaration position.
func (b *Builder) UpdateTask(info TaskInfo) error {
	if err := info.validate(); err != nil {
		return err
	}
	i, ok := b.index[info.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, info.Name)
	}
	if info.Handler == nil {
		info.Handler = TaskFuncs[struct{}]{}
	}
	b.tasks[i] = info
	b.updated[info.Name] = true
	return nil
}

// RemoveTask removes a declared task.
func (b *Builder) RemoveTask(name string) error {
	i, ok := b.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	b.tasks = slices.Delete(b.tasks, i, i+1)
	delete(b.index, name)
	for j := i; j < len(b.tasks); j++ {
		b.index[b.tasks[j].Name] = j
	}
	b.updated[name] = true
	return nil
}

// Task returns the declaration of the task called name.
func (b *Builder) Task(name string) (TaskInfo, bool) {
	i, ok := b.index[name]
	if !ok {
		return TaskInfo{}, false
	}
	return b.tasks[i], true
}

// Tasks returns the declared task names in declaration order.
func (b *Builder) Tasks() []string {
	names := make([]string, len(b.tasks))
	for i := range b.tasks {
		names[i] = b.tasks[i].Name
	}
	return names
}

// SetOutput designates the resource rendered into the output chain. Only
// tasks contributing to it are executed.
func (b *Builder) SetOutput(name string) {
	b.output = name
}

// Output returns the designated output resource name.
func (b *Builder) Output() string { return b.output }

// SetOutputChain sets the images the output is rendered into. Replacing
// the chain, e.g. after a window resize, recreates every render pass,
// framebuffer and internal image on the next Build.
func (b *Builder) SetOutputChain(chain OutputChain) {
	c := chain
	c.Views = slices.Clone(chain.Views)
	b.chain = &c
	b.chainChanged = true
}

// Build derives execution order and attachment semantics from the current
// declarations and brings the render graph up to date.
//
// A failed Build leaves the graph in an unspecified state; the caller must
// treat it as a whole-graph failure.
func (b *Builder) Build() (*RenderGraph, error) {
	if b.chain == nil || b.chain.Len() == 0 {
		return nil, ErrNoOutputChain
	}

	infos := make([]*TaskInfo, len(b.tasks))
	for i := range b.tasks {
		info := b.tasks[i]
		infos[i] = &info
	}
	p, err := newPlan(infos, b.output)
	if err != nil {
		return nil, err
	}

	if b.graph == nil {
		g, err := newRenderGraph(b.device, b.opts)
		if err != nil {
			return nil, err
		}
		b.graph = g
		b.chainChanged = true
	}

	g := b.graph
	g.output = b.output
	if b.chainChanged {
		g.chain = b.chain
		g.flushImages()
		g.chainDirty = true
	}

	if err := g.update(p, b.updated); err != nil {
		return nil, err
	}
	b.chainChanged = false
	clear(b.updated)
	return g, nil
}

// Release destroys the render graph, if any, and detaches the builder from
// its device. The builder must not be used afterwards.
func (b *Builder) Release() {
	if b.graph != nil {
		b.graph.Release()
		b.graph = nil
	}
	unregisterDevice(b.device)
}
