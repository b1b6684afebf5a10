// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
)

// Task is a realized task: a declaration snapshot plus the GPU objects
// allocated for it in one frame-in-flight buffer.
type Task struct {
	info      *TaskInfo
	state     RenderPassState
	signature string
	extent    gputypes.Extent3D

	renderPass   RenderPass
	framebuffers []Framebuffer
	clearColors  []gputypes.Color
}

// Name returns the task name.
func (t *Task) Name() string { return t.info.Name }

// Kind returns the task kind.
func (t *Task) Kind() TaskKind { return t.info.Kind }

// State returns the attachment classification the task was built with.
func (t *Task) State() RenderPassState { return t.state }

// Extent returns the resolved render area.
func (t *Task) Extent() gputypes.Extent3D { return t.extent }

// RenderPass returns the task's render pass, or nil for compute tasks.
func (t *Task) RenderPass() RenderPass { return t.renderPass }

// Framebuffer returns the framebuffer for output chain image i, or nil.
func (t *Task) Framebuffer(i int) Framebuffer {
	if i < 0 || i >= len(t.framebuffers) {
		return nil
	}
	return t.framebuffers[i]
}

// Barrier is a manual barrier slot on a batch. Nothing populates or
// consumes barriers yet; render pass dependencies and semaphores cover
// all synchronization the graph performs.
type Barrier struct {
	Resource string
	Src      PipelineStage
	Dst      PipelineStage
}

// Batch is a group of tasks recorded into one command buffer per output
// chain image and signaling one semaphore on completion.
type Batch struct {
	tasks          []*Task
	commandBuffers []CommandBuffer
	signal         Semaphore
	waits          []int
	waitStage      PipelineStage
	barriers       []Barrier
}

// Tasks returns the tasks of the batch in recording order.
func (b *Batch) Tasks() []*Task { return b.tasks }

// Waits returns the indices of the batches this batch waits on, ascending.
func (b *Batch) Waits() []int { return b.waits }

// Signal returns the semaphore signaled when the batch completes.
func (b *Batch) Signal() Semaphore { return b.signal }

// CommandBuffer returns the command buffer used for output chain image i.
func (b *Batch) CommandBuffer(i int) CommandBuffer {
	if i < 0 || i >= len(b.commandBuffers) {
		return nil
	}
	return b.commandBuffers[i]
}

// Barriers returns the manual barriers of the batch.
func (b *Batch) Barriers() []Barrier { return b.barriers }

// graphBuffer is one frame-in-flight instantiation of the graph.
type graphBuffer struct {
	index   int
	batches []*Batch
	images  map[string]ImageWrite
	buffers map[string]BufferWrite
	fence   Fence

	// replaced holds the internal resources whose backing object was
	// recreated during the current update.
	replaced map[string]bool

	// retired holds releases of objects that in-flight work may still
	// reference. They run after the next wait on fence.
	retired []func()
}

func (buf *graphBuffer) retire(release func()) {
	buf.retired = append(buf.retired, release)
}

func (buf *graphBuffer) releaseRetired() {
	for _, release := range buf.retired {
		release()
	}
	buf.retired = buf.retired[:0]
}

// resources returns the internal resources currently allocated.
func (buf *graphBuffer) resources() ResourceMap {
	m := make(ResourceMap, len(buf.images)+len(buf.buffers))
	for name, w := range buf.images {
		m[name] = w
	}
	for name, w := range buf.buffers {
		m[name] = w
	}
	return m
}

// RenderGraph is a runnable graph produced by Builder.Build.
//
// RenderGraph is not safe for concurrent use. Run and Builder calls must be
// serialized by the caller.
type RenderGraph struct {
	device   Device
	chain    *OutputChain
	output   string
	storeAll bool

	buffers []*graphBuffer
	plan    *plan
	frame   int

	// chainDirty forces recreation of every render pass and framebuffer on
	// the next update.
	chainDirty bool
}

func newRenderGraph(device Device, opts options) (*RenderGraph, error) {
	g := &RenderGraph{
		device:   device,
		storeAll: opts.storeAll,
		frame:    -1,
	}
	for i := 0; i < opts.framesInFlight; i++ {
		fence, err := device.CreateFence(true)
		if err != nil {
			g.Release()
			return nil, fmt.Errorf("rendergraph: create fence for buffer %d: %w", i, err)
		}
		g.buffers = append(g.buffers, &graphBuffer{
			index:    i,
			images:   make(map[string]ImageWrite),
			buffers:  make(map[string]BufferWrite),
			fence:    fence,
			replaced: make(map[string]bool),
		})
	}
	return g, nil
}

// BufferCount returns the number of frame-in-flight buffers.
func (g *RenderGraph) BufferCount() int { return len(g.buffers) }

// Batches returns the batches of frame-in-flight buffer i in submission order.
func (g *RenderGraph) Batches(i int) []*Batch {
	if i < 0 || i >= len(g.buffers) {
		return nil
	}
	return g.buffers[i].batches
}

// Resources returns the internal resources of frame-in-flight buffer i.
func (g *RenderGraph) Resources(i int) ResourceMap {
	if i < 0 || i >= len(g.buffers) {
		return nil
	}
	return g.buffers[i].resources()
}

// Order returns the task names in execution order.
func (g *RenderGraph) Order() []string {
	if g.plan == nil {
		return nil
	}
	names := make([]string, len(g.plan.order))
	for i, info := range g.plan.order {
		names[i] = info.Name
	}
	return names
}

// Culled returns the declared tasks that do not contribute to the output.
func (g *RenderGraph) Culled() []string {
	if g.plan == nil {
		return nil
	}
	return g.plan.culled
}

// DependsOn reports whether task depends directly on dep after transitive
// reduction.
func (g *RenderGraph) DependsOn(task, dep string) bool {
	if g.plan == nil {
		return false
	}
	return slices.Contains(g.plan.dependencies(task), dep)
}

// Run records and submits every batch of the next frame-in-flight buffer,
// rendering the output into output chain image imageIndex.
//
// Run first waits for the GPU to finish the previous use of that buffer.
// The wait has no timeout. Every batch is re-recorded on every call.
func (g *RenderGraph) Run(imageIndex int) error {
	if g.chain == nil || imageIndex < 0 || imageIndex >= g.chain.Len() {
		return fmt.Errorf("%w: %d", ErrInvalidImageIndex, imageIndex)
	}

	g.frame = (g.frame + 1) % len(g.buffers)
	buf := g.buffers[g.frame]

	if err := g.device.WaitFence(buf.fence); err != nil {
		return fmt.Errorf("rendergraph: wait for buffer %d: %w", buf.index, err)
	}
	if err := g.device.ResetFence(buf.fence); err != nil {
		return fmt.Errorf("rendergraph: reset fence of buffer %d: %w", buf.index, err)
	}
	buf.releaseRetired()

	if len(buf.batches) == 0 {
		if err := g.device.Submit(&SubmitInfo{Fence: buf.fence}); err != nil {
			return fmt.Errorf("rendergraph: submit fence of buffer %d: %w", buf.index, err)
		}
		return nil
	}

	for k, b := range buf.batches {
		cmd := b.commandBuffers[imageIndex]
		if err := g.record(b, cmd, imageIndex); err != nil {
			return err
		}

		submit := &SubmitInfo{
			CommandBuffers: []CommandBuffer{cmd},
			Signals:        []Semaphore{b.signal},
		}
		for _, w := range b.waits {
			submit.Waits = append(submit.Waits, SemaphoreWait{
				Semaphore: buf.batches[w].signal,
				Stage:     b.waitStage,
			})
		}
		if k == len(buf.batches)-1 {
			submit.Fence = buf.fence
		}
		if err := g.device.Submit(submit); err != nil {
			return fmt.Errorf("rendergraph: submit batch %d of buffer %d: %w", k, buf.index, err)
		}
	}
	return nil
}

func (g *RenderGraph) record(b *Batch, cmd CommandBuffer, imageIndex int) error {
	if err := g.device.BeginCommandBuffer(cmd); err != nil {
		return fmt.Errorf("rendergraph: begin command buffer: %w", err)
	}
	for _, t := range b.tasks {
		if t.info.Kind == Compute {
			if err := t.info.Handler.Record(cmd, imageIndex); err != nil {
				return fmt.Errorf("rendergraph: record task %q: %w", t.Name(), err)
			}
			continue
		}

		begin := &RenderPassBeginInfo{
			RenderPass:  t.renderPass,
			Framebuffer: t.framebuffers[imageIndex],
			Width:       t.extent.Width,
			Height:      t.extent.Height,
			ClearColors: t.clearColors,
		}
		if d := t.info.Depth; d != nil {
			begin.ClearDepth = d.ClearDepth
			begin.ClearStencil = d.ClearStencil
		}
		if err := g.device.BeginRenderPass(cmd, begin); err != nil {
			return fmt.Errorf("rendergraph: begin render pass of task %q: %w", t.Name(), err)
		}
		if err := t.info.Handler.Record(cmd, imageIndex); err != nil {
			return fmt.Errorf("rendergraph: record task %q: %w", t.Name(), err)
		}
		if err := g.device.EndRenderPass(cmd); err != nil {
			return fmt.Errorf("rendergraph: end render pass of task %q: %w", t.Name(), err)
		}
	}
	if err := g.device.EndCommandBuffer(cmd); err != nil {
		return fmt.Errorf("rendergraph: end command buffer: %w", err)
	}
	return nil
}

// Release waits for all frame-in-flight buffers and destroys every object
// the graph created. The graph must not be used afterwards.
func (g *RenderGraph) Release() {
	d := g.device
	for _, buf := range g.buffers {
		if err := d.WaitFence(buf.fence); err != nil {
			Logger().Warn("rendergraph: wait before release failed",
				"buffer", buf.index, "err", err)
		}
		buf.releaseRetired()
		for _, b := range buf.batches {
			for _, t := range b.tasks {
				g.destroyTask(t)
			}
			g.destroyBatch(b)
		}
		buf.batches = nil
		for name, w := range buf.images {
			d.DestroyImageView(w.View)
			d.DestroyImage(w.Image)
			delete(buf.images, name)
		}
		for name, w := range buf.buffers {
			d.DestroyBuffer(w.Buffer)
			delete(buf.buffers, name)
		}
		d.DestroyFence(buf.fence)
	}
	g.buffers = nil
}
