// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gputypes"
)

// handle is an object created by fakeDevice. Pointer identity is the
// object identity.
type handle struct {
	kind string
	id   int
	pass *RenderPassDescriptor
	fb   *FramebufferDescriptor
}

func (h *handle) String() string { return fmt.Sprintf("%s#%d", h.kind, h.id) }

var errInjected = errors.New("injected failure")

// fakeDevice is an in-memory Device recording every call.
type fakeDevice struct {
	nextID    int
	live      map[*handle]bool
	created   map[string]int
	destroyed map[string]int

	// failOn makes the next creation of that kind fail.
	failOn string

	submits      []SubmitInfo
	fenceWaits   []*handle
	renderPasses []*RenderPassBeginInfo
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:      make(map[*handle]bool),
		created:   make(map[string]int),
		destroyed: make(map[string]int),
	}
}

func (d *fakeDevice) create(kind string) (*handle, error) {
	if d.failOn == kind {
		d.failOn = ""
		return nil, fmt.Errorf("create %s: %w", kind, errInjected)
	}
	d.nextID++
	h := &handle{kind: kind, id: d.nextID}
	d.live[h] = true
	d.created[kind]++
	return h, nil
}

func (d *fakeDevice) destroy(kind string, v any) {
	h, ok := v.(*handle)
	if !ok || h == nil {
		return
	}
	if h.kind != kind {
		panic(fmt.Sprintf("destroy %s called with %v", kind, h))
	}
	if !d.live[h] {
		panic(fmt.Sprintf("double destroy of %v", h))
	}
	delete(d.live, h)
	d.destroyed[kind]++
}

// liveCount returns the number of live objects of kind.
func (d *fakeDevice) liveCount(kind string) int {
	n := 0
	for h := range d.live {
		if h.kind == kind {
			n++
		}
	}
	return n
}

func (d *fakeDevice) isLive(v any) bool {
	h, ok := v.(*handle)
	return ok && d.live[h]
}

func (d *fakeDevice) CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error) {
	h, err := d.create("renderpass")
	if err != nil {
		return nil, err
	}
	cp := *desc
	h.pass = &cp
	return h, nil
}

func (d *fakeDevice) DestroyRenderPass(p RenderPass) { d.destroy("renderpass", p) }

func (d *fakeDevice) CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error) {
	rp := desc.RenderPass.(*handle)
	if len(desc.Attachments) != rp.pass.AttachmentCount() {
		return nil, ErrAttachmentCount
	}
	h, err := d.create("framebuffer")
	if err != nil {
		return nil, err
	}
	cp := *desc
	h.fb = &cp
	return h, nil
}

func (d *fakeDevice) DestroyFramebuffer(fb Framebuffer) { d.destroy("framebuffer", fb) }

func (d *fakeDevice) CreateImage(*ImageDescriptor) (Image, error) { return d.create("image") }
func (d *fakeDevice) DestroyImage(img Image)                      { d.destroy("image", img) }

func (d *fakeDevice) CreateImageView(Image, *ImageViewDescriptor) (ImageView, error) {
	return d.create("view")
}
func (d *fakeDevice) DestroyImageView(v ImageView) { d.destroy("view", v) }

func (d *fakeDevice) CreateBuffer(*BufferDescriptor) (Buffer, error) { return d.create("buffer") }
func (d *fakeDevice) DestroyBuffer(b Buffer)                         { d.destroy("buffer", b) }

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) { return d.create("semaphore") }
func (d *fakeDevice) DestroySemaphore(s Semaphore)        { d.destroy("semaphore", s) }

func (d *fakeDevice) CreateFence(bool) (Fence, error) { return d.create("fence") }
func (d *fakeDevice) DestroyFence(f Fence)            { d.destroy("fence", f) }

func (d *fakeDevice) WaitFence(f Fence) error {
	d.fenceWaits = append(d.fenceWaits, f.(*handle))
	return nil
}

func (d *fakeDevice) ResetFence(Fence) error { return nil }

func (d *fakeDevice) AllocateCommandBuffer(string) (CommandBuffer, error) {
	return d.create("cmd")
}
func (d *fakeDevice) FreeCommandBuffer(c CommandBuffer) { d.destroy("cmd", c) }

func (d *fakeDevice) BeginCommandBuffer(CommandBuffer) error { return nil }
func (d *fakeDevice) EndCommandBuffer(CommandBuffer) error   { return nil }

func (d *fakeDevice) BeginRenderPass(_ CommandBuffer, info *RenderPassBeginInfo) error {
	d.renderPasses = append(d.renderPasses, info)
	return nil
}

func (d *fakeDevice) EndRenderPass(CommandBuffer) error { return nil }

func (d *fakeDevice) Submit(info *SubmitInfo) error {
	d.submits = append(d.submits, *info)
	return nil
}

// recorder counts build and record callbacks per task.
type recorder struct {
	builds  map[string]int
	records []string
	passes  map[string]RenderPass
}

func newRecorder() *recorder {
	return &recorder{builds: make(map[string]int), passes: make(map[string]RenderPass)}
}

func (r *recorder) handler(name string) TaskHandler {
	return TaskFuncs[*recorder]{
		Context: r,
		OnBuild: func(bc *BuildContext, r *recorder) error {
			r.builds[name]++
			r.passes[name] = bc.RenderPass
			return nil
		},
		OnRecord: func(_ CommandBuffer, _ int, r *recorder) error {
			r.records = append(r.records, name)
			return nil
		},
	}
}

const testFormat = gputypes.TextureFormatRGBA8Unorm

// testChain returns an output chain of n fake views.
func testChain(d *fakeDevice, n int) OutputChain {
	c := OutputChain{
		Format:      gputypes.TextureFormatBGRA8Unorm,
		Extent:      gputypes.Extent3D{Width: 64, Height: 64, DepthOrArrayLayers: 1},
		FinalLayout: LayoutPresent,
	}
	for i := 0; i < n; i++ {
		v, _ := d.create("chainview")
		c.Views = append(c.Views, v)
	}
	return c
}

func newTestBuilder(t *testing.T, d *fakeDevice, opts ...Option) *Builder {
	t.Helper()
	b := NewBuilder(d, opts...)
	b.SetOutputChain(testChain(d, 2))
	b.SetOutput("output")
	t.Cleanup(b.Release)
	return b
}

// graphics declares a graphics task writing the named color outputs.
func graphics(r *recorder, name string, deps []string, outputs ...string) TaskInfo {
	info := TaskInfo{Name: name, Kind: Graphics, Dependencies: deps, Handler: r.handler(name)}
	for _, o := range outputs {
		info.Colors = append(info.Colors, ColorOutput{Name: o, Format: testFormat})
	}
	return info
}

// compute declares a compute task writing the named buffers.
func compute(r *recorder, name string, deps []string, buffers ...string) TaskInfo {
	info := TaskInfo{Name: name, Kind: Compute, Dependencies: deps, Handler: r.handler(name)}
	for _, o := range buffers {
		info.Buffers = append(info.Buffers, BufferOutput{Name: o, Size: 256, Usage: gputypes.BufferUsageStorage})
	}
	return info
}

func mustAdd(t *testing.T, b *Builder, infos ...TaskInfo) {
	t.Helper()
	for _, info := range infos {
		if err := b.AddTask(info); err != nil {
			t.Fatalf("AddTask(%q): %v", info.Name, err)
		}
	}
}

func mustBuild(t *testing.T, b *Builder) *RenderGraph {
	t.Helper()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

// batchNames lists the task names of every batch of buffer i.
func batchNames(g *RenderGraph, i int) [][]string {
	var out [][]string
	for _, b := range g.Batches(i) {
		var names []string
		for _, t := range b.Tasks() {
			names = append(names, t.Name())
		}
		out = append(out, names)
	}
	return out
}

// findTask returns the realized task called name in buffer i.
func findTask(t *testing.T, g *RenderGraph, i int, name string) *Task {
	t.Helper()
	for _, b := range g.Batches(i) {
		for _, task := range b.Tasks() {
			if task.Name() == name {
				return task
			}
		}
	}
	t.Fatalf("task %q not found in buffer %d", name, i)
	return nil
}

// taskHandles captures the render pass and framebuffers of a task in every buffer.
func taskHandles(t *testing.T, g *RenderGraph, name string) []any {
	t.Helper()
	var hs []any
	for i := 0; i < g.BufferCount(); i++ {
		task := findTask(t, g, i, name)
		hs = append(hs, task.RenderPass())
		for j := 0; j < g.chain.Len(); j++ {
			hs = append(hs, task.Framebuffer(j))
		}
	}
	return hs
}

func sameHandles(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
