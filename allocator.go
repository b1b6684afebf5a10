// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// internalImageUsage is the usage of every graph-internal image: written as
// an attachment, read by later tasks.
const internalImageUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

// resolveExtent returns the task extent, defaulting to the output chain.
func (g *RenderGraph) resolveExtent(info *TaskInfo) gputypes.Extent3D {
	e := info.Extent
	if e.Width == 0 || e.Height == 0 {
		e = g.chain.Extent
	}
	if e.DepthOrArrayLayers == 0 {
		e.DepthOrArrayLayers = 1
	}
	return e
}

func attachmentExtent(declared, task gputypes.Extent3D) gputypes.Extent3D {
	if declared.Width == 0 || declared.Height == 0 {
		return task
	}
	if declared.DepthOrArrayLayers == 0 {
		declared.DepthOrArrayLayers = 1
	}
	return declared
}

// signature identifies everything besides the classification that shapes
// a task's render pass and framebuffers.
func (g *RenderGraph) signature(info *TaskInfo) string {
	if info.Kind != Graphics {
		return ""
	}
	extent := g.resolveExtent(info)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%dx%dx%d", extent.Width, extent.Height, extent.DepthOrArrayLayers)
	slot := func(name string, format gputypes.TextureFormat, declared gputypes.Extent3D) {
		if name == g.output {
			fmt.Fprintf(&sb, "|%s=output", name)
			return
		}
		e := attachmentExtent(declared, extent)
		fmt.Fprintf(&sb, "|%s=%v@%dx%d", name, format, e.Width, e.Height)
	}
	for _, c := range info.Colors {
		slot(c.Name, c.Format, c.Extent)
	}
	if d := info.Depth; d != nil {
		sb.WriteString("|depth")
		slot(d.Name, d.Format, d.Extent)
	}
	return sb.String()
}

// checkExtents fails when writers of one internal image resolve to
// different extents.
func (g *RenderGraph) checkExtents(order []*TaskInfo) error {
	type use struct {
		task   string
		extent gputypes.Extent3D
	}
	seen := make(map[string]use)
	check := func(info *TaskInfo, name string, declared gputypes.Extent3D) error {
		if name == g.output {
			return nil
		}
		e := attachmentExtent(declared, g.resolveExtent(info))
		if prev, ok := seen[name]; ok && prev.extent != e {
			return fmt.Errorf("%w: %q is %dx%d in task %q but %dx%d in task %q",
				ErrResourceMismatch, name, prev.extent.Width, prev.extent.Height, prev.task,
				e.Width, e.Height, info.Name)
		}
		seen[name] = use{info.Name, e}
		return nil
	}
	for _, info := range order {
		for _, c := range info.Colors {
			if err := check(info, c.Name, c.Extent); err != nil {
				return err
			}
		}
		if d := info.Depth; d != nil {
			if err := check(info, d.Name, d.Extent); err != nil {
				return err
			}
		}
	}
	return nil
}

// createTask realizes info in buf with the given classification and
// invokes its build callback.
func (g *RenderGraph) createTask(buf *graphBuffer, info *TaskInfo, state RenderPassState) (*Task, error) {
	t := &Task{info: info}
	if err := g.allocateTask(buf, t, state); err != nil {
		return nil, err
	}
	if err := g.allocateBuffers(buf, info); err != nil {
		g.destroyTask(t)
		return nil, err
	}
	if err := g.build(buf, t); err != nil {
		g.destroyTask(t)
		return nil, err
	}
	Logger().Debug("rendergraph: task created",
		"task", info.Name, "buffer", buf.index, "state", state.String())
	return t, nil
}

// allocateTask creates the render pass and one framebuffer per output
// chain image. Compute tasks get neither.
func (g *RenderGraph) allocateTask(buf *graphBuffer, t *Task, state RenderPassState) error {
	info := t.info
	t.state = state
	t.signature = g.signature(info)
	t.extent = g.resolveExtent(info)
	t.renderPass = nil
	t.framebuffers = nil
	t.clearColors = nil

	switch info.Kind {
	case Compute:
		return nil
	case Graphics:
	default:
		return fmt.Errorf("%w: %v in task %q", ErrUnknownTaskKind, info.Kind, info.Name)
	}

	desc := describeRenderPass(info, state, g.output, g.chain)
	pass, err := g.device.CreateRenderPass(desc)
	if err != nil {
		return fmt.Errorf("rendergraph: create render pass for task %q: %w", info.Name, err)
	}
	t.renderPass = pass
	for _, c := range info.Colors {
		t.clearColors = append(t.clearColors, c.Clear)
	}

	for i := 0; i < g.chain.Len(); i++ {
		views := make([]ImageView, 0, info.attachmentCount())
		for _, c := range info.Colors {
			view, err := g.attachmentView(buf, i, c.Name, c.Format, attachmentExtent(c.Extent, t.extent))
			if err != nil {
				g.destroyTask(t)
				return err
			}
			views = append(views, view)
		}
		if d := info.Depth; d != nil {
			view, err := g.attachmentView(buf, i, d.Name, d.Format, attachmentExtent(d.Extent, t.extent))
			if err != nil {
				g.destroyTask(t)
				return err
			}
			views = append(views, view)
		}
		if len(views) != desc.AttachmentCount() {
			g.destroyTask(t)
			return fmt.Errorf("%w: task %q has %d views for %d attachments",
				ErrAttachmentCount, info.Name, len(views), desc.AttachmentCount())
		}

		fb, err := g.device.CreateFramebuffer(&FramebufferDescriptor{
			Label:       fmt.Sprintf("%s/%d/%d", info.Name, buf.index, i),
			RenderPass:  pass,
			Attachments: views,
			Width:       t.extent.Width,
			Height:      t.extent.Height,
		})
		if err != nil {
			g.destroyTask(t)
			return fmt.Errorf("rendergraph: create framebuffer %d for task %q: %w", i, info.Name, err)
		}
		t.framebuffers = append(t.framebuffers, fb)
	}
	return nil
}

// attachmentView resolves the view backing an attachment for output chain
// image i: the chain view for the graph output, otherwise the internal
// image of buf.
func (g *RenderGraph) attachmentView(buf *graphBuffer, i int, name string, format gputypes.TextureFormat, extent gputypes.Extent3D) (ImageView, error) {
	if name == g.output {
		return g.chain.Views[i], nil
	}
	w, err := g.image(buf, name, format, extent)
	if err != nil {
		return nil, err
	}
	return w.View, nil
}

// image returns the internal image called name, allocating it on first use.
// A cached image with a different format or extent is retired and replaced.
func (g *RenderGraph) image(buf *graphBuffer, name string, format gputypes.TextureFormat, extent gputypes.Extent3D) (ImageWrite, error) {
	d := g.device
	if w, ok := buf.images[name]; ok {
		if w.Format == format && w.Extent == extent {
			return w, nil
		}
		buf.retire(func() {
			d.DestroyImageView(w.View)
			d.DestroyImage(w.Image)
		})
		delete(buf.images, name)
		buf.replaced[name] = true
	}

	label := fmt.Sprintf("%s/%d", name, buf.index)
	img, err := d.CreateImage(&ImageDescriptor{
		Label:  label,
		Format: format,
		Extent: extent,
		Usage:  internalImageUsage,
	})
	if err != nil {
		return ImageWrite{}, fmt.Errorf("rendergraph: create image %q: %w", name, err)
	}

	aspect := gputypes.TextureAspectAll
	if format.HasDepth() && !format.HasStencil() {
		aspect = gputypes.TextureAspectDepthOnly
	}
	view, err := d.CreateImageView(img, &ImageViewDescriptor{Label: label, Format: format, Aspect: aspect})
	if err != nil {
		d.DestroyImage(img)
		return ImageWrite{}, fmt.Errorf("rendergraph: create view of image %q: %w", name, err)
	}

	w := ImageWrite{Name: name, Format: format, Extent: extent, Image: img, View: view}
	buf.images[name] = w
	Logger().Debug("rendergraph: image allocated",
		"name", name, "buffer", buf.index, "format", format.String(),
		"width", extent.Width, "height", extent.Height)
	return w, nil
}

// allocateBuffers makes sure every buffer output of info exists in buf.
func (g *RenderGraph) allocateBuffers(buf *graphBuffer, info *TaskInfo) error {
	d := g.device
	for _, out := range info.Buffers {
		if w, ok := buf.buffers[out.Name]; ok {
			if w.Size == out.Size && w.Usage == out.Usage {
				continue
			}
			buf.retire(func() { d.DestroyBuffer(w.Buffer) })
			delete(buf.buffers, out.Name)
			buf.replaced[out.Name] = true
		}
		b, err := d.CreateBuffer(&BufferDescriptor{
			Label: fmt.Sprintf("%s/%d", out.Name, buf.index),
			Size:  out.Size,
			Usage: out.Usage,
		})
		if err != nil {
			return fmt.Errorf("rendergraph: create buffer %q: %w", out.Name, err)
		}
		buf.buffers[out.Name] = BufferWrite{Name: out.Name, Size: out.Size, Usage: out.Usage, Buffer: b}
	}
	return nil
}

// retireUnwritten retires the internal images and buffers that no task in
// order writes any more. An image named like the output is backed by the
// output chain instead and is retired too.
func (g *RenderGraph) retireUnwritten(buf *graphBuffer, order []*TaskInfo) {
	written := make(map[string]bool)
	for _, info := range order {
		for _, name := range info.outputs() {
			written[name] = true
		}
	}
	d := g.device
	for name, w := range buf.images {
		if written[name] && name != g.output {
			continue
		}
		buf.retire(func() {
			d.DestroyImageView(w.View)
			d.DestroyImage(w.Image)
		})
		delete(buf.images, name)
		Logger().Debug("rendergraph: image retired", "name", name, "buffer", buf.index)
	}
	for name, w := range buf.buffers {
		if written[name] {
			continue
		}
		buf.retire(func() { d.DestroyBuffer(w.Buffer) })
		delete(buf.buffers, name)
		Logger().Debug("rendergraph: buffer retired", "name", name, "buffer", buf.index)
	}
}

// build invokes the task's build callback.
func (g *RenderGraph) build(buf *graphBuffer, t *Task) error {
	bc := &BuildContext{
		BufferIndex: buf.index,
		BufferCount: len(g.buffers),
		Viewport:    viewportFor(g.resolveExtent(t.info)),
		RenderPass:  t.renderPass,
		Resources:   buf.resources(),
	}
	if err := t.info.Handler.Build(bc); err != nil {
		return fmt.Errorf("rendergraph: build task %q: %w", t.Name(), err)
	}
	return nil
}

// destroyTask destroys the task's objects immediately. Only for objects no
// submitted work references.
func (g *RenderGraph) destroyTask(t *Task) {
	for _, fb := range t.framebuffers {
		g.device.DestroyFramebuffer(fb)
	}
	if t.renderPass != nil {
		g.device.DestroyRenderPass(t.renderPass)
	}
	t.framebuffers = nil
	t.renderPass = nil
}

// retireTask schedules destruction of the task's current objects.
func (g *RenderGraph) retireTask(buf *graphBuffer, t *Task) {
	pass, fbs := t.renderPass, t.framebuffers
	t.renderPass, t.framebuffers = nil, nil
	if pass == nil && len(fbs) == 0 {
		return
	}
	d := g.device
	buf.retire(func() {
		for _, fb := range fbs {
			d.DestroyFramebuffer(fb)
		}
		if pass != nil {
			d.DestroyRenderPass(pass)
		}
	})
}

// newBatch creates a batch holding tasks with one command buffer per output
// chain image.
func (g *RenderGraph) newBatch(buf *graphBuffer, tasks []*Task) (*Batch, error) {
	b := &Batch{tasks: tasks}
	sem, err := g.device.CreateSemaphore()
	if err != nil {
		return nil, fmt.Errorf("rendergraph: create semaphore for task %q: %w", tasks[0].Name(), err)
	}
	b.signal = sem
	if err := g.resizeCommandBuffers(buf, b); err != nil {
		g.destroyBatch(b)
		return nil, err
	}
	return b, nil
}

// resizeCommandBuffers matches the batch's command buffers to the output
// chain length.
func (g *RenderGraph) resizeCommandBuffers(buf *graphBuffer, b *Batch) error {
	n := g.chain.Len()
	for len(b.commandBuffers) < n {
		i := len(b.commandBuffers)
		cmd, err := g.device.AllocateCommandBuffer(fmt.Sprintf("%s/%d/%d", b.tasks[0].Name(), buf.index, i))
		if err != nil {
			return fmt.Errorf("rendergraph: allocate command buffer for task %q: %w", b.tasks[0].Name(), err)
		}
		b.commandBuffers = append(b.commandBuffers, cmd)
	}
	if len(b.commandBuffers) > n {
		extra := append([]CommandBuffer(nil), b.commandBuffers[n:]...)
		b.commandBuffers = b.commandBuffers[:n]
		d := g.device
		buf.retire(func() {
			for _, cmd := range extra {
				d.FreeCommandBuffer(cmd)
			}
		})
	}
	return nil
}

func (g *RenderGraph) destroyBatch(b *Batch) {
	for _, cmd := range b.commandBuffers {
		g.device.FreeCommandBuffer(cmd)
	}
	if b.signal != nil {
		g.device.DestroySemaphore(b.signal)
	}
	b.commandBuffers = nil
	b.signal = nil
}

func (g *RenderGraph) retireBatch(buf *graphBuffer, b *Batch) {
	cmds, sem := b.commandBuffers, b.signal
	b.commandBuffers, b.signal = nil, nil
	d := g.device
	buf.retire(func() {
		for _, cmd := range cmds {
			d.FreeCommandBuffer(cmd)
		}
		if sem != nil {
			d.DestroySemaphore(sem)
		}
	})
}

// flushImages retires every internal image of every buffer.
func (g *RenderGraph) flushImages() {
	d := g.device
	for _, buf := range g.buffers {
		for name, w := range buf.images {
			buf.retire(func() {
				d.DestroyImageView(w.View)
				d.DestroyImage(w.Image)
			})
			delete(buf.images, name)
		}
	}
}
