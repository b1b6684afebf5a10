// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// TaskKind selects how a task is executed.
type TaskKind uint8

const (
	// Graphics tasks render into color and depth attachments inside a render pass.
	Graphics TaskKind = iota
	// Compute tasks record outside any render pass.
	Compute
)

// String returns the kind name.
func (k TaskKind) String() string {
	switch k {
	case Graphics:
		return "graphics"
	case Compute:
		return "compute"
	default:
		return fmt.Sprintf("TaskKind(%d)", uint8(k))
	}
}

// maxAttachments bounds the attachment slots of one render pass state.
const maxAttachments = 32

// ColorOutput declares a color attachment written by a graphics task.
type ColorOutput struct {
	Name   string
	Format gputypes.TextureFormat
	// Extent defaults to the task extent when zero.
	Extent gputypes.Extent3D
	Clear  gputypes.Color
}

// DepthOutput declares the depth/stencil attachment of a graphics task.
type DepthOutput struct {
	Name         string
	Format       gputypes.TextureFormat
	Extent       gputypes.Extent3D
	ClearDepth   float32
	ClearStencil uint32
}

// BufferOutput declares a buffer written by a task.
type BufferOutput struct {
	Name  string
	Size  uint64
	Usage gputypes.BufferUsage
}

// TaskInfo declares one unit of GPU work.
//
// A TaskInfo is immutable once passed to a Builder; UpdateTask replaces it
// wholesale.
type TaskInfo struct {
	Name string
	Kind TaskKind

	Colors  []ColorOutput
	Depth   *DepthOutput
	Buffers []BufferOutput

	// Dependencies name tasks or resources written by other tasks.
	Dependencies []string

	// Extent of the render area. Zero means the output chain extent.
	Extent gputypes.Extent3D

	Handler TaskHandler
}

// attachmentCount returns the number of render pass attachments.
func (t *TaskInfo) attachmentCount() int {
	n := len(t.Colors)
	if t.Depth != nil {
		n++
	}
	return n
}

// attachmentName returns the resource name of attachment slot i.
func (t *TaskInfo) attachmentName(i int) string {
	if i < len(t.Colors) {
		return t.Colors[i].Name
	}
	return t.Depth.Name
}

// outputs returns every declared output name in declaration order.
func (t *TaskInfo) outputs() []string {
	names := make([]string, 0, len(t.Colors)+len(t.Buffers)+1)
	for _, c := range t.Colors {
		names = append(names, c.Name)
	}
	if t.Depth != nil {
		names = append(names, t.Depth.Name)
	}
	for _, b := range t.Buffers {
		names = append(names, b.Name)
	}
	return names
}

func (t *TaskInfo) validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTask)
	}
	switch t.Kind {
	case Graphics:
		if t.attachmentCount() == 0 {
			return fmt.Errorf("%w: graphics task %q has no attachments", ErrInvalidTask, t.Name)
		}
		if t.attachmentCount() > maxAttachments {
			return fmt.Errorf("%w: task %q declares %d, limit is %d",
				ErrTooManyAttachments, t.Name, t.attachmentCount(), maxAttachments)
		}
	case Compute:
		if t.attachmentCount() != 0 {
			return fmt.Errorf("%w: compute task %q declares attachments", ErrInvalidTask, t.Name)
		}
	default:
		return fmt.Errorf("%w: %v in task %q", ErrUnknownTaskKind, t.Kind, t.Name)
	}
	if t.Depth != nil && !t.Depth.Format.IsDepthStencil() {
		return fmt.Errorf("%w: depth output %q of task %q has color format %v",
			ErrInvalidTask, t.Depth.Name, t.Name, t.Depth.Format)
	}

	seen := make(map[string]bool)
	for _, name := range t.outputs() {
		if name == "" {
			return fmt.Errorf("%w: task %q has an unnamed output", ErrInvalidTask, t.Name)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q in task %q", ErrDuplicateOutput, name, t.Name)
		}
		seen[name] = true
	}
	return nil
}

// TaskHandler supplies the caller's side of a task.
type TaskHandler interface {
	// Build is called once each time the task is created or rebuilt, for
	// every frame-in-flight buffer. Pipelines bound to the render pass
	// should be (re)created here.
	Build(bc *BuildContext) error

	// Record is called on every Run with the task's command buffer. For
	// graphics tasks the render pass is already begun.
	Record(cmd CommandBuffer, imageIndex int) error
}

// BuildContext is passed to TaskHandler.Build.
type BuildContext struct {
	// BufferIndex identifies the frame-in-flight buffer being built.
	BufferIndex int
	BufferCount int
	Viewport    Viewport
	// RenderPass is nil for compute tasks.
	RenderPass RenderPass
	// Resources holds the graph-internal resources allocated so far for
	// this frame-in-flight buffer.
	Resources ResourceMap
}

// TaskFuncs adapts a context value and two functions to TaskHandler.
// Either function may be nil.
//
// Example:
//
//	handler := rendergraph.TaskFuncs[*scene]{
//	    Context:  sc,
//	    OnBuild:  func(bc *rendergraph.BuildContext, sc *scene) error { return sc.createPipeline(bc.RenderPass) },
//	    OnRecord: func(cmd rendergraph.CommandBuffer, i int, sc *scene) error { return sc.draw(cmd) },
//	}
type TaskFuncs[C any] struct {
	Context  C
	OnBuild  func(bc *BuildContext, ctx C) error
	OnRecord func(cmd CommandBuffer, imageIndex int, ctx C) error
}

// Build implements TaskHandler.
func (f TaskFuncs[C]) Build(bc *BuildContext) error {
	if f.OnBuild == nil {
		return nil
	}
	return f.OnBuild(bc, f.Context)
}

// Record implements TaskHandler.
func (f TaskFuncs[C]) Record(cmd CommandBuffer, imageIndex int) error {
	if f.OnRecord == nil {
		return nil
	}
	return f.OnRecord(cmd, imageIndex, f.Context)
}

// WriteDescriptor describes a resource written by the graph. It is either
// an ImageWrite or a BufferWrite.
type WriteDescriptor interface {
	resourceName() string
}

// ImageWrite is a graph-internal image resource.
type ImageWrite struct {
	Name   string
	Format gputypes.TextureFormat
	Extent gputypes.Extent3D
	Image  Image
	View   ImageView
}

func (w ImageWrite) resourceName() string { return w.Name }

// BufferWrite is a graph-internal buffer resource.
type BufferWrite struct {
	Name   string
	Size   uint64
	Usage  gputypes.BufferUsage
	Buffer Buffer
}

func (w BufferWrite) resourceName() string { return w.Name }

// ResourceMap maps resource names to their allocations in one
// frame-in-flight buffer.
type ResourceMap map[string]WriteDescriptor

// Image returns the image resource called name.
func (m ResourceMap) Image(name string) (ImageWrite, bool) {
	w, ok := m[name].(ImageWrite)
	return w, ok
}

// Buffer returns the buffer resource called name.
func (m ResourceMap) Buffer(name string) (BufferWrite, bool) {
	w, ok := m[name].(BufferWrite)
	return w, ok
}
