// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"github.com/gogpu/gputypes"
)

// Handle types are opaque tokens created and interpreted by a Device.
// The render graph stores and passes them back but never inspects them.
type (
	// RenderPass describes attachment formats, load/store ops and layouts.
	RenderPass interface{}

	// Framebuffer binds concrete image views to a RenderPass.
	Framebuffer interface{}

	// Image is a GPU image allocation.
	Image interface{}

	// ImageView is a view onto an Image usable as an attachment.
	ImageView interface{}

	// Buffer is a GPU buffer allocation.
	Buffer interface{}

	// Semaphore orders one submission after another on the GPU.
	Semaphore interface{}

	// Fence signals the CPU that a submission completed.
	Fence interface{}

	// CommandBuffer records GPU commands.
	CommandBuffer interface{}
)

// Device is the GPU abstraction consumed by the render graph.
//
// The render graph owns every object it creates through Device and destroys
// it through the matching Destroy method. Memory allocation, queue
// ownership and pipeline construction stay with the implementation.
//
// See the halgpu package for an implementation over gogpu/wgpu hal devices.
type Device interface {
	CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)

	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateImage(desc *ImageDescriptor) (Image, error)
	DestroyImage(img Image)
	CreateImageView(img Image, desc *ImageViewDescriptor) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	DestroyBuffer(buf Buffer)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sem Semaphore)

	// CreateFence creates a fence, already signaled if signaled is true.
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(fence Fence)
	// WaitFence blocks until the fence is signaled. There is no timeout.
	WaitFence(fence Fence) error
	ResetFence(fence Fence) error

	AllocateCommandBuffer(label string) (CommandBuffer, error)
	FreeCommandBuffer(cmd CommandBuffer)
	BeginCommandBuffer(cmd CommandBuffer) error
	EndCommandBuffer(cmd CommandBuffer) error
	BeginRenderPass(cmd CommandBuffer, info *RenderPassBeginInfo) error
	EndRenderPass(cmd CommandBuffer) error

	// Submit queues the command buffers on the single graphics queue.
	Submit(info *SubmitInfo) error
}

// ImageLayout is the memory layout of an image at a point of use.
type ImageLayout uint8

const (
	// LayoutUndefined discards previous contents.
	LayoutUndefined ImageLayout = iota
	// LayoutColorAttachment is optimal for color attachment writes.
	LayoutColorAttachment
	// LayoutDepthStencilAttachment is optimal for depth/stencil writes.
	LayoutDepthStencilAttachment
	// LayoutShaderReadOnly is optimal for sampling in shaders.
	LayoutShaderReadOnly
	// LayoutPresent is required by the presentation engine.
	LayoutPresent
	// LayoutGeneral supports all access types.
	LayoutGeneral
)

// String returns the layout name.
func (l ImageLayout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutColorAttachment:
		return "ColorAttachment"
	case LayoutDepthStencilAttachment:
		return "DepthStencilAttachment"
	case LayoutShaderReadOnly:
		return "ShaderReadOnly"
	case LayoutPresent:
		return "Present"
	case LayoutGeneral:
		return "General"
	default:
		return "Unknown"
	}
}

// PipelineStage is a set of pipeline stages used for synchronization.
type PipelineStage uint32

// Pipeline stages.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageEarlyFragmentTests
	StageFragmentShader
	StageColorAttachmentOutput
	StageComputeShader
	StageAllGraphics
	StageBottomOfPipe
)

// Access is a set of memory access types used for synchronization.
type Access uint32

// Memory access types.
const (
	AccessShaderRead Access = 1 << iota
	AccessShaderWrite
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentWrite
)

// AttachmentDescription describes one render pass attachment.
type AttachmentDescription struct {
	Name    string
	Format  gputypes.TextureFormat
	LoadOp  gputypes.LoadOp
	StoreOp gputypes.StoreOp

	InitialLayout ImageLayout
	// Layout is the layout during the subpass.
	Layout      ImageLayout
	FinalLayout ImageLayout
}

// SubpassDependency is the barrier between work outside the render pass
// and its only subpass.
type SubpassDependency struct {
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// RenderPassDescriptor describes a single-subpass render pass.
type RenderPassDescriptor struct {
	Label string

	ColorAttachments []AttachmentDescription
	DepthAttachment  *AttachmentDescription

	// Dependency orders the subpass after external work.
	Dependency SubpassDependency
}

// AttachmentCount returns the number of attachments including depth.
func (d *RenderPassDescriptor) AttachmentCount() int {
	n := len(d.ColorAttachments)
	if d.DepthAttachment != nil {
		n++
	}
	return n
}

// FramebufferDescriptor describes a framebuffer. Attachments are ordered
// color attachments first, then depth.
type FramebufferDescriptor struct {
	Label       string
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

// ImageDescriptor describes a graph-internal image.
type ImageDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Extent gputypes.Extent3D
	Usage  gputypes.TextureUsage
}

// ImageViewDescriptor describes a view onto an image.
type ImageViewDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Aspect gputypes.TextureAspect
}

// BufferDescriptor describes a graph-internal buffer.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// RenderPassBeginInfo starts a render pass on a command buffer.
type RenderPassBeginInfo struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Width       uint32
	Height      uint32

	// ClearColors has one entry per color attachment.
	ClearColors  []gputypes.Color
	ClearDepth   float32
	ClearStencil uint32
}

// SemaphoreWait makes a submission wait on a semaphore at a pipeline stage.
type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStage
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Waits          []SemaphoreWait
	Signals        []Semaphore
	// Fence, if non-nil, is signaled once the submission completes.
	Fence Fence
}
