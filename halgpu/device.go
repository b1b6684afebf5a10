// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
)

var (
	// ErrForeignHandle is returned when a handle was not created by this package.
	ErrForeignHandle = errors.New("halgpu: handle not created by halgpu")

	// ErrUnsignaledSemaphore is returned by Submit when a wait names a
	// semaphore no earlier submission signals.
	ErrUnsignaledSemaphore = errors.New("halgpu: wait on unsignaled semaphore")

	// ErrFenceNotSubmitted is returned by WaitFence for a reset fence that
	// was never attached to a submission.
	ErrFenceNotSubmitted = errors.New("halgpu: fence not submitted")

	// ErrNoRenderPass is returned when a render pass operation is issued
	// outside a render pass.
	ErrNoRenderPass = errors.New("halgpu: no active render pass")
)

// Device implements rendergraph.Device over a hal device and queue.
// It does not own them; Destroy is left to the caller.
type Device struct {
	device hal.Device
	queue  hal.Queue

	// lastSubmission is the index returned by the most recent queue submit.
	lastSubmission uint64

	// Fence polling bounds.
	pollInitial time.Duration
	pollMax     time.Duration
}

var _ rendergraph.Device = (*Device)(nil)

// New returns a Device submitting to queue.
func New(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:      device,
		queue:       queue,
		pollInitial: 50 * time.Microsecond,
		pollMax:     2 * time.Millisecond,
	}
}

// FromProvider adopts the device of a host application. The provider must
// implement HalDevice() any and HalQueue() any returning hal.Device and
// hal.Queue.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("halgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("halgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("halgpu: provider HalQueue is not hal.Queue")
	}
	slogger().Info("halgpu: using shared GPU device", "format", provider.SurfaceFormat().String())
	return New(device, queue), nil
}

// SetLogger is called by rendergraph.SetLogger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// HalDevice returns the underlying hal device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the underlying hal queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// renderPass is a stored render pass description.
type renderPass struct {
	desc rendergraph.RenderPassDescriptor
}

// framebuffer pairs a render pass with its attachment views.
type framebuffer struct {
	pass          *renderPass
	views         []hal.TextureView
	width, height uint32
}

// Image wraps a hal texture.
type Image struct {
	Texture hal.Texture
	format  gputypes.TextureFormat
}

// ImageView wraps a hal texture view.
type ImageView struct {
	View hal.TextureView
	// owned views are destroyed by DestroyImageView.
	owned bool
}

// WrapView wraps an externally owned hal texture view, e.g. a swapchain
// image, for use in a rendergraph.OutputChain. DestroyImageView leaves
// wrapped views alone.
func WrapView(view hal.TextureView) *ImageView {
	return &ImageView{View: view}
}

// Buffer wraps a hal buffer.
type Buffer struct {
	Buffer hal.Buffer
}

// CreateRenderPass implements rendergraph.Device.
func (d *Device) CreateRenderPass(desc *rendergraph.RenderPassDescriptor) (rendergraph.RenderPass, error) {
	rp := &renderPass{desc: *desc}
	rp.desc.ColorAttachments = append([]rendergraph.AttachmentDescription(nil), desc.ColorAttachments...)
	if desc.DepthAttachment != nil {
		depth := *desc.DepthAttachment
		rp.desc.DepthAttachment = &depth
	}
	return rp, nil
}

// DestroyRenderPass implements rendergraph.Device.
func (d *Device) DestroyRenderPass(rendergraph.RenderPass) {}

// CreateFramebuffer implements rendergraph.Device.
func (d *Device) CreateFramebuffer(desc *rendergraph.FramebufferDescriptor) (rendergraph.Framebuffer, error) {
	rp, ok := desc.RenderPass.(*renderPass)
	if !ok {
		return nil, fmt.Errorf("%w: render pass %T", ErrForeignHandle, desc.RenderPass)
	}
	if len(desc.Attachments) != rp.desc.AttachmentCount() {
		return nil, fmt.Errorf("%w: framebuffer %q has %d views, render pass expects %d",
			rendergraph.ErrAttachmentCount, desc.Label, len(desc.Attachments), rp.desc.AttachmentCount())
	}
	fb := &framebuffer{pass: rp, width: desc.Width, height: desc.Height}
	for _, a := range desc.Attachments {
		v, ok := a.(*ImageView)
		if !ok {
			return nil, fmt.Errorf("%w: image view %T", ErrForeignHandle, a)
		}
		fb.views = append(fb.views, v.View)
	}
	return fb, nil
}

// DestroyFramebuffer implements rendergraph.Device.
func (d *Device) DestroyFramebuffer(rendergraph.Framebuffer) {}

// CreateImage implements rendergraph.Device.
func (d *Device) CreateImage(desc *rendergraph.ImageDescriptor) (rendergraph.Image, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Extent.Width,
			Height:             desc.Extent.Height,
			DepthOrArrayLayers: max(desc.Extent.DepthOrArrayLayers, 1),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create texture %q: %w", desc.Label, err)
	}
	slogger().Debug("halgpu: texture created", "label", desc.Label,
		"width", desc.Extent.Width, "height", desc.Extent.Height, "format", desc.Format.String())
	return &Image{Texture: tex, format: desc.Format}, nil
}

// DestroyImage implements rendergraph.Device.
func (d *Device) DestroyImage(img rendergraph.Image) {
	if i, ok := img.(*Image); ok && i.Texture != nil {
		d.device.DestroyTexture(i.Texture)
		i.Texture = nil
	}
}

// CreateImageView implements rendergraph.Device.
func (d *Device) CreateImageView(img rendergraph.Image, desc *rendergraph.ImageViewDescriptor) (rendergraph.ImageView, error) {
	i, ok := img.(*Image)
	if !ok {
		return nil, fmt.Errorf("%w: image %T", ErrForeignHandle, img)
	}
	view, err := d.device.CreateTextureView(i.Texture, &hal.TextureViewDescriptor{
		Label:     desc.Label,
		Format:    desc.Format,
		Dimension: gputypes.TextureViewDimension2D,
		Aspect:    desc.Aspect,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create texture view %q: %w", desc.Label, err)
	}
	return &ImageView{View: view, owned: true}, nil
}

// DestroyImageView implements rendergraph.Device.
func (d *Device) DestroyImageView(view rendergraph.ImageView) {
	if v, ok := view.(*ImageView); ok && v.owned && v.View != nil {
		d.device.DestroyTextureView(v.View)
		v.View = nil
	}
}

// CreateBuffer implements rendergraph.Device.
func (d *Device) CreateBuffer(desc *rendergraph.BufferDescriptor) (rendergraph.Buffer, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create buffer %q: %w", desc.Label, err)
	}
	return &Buffer{Buffer: buf}, nil
}

// DestroyBuffer implements rendergraph.Device.
func (d *Device) DestroyBuffer(buf rendergraph.Buffer) {
	if b, ok := buf.(*Buffer); ok && b.Buffer != nil {
		d.device.DestroyBuffer(b.Buffer)
		b.Buffer = nil
	}
}
