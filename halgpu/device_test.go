// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendergraph"
)

// openNoop opens a device on the noop backend.
func openNoop(t *testing.T) *Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	t.Cleanup(instance.Destroy)

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("noop backend exposes no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(openDev.Device.Destroy)
	return New(openDev.Device, openDev.Queue)
}

func colorPass(t *testing.T, d *Device, n int) rendergraph.RenderPass {
	t.Helper()
	desc := &rendergraph.RenderPassDescriptor{Label: "pass"}
	for i := 0; i < n; i++ {
		desc.ColorAttachments = append(desc.ColorAttachments, rendergraph.AttachmentDescription{
			Name:    "c",
			Format:  gputypes.TextureFormatRGBA8Unorm,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		})
	}
	rp, err := d.CreateRenderPass(desc)
	if err != nil {
		t.Fatalf("CreateRenderPass: %v", err)
	}
	return rp
}

func TestFramebufferAttachmentCount(t *testing.T) {
	d := openNoop(t)
	rp := colorPass(t, d, 2)

	img, err := d.CreateImage(&rendergraph.ImageDescriptor{
		Label:  "img",
		Format: gputypes.TextureFormatRGBA8Unorm,
		Extent: gputypes.Extent3D{Width: 4, Height: 4},
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	view, err := d.CreateImageView(img, &rendergraph.ImageViewDescriptor{Format: gputypes.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateImageView: %v", err)
	}

	_, err = d.CreateFramebuffer(&rendergraph.FramebufferDescriptor{
		RenderPass:  rp,
		Attachments: []rendergraph.ImageView{view},
	})
	if !errors.Is(err, rendergraph.ErrAttachmentCount) {
		t.Errorf("CreateFramebuffer error = %v, want ErrAttachmentCount", err)
	}

	fb, err := d.CreateFramebuffer(&rendergraph.FramebufferDescriptor{
		RenderPass:  rp,
		Attachments: []rendergraph.ImageView{view, view},
		Width:       4,
		Height:      4,
	})
	if err != nil || fb == nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
}

func TestForeignHandles(t *testing.T) {
	d := openNoop(t)

	if _, err := d.CreateImageView("not an image", &rendergraph.ImageViewDescriptor{}); !errors.Is(err, ErrForeignHandle) {
		t.Errorf("CreateImageView error = %v, want ErrForeignHandle", err)
	}
	if err := d.BeginCommandBuffer(42); !errors.Is(err, ErrForeignHandle) {
		t.Errorf("BeginCommandBuffer error = %v, want ErrForeignHandle", err)
	}
	if err := d.ResetFence(struct{}{}); !errors.Is(err, ErrForeignHandle) {
		t.Errorf("ResetFence error = %v, want ErrForeignHandle", err)
	}
}

func TestRecordAndSubmit(t *testing.T) {
	d := openNoop(t)
	chain, err := d.NewOffscreenChain(1, gputypes.TextureFormatBGRA8Unorm, 8, 8)
	if err != nil {
		t.Fatalf("NewOffscreenChain: %v", err)
	}
	defer chain.Destroy()

	rp := colorPass(t, d, 1)
	fb, err := d.CreateFramebuffer(&rendergraph.FramebufferDescriptor{
		RenderPass:  rp,
		Attachments: []rendergraph.ImageView{chain.Views[0]},
		Width:       8,
		Height:      8,
	})
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}

	cmd, err := d.AllocateCommandBuffer("test")
	if err != nil {
		t.Fatalf("AllocateCommandBuffer: %v", err)
	}
	defer d.FreeCommandBuffer(cmd)

	sem, _ := d.CreateSemaphore()
	fence, _ := d.CreateFence(false)

	if err := d.WaitFence(fence); !errors.Is(err, ErrFenceNotSubmitted) {
		t.Errorf("WaitFence on unsubmitted fence = %v, want ErrFenceNotSubmitted", err)
	}

	for frame := 0; frame < 2; frame++ {
		if err := d.BeginCommandBuffer(cmd); err != nil {
			t.Fatalf("BeginCommandBuffer: %v", err)
		}
		err := d.BeginRenderPass(cmd, &rendergraph.RenderPassBeginInfo{
			RenderPass:  rp,
			Framebuffer: fb,
			Width:       8,
			Height:      8,
			ClearColors: []gputypes.Color{{R: 1, A: 1}},
		})
		if err != nil {
			t.Fatalf("BeginRenderPass: %v", err)
		}
		cb := cmd.(*CommandBuffer)
		if cb.RenderPass() == nil {
			t.Fatal("RenderPass() is nil inside a render pass")
		}
		cb.RenderPass().Draw(3, 1, 0, 0)
		if err := d.EndRenderPass(cmd); err != nil {
			t.Fatalf("EndRenderPass: %v", err)
		}
		if err := d.EndCommandBuffer(cmd); err != nil {
			t.Fatalf("EndCommandBuffer: %v", err)
		}

		err = d.Submit(&rendergraph.SubmitInfo{
			CommandBuffers: []rendergraph.CommandBuffer{cmd},
			Signals:        []rendergraph.Semaphore{sem},
			Fence:          fence,
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if err := d.WaitFence(fence); err != nil {
			t.Fatalf("WaitFence: %v", err)
		}
		if err := d.ResetFence(fence); err != nil {
			t.Fatalf("ResetFence: %v", err)
		}
	}

	if got := d.HalQueue().PollCompleted(); got != 2 {
		t.Errorf("completed submissions = %d, want 2", got)
	}
}

func TestSubmitRejectsUnsignaledWait(t *testing.T) {
	d := openNoop(t)
	sem, _ := d.CreateSemaphore()

	err := d.Submit(&rendergraph.SubmitInfo{
		Waits: []rendergraph.SemaphoreWait{{Semaphore: sem, Stage: rendergraph.StageAllGraphics}},
	})
	if !errors.Is(err, ErrUnsignaledSemaphore) {
		t.Errorf("Submit error = %v, want ErrUnsignaledSemaphore", err)
	}
}

func TestEndRenderPassOutsidePass(t *testing.T) {
	d := openNoop(t)
	cmd, err := d.AllocateCommandBuffer("idle")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.EndRenderPass(cmd); !errors.Is(err, ErrNoRenderPass) {
		t.Errorf("EndRenderPass error = %v, want ErrNoRenderPass", err)
	}
}

// plainProvider satisfies gpucontext.DeviceProvider without HAL accessors.
type plainProvider struct{}

func (plainProvider) Device() gpucontext.Device   { return nil }
func (plainProvider) Queue() gpucontext.Queue     { return nil }
func (plainProvider) Adapter() gpucontext.Adapter { return nil }
func (plainProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{}
}
func (plainProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}

// halProvider adds the HAL accessors a gogpu host exposes.
type halProvider struct {
	plainProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestFromProviderRequiresHal(t *testing.T) {
	if _, err := FromProvider(plainProvider{}); err == nil {
		t.Error("FromProvider accepted a provider without HAL accessors")
	}

	d := openNoop(t)
	got, err := FromProvider(halProvider{plainProvider{}, d.HalDevice(), d.HalQueue()})
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	if got.HalDevice() != d.HalDevice() {
		t.Error("FromProvider did not adopt the provider's device")
	}
}
