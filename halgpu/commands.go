// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
)

// CommandBuffer is the command buffer handed to record callbacks.
//
// It owns one hal command encoder that is reset and reused every time the
// render graph begins recording.
type CommandBuffer struct {
	label   string
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
	pass    hal.RenderPassEncoder
	width   uint32
	height  uint32
}

// Encoder returns the hal command encoder. Compute tasks begin their own
// compute passes on it.
func (c *CommandBuffer) Encoder() hal.CommandEncoder { return c.encoder }

// RenderPass returns the active render pass encoder, or nil outside a
// graphics task.
func (c *CommandBuffer) RenderPass() hal.RenderPassEncoder { return c.pass }

// Finished returns the last encoded hal command buffer.
func (c *CommandBuffer) Finished() hal.CommandBuffer { return c.cmd }

func commandBuffer(cmd rendergraph.CommandBuffer) (*CommandBuffer, error) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok {
		return nil, fmt.Errorf("%w: command buffer %T", ErrForeignHandle, cmd)
	}
	return cb, nil
}

// AllocateCommandBuffer implements rendergraph.Device.
func (d *Device) AllocateCommandBuffer(label string) (rendergraph.CommandBuffer, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create command encoder %q: %w", label, err)
	}
	return &CommandBuffer{label: label, encoder: encoder}, nil
}

// FreeCommandBuffer implements rendergraph.Device.
func (d *Device) FreeCommandBuffer(cmd rendergraph.CommandBuffer) {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb.encoder == nil {
		return
	}
	if cb.cmd != nil {
		d.device.FreeCommandBuffer(cb.cmd)
		cb.cmd = nil
	}
	cb.encoder.Destroy()
	cb.encoder = nil
}

// BeginCommandBuffer implements rendergraph.Device.
func (d *Device) BeginCommandBuffer(cmd rendergraph.CommandBuffer) error {
	cb, err := commandBuffer(cmd)
	if err != nil {
		return err
	}
	if cb.cmd != nil {
		cb.encoder.ResetAll([]hal.CommandBuffer{cb.cmd})
		cb.cmd = nil
	}
	if err := cb.encoder.BeginEncoding(cb.label); err != nil {
		return fmt.Errorf("halgpu: begin encoding %q: %w", cb.label, err)
	}
	return nil
}

// EndCommandBuffer implements rendergraph.Device.
func (d *Device) EndCommandBuffer(cmd rendergraph.CommandBuffer) error {
	cb, err := commandBuffer(cmd)
	if err != nil {
		return err
	}
	if cb.pass != nil {
		cb.encoder.DiscardEncoding()
		cb.pass = nil
		return fmt.Errorf("halgpu: end encoding %q inside a render pass", cb.label)
	}
	finished, err := cb.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("halgpu: end encoding %q: %w", cb.label, err)
	}
	cb.cmd = finished
	return nil
}

// BeginRenderPass implements rendergraph.Device.
func (d *Device) BeginRenderPass(cmd rendergraph.CommandBuffer, info *rendergraph.RenderPassBeginInfo) error {
	cb, err := commandBuffer(cmd)
	if err != nil {
		return err
	}
	fb, ok := info.Framebuffer.(*framebuffer)
	if !ok {
		return fmt.Errorf("%w: framebuffer %T", ErrForeignHandle, info.Framebuffer)
	}
	if rp, ok := info.RenderPass.(*renderPass); !ok || rp != fb.pass {
		return fmt.Errorf("halgpu: framebuffer used with another render pass in %q", cb.label)
	}

	desc := fb.pass.desc
	rpDesc := &hal.RenderPassDescriptor{Label: desc.Label}
	for i, a := range desc.ColorAttachments {
		var cv gputypes.Color
		if i < len(info.ClearColors) {
			cv = info.ClearColors[i]
		}
		rpDesc.ColorAttachments = append(rpDesc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       fb.views[i],
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: cv,
		})
	}
	if a := desc.DepthAttachment; a != nil {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            fb.views[len(desc.ColorAttachments)],
			DepthLoadOp:     a.LoadOp,
			DepthStoreOp:    a.StoreOp,
			DepthClearValue: info.ClearDepth,
		}
		if a.Format.HasStencil() {
			ds.StencilLoadOp = a.LoadOp
			ds.StencilStoreOp = a.StoreOp
			ds.StencilClearValue = info.ClearStencil
		}
		rpDesc.DepthStencilAttachment = ds
	}

	cb.pass = cb.encoder.BeginRenderPass(rpDesc)
	cb.width, cb.height = info.Width, info.Height
	cb.pass.SetViewport(0, 0, float32(info.Width), float32(info.Height), 0, 1)
	return nil
}

// EndRenderPass implements rendergraph.Device.
func (d *Device) EndRenderPass(cmd rendergraph.CommandBuffer) error {
	cb, err := commandBuffer(cmd)
	if err != nil {
		return err
	}
	if cb.pass == nil {
		return fmt.Errorf("%w: %q", ErrNoRenderPass, cb.label)
	}
	cb.pass.End()
	cb.pass = nil
	return nil
}
