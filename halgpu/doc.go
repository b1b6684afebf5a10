// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu implements rendergraph.Device on top of a gogpu/wgpu hal
// device and queue.
//
// WebGPU has no render pass or framebuffer objects, so both are kept as
// plain descriptions and turned into a hal.RenderPassDescriptor when a
// render pass begins. The hal queue executes submissions in order;
// semaphores only track which submission signaled them, and fences wait on
// the queue's completed submission index.
//
// A Device is usually obtained from the host application through
// FromProvider:
//
//	dev, err := halgpu.FromProvider(provider)
//	if err != nil {
//	    return err
//	}
//	b := rendergraph.NewBuilder(dev)
//
// Record callbacks receive a *CommandBuffer and draw through its
// RenderPass or Encoder accessors.
package halgpu
