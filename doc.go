// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendergraph builds and runs render graphs for real-time GPU
// rendering.
//
// # Overview
//
// A render graph is declared as a set of named tasks. Each task writes
// named outputs (color attachments, an optional depth attachment, buffers)
// and depends on other tasks or on their outputs by name. From the
// declarations the Builder derives an execution order, groups tasks into
// batches, allocates render passes, framebuffers and graph-internal images
// with the right load/store ops and layouts, and produces a RenderGraph
// that is run once per frame.
//
// Declarations may change between frames. Build reconciles the new
// declarations against the existing graph and only recreates the GPU
// objects of tasks that were added, updated or whose attachment semantics
// changed. Unaffected tasks keep their render passes and framebuffers.
//
// # Quick Start
//
//	b := rendergraph.NewBuilder(dev)
//	b.SetOutputChain(chain)
//	b.SetOutput("backbuffer")
//
//	b.AddTask(rendergraph.TaskInfo{
//	    Name:   "gbuffer",
//	    Colors: []rendergraph.ColorOutput{{Name: "albedo", Format: gputypes.TextureFormatRGBA8Unorm}},
//	    Handler: gbufferHandler,
//	})
//	b.AddTask(rendergraph.TaskInfo{
//	    Name:         "lighting",
//	    Dependencies: []string{"albedo"},
//	    Colors:       []rendergraph.ColorOutput{{Name: "backbuffer"}},
//	    Handler:      lightingHandler,
//	})
//
//	g, err := b.Build()
//	...
//	for frame := range frames {
//	    if err := g.Run(frame.ImageIndex); err != nil { ... }
//	}
//
// # Devices
//
// The graph talks to the GPU only through the Device interface. Package
// halgpu implements it over gogpu/wgpu hal devices; tests use in-memory
// fakes.
//
// # Synchronization
//
// Each batch signals a semaphore on completion; a batch waits on the
// semaphores of the batches holding its direct dependencies. Each
// frame-in-flight buffer owns a fence attached to its last submission, and
// Run waits on it before reusing the buffer. Builder and RenderGraph are
// not safe for concurrent use.
package rendergraph
