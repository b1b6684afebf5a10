// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph"
)

func TestRenderGraphOnNoop(t *testing.T) {
	d := openNoop(t)
	chain, err := d.NewOffscreenChain(2, gputypes.TextureFormatBGRA8Unorm, 32, 32)
	if err != nil {
		t.Fatalf("NewOffscreenChain: %v", err)
	}
	defer chain.Destroy()

	b := rendergraph.NewBuilder(d, rendergraph.WithFramesInFlight(2))
	defer b.Release()
	b.SetOutputChain(chain.OutputChain)
	b.SetOutput("output")

	var draws int
	draw := rendergraph.TaskFuncs[*int]{
		Context: &draws,
		OnRecord: func(cmd rendergraph.CommandBuffer, _ int, n *int) error {
			cmd.(*CommandBuffer).RenderPass().Draw(3, 1, 0, 0)
			*n++
			return nil
		},
	}
	color := func(name string) rendergraph.ColorOutput {
		return rendergraph.ColorOutput{Name: name, Format: gputypes.TextureFormatRGBA8Unorm}
	}
	tasks := []rendergraph.TaskInfo{
		{Name: "task1", Colors: []rendergraph.ColorOutput{color("resource1")}, Handler: draw},
		{Name: "task2", Colors: []rendergraph.ColorOutput{color("output")}, Dependencies: []string{"resource1"}, Handler: draw},
		{Name: "task3", Kind: rendergraph.Compute, Buffers: []rendergraph.BufferOutput{
			{Name: "resource2", Size: 256, Usage: gputypes.BufferUsageStorage},
		}},
		{Name: "task4", Colors: []rendergraph.ColorOutput{color("output")}, Dependencies: []string{"resource2", "task2"}, Handler: draw},
		{Name: "task5", Colors: []rendergraph.ColorOutput{color("output")}, Dependencies: []string{"task2"}, Handler: draw},
	}
	for _, info := range tasks {
		if err := b.AddTask(info); err != nil {
			t.Fatalf("AddTask(%q): %v", info.Name, err)
		}
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// task2 signals one semaphore that task4 and task5 both wait on.
	for frame := 0; frame < 4; frame++ {
		if err := g.Run(frame % chain.Len()); err != nil {
			t.Fatalf("Run frame %d: %v", frame, err)
		}
	}
	if draws != 4*4 {
		t.Errorf("draws = %d, want 16", draws)
	}

	if err := b.RemoveTask("task5"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build after remove: %v", err)
	}
	for frame := 0; frame < 2; frame++ {
		if err := g.Run(frame); err != nil {
			t.Fatalf("Run after remove: %v", err)
		}
	}
	if len(g.Batches(0)) != 4 {
		t.Errorf("batches = %d, want 4", len(g.Batches(0)))
	}
}
