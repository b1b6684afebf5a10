// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graphfile declares render graph tasks from HCL files.
//
// A graph file names the output resource and one block per task:
//
//	output = "swapchain"
//
//	task "shadow" {
//	  extent = [2048, 2048]
//	  depth "shadowmap" {
//	    format = "depth32float"
//	    clear  = 1
//	  }
//	}
//
//	task "cull" {
//	  kind = "compute"
//	  buffer "visible" {
//	    size  = 65536
//	    usage = ["storage", "indirect"]
//	  }
//	}
//
//	task "main" {
//	  depends_on = ["shadowmap", "visible"]
//	  color "swapchain" {
//	    clear = [0.1, 0.1, 0.1, 1]
//	  }
//	}
//
// Expressions may reference chain_width and chain_height, and any variable
// passed to Parse or Load.
package graphfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/gogpu/rendergraph"
)

// ErrInvalidFile is returned for graph files that decode but describe
// tasks that cannot be declared.
var ErrInvalidFile = errors.New("graphfile: invalid graph file")

// HandlerFunc returns the handler of the task called name. Returning nil
// declares the task without callbacks.
type HandlerFunc func(name string) rendergraph.TaskHandler

// File is a decoded graph file.
type File struct {
	Output string
	Tasks  []rendergraph.TaskInfo
}

type fileSchema struct {
	Output string       `hcl:"output"`
	Tasks  []taskSchema `hcl:"task,block"`
}

type taskSchema struct {
	Name      string         `hcl:"name,label"`
	Kind      string         `hcl:"kind,optional"`
	Extent    []uint32       `hcl:"extent,optional"`
	DependsOn []string       `hcl:"depends_on,optional"`
	Colors    []colorSchema  `hcl:"color,block"`
	Depth     *depthSchema   `hcl:"depth,block"`
	Buffers   []bufferSchema `hcl:"buffer,block"`
}

type colorSchema struct {
	Name   string    `hcl:"name,label"`
	Format string    `hcl:"format,optional"`
	Extent []uint32  `hcl:"extent,optional"`
	Clear  []float64 `hcl:"clear,optional"`
}

type depthSchema struct {
	Name    string   `hcl:"name,label"`
	Format  string   `hcl:"format"`
	Extent  []uint32 `hcl:"extent,optional"`
	Clear   float64  `hcl:"clear,optional"`
	Stencil uint32   `hcl:"stencil,optional"`
}

type bufferSchema struct {
	Name  string   `hcl:"name,label"`
	Size  uint64   `hcl:"size"`
	Usage []string `hcl:"usage,optional"`
}

// Vars returns the standard variables for an output chain of the given
// size, merged with extra.
func Vars(width, height uint32, extra map[string]cty.Value) map[string]cty.Value {
	vars := map[string]cty.Value{
		"chain_width":  cty.NumberUIntVal(uint64(width)),
		"chain_height": cty.NumberUIntVal(uint64(height)),
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

// Load reads and decodes the graph file at path.
func Load(path string, vars map[string]cty.Value) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	return Parse(src, path, vars)
}

// Parse decodes a graph file. filename is only used in diagnostics.
func Parse(src []byte, filename string, vars map[string]cty.Value) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("graphfile: parse %s: %w", filename, diags)
	}

	ctx := &hcl.EvalContext{Variables: vars}
	var fs fileSchema
	if diags := gohcl.DecodeBody(f.Body, ctx, &fs); diags.HasErrors() {
		return nil, fmt.Errorf("graphfile: decode %s: %w", filename, diags)
	}

	out := &File{Output: fs.Output}
	for _, ts := range fs.Tasks {
		info, err := ts.taskInfo(fs.Output)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFile, filename, err)
		}
		out.Tasks = append(out.Tasks, info)
	}
	return out, nil
}

// Declare sets the output of b and adds every task of f, in file order.
func (f *File) Declare(b *rendergraph.Builder, handler HandlerFunc) error {
	b.SetOutput(f.Output)
	for _, info := range f.Tasks {
		if handler != nil {
			info.Handler = handler(info.Name)
		}
		if err := b.AddTask(info); err != nil {
			return err
		}
	}
	return nil
}

// Task returns the task called name.
func (f *File) Task(name string) (rendergraph.TaskInfo, bool) {
	for _, t := range f.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return rendergraph.TaskInfo{}, false
}

func (ts *taskSchema) taskInfo(output string) (rendergraph.TaskInfo, error) {
	info := rendergraph.TaskInfo{Name: ts.Name, Dependencies: ts.DependsOn}

	switch strings.ToLower(ts.Kind) {
	case "", "graphics":
		info.Kind = rendergraph.Graphics
	case "compute":
		info.Kind = rendergraph.Compute
	default:
		return info, fmt.Errorf("task %q: unknown kind %q", ts.Name, ts.Kind)
	}

	var err error
	if info.Extent, err = extent(ts.Extent); err != nil {
		return info, fmt.Errorf("task %q: %w", ts.Name, err)
	}

	for _, c := range ts.Colors {
		out := rendergraph.ColorOutput{Name: c.Name}
		if c.Format != "" || c.Name != output {
			if out.Format, err = ParseFormat(c.Format); err != nil {
				return info, fmt.Errorf("task %q color %q: %w", ts.Name, c.Name, err)
			}
		}
		if out.Extent, err = extent(c.Extent); err != nil {
			return info, fmt.Errorf("task %q color %q: %w", ts.Name, c.Name, err)
		}
		if out.Clear, err = clearColor(c.Clear); err != nil {
			return info, fmt.Errorf("task %q color %q: %w", ts.Name, c.Name, err)
		}
		info.Colors = append(info.Colors, out)
	}

	if d := ts.Depth; d != nil {
		out := &rendergraph.DepthOutput{
			Name:         d.Name,
			ClearDepth:   float32(d.Clear),
			ClearStencil: d.Stencil,
		}
		if out.Format, err = ParseFormat(d.Format); err != nil {
			return info, fmt.Errorf("task %q depth %q: %w", ts.Name, d.Name, err)
		}
		if out.Extent, err = extent(d.Extent); err != nil {
			return info, fmt.Errorf("task %q depth %q: %w", ts.Name, d.Name, err)
		}
		info.Depth = out
	}

	for _, bs := range ts.Buffers {
		usage, err := bufferUsage(bs.Usage)
		if err != nil {
			return info, fmt.Errorf("task %q buffer %q: %w", ts.Name, bs.Name, err)
		}
		info.Buffers = append(info.Buffers, rendergraph.BufferOutput{Name: bs.Name, Size: bs.Size, Usage: usage})
	}
	return info, nil
}

func extent(v []uint32) (gputypes.Extent3D, error) {
	switch len(v) {
	case 0:
		return gputypes.Extent3D{}, nil
	case 2:
		return gputypes.Extent3D{Width: v[0], Height: v[1], DepthOrArrayLayers: 1}, nil
	case 3:
		return gputypes.Extent3D{Width: v[0], Height: v[1], DepthOrArrayLayers: v[2]}, nil
	default:
		return gputypes.Extent3D{}, fmt.Errorf("extent needs 2 or 3 values, got %d", len(v))
	}
}

func clearColor(v []float64) (gputypes.Color, error) {
	switch len(v) {
	case 0:
		return gputypes.Color{A: 1}, nil
	case 3:
		return gputypes.Color{R: v[0], G: v[1], B: v[2], A: 1}, nil
	case 4:
		return gputypes.Color{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
	default:
		return gputypes.Color{}, fmt.Errorf("clear needs 3 or 4 values, got %d", len(v))
	}
}

var bufferUsages = map[string]gputypes.BufferUsage{
	"map_read":      gputypes.BufferUsageMapRead,
	"map_write":     gputypes.BufferUsageMapWrite,
	"copy_src":      gputypes.BufferUsageCopySrc,
	"copy_dst":      gputypes.BufferUsageCopyDst,
	"index":         gputypes.BufferUsageIndex,
	"vertex":        gputypes.BufferUsageVertex,
	"uniform":       gputypes.BufferUsageUniform,
	"storage":       gputypes.BufferUsageStorage,
	"indirect":      gputypes.BufferUsageIndirect,
	"query_resolve": gputypes.BufferUsageQueryResolve,
}

// bufferUsage defaults to storage.
func bufferUsage(names []string) (gputypes.BufferUsage, error) {
	if len(names) == 0 {
		return gputypes.BufferUsageStorage, nil
	}
	var u gputypes.BufferUsage
	for _, n := range names {
		bit, ok := bufferUsages[strings.ToLower(n)]
		if !ok {
			return 0, fmt.Errorf("unknown buffer usage %q", n)
		}
		u |= bit
	}
	return u, nil
}
