// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL through naga and creates the hal pipelines
// used by the demo tasks.
package shader

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// CompileToSPIRV compiles WGSL source to SPIR-V words.
func CompileToSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// Library compiles each named WGSL source once and hands out shader
// modules created from it. It is safe for concurrent use.
type Library struct {
	device  hal.Device
	sources map[string]string

	mu      sync.Mutex
	modules map[string]hal.ShaderModule
}

// NewLibrary returns a library over the given named sources.
func NewLibrary(device hal.Device, sources map[string]string) *Library {
	return &Library{
		device:  device,
		sources: sources,
		modules: make(map[string]hal.ShaderModule),
	}
}

// Module returns the shader module called name, compiling it on first use.
func (l *Library) Module(name string) (hal.ShaderModule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, ok := l.modules[name]; ok {
		return m, nil
	}
	src, ok := l.sources[name]
	if !ok {
		return nil, fmt.Errorf("shader: unknown shader %q", name)
	}
	code, err := CompileToSPIRV(src)
	if err != nil {
		return nil, fmt.Errorf("shader %q: %w", name, err)
	}
	m, err := l.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return nil, fmt.Errorf("shader: create module %q: %w", name, err)
	}
	l.modules[name] = m
	return m, nil
}

// Destroy destroys every module created by the library.
func (l *Library) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, m := range l.modules {
		l.device.DestroyShaderModule(m)
		delete(l.modules, name)
	}
}

// Pipelines owns the pipelines and layout of one task.
type Pipelines struct {
	device  hal.Device
	layout  hal.PipelineLayout
	Render  hal.RenderPipeline
	Compute hal.ComputePipeline
}

// NewRenderPipeline creates a fullscreen pipeline drawing vs_main and
// fs_main of module into targets. depth may be Undefined.
func NewRenderPipeline(device hal.Device, label string, module hal.ShaderModule, targets []gputypes.TextureFormat, depth gputypes.TextureFormat) (*Pipelines, error) {
	p := &Pipelines{device: device}
	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("shader: create pipeline layout %q: %w", label, err)
	}
	p.layout = layout

	colorTargets := make([]gputypes.ColorTargetState, len(targets))
	for i, f := range targets {
		colorTargets[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    colorTargets,
		},
	}
	if depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}
	p.Render, err = device.CreateRenderPipeline(desc)
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shader: create render pipeline %q: %w", label, err)
	}
	return p, nil
}

// NewComputePipeline creates a pipeline running entry of module.
func NewComputePipeline(device hal.Device, label string, module hal.ShaderModule, entry string) (*Pipelines, error) {
	p := &Pipelines{device: device}
	layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("shader: create pipeline layout %q: %w", label, err)
	}
	p.layout = layout
	p.Compute, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: entry},
	})
	if err != nil {
		p.Destroy()
		return nil, fmt.Errorf("shader: create compute pipeline %q: %w", label, err)
	}
	return p, nil
}

// Destroy destroys the pipelines, then the layout. It is safe on nil.
func (p *Pipelines) Destroy() {
	if p == nil || p.device == nil {
		return
	}
	if p.Render != nil {
		p.device.DestroyRenderPipeline(p.Render)
		p.Render = nil
	}
	if p.Compute != nil {
		p.device.DestroyComputePipeline(p.Compute)
		p.Compute = nil
	}
	if p.layout != nil {
		p.device.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}
}
