// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func openNoop(t *testing.T) hal.Device {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
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
	return openDev.Device
}

// skipUnsupported skips when naga lacks a feature the shader uses.
func skipUnsupported(t *testing.T, err error) {
	t.Helper()
	msg := err.Error()
	if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "lowering error") {
		t.Skipf("Skipping: naga feature not yet implemented: %v", err)
	}
}

func TestCompileToSPIRV(t *testing.T) {
	for name, src := range Sources() {
		t.Run(name, func(t *testing.T) {
			code, err := CompileToSPIRV(src)
			if err != nil {
				skipUnsupported(t, err)
				t.Fatalf("CompileToSPIRV: %v", err)
			}
			if len(code) < 5 {
				t.Fatalf("SPIR-V has %d words", len(code))
			}
			if code[0] != 0x07230203 {
				t.Errorf("magic = %#x, want 0x07230203", code[0])
			}
		})
	}
}

func TestCompileToSPIRVError(t *testing.T) {
	if _, err := CompileToSPIRV("fn broken( {"); err == nil {
		t.Error("invalid WGSL compiled")
	}
}

func TestLibraryCachesModules(t *testing.T) {
	device := openNoop(t)
	lib := NewLibrary(device, Sources())
	defer lib.Destroy()

	m1, err := lib.Module(Fullscreen)
	if err != nil {
		skipUnsupported(t, err)
		t.Fatalf("Module: %v", err)
	}
	m2, err := lib.Module(Fullscreen)
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if m1 != m2 {
		t.Error("module compiled twice")
	}
	if _, err := lib.Module("missing"); err == nil {
		t.Error("unknown shader resolved")
	}
}

func TestPipelines(t *testing.T) {
	device := openNoop(t)
	lib := NewLibrary(device, Sources())
	defer lib.Destroy()

	fs, err := lib.Module(Fullscreen)
	if err != nil {
		skipUnsupported(t, err)
		t.Fatalf("Module: %v", err)
	}
	rp, err := NewRenderPipeline(device, "main", fs,
		[]gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm}, gputypes.TextureFormatDepth32Float)
	if err != nil {
		t.Fatalf("NewRenderPipeline: %v", err)
	}
	if rp.Render == nil || rp.Compute != nil {
		t.Errorf("render pipelines = %+v", rp)
	}
	rp.Destroy()
	rp.Destroy()

	cs, err := lib.Module(Cull)
	if err != nil {
		skipUnsupported(t, err)
		t.Fatalf("Module: %v", err)
	}
	cp, err := NewComputePipeline(device, "cull", cs, "cs_main")
	if err != nil {
		t.Fatalf("NewComputePipeline: %v", err)
	}
	if cp.Compute == nil {
		t.Error("compute pipeline is nil")
	}
	cp.Destroy()

	var nilPipelines *Pipelines
	nilPipelines.Destroy()
}
