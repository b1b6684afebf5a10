// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command rgdemo builds a render graph from an HCL graph file and runs it
// on the noop GPU backend, removing and re-adding one task mid-run.
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/graphfile"
	"github.com/gogpu/rendergraph/halgpu"
	"github.com/gogpu/rendergraph/internal/shader"
)

//go:embed default.hcl
var defaultGraph []byte

func main() {
	var (
		graphPath      = flag.String("graph", "", "HCL graph file (default: built-in deferred frame)")
		frames         = flag.Int("frames", 8, "frames to run")
		framesInFlight = flag.Int("frames-in-flight", rendergraph.DefaultFramesInFlight, "frame-in-flight buffers")
		chainImages    = flag.Int("chain-images", 3, "output chain images")
		width          = flag.Int("width", 1280, "output width")
		height         = flag.Int("height", 720, "output height")
		toggle         = flag.String("toggle", "ui", "task removed and re-added mid-run")
		verbose        = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	rendergraph.SetLogger(logger)

	if err := run(logger, config{
		graphPath:      *graphPath,
		frames:         *frames,
		framesInFlight: *framesInFlight,
		chainImages:    *chainImages,
		width:          uint32(*width),
		height:         uint32(*height),
		toggle:         *toggle,
	}); err != nil {
		log.Fatalf("rgdemo: %v", err)
	}
}

type config struct {
	graphPath      string
	frames         int
	framesInFlight int
	chainImages    int
	width, height  uint32
	toggle         string
}

func run(logger *slog.Logger, cfg config) error {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer openDev.Device.Destroy()

	dev := halgpu.New(openDev.Device, openDev.Queue)
	chain, err := dev.NewOffscreenChain(cfg.chainImages, gputypes.TextureFormatBGRA8Unorm, cfg.width, cfg.height)
	if err != nil {
		return err
	}
	defer chain.Destroy()

	vars := graphfile.Vars(cfg.width, cfg.height, nil)
	var file *graphfile.File
	if cfg.graphPath != "" {
		file, err = graphfile.Load(cfg.graphPath, vars)
	} else {
		file, err = graphfile.Parse(defaultGraph, "default.hcl", vars)
	}
	if err != nil {
		return err
	}

	lib := shader.NewLibrary(dev.HalDevice(), shader.Sources())
	defer lib.Destroy()
	tasks := &taskSet{device: dev.HalDevice(), lib: lib, file: file, format: chain.Format}
	defer tasks.destroy()

	b := rendergraph.NewBuilder(dev, rendergraph.WithFramesInFlight(cfg.framesInFlight))
	defer b.Release()
	b.SetOutputChain(chain.OutputChain)
	if err := file.Declare(b, tasks.handler); err != nil {
		return err
	}

	g, err := b.Build()
	if err != nil {
		return err
	}
	logger.Info("graph built", "order", g.Order(), "culled", g.Culled(), "batches", len(g.Batches(0)))

	removed, hasToggle := file.Task(cfg.toggle)
	for frame := 0; frame < cfg.frames; frame++ {
		switch {
		case hasToggle && frame == cfg.frames/2:
			if err := b.RemoveTask(cfg.toggle); err != nil {
				return err
			}
			if _, err := b.Build(); err != nil {
				return err
			}
			logger.Info("task removed", "task", cfg.toggle, "frame", frame, "batches", len(g.Batches(0)))
		case hasToggle && frame == cfg.frames*3/4:
			removed.Handler = tasks.handler(removed.Name)
			if err := b.AddTask(removed); err != nil {
				return err
			}
			if _, err := b.Build(); err != nil {
				return err
			}
			logger.Info("task re-added", "task", cfg.toggle, "frame", frame, "batches", len(g.Batches(0)))
		}

		if err := g.Run(frame % chain.Len()); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		logger.Debug("frame submitted", "frame", frame, "graph", g.String())
	}

	logger.Info("done", "frames", cfg.frames, "submissions", dev.HalQueue().PollCompleted())
	return nil
}

// taskSet creates the pipelines of the demo tasks.
type taskSet struct {
	device hal.Device
	lib    *shader.Library
	file   *graphfile.File
	format gputypes.TextureFormat

	// pipelines are kept until exit; a rebuilt task may still have frames
	// in flight using the previous ones.
	pipelines []*shader.Pipelines
}

func (s *taskSet) handler(name string) rendergraph.TaskHandler {
	info, _ := s.file.Task(name)
	return rendergraph.TaskFuncs[*demoTask]{
		Context: &demoTask{info: info},
		OnBuild: func(bc *rendergraph.BuildContext, dt *demoTask) error {
			// Pipelines depend on attachment formats only, so every
			// frame-in-flight buffer shares the one built for buffer 0.
			if bc.BufferIndex != 0 && dt.pipelines != nil {
				return nil
			}
			p, err := s.pipeline(dt.info)
			if err != nil {
				return err
			}
			dt.pipelines = p
			return nil
		},
		OnRecord: func(cmd rendergraph.CommandBuffer, _ int, dt *demoTask) error {
			return dt.record(cmd)
		},
	}
}

func (s *taskSet) pipeline(info rendergraph.TaskInfo) (*shader.Pipelines, error) {
	var (
		p   *shader.Pipelines
		err error
	)
	if info.Kind == rendergraph.Compute {
		module, merr := s.lib.Module(shader.Cull)
		if merr != nil {
			return nil, merr
		}
		p, err = shader.NewComputePipeline(s.device, info.Name, module, "cs_main")
	} else {
		module, merr := s.lib.Module(shader.Fullscreen)
		if merr != nil {
			return nil, merr
		}
		targets := make([]gputypes.TextureFormat, len(info.Colors))
		for i, c := range info.Colors {
			targets[i] = c.Format
			if c.Format == gputypes.TextureFormatUndefined {
				targets[i] = s.format
			}
		}
		depth := gputypes.TextureFormatUndefined
		if info.Depth != nil {
			depth = info.Depth.Format
		}
		p, err = shader.NewRenderPipeline(s.device, info.Name, module, targets, depth)
	}
	if err != nil {
		return nil, err
	}
	s.pipelines = append(s.pipelines, p)
	return p, nil
}

func (s *taskSet) destroy() {
	for _, p := range s.pipelines {
		p.Destroy()
	}
	s.pipelines = nil
}

// demoTask draws a fullscreen triangle or dispatches one workgroup.
type demoTask struct {
	info      rendergraph.TaskInfo
	pipelines *shader.Pipelines
}

func (dt *demoTask) record(cmd rendergraph.CommandBuffer) error {
	cb, ok := cmd.(*halgpu.CommandBuffer)
	if !ok {
		return fmt.Errorf("task %q: unexpected command buffer %T", dt.info.Name, cmd)
	}
	p := dt.pipelines
	if p == nil {
		return fmt.Errorf("task %q: no pipeline", dt.info.Name)
	}

	if dt.info.Kind == rendergraph.Compute {
		pass := cb.Encoder().BeginComputePass(&hal.ComputePassDescriptor{Label: dt.info.Name})
		pass.SetPipeline(p.Compute)
		pass.Dispatch(1, 1, 1)
		pass.End()
		return nil
	}
	pass := cb.RenderPass()
	pass.SetPipeline(p.Render)
	pass.Draw(3, 1, 0, 0)
	return nil
}
