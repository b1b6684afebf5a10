// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// RenderPassState is the compact attachment classification of one task:
// per attachment slot, whether the task performs the first and the last
// write of that slot's resource in execution order, and whether the last
// write is stored. Slots are color attachments in declaration order,
// followed by depth.
//
// Two equal states yield identical render pass descriptions for the same
// task declaration.
type RenderPassState struct {
	Attachments int
	First       uint32
	Last        uint32
	Store       uint32
}

// IsFirstWrite reports whether slot i clears its resource.
func (s RenderPassState) IsFirstWrite(i int) bool { return s.First&(1<<i) != 0 }

// IsLastWrite reports whether slot i is the final write of its resource.
func (s RenderPassState) IsLastWrite(i int) bool { return s.Last&(1<<i) != 0 }

// Stores reports whether slot i keeps its contents after the render pass.
func (s RenderPassState) Stores(i int) bool { return s.Store&(1<<i) != 0 }

// String returns a compact per-slot listing such as "[F L S][. L S]".
func (s RenderPassState) String() string {
	out := ""
	for i := 0; i < s.Attachments; i++ {
		f, l, st := ".", ".", "."
		if s.IsFirstWrite(i) {
			f = "F"
		}
		if s.IsLastWrite(i) {
			l = "L"
		}
		if s.Stores(i) {
			st = "S"
		}
		out += fmt.Sprintf("[%s %s %s]", f, l, st)
	}
	return out
}

// lifetimes classifies attachment writes while walking tasks in execution
// order. Each task must be passed to next exactly once, in order.
type lifetimes struct {
	output   string
	storeAll bool
	consumed map[string]bool

	budget  map[string]int
	cleared map[string]bool
}

func newLifetimes(order []*TaskInfo, output string, storeAll bool, consumed map[string]bool) *lifetimes {
	lt := &lifetimes{
		output:   output,
		storeAll: storeAll,
		consumed: consumed,
		budget:   make(map[string]int),
		cleared:  make(map[string]bool),
	}
	for _, info := range order {
		for i := 0; i < info.attachmentCount(); i++ {
			lt.budget[info.attachmentName(i)]++
		}
	}
	return lt
}

// next classifies the attachments of info and consumes its writes.
func (lt *lifetimes) next(info *TaskInfo) RenderPassState {
	s := RenderPassState{Attachments: info.attachmentCount()}
	for i := 0; i < s.Attachments; i++ {
		name := info.attachmentName(i)
		bit := uint32(1) << i

		if !lt.cleared[name] {
			s.First |= bit
		}
		if lt.budget[name] == 1 {
			s.Last |= bit
			// The output and resources read by later tasks are kept
			// regardless of storeAll.
			if lt.storeAll || name == lt.output || lt.consumed[name] {
				s.Store |= bit
			}
		} else {
			s.Store |= bit
		}

		lt.budget[name]--
		lt.cleared[name] = true
	}
	return s
}

// describeRenderPass derives the render pass description of info from its
// classification.
func describeRenderPass(info *TaskInfo, s RenderPassState, output string, chain *OutputChain) *RenderPassDescriptor {
	desc := &RenderPassDescriptor{
		Label: info.Name,
		Dependency: SubpassDependency{
			SrcStage:  StageColorAttachmentOutput | StageEarlyFragmentTests,
			DstStage:  StageColorAttachmentOutput | StageEarlyFragmentTests,
			DstAccess: AccessColorAttachmentWrite,
		},
	}

	attachment := func(i int, name string, format gputypes.TextureFormat, layout ImageLayout) AttachmentDescription {
		a := AttachmentDescription{
			Name:    name,
			Format:  format,
			LoadOp:  gputypes.LoadOpLoad,
			StoreOp: gputypes.StoreOpStore,
			Layout:  layout,
		}
		if name == output {
			a.Format = chain.Format
		}
		if s.IsFirstWrite(i) {
			a.LoadOp = gputypes.LoadOpClear
			a.InitialLayout = LayoutUndefined
		} else {
			a.InitialLayout = layout
		}
		switch {
		case !s.IsLastWrite(i):
			a.FinalLayout = layout
		case name == output:
			a.FinalLayout = chain.FinalLayout
		default:
			a.FinalLayout = LayoutShaderReadOnly
		}
		if !s.Stores(i) {
			a.StoreOp = gputypes.StoreOpDiscard
		}
		return a
	}

	for i, c := range info.Colors {
		desc.ColorAttachments = append(desc.ColorAttachments,
			attachment(i, c.Name, c.Format, LayoutColorAttachment))
	}
	if d := info.Depth; d != nil {
		a := attachment(len(info.Colors), d.Name, d.Format, LayoutDepthStencilAttachment)
		desc.DepthAttachment = &a
		desc.Dependency.DstAccess |= AccessDepthStencilAttachmentWrite
	}
	return desc
}
