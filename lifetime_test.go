// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func colorTask(name string, outputs ...string) *TaskInfo {
	info := &TaskInfo{Name: name}
	for _, o := range outputs {
		info.Colors = append(info.Colors, ColorOutput{Name: o, Format: testFormat})
	}
	return info
}

func TestLifetimesClassification(t *testing.T) {
	order := []*TaskInfo{
		colorTask("a", "hdr", "output"),
		colorTask("b", "hdr"),
		colorTask("c", "output", "tmp"),
	}
	tests := []struct {
		name     string
		storeAll bool
		want     []string
	}{
		{"store all", true, []string{"[F . S][F . S]", "[. L S]", "[. L S][F L S]"}},
		{"store used", false, []string{"[F . S][F . S]", "[. L .]", "[. L S][F L .]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := newLifetimes(order, "output", tt.storeAll, map[string]bool{})
			for i, info := range order {
				if got := lt.next(info).String(); got != tt.want[i] {
					t.Errorf("task %s = %s, want %s", info.Name, got, tt.want[i])
				}
			}
		})
	}
}

func TestLifetimesConsumedIsStored(t *testing.T) {
	order := []*TaskInfo{colorTask("a", "albedo")}
	lt := newLifetimes(order, "output", false, map[string]bool{"albedo": true})
	if s := lt.next(order[0]); !s.Stores(0) {
		t.Errorf("consumed albedo state = %v, want stored", s)
	}
}

func TestRenderPassStateEquality(t *testing.T) {
	order := []*TaskInfo{colorTask("a", "x"), colorTask("b", "x")}
	s1 := newLifetimes(order, "output", true, nil).next(order[0])
	s2 := newLifetimes(order, "output", true, nil).next(order[0])
	if s1 != s2 {
		t.Errorf("identical walks gave %v and %v", s1, s2)
	}
}

func TestDescribeRenderPass(t *testing.T) {
	chain := &OutputChain{Format: gputypes.TextureFormatBGRA8Unorm, FinalLayout: LayoutPresent}
	info := colorTask("t", "output", "mid")
	info.Depth = &DepthOutput{Name: "z", Format: gputypes.TextureFormatDepth24PlusStencil8}

	// output: load, last; mid: first, not last; z: first, last, discarded.
	s := RenderPassState{Attachments: 3, First: 0b110, Last: 0b101, Store: 0b011}
	desc := describeRenderPass(info, s, "output", chain)

	if desc.AttachmentCount() != 3 {
		t.Fatalf("AttachmentCount = %d, want 3", desc.AttachmentCount())
	}
	out := desc.ColorAttachments[0]
	if out.Format != chain.Format || out.LoadOp != gputypes.LoadOpLoad ||
		out.InitialLayout != LayoutColorAttachment || out.FinalLayout != LayoutPresent {
		t.Errorf("output attachment = %+v", out)
	}
	mid := desc.ColorAttachments[1]
	if mid.LoadOp != gputypes.LoadOpClear || mid.InitialLayout != LayoutUndefined ||
		mid.FinalLayout != LayoutColorAttachment || mid.StoreOp != gputypes.StoreOpStore {
		t.Errorf("mid attachment = %+v", mid)
	}
	z := desc.DepthAttachment
	if z == nil {
		t.Fatal("no depth attachment")
	}
	if z.LoadOp != gputypes.LoadOpClear || z.StoreOp != gputypes.StoreOpDiscard ||
		z.Layout != LayoutDepthStencilAttachment || z.FinalLayout != LayoutShaderReadOnly {
		t.Errorf("depth attachment = %+v", z)
	}
	if desc.Dependency.DstAccess&AccessDepthStencilAttachmentWrite == 0 {
		t.Error("dependency does not cover depth writes")
	}
}

func TestPlanSharedWriteEdges(t *testing.T) {
	infos := []*TaskInfo{
		colorTask("a", "output", "acc"),
		colorTask("b", "output", "acc"),
	}
	p, err := newPlan(infos, "output")
	if err != nil {
		t.Fatal(err)
	}
	// acc orders a before b, output alone would not.
	if !p.matrix.Has(0, 1) {
		t.Error("missing shared write edge a -> b")
	}
	if got := p.dependencies("b"); len(got) != 1 || got[0] != "a" {
		t.Errorf("dependencies of b = %v, want [a]", got)
	}

	infos = []*TaskInfo{colorTask("a", "output"), colorTask("b", "output")}
	p, err = newPlan(infos, "output")
	if err != nil {
		t.Fatal(err)
	}
	if p.matrix.Linked(0, 1) {
		t.Error("writers of the output alone got ordered")
	}
	if len(p.order) != 2 {
		t.Errorf("order = %d tasks, want 2", len(p.order))
	}
}

func TestPlanDependencyOnTaskName(t *testing.T) {
	infos := []*TaskInfo{
		colorTask("shadow", "shadowmap", "moments"),
		colorTask("main", "output"),
	}
	infos[1].Dependencies = []string{"shadow"}
	p, err := newPlan(infos, "output")
	if err != nil {
		t.Fatal(err)
	}
	if !p.consumed["shadowmap"] || !p.consumed["moments"] {
		t.Errorf("consumed = %v, want every output of shadow", p.consumed)
	}
	if len(p.culled) != 0 {
		t.Errorf("culled = %v", p.culled)
	}
}
