// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.framesInFlight != DefaultFramesInFlight {
		t.Errorf("framesInFlight = %d, want %d", o.framesInFlight, DefaultFramesInFlight)
	}
	if o.storeAll {
		t.Error("storeAll should default to false")
	}
}

func TestWithFramesInFlight(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{3, 3},
		{0, DefaultFramesInFlight},
		{-2, DefaultFramesInFlight},
	}
	for _, tt := range tests {
		o := defaultOptions()
		WithFramesInFlight(tt.n)(&o)
		if o.framesInFlight != tt.want {
			t.Errorf("WithFramesInFlight(%d) = %d, want %d", tt.n, o.framesInFlight, tt.want)
		}
	}
}

func TestOptionsApplied(t *testing.T) {
	d := newFakeDevice()
	b := NewBuilder(d, WithFramesInFlight(4), WithStoreAll(true))
	defer b.Release()
	if b.opts.framesInFlight != 4 || !b.opts.storeAll {
		t.Errorf("options = %+v", b.opts)
	}

	b.SetOutputChain(testChain(d, 1))
	b.SetOutput("output")
	mustAdd(t, b, graphics(newRecorder(), "main", nil, "output"))
	g := mustBuild(t, b)
	if g.BufferCount() != 4 {
		t.Errorf("BufferCount = %d, want 4", g.BufferCount())
	}
	if got := d.created["fence"]; got != 4 {
		t.Errorf("fences = %d, want one per buffer", got)
	}
}
