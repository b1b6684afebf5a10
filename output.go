// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"github.com/gogpu/gputypes"
)

// OutputChain is the externally owned sequence of images the graph renders
// its designated output into, typically a swapchain. Run selects the image
// by index.
type OutputChain struct {
	Views  []ImageView
	Format gputypes.TextureFormat
	Extent gputypes.Extent3D
	// FinalLayout is the layout the output must be left in, e.g. LayoutPresent.
	FinalLayout ImageLayout
}

// Len returns the number of images in the chain.
func (c *OutputChain) Len() int { return len(c.Views) }

// Viewport is the rectangle a task renders into.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// viewportFor returns a full viewport over extent.
func viewportFor(extent gputypes.Extent3D) Viewport {
	return Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MaxDepth: 1,
	}
}
