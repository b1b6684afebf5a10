// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
)

// OffscreenChain is an output chain backed by textures the Device created
// itself, for headless rendering and tests.
type OffscreenChain struct {
	rendergraph.OutputChain

	device   *Device
	textures []hal.Texture
	views    []hal.TextureView
}

// NewOffscreenChain creates count render targets of the given format and size.
func (d *Device) NewOffscreenChain(count int, format gputypes.TextureFormat, width, height uint32) (*OffscreenChain, error) {
	c := &OffscreenChain{
		OutputChain: rendergraph.OutputChain{
			Format:      format,
			Extent:      gputypes.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			FinalLayout: rendergraph.LayoutShaderReadOnly,
		},
		device: d,
	}
	for i := 0; i < count; i++ {
		label := fmt.Sprintf("offscreen_chain_%d", i)
		tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
			Label:         label,
			Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        format,
			Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		})
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("halgpu: create chain texture %d: %w", i, err)
		}
		c.textures = append(c.textures, tex)

		view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
			Label:     label,
			Format:    format,
			Dimension: gputypes.TextureViewDimension2D,
			Aspect:    gputypes.TextureAspectAll,
		})
		if err != nil {
			c.Destroy()
			return nil, fmt.Errorf("halgpu: create chain view %d: %w", i, err)
		}
		c.views = append(c.views, view)
		c.Views = append(c.Views, WrapView(view))
	}
	return c, nil
}

// Texture returns the texture behind chain image i.
func (c *OffscreenChain) Texture(i int) hal.Texture { return c.textures[i] }

// Destroy releases the chain's textures and views.
func (c *OffscreenChain) Destroy() {
	for _, v := range c.views {
		c.device.device.DestroyTextureView(v)
	}
	for _, t := range c.textures {
		c.device.device.DestroyTexture(t)
	}
	c.views, c.textures, c.Views = nil, nil, nil
}
