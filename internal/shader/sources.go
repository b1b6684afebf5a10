// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	_ "embed"
)

//go:embed shaders/fullscreen.wgsl
var fullscreenWGSL string

//go:embed shaders/cull.wgsl
var cullWGSL string

// Names of the built-in shaders.
const (
	Fullscreen = "fullscreen"
	Cull       = "cull"
)

// Sources returns the built-in WGSL sources by name.
func Sources() map[string]string {
	return map[string]string{
		Fullscreen: fullscreenWGSL,
		Cull:       cullWGSL,
	}
}
