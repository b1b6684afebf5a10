// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package graphfile

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// lastFormat is the highest texture format value gputypes names.
const lastFormat = gputypes.TextureFormatASTC12x12UnormSrgb

var formats = func() map[string]gputypes.TextureFormat {
	m := make(map[string]gputypes.TextureFormat)
	for f := gputypes.TextureFormat(1); f <= lastFormat; f++ {
		if name := f.String(); name != "Unknown" {
			m[strings.ToLower(name)] = f
		}
	}
	return m
}()

// ParseFormat returns the texture format called name, ignoring case, e.g.
// "rgba16float" or "Depth24PlusStencil8".
func ParseFormat(name string) (gputypes.TextureFormat, error) {
	f, ok := formats[strings.ToLower(name)]
	if !ok {
		return gputypes.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
	}
	return f, nil
}
