// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

// Option configures a Builder during creation.
//
// Example:
//
//	b := rendergraph.NewBuilder(dev,
//	    rendergraph.WithFramesInFlight(3),
//	    rendergraph.WithStoreAll(true),
//	)
type Option func(*options)

type options struct {
	framesInFlight int
	storeAll       bool
}

// DefaultFramesInFlight is the number of frame-in-flight buffers used when
// WithFramesInFlight is not given.
const DefaultFramesInFlight = 2

func defaultOptions() options {
	return options{
		framesInFlight: DefaultFramesInFlight,
		storeAll:       false,
	}
}

// WithFramesInFlight sets how many frames the CPU may record ahead of the
// GPU. Each frame in flight gets its own batches, framebuffers, internal
// images and fence. Values below 1 are ignored.
//
// The depth is independent of the output chain length; Run takes the chain
// image index explicitly.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.framesInFlight = n
		}
	}
}

// WithStoreAll controls the store op of an attachment's last write.
//
// By default a last write is discarded. Two resources are exempt and always
// stored: the graph output, which the output chain presents, and any
// resource another task depends on by name, which is sampled after the
// write. When enabled every last write stores its result.
func WithStoreAll(enabled bool) Option {
	return func(o *options) {
		o.storeAll = enabled
	}
}
