// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"

	"github.com/gogpu/rendergraph/internal/depgraph"
)

// Configuration errors. They are returned immediately and are not retried.
var (
	// ErrUnknownResource is returned when a dependency names neither a task
	// nor a resource written by any task.
	ErrUnknownResource = errors.New("rendergraph: unknown resource")

	// ErrAttachmentCount is returned when a framebuffer does not supply one
	// view per render pass attachment.
	ErrAttachmentCount = errors.New("rendergraph: attachment count mismatch")

	// ErrUnknownTaskKind is returned for a TaskKind other than Graphics or Compute.
	ErrUnknownTaskKind = errors.New("rendergraph: unknown task kind")

	// ErrInvalidTask is returned for malformed task declarations.
	ErrInvalidTask = errors.New("rendergraph: invalid task")

	// ErrDuplicateTask is returned by AddTask when the name is taken.
	ErrDuplicateTask = errors.New("rendergraph: duplicate task")

	// ErrUnknownTask is returned by UpdateTask and RemoveTask for names
	// that were never declared.
	ErrUnknownTask = errors.New("rendergraph: unknown task")

	// ErrDuplicateOutput is returned when a task declares the same output twice.
	ErrDuplicateOutput = errors.New("rendergraph: duplicate output")

	// ErrTooManyAttachments is returned when a graphics task declares more
	// attachments than a render pass state can track.
	ErrTooManyAttachments = errors.New("rendergraph: too many attachments")

	// ErrResourceMismatch is returned when two tasks declare the same
	// resource with different formats or extents.
	ErrResourceMismatch = errors.New("rendergraph: resource mismatch")

	// ErrNoOutputChain is returned by Build before SetOutputChain was called.
	ErrNoOutputChain = errors.New("rendergraph: no output chain")

	// ErrInvalidImageIndex is returned by Run for an index outside the output chain.
	ErrInvalidImageIndex = errors.New("rendergraph: invalid output chain image index")
)

// ErrCycle is returned by Build when the dependency relation has a cycle.
var ErrCycle = depgraph.ErrCycle
