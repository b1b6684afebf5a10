// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph"
)

// semaphore remembers the submission that last signaled it. Once signaled
// it stays signaled, so several later submissions may wait on it.
type semaphore struct {
	submission uint64
	pending    bool
}

// fence completes when the queue finishes submission.
type fence struct {
	submission uint64
	armed      bool
}

var errFencePending = errors.New("halgpu: fence pending")

// CreateSemaphore implements rendergraph.Device.
func (d *Device) CreateSemaphore() (rendergraph.Semaphore, error) {
	return &semaphore{}, nil
}

// DestroySemaphore implements rendergraph.Device.
func (d *Device) DestroySemaphore(rendergraph.Semaphore) {}

// CreateFence implements rendergraph.Device.
func (d *Device) CreateFence(signaled bool) (rendergraph.Fence, error) {
	return &fence{armed: signaled}, nil
}

// DestroyFence implements rendergraph.Device.
func (d *Device) DestroyFence(rendergraph.Fence) {}

// ResetFence implements rendergraph.Device.
func (d *Device) ResetFence(f rendergraph.Fence) error {
	fc, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("%w: fence %T", ErrForeignHandle, f)
	}
	fc.armed = false
	return nil
}

// WaitFence implements rendergraph.Device. It polls the queue's completed
// submission index with exponential backoff and never gives up.
func (d *Device) WaitFence(f rendergraph.Fence) error {
	fc, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("%w: fence %T", ErrForeignHandle, f)
	}
	if !fc.armed {
		return ErrFenceNotSubmitted
	}
	if d.queue.PollCompleted() >= fc.submission {
		return nil
	}

	slogger().Debug("halgpu: waiting for submission", "index", fc.submission)
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(d.pollInitial),
		backoff.WithMaxInterval(d.pollMax),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.Retry(func() error {
		if d.queue.PollCompleted() >= fc.submission {
			return nil
		}
		return errFencePending
	}, b)
}

// Submit implements rendergraph.Device.
//
// The hal queue executes submissions in order, so a wait is satisfied by
// any earlier signal. Waiting on a semaphore nothing signaled is an error.
func (d *Device) Submit(info *rendergraph.SubmitInfo) error {
	for _, w := range info.Waits {
		s, ok := w.Semaphore.(*semaphore)
		if !ok {
			return fmt.Errorf("%w: semaphore %T", ErrForeignHandle, w.Semaphore)
		}
		if !s.pending {
			return ErrUnsignaledSemaphore
		}
	}

	index := d.lastSubmission
	if len(info.CommandBuffers) > 0 {
		cmds := make([]hal.CommandBuffer, 0, len(info.CommandBuffers))
		for _, c := range info.CommandBuffers {
			cb, err := commandBuffer(c)
			if err != nil {
				return err
			}
			if cb.cmd == nil {
				return fmt.Errorf("halgpu: submit %q before it was recorded", cb.label)
			}
			cmds = append(cmds, cb.cmd)
		}
		var err error
		index, err = d.queue.Submit(cmds)
		if err != nil {
			return fmt.Errorf("halgpu: queue submit: %w", err)
		}
		d.lastSubmission = index
	}

	for _, s := range info.Signals {
		sem, ok := s.(*semaphore)
		if !ok {
			return fmt.Errorf("%w: semaphore %T", ErrForeignHandle, s)
		}
		sem.submission = index
		sem.pending = true
	}
	if info.Fence != nil {
		fc, ok := info.Fence.(*fence)
		if !ok {
			return fmt.Errorf("%w: fence %T", ErrForeignHandle, info.Fence)
		}
		fc.submission = index
		fc.armed = true
	}
	return nil
}
