// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"slices"
)

// update reconciles every frame-in-flight buffer against p and recomputes
// the cross-batch waits. marked holds the task names declared, updated or
// removed since the previous update.
func (g *RenderGraph) update(p *plan, marked map[string]bool) error {
	if err := g.checkExtents(p.order); err != nil {
		return err
	}
	for _, name := range p.culled {
		Logger().Debug("rendergraph: task does not reach the output", "task", name)
	}

	for _, buf := range g.buffers {
		if err := g.reconcile(buf, p, marked); err != nil {
			return err
		}
	}
	g.plan = p
	g.chainDirty = false

	for _, buf := range g.buffers {
		g.computeWaits(buf)
	}

	if len(g.buffers) > 0 {
		Logger().Info("rendergraph: graph updated",
			"tasks", len(p.order), "batches", len(g.buffers[0].batches),
			"culled", len(p.culled), "buffers", len(g.buffers))
	}
	return nil
}

// diffCursor walks the existing batch/task structure of one buffer.
type diffCursor struct {
	buf *graphBuffer
	bi  int
	ti  int
}

func (c *diffCursor) done() bool { return c.bi >= len(c.buf.batches) }

func (c *diffCursor) task() *Task { return c.buf.batches[c.bi].tasks[c.ti] }

// advance moves past the current task.
func (c *diffCursor) advance() {
	c.ti++
	if c.ti >= len(c.buf.batches[c.bi].tasks) {
		c.bi++
		c.ti = 0
	}
}

// remaining reports whether a task called name exists at or after the cursor.
func (c *diffCursor) remaining(name string) bool {
	for bi := c.bi; bi < len(c.buf.batches); bi++ {
		tasks := c.buf.batches[bi].tasks
		start := 0
		if bi == c.bi {
			start = c.ti
		}
		for _, t := range tasks[start:] {
			if t.Name() == name {
				return true
			}
		}
	}
	return false
}

// reconcile walks the sorted declarations and the existing structure of buf
// in lockstep, inserting, removing and rebuilding tasks so that buf matches
// p while keeping the objects of unaffected tasks.
func (g *RenderGraph) reconcile(buf *graphBuffer, p *plan, marked map[string]bool) error {
	lt := newLifetimes(p.order, g.output, g.storeAll, p.consumed)
	cur := &diffCursor{buf: buf}
	j := 0
	clear(buf.replaced)

	for !cur.done() {
		if g.chainDirty && cur.ti == 0 {
			if err := g.resizeCommandBuffers(buf, buf.batches[cur.bi]); err != nil {
				return err
			}
		}

		if j == len(p.order) {
			g.removeAt(cur)
			continue
		}

		existing, info := cur.task(), p.order[j]
		if existing.Name() != info.Name {
			if !g.insertBefore(cur, p.order[j:], info, marked) {
				g.removeAt(cur)
				continue
			}
			t, err := g.createTask(buf, info, lt.next(info))
			if err != nil {
				return err
			}
			if err := g.insertAt(cur, t); err != nil {
				return err
			}
			Logger().Debug("rendergraph: task inserted", "task", info.Name, "buffer", buf.index)
			j++
			continue
		}

		stale := marked[info.Name] || readsReplaced(buf, p, info)
		if err := g.refresh(buf, existing, info, lt.next(info), stale); err != nil {
			return err
		}
		cur.advance()
		j++
	}

	for ; j < len(p.order); j++ {
		info := p.order[j]
		t, err := g.createTask(buf, info, lt.next(info))
		if err != nil {
			return err
		}
		b, err := g.newBatch(buf, []*Task{t})
		if err != nil {
			g.destroyTask(t)
			return err
		}
		buf.batches = append(buf.batches, b)
	}
	g.retireUnwritten(buf, p.order)
	return nil
}

// readsReplaced reports whether info depends on an internal resource whose
// backing object was recreated earlier in this update, either by naming the
// resource or by naming a task that writes it. Such a task was built against
// a resource map holding the retired object.
func readsReplaced(buf *graphBuffer, p *plan, info *TaskInfo) bool {
	if len(buf.replaced) == 0 {
		return false
	}
	for _, dep := range info.Dependencies {
		if buf.replaced[dep] {
			return true
		}
		i, ok := p.index[dep]
		if !ok {
			continue
		}
		for _, name := range p.infos[i].outputs() {
			if buf.replaced[name] {
				return true
			}
		}
	}
	return false
}

// insertBefore decides, for two different names under the cursors,
// whether info is inserted in front of the existing task (true) or the
// existing task is removed (false).
func (g *RenderGraph) insertBefore(cur *diffCursor, rest []*TaskInfo, info *TaskInfo, marked map[string]bool) bool {
	existing := cur.task().Name()
	if !slices.ContainsFunc(rest, func(i *TaskInfo) bool { return i.Name == existing }) {
		return false
	}
	switch {
	case marked[info.Name]:
		return true
	case marked[existing]:
		return false
	default:
		return !cur.remaining(info.Name)
	}
}

// refresh brings a task whose name matches its declaration up to date.
// New objects are only created when the classification or the attachment
// layout changed; a stale task with an unchanged layout only has its build
// callback invoked again.
func (g *RenderGraph) refresh(buf *graphBuffer, t *Task, info *TaskInfo, state RenderPassState, stale bool) error {
	t.info = info
	switch {
	case g.chainDirty || state != t.state || g.signature(info) != t.signature:
		g.retireTask(buf, t)
		if err := g.allocateTask(buf, t, state); err != nil {
			return err
		}
		Logger().Debug("rendergraph: task recreated",
			"task", info.Name, "buffer", buf.index, "state", state.String())
	case stale:
		Logger().Debug("rendergraph: task rebuilt", "task", info.Name, "buffer", buf.index)
	default:
		return nil
	}
	if err := g.allocateBuffers(buf, info); err != nil {
		return err
	}
	return g.build(buf, t)
}

// insertAt places t in a new batch in front of the task under the cursor,
// splitting the current batch when the cursor is inside it. The cursor
// ends up on the same existing task.
func (g *RenderGraph) insertAt(cur *diffCursor, t *Task) error {
	buf := cur.buf
	if cur.ti > 0 {
		b := buf.batches[cur.bi]
		tail, err := g.newBatch(buf, slices.Clone(b.tasks[cur.ti:]))
		if err != nil {
			return err
		}
		b.tasks = b.tasks[:cur.ti]
		buf.batches = slices.Insert(buf.batches, cur.bi+1, tail)
		cur.bi++
		cur.ti = 0
	}
	b, err := g.newBatch(buf, []*Task{t})
	if err != nil {
		g.destroyTask(t)
		return err
	}
	buf.batches = slices.Insert(buf.batches, cur.bi, b)
	cur.bi++
	return nil
}

// removeAt removes the task under the cursor, and its batch if emptied.
// The cursor ends up on the next existing task.
func (g *RenderGraph) removeAt(cur *diffCursor) {
	buf := cur.buf
	b := buf.batches[cur.bi]
	t := b.tasks[cur.ti]
	g.retireTask(buf, t)
	b.tasks = slices.Delete(b.tasks, cur.ti, cur.ti+1)
	Logger().Debug("rendergraph: task removed", "task", t.Name(), "buffer", buf.index)

	if len(b.tasks) == 0 {
		g.retireBatch(buf, b)
		buf.batches = slices.Delete(buf.batches, cur.bi, cur.bi+1)
		cur.ti = 0
		return
	}
	if cur.ti >= len(b.tasks) {
		cur.bi++
		cur.ti = 0
	}
}

// computeWaits records, for every batch, the batches holding the direct
// dependencies of its tasks.
func (g *RenderGraph) computeWaits(buf *graphBuffer) {
	owner := make(map[string]int)
	for k, b := range buf.batches {
		for _, t := range b.tasks {
			owner[t.Name()] = k
		}
	}
	for k, b := range buf.batches {
		var waits []int
		b.waitStage = 0
		for _, t := range b.tasks {
			if t.Kind() == Compute {
				b.waitStage |= StageComputeShader
			} else {
				b.waitStage |= StageAllGraphics
			}
			for _, dep := range g.plan.dependencies(t.Name()) {
				if w, ok := owner[dep]; ok && w != k && !slices.Contains(waits, w) {
					waits = append(waits, w)
				}
			}
		}
		slices.Sort(waits)
		b.waits = waits
	}
}

// String summarizes the batch structure of buffer 0, e.g.
// "[task3][task1][task2]".
func (g *RenderGraph) String() string {
	if len(g.buffers) == 0 {
		return "[]"
	}
	s := ""
	for _, b := range g.buffers[0].batches {
		names := make([]string, len(b.tasks))
		for i, t := range b.tasks {
			names[i] = t.Name()
		}
		s += fmt.Sprint(names)
	}
	return s
}
