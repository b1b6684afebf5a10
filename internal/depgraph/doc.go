// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package depgraph holds the boolean dependency relation used by the render
// graph builder: a square adjacency matrix over task indices plus one
// virtual sink node, its transitive reduction and the execution order
// derived from it.
//
// Node indices are dense. Tasks occupy 0..n-1 in declaration order and the
// sink is always node n. An edge from a to b means b depends on a.
package depgraph
