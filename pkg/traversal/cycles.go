package traversal

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/storage"
)

// Visitation states for cycle detection.
const (
	white = iota // unvisited
	grey         // on the current DFS stack
	black        // finished
)

// dfsFrame is one level of the explicit DFS stack.
type dfsFrame struct {
	node storage.NodeID
	next int
}

// DetectCycles reports the cycles closed by back edges in the graph made of
// nodes and the edges among them.
//
// The search is an iterative depth-first walk with three-state marking, so
// deep graphs cannot exhaust the goroutine stack. Roots are taken in the
// order of nodes and each node's out-edges in the order they appear in
// edges. Every back edge u->v yields the cycle [v, ..., u, v]; identical
// sequences produced by parallel edges are reported once. Edges with an
// endpoint outside nodes are ignored. An acyclic input yields an empty slice.
func (e *Engine) DetectCycles(ctx context.Context, nodes []storage.NodeID, edges []*storage.Edge) (cycles [][]storage.NodeID, err error) {
	began := time.Now()
	ctx, span := startSpan(ctx, "DetectCycles", "")
	w := e.newWalker(ctx)
	defer func() {
		endSpan(span, len(cycles), w.expanded, err)
		recordMetrics(ctx, "detect_cycles", time.Since(began), len(cycles), w.expanded, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	color := make(map[storage.NodeID]int, len(nodes))
	for _, n := range nodes {
		color[n] = white
	}
	adjacency := make(map[storage.NodeID][]storage.NodeID, len(nodes))
	for _, edge := range edges {
		_, fromOK := color[edge.From]
		_, toOK := color[edge.To]
		if fromOK && toOK {
			adjacency[edge.From] = append(adjacency[edge.From], edge.To)
		}
	}

	cycles = make([][]storage.NodeID, 0)
	seen := make(map[string]struct{})
	// position maps a grey node to its index in stack.
	position := make(map[storage.NodeID]int)

	for _, root := range nodes {
		if color[root] != white {
			continue
		}
		stack := []dfsFrame{{node: root}}
		color[root] = grey
		position[root] = 0

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			out := adjacency[top.node]
			if top.next >= len(out) {
				color[top.node] = black
				delete(position, top.node)
				stack = stack[:len(stack)-1]
				continue
			}
			next := out[top.next]
			top.next++

			if err := w.step(); err != nil {
				return nil, err
			}

			switch color[next] {
			case white:
				color[next] = grey
				position[next] = len(stack)
				stack = append(stack, dfsFrame{node: next})
			case grey:
				cycle := make([]storage.NodeID, 0, len(stack)-position[next]+1)
				for _, f := range stack[position[next]:] {
					cycle = append(cycle, f.node)
				}
				cycle = append(cycle, next)
				key := cycleKey(cycle)
				if _, dup := seen[key]; !dup {
					seen[key] = struct{}{}
					cycles = append(cycles, cycle)
				}
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.log.Debug("cycle detection complete",
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
		zap.Int("cycles", len(cycles)))
	return cycles, nil
}

// DetectStoreCycles runs DetectCycles over every node and edge in the store.
func (e *Engine) DetectStoreCycles(ctx context.Context) ([][]storage.NodeID, error) {
	nodes, err := e.store.AllNodes()
	if err != nil {
		return nil, err
	}
	edges, err := e.store.AllEdges()
	if err != nil {
		return nil, err
	}
	ids := make([]storage.NodeID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return e.DetectCycles(ctx, ids, edges)
}

func cycleKey(cycle []storage.NodeID) string {
	parts := make([]string, len(cycle))
	for i, n := range cycle {
		parts[i] = string(n)
	}
	return strings.Join(parts, "\x00")
}
