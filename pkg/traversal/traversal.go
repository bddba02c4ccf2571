// Package traversal provides read-only graph algorithms over a storage.Reader.
//
// The engine holds no graph state of its own: every call reads the store at
// call time. There is no isolation from concurrent writers, so a call that
// overlaps with AddNode or AddEdge may observe a partially applied sequence
// of writes.
//
// Every walk follows edges in insertion order (ascending Seq) at each node,
// which makes results deterministic for a given store. Long walks can be
// bounded with WithBudget or aborted through the context; either way the
// call returns an error and no partial result.
//
// Example:
//
//	engine := traversal.New(store, traversal.WithBudget(100_000))
//	path, err := engine.ShortestPath(ctx, "a", "c")
//	if err != nil {
//		return err
//	}
//	if path == nil {
//		fmt.Println("unreachable")
//	}
package traversal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/storage"
)

// Path is an ordered walk through the graph. Edges[i] connects Nodes[i] and
// Nodes[i+1]; a zero-length path has one node and no edges.
type Path struct {
	Nodes []storage.NodeID `json:"nodes"`
	Edges []*storage.Edge  `json:"edges"`
}

// Len returns the number of hops in the path.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Edges)
}

// Pattern describes a Traverse call.
type Pattern struct {
	StartNode storage.NodeID
	Direction storage.Direction
	MaxDepth  int
	// EdgeTypes restricts the walk to these types. Empty means every type.
	EdgeTypes []string
}

// Engine runs traversal algorithms against a store.
type Engine struct {
	store storage.Reader
	opts  Options
	types typeFilter
	log   *zap.Logger
}

// New creates a traversal engine over store.
func New(store storage.Reader, opts ...Option) *Engine {
	options := applyOptions(opts)
	return &Engine{
		store: store,
		opts:  options,
		types: newTypeFilter(options.EdgeTypes),
		log:   options.Logger.Named("traversal"),
	}
}

// walker tracks the work done by one call.
type walker struct {
	ctx      context.Context
	budget   int
	expanded int
}

func (e *Engine) newWalker(ctx context.Context) *walker {
	return &walker{ctx: ctx, budget: e.opts.Budget}
}

// step accounts for one edge expansion.
func (w *walker) step() error {
	w.expanded++
	if w.budget > 0 && w.expanded > w.budget {
		return fmt.Errorf("%w: more than %d edge expansions", ErrBudgetExceeded, w.budget)
	}
	if w.expanded%contextCheckInterval == 0 {
		return w.ctx.Err()
	}
	return nil
}

// neighbor returns the node reached from current over edge in direction.
func neighbor(edge *storage.Edge, current storage.NodeID, direction storage.Direction) storage.NodeID {
	switch direction {
	case storage.DirectionIncoming:
		return edge.From
	case storage.DirectionBoth:
		return edge.Other(current)
	default:
		return edge.To
	}
}

// edgesFrom returns the edges of node that pass the type filter, in Seq order.
func (e *Engine) edgesFrom(node storage.NodeID, direction storage.Direction, types typeFilter) ([]*storage.Edge, error) {
	edges, err := e.store.GetEdges(node, direction)
	if err != nil {
		return nil, err
	}
	if types == nil {
		return edges, nil
	}
	filtered := edges[:0]
	for _, edge := range edges {
		if types.allows(edge.Type) {
			filtered = append(filtered, edge)
		}
	}
	return filtered, nil
}

// requireNode maps a missing node to ErrNodeNotFound.
func (e *Engine) requireNode(id storage.NodeID) error {
	ok, err := e.store.HasNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	return nil
}

// ShortestPath returns a path with the fewest hops from start to end.
//
// The search is breadth-first and expands each node's edges in insertion
// order, so among equally short paths the first one discovered wins.
// ShortestPath(x, x) is the zero-length path [x]. When end is unreachable
// the result is nil with a nil error.
func (e *Engine) ShortestPath(ctx context.Context, start, end storage.NodeID) (path *Path, err error) {
	began := time.Now()
	ctx, span := startSpan(ctx, "ShortestPath", string(start))
	w := e.newWalker(ctx)
	defer func() {
		results := 0
		if path != nil {
			results = len(path.Nodes)
		}
		endSpan(span, results, w.expanded, err)
		recordMetrics(ctx, "shortest_path", time.Since(began), results, w.expanded, err)
	}()

	if err := e.requireNode(start); err != nil {
		return nil, err
	}
	if err := e.requireNode(end); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if start == end {
		return &Path{Nodes: []storage.NodeID{start}, Edges: []*storage.Edge{}}, nil
	}

	type hop struct {
		prev storage.NodeID
		via  *storage.Edge
	}
	parents := map[storage.NodeID]hop{start: {}}
	queue := []storage.NodeID{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := e.edgesFrom(current, e.opts.Direction, e.types)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if err := w.step(); err != nil {
				return nil, err
			}
			next := neighbor(edge, current, e.opts.Direction)
			if _, seen := parents[next]; seen {
				continue
			}
			parents[next] = hop{prev: current, via: edge}
			if next != end {
				queue = append(queue, next)
				continue
			}

			// Walk parents back to start.
			var nodes []storage.NodeID
			var via []*storage.Edge
			for n := end; n != start; n = parents[n].prev {
				nodes = append(nodes, n)
				via = append(via, parents[n].via)
			}
			nodes = append(nodes, start)
			slices.Reverse(nodes)
			slices.Reverse(via)

			e.log.Debug("shortest path found",
				zap.String("start", string(start)),
				zap.String("end", string(end)),
				zap.Int("hops", len(via)),
				zap.Int("expanded", w.expanded))
			return &Path{Nodes: nodes, Edges: via}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.log.Debug("no path",
		zap.String("start", string(start)),
		zap.String("end", string(end)),
		zap.Int("expanded", w.expanded))
	return nil, nil
}

// FindConnected returns every node reachable from start within maxDepth
// hops, start included, in breadth-first discovery order.
func (e *Engine) FindConnected(ctx context.Context, start storage.NodeID, maxDepth int) (nodes []storage.NodeID, err error) {
	began := time.Now()
	ctx, span := startSpan(ctx, "FindConnected", string(start))
	w := e.newWalker(ctx)
	defer func() {
		endSpan(span, len(nodes), w.expanded, err)
		recordMetrics(ctx, "find_connected", time.Since(began), len(nodes), w.expanded, err)
	}()

	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, maxDepth)
	}
	if err := e.requireNode(start); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	visited := map[storage.NodeID]struct{}{start: {}}
	found := []storage.NodeID{start}
	frontier := []storage.NodeID{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []storage.NodeID
		for _, current := range frontier {
			edges, err := e.edgesFrom(current, e.opts.Direction, e.types)
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				if err := w.step(); err != nil {
					return nil, err
				}
				n := neighbor(edge, current, e.opts.Direction)
				if _, seen := visited[n]; seen {
					continue
				}
				visited[n] = struct{}{}
				found = append(found, n)
				next = append(next, n)
			}
		}
		frontier = next
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// frame is one level of the Traverse stack.
type frame struct {
	node  storage.NodeID
	via   *storage.Edge
	edges []*storage.Edge
	next  int
}

// Traverse enumerates every simple path of 1 to MaxDepth hops that starts at
// StartNode and follows edges of the requested types in the requested
// direction. Paths come out depth-first with edges taken in insertion order,
// each path right after its prefix. MaxDepth 0 yields no paths.
func (e *Engine) Traverse(ctx context.Context, pattern Pattern) (paths []Path, err error) {
	began := time.Now()
	ctx, span := startSpan(ctx, "Traverse", string(pattern.StartNode))
	w := e.newWalker(ctx)
	defer func() {
		endSpan(span, len(paths), w.expanded, err)
		recordMetrics(ctx, "traverse", time.Since(began), len(paths), w.expanded, err)
	}()

	if pattern.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, pattern.MaxDepth)
	}
	if err := e.requireNode(pattern.StartNode); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths = make([]Path, 0)
	if pattern.MaxDepth == 0 {
		return paths, nil
	}

	types := newTypeFilter(pattern.EdgeTypes)
	rootEdges, err := e.edgesFrom(pattern.StartNode, pattern.Direction, types)
	if err != nil {
		return nil, err
	}
	stack := []frame{{node: pattern.StartNode, edges: rootEdges}}
	onPath := map[storage.NodeID]struct{}{pattern.StartNode: {}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.edges) {
			delete(onPath, top.node)
			stack = stack[:len(stack)-1]
			continue
		}
		edge := top.edges[top.next]
		top.next++

		if err := w.step(); err != nil {
			return nil, err
		}
		n := neighbor(edge, top.node, pattern.Direction)
		if _, cyclic := onPath[n]; cyclic {
			continue
		}

		child := frame{node: n, via: edge}
		depth := len(stack)
		if depth < pattern.MaxDepth {
			child.edges, err = e.edgesFrom(n, pattern.Direction, types)
			if err != nil {
				return nil, err
			}
		}
		stack = append(stack, child)
		onPath[n] = struct{}{}
		paths = append(paths, pathFromStack(stack))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.log.Debug("traverse complete",
		zap.String("start", string(pattern.StartNode)),
		zap.Int("max_depth", pattern.MaxDepth),
		zap.Int("paths", len(paths)),
		zap.Int("expanded", w.expanded))
	return paths, nil
}

func pathFromStack(stack []frame) Path {
	p := Path{
		Nodes: make([]storage.NodeID, len(stack)),
		Edges: make([]*storage.Edge, 0, len(stack)-1),
	}
	for i, f := range stack {
		p.Nodes[i] = f.node
		if f.via != nil {
			p.Edges = append(p.Edges, f.via)
		}
	}
	return p
}

// IsAbort reports whether err ended a call early through the work budget or
// the context rather than a store or usage failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
