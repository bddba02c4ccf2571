package traversal

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jwynia/corticai/pkg/storage"
)

// diamond builds A->B->C and A->D->C, edges added in that order.
func diamond(t *testing.T) *storage.MemoryEngine {
	t.Helper()
	store := storage.NewMemoryEngine(storage.Options{})
	t.Cleanup(func() { store.Close() })

	for _, id := range []storage.NodeID{"A", "B", "C", "D"} {
		require.NoError(t, store.AddNode(&storage.Node{ID: id, Type: "section"}))
	}
	for _, e := range [][2]storage.NodeID{{"A", "B"}, {"B", "C"}, {"A", "D"}, {"D", "C"}} {
		require.NoError(t, store.AddEdge(&storage.Edge{From: e[0], To: e[1], Type: "connects"}))
	}
	return store
}

func nodeStrings(nodes []storage.NodeID) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = string(n)
	}
	return out
}

func TestShortestPath(t *testing.T) {
	ctx := context.Background()
	store := diamond(t)
	engine := New(store, WithLogger(zaptest.NewLogger(t)))

	t.Run("first discovered wins", func(t *testing.T) {
		path, err := engine.ShortestPath(ctx, "A", "C")
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, []string{"A", "B", "C"}, nodeStrings(path.Nodes))
		require.Len(t, path.Edges, 2)
		assert.Equal(t, storage.NodeID("A"), path.Edges[0].From)
		assert.Equal(t, storage.NodeID("C"), path.Edges[1].To)
		assert.Equal(t, 2, path.Len())
	})

	t.Run("self path", func(t *testing.T) {
		for _, id := range []storage.NodeID{"A", "B", "C", "D"} {
			path, err := engine.ShortestPath(ctx, id, id)
			require.NoError(t, err)
			require.NotNil(t, path)
			assert.Equal(t, []storage.NodeID{id}, path.Nodes)
			assert.Zero(t, path.Len())
		}
	})

	t.Run("unreachable is empty not error", func(t *testing.T) {
		path, err := engine.ShortestPath(ctx, "C", "A")
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := engine.ShortestPath(ctx, "A", "Z")
		assert.ErrorIs(t, err, ErrNodeNotFound)
		_, err = engine.ShortestPath(ctx, "Z", "A")
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("incoming direction", func(t *testing.T) {
		reverse := New(store, WithDirection(storage.DirectionIncoming))
		path, err := reverse.ShortestPath(ctx, "C", "A")
		require.NoError(t, err)
		require.NotNil(t, path)
		assert.Equal(t, []string{"C", "B", "A"}, nodeStrings(path.Nodes))
	})

	t.Run("edge type filter", func(t *testing.T) {
		filtered := New(store, WithEdgeTypes("other"))
		path, err := filtered.ShortestPath(ctx, "A", "C")
		require.NoError(t, err)
		assert.Nil(t, path)
	})
}

func TestShortestPathPrefersFewerHops(t *testing.T) {
	store := diamond(t)
	// A later, direct edge still beats the two-hop routes.
	require.NoError(t, store.AddEdge(&storage.Edge{From: "A", To: "C", Type: "connects"}))

	path, err := New(store).ShortestPath(context.Background(), "A", "C")
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{"A", "C"}, nodeStrings(path.Nodes))
}

func TestFindConnected(t *testing.T) {
	ctx := context.Background()
	engine := New(diamond(t))

	tests := []struct {
		depth int
		want  []string
	}{
		{0, []string{"A"}},
		{1, []string{"A", "B", "D"}},
		{2, []string{"A", "B", "D", "C"}},
		{5, []string{"A", "B", "D", "C"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("depth %d", tt.depth), func(t *testing.T) {
			got, err := engine.FindConnected(ctx, "A", tt.depth)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nodeStrings(got))
		})
	}

	t.Run("monotonic in depth", func(t *testing.T) {
		var previous []storage.NodeID
		for d := 0; d <= 4; d++ {
			got, err := engine.FindConnected(ctx, "A", d)
			require.NoError(t, err)
			assert.Subset(t, got, previous)
			previous = got
		}
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := engine.FindConnected(ctx, "A", -1)
		assert.ErrorIs(t, err, ErrInvalidDepth)
	})

	t.Run("unknown start", func(t *testing.T) {
		_, err := engine.FindConnected(ctx, "Z", 1)
		assert.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("leaf has only itself", func(t *testing.T) {
		got, err := engine.FindConnected(ctx, "C", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, nodeStrings(got))
	})
}

func TestFindConnectedTerminatesOnCycles(t *testing.T) {
	store := diamond(t)
	require.NoError(t, store.AddEdge(&storage.Edge{From: "C", To: "A", Type: "connects"}))

	got, err := New(store).FindConnected(context.Background(), "A", 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, nodeStrings(got))
}

func TestTraverse(t *testing.T) {
	ctx := context.Background()
	store := diamond(t)
	require.NoError(t, store.AddEdge(&storage.Edge{From: "A", To: "C", Type: "skips"}))
	engine := New(store)

	paths, err := engine.Traverse(ctx, Pattern{
		StartNode: "A",
		Direction: storage.DirectionOutgoing,
		MaxDepth:  2,
		EdgeTypes: []string{"connects"},
	})
	require.NoError(t, err)

	got := make([][]string, len(paths))
	for i, p := range paths {
		got[i] = nodeStrings(p.Nodes)
		assert.Len(t, p.Edges, len(p.Nodes)-1)
	}
	assert.Equal(t, [][]string{
		{"A", "B"},
		{"A", "B", "C"},
		{"A", "D"},
		{"A", "D", "C"},
	}, got)

	t.Run("all types", func(t *testing.T) {
		paths, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: 2})
		require.NoError(t, err)
		assert.Len(t, paths, 5)
	})

	t.Run("depth bounds path length", func(t *testing.T) {
		paths, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: 1, EdgeTypes: []string{"connects"}})
		require.NoError(t, err)
		require.Len(t, paths, 2)
		for _, p := range paths {
			assert.Equal(t, 1, p.Len())
		}
	})

	t.Run("zero depth yields nothing", func(t *testing.T) {
		paths, err := engine.Traverse(ctx, Pattern{StartNode: "A"})
		require.NoError(t, err)
		assert.NotNil(t, paths)
		assert.Empty(t, paths)
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: -1})
		assert.ErrorIs(t, err, ErrInvalidDepth)
	})

	t.Run("incoming", func(t *testing.T) {
		paths, err := engine.Traverse(ctx, Pattern{
			StartNode: "C",
			Direction: storage.DirectionIncoming,
			MaxDepth:  2,
			EdgeTypes: []string{"connects"},
		})
		require.NoError(t, err)
		got := make([][]string, len(paths))
		for i, p := range paths {
			got[i] = nodeStrings(p.Nodes)
		}
		assert.Equal(t, [][]string{{"C", "B"}, {"C", "B", "A"}, {"C", "D"}, {"C", "D", "A"}}, got)
	})

	t.Run("is restartable", func(t *testing.T) {
		first, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: 3})
		require.NoError(t, err)
		second, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: 3})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestTraverseSimplePathsOnCycle(t *testing.T) {
	store := diamond(t)
	require.NoError(t, store.AddEdge(&storage.Edge{From: "C", To: "A", Type: "connects"}))

	paths, err := New(store).Traverse(context.Background(), Pattern{
		StartNode: "A",
		Direction: storage.DirectionBoth,
		MaxDepth:  10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		seen := make(map[storage.NodeID]bool)
		for _, n := range p.Nodes {
			assert.False(t, seen[n], "node %s repeated in %v", n, p.Nodes)
			seen[n] = true
		}
	}
}

func TestBudgetExceeded(t *testing.T) {
	ctx := context.Background()
	engine := New(diamond(t), WithBudget(2))

	path, err := engine.ShortestPath(ctx, "A", "C")
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Nil(t, path)
	assert.True(t, IsAbort(err))

	paths, err := engine.Traverse(ctx, Pattern{StartNode: "A", MaxDepth: 2})
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Nil(t, paths)

	// A call that fits the budget is unaffected.
	nodes, err := engine.FindConnected(ctx, "A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, nodeStrings(nodes))
}

// cancellingReader cancels a context after a number of GetEdges calls.
type cancellingReader struct {
	storage.Reader
	cancel func()
	after  int
	calls  int
}

func (r *cancellingReader) GetEdges(id storage.NodeID, d storage.Direction) ([]*storage.Edge, error) {
	r.calls++
	if r.calls == r.after {
		r.cancel()
	}
	return r.Reader.GetEdges(id, d)
}

func TestCancellationDiscardsResults(t *testing.T) {
	store := storage.NewMemoryEngine(storage.Options{AutoCreate: true})
	defer store.Close()
	for i := 0; i < 500; i++ {
		from := storage.NodeID(fmt.Sprintf("n%03d", i))
		to := storage.NodeID(fmt.Sprintf("n%03d", i+1))
		require.NoError(t, store.AddEdge(&storage.Edge{From: from, To: to, Type: "next"}))
	}

	t.Run("already cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		got, err := New(store).FindConnected(ctx, "n000", 10)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got)
	})

	t.Run("cancelled mid walk", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reader := &cancellingReader{Reader: store, cancel: cancel, after: 50}

		got, err := New(reader).FindConnected(ctx, "n000", 1000)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got)
	})

	t.Run("cancelled traverse", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reader := &cancellingReader{Reader: store, cancel: cancel, after: 10}

		got, err := New(reader).Traverse(ctx, Pattern{StartNode: "n000", MaxDepth: 1000})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, got)
	})
}

func TestDetectCycles(t *testing.T) {
	ctx := context.Background()
	store := diamond(t)
	engine := New(store)

	cycles, err := engine.DetectStoreCycles(ctx)
	require.NoError(t, err)
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)

	require.NoError(t, store.AddEdge(&storage.Edge{From: "C", To: "A", Type: "connects"}))
	cycles, err = engine.DetectStoreCycles(ctx)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, nodeStrings(cycles[0]))

	t.Run("every cycle is closed", func(t *testing.T) {
		require.NoError(t, store.AddEdge(&storage.Edge{From: "D", To: "D", Type: "self"}))
		cycles, err := engine.DetectStoreCycles(ctx)
		require.NoError(t, err)
		require.Len(t, cycles, 2)
		for _, c := range cycles {
			require.GreaterOrEqual(t, len(c), 2)
			assert.Equal(t, c[0], c[len(c)-1])
		}
		assert.Contains(t, cycles, []storage.NodeID{"D", "D"})
	})

	t.Run("explicit subset", func(t *testing.T) {
		edges, err := store.AllEdges()
		require.NoError(t, err)
		cycles, err := engine.DetectCycles(ctx, []storage.NodeID{"A", "B", "D"}, edges)
		require.NoError(t, err)
		assert.Equal(t, [][]storage.NodeID{{"D", "D"}}, cycles)
	})

	t.Run("deep chain does not recurse", func(t *testing.T) {
		const n = 20000
		nodes := make([]storage.NodeID, n)
		edges := make([]*storage.Edge, 0, n)
		for i := range nodes {
			nodes[i] = storage.NodeID(fmt.Sprintf("c%d", i))
		}
		for i := 0; i < n; i++ {
			edges = append(edges, &storage.Edge{From: nodes[i], To: nodes[(i+1)%n]})
		}
		cycles, err := New(storage.NewMemoryEngine(storage.Options{})).DetectCycles(ctx, nodes, edges)
		require.NoError(t, err)
		require.Len(t, cycles, 1)
		assert.Len(t, cycles[0], n+1)
	})
}

func TestEngineOverBadger(t *testing.T) {
	store, err := storage.NewBadgerEngineInMemory()
	require.NoError(t, err)
	defer store.Close()

	for _, id := range []storage.NodeID{"A", "B", "C", "D"} {
		require.NoError(t, store.AddNode(&storage.Node{ID: id, Type: "section"}))
	}
	for _, e := range [][2]storage.NodeID{{"A", "B"}, {"B", "C"}, {"A", "D"}, {"D", "C"}} {
		require.NoError(t, store.AddEdge(&storage.Edge{From: e[0], To: e[1], Type: "connects"}))
	}

	path, err := New(store).ShortestPath(context.Background(), "A", "C")
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{"A", "B", "C"}, nodeStrings(path.Nodes))
}
