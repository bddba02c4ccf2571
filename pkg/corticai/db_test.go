package corticai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jwynia/corticai/pkg/config"
	"github.com/jwynia/corticai/pkg/index"
	"github.com/jwynia/corticai/pkg/storage"
	"github.com/jwynia/corticai/pkg/traversal"
	"github.com/jwynia/corticai/pkg/value"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.InMemory = true
	return cfg
}

func openDB(t *testing.T, cfg *config.Config) *DB {
	t.Helper()
	db, err := Open(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenInMemory(t *testing.T) {
	db := openDB(t, memoryConfig())

	assert.IsType(t, &storage.MemoryEngine{}, db.Store())
	assert.NotNil(t, db.Traversal())
	assert.NotNil(t, db.Index())
	assert.NoError(t, db.SaveIndex())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.DuplicateNodes = "merge"

	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestOpenAppliesStoreOptions(t *testing.T) {
	cfg := memoryConfig()
	cfg.AutoCreate = true
	cfg.DuplicateNodes = "reject"
	db := openDB(t, cfg)

	require.NoError(t, db.Store().AddEdge(&storage.Edge{From: "a", To: "b", Type: "links"}))
	node, err := db.Store().GetNode("a")
	require.NoError(t, err)
	assert.Equal(t, storage.PlaceholderType, node.Type)

	err = db.Store().AddNode(&storage.Node{ID: "a", Type: "doc"})
	assert.ErrorIs(t, err, storage.ErrNodeExists)
}

func TestOpenBadgerPersistsGraphAndIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "graph")
	cfg.IndexPath = filepath.Join(dir, "index.json")

	db, err := Open(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, db.Store().AddNode(&storage.Node{ID: "a", Type: "doc"}))
	require.NoError(t, db.Index().AddAttribute("a", "status", value.String("draft")))
	require.NoError(t, db.Close())
	assert.NoError(t, db.Close())

	_, err = os.Stat(cfg.IndexPath)
	require.NoError(t, err)

	db = openDB(t, cfg)
	ok, err := db.Store().HasNode("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a"}, db.Index().FindByAttribute("status", index.Ptr(value.String("draft"))))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Nodes)
	assert.Equal(t, 1, stats.Index.TotalEntities)
}

func TestOpenFailsOnCorruptIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(dir, "graph")
	cfg.IndexPath = filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(cfg.IndexPath, []byte("{not json"), 0644))

	_, err := Open(cfg, WithLogger(zaptest.NewLogger(t)))
	require.Error(t, err)
	assert.ErrorIs(t, err, index.ErrSerialization)

	// The store was released, so the directory can be opened again.
	cfg.IndexPath = ""
	db := openDB(t, cfg)
	assert.NotNil(t, db.Store())
}

func TestFindConnectedFrom(t *testing.T) {
	db := openDB(t, memoryConfig())
	store := db.Store()
	for _, id := range []storage.NodeID{"a", "b", "c", "x", "y"} {
		require.NoError(t, store.AddNode(&storage.Node{ID: id, Type: "doc"}))
	}
	for _, e := range [][2]storage.NodeID{{"a", "b"}, {"b", "c"}, {"x", "y"}, {"y", "c"}} {
		require.NoError(t, store.AddEdge(&storage.Edge{From: e[0], To: e[1], Type: "links"}))
	}

	idx := db.Index()
	require.NoError(t, idx.AddAttribute("a", "status", value.String("draft")))
	require.NoError(t, idx.AddAttribute("x", "status", value.String("draft")))
	// Indexed but not in the store.
	require.NoError(t, idx.AddAttribute("ghost", "status", value.String("draft")))

	draft := []index.Condition{{Attribute: "status", Operator: index.OpEquals, Value: value.String("draft")}}
	ctx := context.Background()

	got, err := db.FindConnectedFrom(ctx, draft, index.ModeAnd, 1)
	require.NoError(t, err)
	assert.Equal(t, []storage.NodeID{"a", "b", "x", "y"}, got)

	got, err = db.FindConnectedFrom(ctx, draft, index.ModeAnd, 2)
	require.NoError(t, err)
	assert.Equal(t, []storage.NodeID{"a", "b", "c", "x", "y"}, got)

	got, err = db.FindConnectedFrom(ctx, nil, index.ModeOr, 2)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = db.FindConnectedFrom(ctx, draft, index.ModeAnd, -1)
	assert.ErrorIs(t, err, traversal.ErrInvalidDepth)

	// The depth is checked even when no seed matches.
	none := []index.Condition{{Attribute: "status", Operator: index.OpEquals, Value: value.String("archived")}}
	_, err = db.FindConnectedFrom(ctx, none, index.ModeAnd, -1)
	assert.ErrorIs(t, err, traversal.ErrInvalidDepth)
	_, err = db.FindConnectedFrom(ctx, nil, index.ModeAnd, -1)
	assert.ErrorIs(t, err, traversal.ErrInvalidDepth)
}

func TestRunGC(t *testing.T) {
	db := openDB(t, memoryConfig())
	assert.NoError(t, db.RunGC())

	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "graph")
	persistent := openDB(t, cfg)
	require.NoError(t, persistent.Store().AddNode(&storage.Node{ID: "a", Type: "doc"}))
	assert.NoError(t, persistent.RunGC())

	require.NoError(t, persistent.Close())
	assert.ErrorIs(t, persistent.RunGC(), ErrClosed)
}

func TestClosedDB(t *testing.T) {
	db, err := Open(memoryConfig(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Sync(), ErrClosed)
	assert.ErrorIs(t, db.SaveIndex(), ErrClosed)
	_, err = db.Stats()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.FindConnectedFrom(context.Background(), nil, index.ModeAnd, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Store().NodeCount()
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
