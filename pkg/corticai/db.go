// Package corticai opens a complete corticai graph from one configuration.
//
// A DB bundles the node and edge store, the traversal engine over it and
// the attribute index. The three share a logger and a lifecycle but no
// state: the index is keyed by entity id and is not kept in sync with the
// store automatically.
//
// Example Usage:
//
//	cfg, err := config.Load("corticai.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	db, err := corticai.Open(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	db.Store().AddNode(&storage.Node{ID: "a", Type: "doc"})
//	db.Index().AddAttribute("a", "status", value.String("draft"))
//
//	reachable, err := db.FindConnectedFrom(ctx, []index.Condition{
//		{Attribute: "status", Operator: index.OpEquals, Value: value.String("draft")},
//	}, index.ModeAnd, 2)
package corticai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/config"
	"github.com/jwynia/corticai/pkg/index"
	"github.com/jwynia/corticai/pkg/logging"
	"github.com/jwynia/corticai/pkg/storage"
	"github.com/jwynia/corticai/pkg/traversal"
)

// ErrClosed is returned by DB methods after Close.
var ErrClosed = errors.New("corticai: database closed")

// DB is an open corticai graph.
type DB struct {
	cfg       *config.Config
	store     storage.Engine
	traversal *traversal.Engine
	index     *index.AttributeIndex

	log       *zap.Logger
	ownLogger bool

	mu     sync.Mutex
	closed bool
}

// Option configures Open.
type Option func(*DB)

// WithLogger uses l instead of building a logger from the configuration.
// The caller keeps ownership; Close does not sync it.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.log = l
		}
	}
}

// Open validates cfg and opens the store, traversal engine and index.
// A nil cfg means config.Default(). When cfg.IndexPath names an existing
// snapshot it is loaded; a missing file starts an empty index.
func Open(cfg *config.Config, opts ...Option) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	duplicates, err := cfg.DuplicatePolicy()
	if err != nil {
		return nil, err
	}

	db := &DB{cfg: cfg}
	for _, opt := range opts {
		opt(db)
	}
	if db.log == nil {
		logger, err := logging.New(cfg)
		if err != nil {
			return nil, err
		}
		db.log = logger
		db.ownLogger = true
	}

	storeOpts := storage.Options{
		AutoCreate: cfg.AutoCreate,
		Duplicates: duplicates,
		Logger:     db.log,
	}
	if cfg.InMemory {
		db.store = storage.NewMemoryEngine(storeOpts)
		db.log.Info("using in-memory storage (data will not persist)")
	} else {
		engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
			Options:    storeOpts,
			DataDir:    cfg.DatabasePath,
			SyncWrites: cfg.SyncWrites,
			LowMemory:  cfg.LowMemory,
		})
		if err != nil {
			db.syncLogger()
			return nil, fmt.Errorf("failed to open persistent storage: %w", err)
		}
		db.store = engine
		db.log.Info("using persistent storage", zap.String("path", cfg.DatabasePath))
	}

	db.traversal = traversal.New(db.store,
		traversal.WithBudget(cfg.TraversalBudget),
		traversal.WithLogger(db.log))

	db.index = index.New(index.WithLogger(db.log))
	if cfg.IndexPath != "" {
		if err := db.index.Load(cfg.IndexPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				closeErr := db.store.Close()
				db.syncLogger()
				return nil, errors.Join(fmt.Errorf("failed to load attribute index: %w", err), closeErr)
			}
			db.log.Info("no index snapshot, starting empty", zap.String("path", cfg.IndexPath))
		}
	}

	return db, nil
}

// Config returns the configuration the DB was opened with.
func (db *DB) Config() *config.Config { return db.cfg }

// Store returns the node and edge store.
func (db *DB) Store() storage.Engine { return db.store }

// Traversal returns the traversal engine bound to the store.
func (db *DB) Traversal() *traversal.Engine { return db.traversal }

// Index returns the attribute index.
func (db *DB) Index() *index.AttributeIndex { return db.index }

// Logger returns the logger shared by all components.
func (db *DB) Logger() *zap.Logger { return db.log }

// SaveIndex writes the index snapshot to the configured path. It is a
// no-op when no IndexPath is configured.
func (db *DB) SaveIndex() error {
	if db.isClosed() {
		return ErrClosed
	}
	if db.cfg.IndexPath == "" {
		return nil
	}
	return db.index.Save(db.cfg.IndexPath)
}

// Sync flushes the store and saves the index.
func (db *DB) Sync() error {
	if db.isClosed() {
		return ErrClosed
	}
	return errors.Join(db.store.Sync(), db.SaveIndex())
}

// FindConnectedFrom seeds a reachability search with the entities matching
// conditions. Seeds absent from the store are skipped. The result is the
// union of every seed's FindConnected result: seeds in ascending id order,
// each followed by its newly discovered nodes in discovery order.
func (db *DB) FindConnectedFrom(ctx context.Context, conditions []index.Condition, mode index.Mode, maxDepth int) ([]storage.NodeID, error) {
	if db.isClosed() {
		return nil, ErrClosed
	}
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", traversal.ErrInvalidDepth, maxDepth)
	}
	seeds, err := db.index.FindByAttributes(conditions, mode)
	if err != nil {
		return nil, err
	}

	seen := make(map[storage.NodeID]struct{})
	result := []storage.NodeID{}
	for _, seed := range seeds {
		id := storage.NodeID(seed)
		if _, ok := seen[id]; ok {
			continue
		}
		exists, err := db.store.HasNode(id)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		reached, err := db.traversal.FindConnected(ctx, id, maxDepth)
		if err != nil {
			return nil, fmt.Errorf("from %q: %w", id, err)
		}
		for _, n := range reached {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}
	return result, nil
}

// RunGC runs one round of value log garbage collection on a persistent
// store. It does nothing for the in-memory engine.
func (db *DB) RunGC() error {
	if db.isClosed() {
		return ErrClosed
	}
	engine, ok := db.store.(*storage.BadgerEngine)
	if !ok {
		return nil
	}
	_, before, err := engine.Size()
	if err != nil {
		return err
	}
	if err := engine.RunGC(); err != nil {
		return err
	}
	_, after, err := engine.Size()
	if err != nil {
		return err
	}
	db.log.Debug("value log gc complete",
		zap.Int64("vlog_before", before),
		zap.Int64("vlog_after", after))
	return nil
}

// Stats summarizes the store and the index.
type Stats struct {
	Nodes int64
	Edges int64
	Index index.Statistics
	// LSMSize and VLogSize are zero for the in-memory engine.
	LSMSize  int64
	VLogSize int64
}

// Stats collects counts from the store and the index.
func (db *DB) Stats() (Stats, error) {
	if db.isClosed() {
		return Stats{}, ErrClosed
	}
	var stats Stats
	var err error
	if stats.Nodes, err = db.store.NodeCount(); err != nil {
		return stats, err
	}
	if stats.Edges, err = db.store.EdgeCount(); err != nil {
		return stats, err
	}
	if engine, ok := db.store.(*storage.BadgerEngine); ok {
		if stats.LSMSize, stats.VLogSize, err = engine.Size(); err != nil {
			return stats, err
		}
	}
	stats.Index = db.index.Statistics()
	return stats, nil
}

// Close saves the index when a path is configured, closes the store and
// syncs the logger. Every step runs even if an earlier one fails; the
// errors are joined. Calls after the first return nil.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	var saveErr error
	if db.cfg.IndexPath != "" {
		saveErr = db.index.Save(db.cfg.IndexPath)
		if saveErr != nil {
			db.log.Error("failed to save attribute index", zap.Error(saveErr))
		}
	}
	closeErr := db.store.Close()
	db.syncLogger()
	return errors.Join(saveErr, closeErr)
}

func (db *DB) isClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

// syncLogger flushes a logger Open built. Sync on stderr fails on some
// platforms, so its error is dropped.
func (db *DB) syncLogger() {
	if db.ownLogger {
		_ = db.log.Sync()
	}
}
