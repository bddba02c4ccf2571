// Package storage provides storage engine implementations for corticai.
//
// BadgerEngine provides persistent disk-based storage using BadgerDB.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/value"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode          = byte(0x01) // nodes:nodeID -> Node
	prefixEdge          = byte(0x02) // edges:edgeID -> Edge
	prefixTypeIndex     = byte(0x03) // type:nodeType:nodeID -> []byte{}
	prefixOutgoingIndex = byte(0x04) // outgoing:nodeID:seq -> edgeID
	prefixIncomingIndex = byte(0x05) // incoming:nodeID:seq -> edgeID
	prefixMeta          = byte(0x07) // meta:name -> engine bookkeeping
)

// edgeSeqBandwidth is how many sequence numbers are leased per badger write.
const edgeSeqBandwidth = 128

// maxConflictRetries bounds how often a write is retried after badger
// reports a conflicting concurrent transaction.
const maxConflictRetries = 5

var edgeSeqKey = append([]byte{prefixMeta}, []byte("edge_seq")...)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Edges: 0x02 + edgeID -> JSON(Edge)
//   - Type Index: 0x03 + type + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + seq -> edgeID
//   - Incoming Index: 0x05 + nodeID + 0x00 + seq -> edgeID
//
// seq is the edge's 8-byte big-endian insertion sequence, so a prefix scan of
// a node's adjacency index yields its edges in insertion order.
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.AddNode(&storage.Node{ID: "a", Type: "section"})
type BadgerEngine struct {
	db   *badger.DB
	seq  *badger.Sequence
	opts BadgerOptions
	log  *zap.Logger

	// mu is held for reading by every operation and for writing by Clear and
	// Close, so the db handle and sequence never change under a running call.
	mu     sync.RWMutex
	closed bool
}

// BadgerOptions configures the BadgerDB engine.
type BadgerOptions struct {
	Options

	// DataDir is the directory for storing data files.
	// Required unless InMemory is set.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode.
	// Useful for testing. Data is not persisted.
	InMemory bool

	// SyncWrites forces fsync after each write.
	// Slower but every committed write is durable without calling Sync.
	SyncWrites bool

	// LowMemory shrinks memtables and caches for constrained environments.
	LowMemory bool
}

// NewBadgerEngine creates a new persistent storage engine with default settings.
//
// The directory is created if it doesn't exist. All data persists across
// restarts once flushed (see Sync).
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		DataDir: dataDir,
	})
}

// NewBadgerEngineInMemory creates an in-memory BadgerDB for testing.
//
// Data is not persisted and is lost when the engine is closed.
func NewBadgerEngineInMemory() (*BadgerEngine, error) {
	return NewBadgerEngineWithOptions(BadgerOptions{
		InMemory: true,
	})
}

// NewBadgerEngineWithOptions creates a BadgerEngine with custom configuration.
//
// Example:
//
//	engine, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{
//		DataDir:    "./data/graph",
//		SyncWrites: true,
//		Options: storage.Options{
//			AutoCreate: true,
//			Logger:     logger,
//		},
//	})
func NewBadgerEngineWithOptions(opts BadgerOptions) (*BadgerEngine, error) {
	if !opts.InMemory && opts.DataDir == "" {
		return nil, fmt.Errorf("%w: data directory required", ErrInvalidData)
	}

	logger := opts.logger().Named("storage")

	dir := opts.DataDir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(newBadgerLogger(logger))

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(16 << 20).
			WithValueLogFileSize(64 << 20).
			WithNumMemtables(2).
			WithNumLevelZeroTables(2).
			WithNumLevelZeroTablesStall(4).
			WithBlockCacheSize(32 << 20).
			WithIndexCacheSize(16 << 20)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence(edgeSeqKey, edgeSeqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open edge sequence: %w", err)
	}

	logger.Debug("badger engine opened",
		zap.String("dir", opts.DataDir),
		zap.Bool("in_memory", opts.InMemory),
		zap.Bool("sync_writes", opts.SyncWrites))

	return &BadgerEngine{
		db:   db,
		seq:  seq,
		opts: opts,
		log:  logger,
	}, nil
}

// ============================================================================
// Key encoding helpers
// ============================================================================

// nodeKey creates a key for storing a node.
func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

// edgeKey creates a key for storing an edge.
func edgeKey(id EdgeID) []byte {
	return append([]byte{prefixEdge}, []byte(id)...)
}

// typeIndexKey creates a key for the node type index.
// Format: prefix + type + 0x00 + nodeID
func typeIndexKey(nodeType string, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeType)+1+len(nodeID))
	key = append(key, prefixTypeIndex)
	key = append(key, []byte(nodeType)...)
	key = append(key, 0x00)
	key = append(key, []byte(nodeID)...)
	return key
}

// typeIndexPrefix returns the prefix for scanning all nodes of a type.
func typeIndexPrefix(nodeType string) []byte {
	key := make([]byte, 0, 1+len(nodeType)+1)
	key = append(key, prefixTypeIndex)
	key = append(key, []byte(nodeType)...)
	key = append(key, 0x00)
	return key
}

// adjacencyPrefix returns the prefix for scanning one node's adjacency list.
// Format: prefix + nodeID + 0x00
func adjacencyPrefix(prefix byte, nodeID NodeID) []byte {
	key := make([]byte, 0, 1+len(nodeID)+1)
	key = append(key, prefix)
	key = append(key, []byte(nodeID)...)
	key = append(key, 0x00)
	return key
}

// adjacencyKey creates an outgoing or incoming index key.
// Format: prefix + nodeID + 0x00 + seq (big-endian)
func adjacencyKey(prefix byte, nodeID NodeID, seq uint64) []byte {
	key := adjacencyPrefix(prefix, nodeID)
	return binary.BigEndian.AppendUint64(key, seq)
}

// ============================================================================
// Serialization helpers
// ============================================================================

// serializableNode is the JSON-serializable form of a Node.
type serializableNode struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Properties *value.Properties `json:"properties"`
	CreatedAt  int64             `json:"createdAt"`
	UpdatedAt  int64             `json:"updatedAt"`
}

// serializableEdge is the JSON-serializable form of an Edge.
type serializableEdge struct {
	ID         string            `json:"id"`
	From       string            `json:"from"`
	To         string            `json:"to"`
	Type       string            `json:"type"`
	Properties *value.Properties `json:"properties"`
	Seq        uint64            `json:"seq"`
	CreatedAt  int64             `json:"createdAt"`
}

// encodeNode serializes a Node to JSON.
func encodeNode(n *Node) ([]byte, error) {
	return json.Marshal(serializableNode{
		ID:         string(n.ID),
		Type:       n.Type,
		Properties: propsOrEmpty(n.Properties),
		CreatedAt:  timeToUnixNano(n.CreatedAt),
		UpdatedAt:  timeToUnixNano(n.UpdatedAt),
	})
}

// decodeNode deserializes a Node from JSON.
func decodeNode(data []byte) (*Node, error) {
	var sn serializableNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, err
	}
	return &Node{
		ID:         NodeID(sn.ID),
		Type:       sn.Type,
		Properties: propsOrEmpty(sn.Properties),
		CreatedAt:  unixNanoToTime(sn.CreatedAt),
		UpdatedAt:  unixNanoToTime(sn.UpdatedAt),
	}, nil
}

// encodeEdge serializes an Edge to JSON.
func encodeEdge(e *Edge) ([]byte, error) {
	return json.Marshal(serializableEdge{
		ID:         string(e.ID),
		From:       string(e.From),
		To:         string(e.To),
		Type:       e.Type,
		Properties: propsOrEmpty(e.Properties),
		Seq:        e.Seq,
		CreatedAt:  timeToUnixNano(e.CreatedAt),
	})
}

// decodeEdge deserializes an Edge from JSON.
func decodeEdge(data []byte) (*Edge, error) {
	var se serializableEdge
	if err := json.Unmarshal(data, &se); err != nil {
		return nil, err
	}
	return &Edge{
		ID:         EdgeID(se.ID),
		From:       NodeID(se.From),
		To:         NodeID(se.To),
		Type:       se.Type,
		Properties: propsOrEmpty(se.Properties),
		Seq:        se.Seq,
		CreatedAt:  unixNanoToTime(se.CreatedAt),
	}, nil
}

func propsOrEmpty(p *value.Properties) *value.Properties {
	if p == nil {
		return value.NewProperties()
	}
	return p
}

func timeToUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func unixNanoToTime(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// ============================================================================
// Transaction helpers
// ============================================================================

// acquire takes the read lock and checks the closed flag. The returned
// function releases the lock.
func (b *BadgerEngine) acquire() (func(), error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrStorageClosed
	}
	return b.mu.RUnlock, nil
}

// update runs fn in a read-write transaction, retrying on ErrConflict.
func (b *BadgerEngine) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getNodeInTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		var decodeErr error
		node, decodeErr = decodeNode(val)
		return decodeErr
	})
	return node, err
}

func getEdgeInTxn(txn *badger.Txn, id EdgeID) (*Edge, error) {
	item, err := txn.Get(edgeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var edge *Edge
	err = item.Value(func(val []byte) error {
		var decodeErr error
		edge, decodeErr = decodeEdge(val)
		return decodeErr
	})
	return edge, err
}

func nodeExistsInTxn(txn *badger.Txn, id NodeID) (bool, error) {
	_, err := txn.Get(nodeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func putNodeInTxn(txn *badger.Txn, node *Node) error {
	data, err := encodeNode(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	if err := txn.Set(nodeKey(node.ID), data); err != nil {
		return err
	}
	return txn.Set(typeIndexKey(node.Type, node.ID), []byte{})
}

// adjacencyEdgeIDs scans an adjacency prefix and returns edge ids in seq order.
func adjacencyEdgeIDs(txn *badger.Txn, prefix []byte) ([]EdgeID, error) {
	var ids []EdgeID
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			ids = append(ids, EdgeID(val))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func deleteEdgeInTxn(txn *badger.Txn, id EdgeID) error {
	edge, err := getEdgeInTxn(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixOutgoingIndex, edge.From, edge.Seq)); err != nil {
		return err
	}
	if err := txn.Delete(adjacencyKey(prefixIncomingIndex, edge.To, edge.Seq)); err != nil {
		return err
	}
	return txn.Delete(edgeKey(id))
}

// ============================================================================
// Node Operations
// ============================================================================

// AddNode creates or replaces a node.
//
// With DuplicateReject an existing id fails with ErrNodeExists. On replace,
// CreatedAt of the stored node is kept and the type index follows the new type.
func (b *BadgerEngine) AddNode(node *Node) error {
	if err := validateNode(node); err != nil {
		return err
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	now := time.Now()
	stored := copyNode(node)
	stored.UpdatedAt = now

	err = b.update(func(txn *badger.Txn) error {
		existing, err := getNodeInTxn(txn, node.ID)
		switch {
		case err == nil:
			if b.opts.Duplicates == DuplicateReject {
				return fmt.Errorf("%w: %q", ErrNodeExists, node.ID)
			}
			if existing.Type != stored.Type {
				if err := txn.Delete(typeIndexKey(existing.Type, existing.ID)); err != nil {
					return err
				}
			}
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = existing.CreatedAt
			}
		case errors.Is(err, ErrNotFound):
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = now
			}
		default:
			return err
		}
		return putNodeInTxn(txn, stored)
	})
	if err != nil {
		return err
	}

	b.log.Debug("node stored", zap.String("id", string(node.ID)), zap.String("type", node.Type))
	return nil
}

// GetNode retrieves a node by ID. Absence is reported as ErrNotFound.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var node *Node
	err = b.db.View(func(txn *badger.Txn) error {
		var getErr error
		node, getErr = getNodeInTxn(txn, id)
		return getErr
	})
	return node, err
}

// HasNode reports whether a node exists.
func (b *BadgerEngine) HasNode(id NodeID) (bool, error) {
	release, err := b.acquire()
	if err != nil {
		return false, err
	}
	defer release()

	var exists bool
	err = b.db.View(func(txn *badger.Txn) error {
		var existsErr error
		exists, existsErr = nodeExistsInTxn(txn, id)
		return existsErr
	})
	return exists, err
}

// DeleteNode removes a node and all its edges.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	return b.update(func(txn *badger.Txn) error {
		node, err := getNodeInTxn(txn, id)
		if err != nil {
			return err
		}

		out, err := adjacencyEdgeIDs(txn, adjacencyPrefix(prefixOutgoingIndex, id))
		if err != nil {
			return err
		}
		in, err := adjacencyEdgeIDs(txn, adjacencyPrefix(prefixIncomingIndex, id))
		if err != nil {
			return err
		}
		for _, edgeID := range append(out, in...) {
			// A self-loop is listed in both indexes; the second delete sees ErrNotFound.
			if err := deleteEdgeInTxn(txn, edgeID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		if err := txn.Delete(typeIndexKey(node.Type, id)); err != nil {
			return err
		}
		return txn.Delete(nodeKey(id))
	})
}

// GetNodesByType returns all nodes of the given type.
func (b *BadgerEngine) GetNodesByType(nodeType string) ([]*Node, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var nodes []*Node
	err = b.db.View(func(txn *badger.Txn) error {
		prefix := typeIndexPrefix(nodeType)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := NodeID(it.Item().Key()[len(prefix):])
			node, err := getNodeInTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	return nodes, err
}

// AllNodes returns every node, ordered by id.
func (b *BadgerEngine) AllNodes() ([]*Node, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var nodes []*Node
	err = b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixNode}
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				node, decodeErr := decodeNode(val)
				if decodeErr != nil {
					return decodeErr
				}
				nodes = append(nodes, node)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return nodes, err
}

// ============================================================================
// Edge Operations
// ============================================================================

// AddEdge stores a new directed edge.
//
// The engine assigns ID (when empty), Seq and CreatedAt and writes them back
// into edge on success. If an endpoint is missing, AddEdge fails with
// ErrEndpointMissing unless AutoCreate is set, in which case placeholder
// nodes are created in the same transaction.
func (b *BadgerEngine) AddEdge(edge *Edge) error {
	if err := validateEdge(edge); err != nil {
		return err
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	stored := copyEdge(edge)
	if stored.ID == "" {
		stored.ID = EdgeID(uuid.NewString())
	}
	stored.Seq, err = b.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to allocate edge sequence: %w", err)
	}
	now := time.Now()
	stored.CreatedAt = now

	err = b.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(edgeKey(stored.ID)); err == nil {
			return fmt.Errorf("%w: %q", ErrEdgeExists, stored.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		for _, endpoint := range []NodeID{stored.From, stored.To} {
			exists, err := nodeExistsInTxn(txn, endpoint)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if !b.opts.AutoCreate {
				return endpointMissing(endpoint)
			}
			if err := putNodeInTxn(txn, placeholderNode(endpoint, now)); err != nil {
				return err
			}
		}

		data, err := encodeEdge(stored)
		if err != nil {
			return fmt.Errorf("failed to encode edge: %w", err)
		}
		if err := txn.Set(edgeKey(stored.ID), data); err != nil {
			return err
		}
		if err := txn.Set(adjacencyKey(prefixOutgoingIndex, stored.From, stored.Seq), []byte(stored.ID)); err != nil {
			return err
		}
		return txn.Set(adjacencyKey(prefixIncomingIndex, stored.To, stored.Seq), []byte(stored.ID))
	})
	if err != nil {
		return err
	}

	edge.ID = stored.ID
	edge.Seq = stored.Seq
	edge.CreatedAt = stored.CreatedAt

	b.log.Debug("edge stored",
		zap.String("id", string(stored.ID)),
		zap.String("from", string(stored.From)),
		zap.String("to", string(stored.To)),
		zap.String("type", stored.Type),
		zap.Uint64("seq", stored.Seq))
	return nil
}

// GetEdge retrieves an edge by ID.
func (b *BadgerEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var edge *Edge
	err = b.db.View(func(txn *badger.Txn) error {
		var getErr error
		edge, getErr = getEdgeInTxn(txn, id)
		return getErr
	})
	return edge, err
}

// DeleteEdge removes an edge.
func (b *BadgerEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	return b.update(func(txn *badger.Txn) error {
		return deleteEdgeInTxn(txn, id)
	})
}

// GetEdges returns the edges incident to nodeID in insertion order.
//
// DirectionBoth merges outgoing and incoming edges by Seq; a self-loop is
// returned once. An unknown node has no edges and yields an empty slice.
func (b *BadgerEngine) GetEdges(nodeID NodeID, direction Direction) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	var prefixes [][]byte
	switch direction {
	case DirectionOutgoing:
		prefixes = [][]byte{adjacencyPrefix(prefixOutgoingIndex, nodeID)}
	case DirectionIncoming:
		prefixes = [][]byte{adjacencyPrefix(prefixIncomingIndex, nodeID)}
	case DirectionBoth:
		prefixes = [][]byte{
			adjacencyPrefix(prefixOutgoingIndex, nodeID),
			adjacencyPrefix(prefixIncomingIndex, nodeID),
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidData, direction)
	}

	edges := make([]*Edge, 0)
	err = b.db.View(func(txn *badger.Txn) error {
		seen := make(map[EdgeID]struct{})
		for _, prefix := range prefixes {
			ids, err := adjacencyEdgeIDs(txn, prefix)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				edge, err := getEdgeInTxn(txn, id)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				edges = append(edges, edge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(prefixes) > 1 {
		sortEdgesBySeq(edges)
	}
	return edges, nil
}

// AllEdges returns every edge in insertion order.
func (b *BadgerEngine) AllEdges() ([]*Edge, error) {
	release, err := b.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	edges := make([]*Edge, 0)
	err = b.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixEdge}
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				edge, decodeErr := decodeEdge(val)
				if decodeErr != nil {
					return decodeErr
				}
				edges = append(edges, edge)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEdgesBySeq(edges)
	return edges, nil
}

func sortEdgesBySeq(edges []*Edge) {
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Seq < edges[j].Seq })
}

// ============================================================================
// Stats
// ============================================================================

// NodeCount returns the number of stored nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	return b.countPrefix([]byte{prefixNode})
}

// EdgeCount returns the number of stored edges.
func (b *BadgerEngine) EdgeCount() (int64, error) {
	return b.countPrefix([]byte{prefixEdge})
}

func (b *BadgerEngine) countPrefix(prefix []byte) (int64, error) {
	release, err := b.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var count int64
	err = b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: false})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ============================================================================
// Lifecycle
// ============================================================================

// Clear removes every node and edge. It can be called any number of times.
// Edge sequences restart after a clear.
func (b *BadgerEngine) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrStorageClosed
	}

	if err := b.seq.Release(); err != nil {
		return fmt.Errorf("failed to release edge sequence: %w", err)
	}
	dropErr := b.db.DropAll()

	// The sequence must be reopened even if DropAll failed, or every later
	// AddEdge would use a released lease.
	seq, err := b.db.GetSequence(edgeSeqKey, edgeSeqBandwidth)
	if err != nil {
		return errors.Join(dropErr, fmt.Errorf("failed to reopen edge sequence: %w", err))
	}
	b.seq = seq
	if dropErr != nil {
		return fmt.Errorf("failed to clear store: %w", dropErr)
	}

	b.log.Debug("store cleared")
	return nil
}

// Sync flushes committed writes to disk. Writes that returned before Sync
// started survive abrupt termination once Sync returns nil.
func (b *BadgerEngine) Sync() error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	return b.db.Sync()
}

// RunGC runs one round of BadgerDB value log garbage collection.
// ErrNoRewrite from badger means there was nothing to collect and is not
// reported.
func (b *BadgerEngine) RunGC() error {
	release, err := b.acquire()
	if err != nil {
		return err
	}
	defer release()

	err = b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Size returns the on-disk size of the LSM tree and the value log in bytes.
func (b *BadgerEngine) Size() (lsm, vlog int64, err error) {
	release, err := b.acquire()
	if err != nil {
		return 0, 0, err
	}
	defer release()

	lsm, vlog = b.db.Size()
	return lsm, vlog, nil
}

// Close releases the sequence lease and the database. It is safe to call
// more than once; calls after the first return nil.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var seqErr error
	if b.seq != nil {
		seqErr = b.seq.Release()
	}
	closeErr := b.db.Close()

	b.log.Debug("badger engine closed")
	return errors.Join(seqErr, closeErr)
}

// Ensure BadgerEngine implements Engine.
var _ Engine = (*BadgerEngine)(nil)
