package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryEngine is a thread-safe in-memory graph storage implementation.
//
// Use Cases:
//   - Unit testing (no disk I/O, fast cleanup)
//   - Short-lived analysis graphs that fit entirely in RAM
//
// Features:
//   - Thread-safe: All operations use RWMutex for concurrent access
//   - Indexed: Maintains type and adjacency indexes for fast lookups
//   - Deep copies: Returns copies to prevent external mutation
//
// Performance Characteristics:
//   - Node lookup by ID: O(1)
//   - Node lookup by type: O(k) where k = nodes with that type
//   - Outgoing/incoming edges: O(degree)
//   - Edge delete: O(degree) of both endpoints
//
// Example:
//
//	engine := storage.NewMemoryEngine(storage.Options{})
//	defer engine.Close()
//
//	engine.AddNode(&storage.Node{ID: "a", Type: "section"})
//	engine.AddNode(&storage.Node{ID: "b", Type: "section"})
//	engine.AddEdge(&storage.Edge{From: "a", To: "b", Type: "references"})
type MemoryEngine struct {
	mu    sync.RWMutex
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge

	// Indexes for efficient lookups. Adjacency lists are kept in Seq order.
	nodesByType   map[string]map[NodeID]struct{}
	outgoingEdges map[NodeID][]EdgeID
	incomingEdges map[NodeID][]EdgeID

	seq    uint64
	opts   Options
	log    *zap.Logger
	closed bool
}

// NewMemoryEngine creates a new empty in-memory storage engine.
func NewMemoryEngine(opts Options) *MemoryEngine {
	m := &MemoryEngine{
		opts: opts,
		log:  opts.logger().Named("storage"),
	}
	m.reset()
	return m
}

func (m *MemoryEngine) reset() {
	m.nodes = make(map[NodeID]*Node)
	m.edges = make(map[EdgeID]*Edge)
	m.nodesByType = make(map[string]map[NodeID]struct{})
	m.outgoingEdges = make(map[NodeID][]EdgeID)
	m.incomingEdges = make(map[NodeID][]EdgeID)
	m.seq = 0
}

// AddNode creates or replaces a node according to the duplicate policy.
func (m *MemoryEngine) AddNode(node *Node) error {
	if err := validateNode(node); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	now := time.Now()
	stored := copyNode(node)
	stored.UpdatedAt = now

	if existing, ok := m.nodes[node.ID]; ok {
		if m.opts.Duplicates == DuplicateReject {
			return fmt.Errorf("%w: %q", ErrNodeExists, node.ID)
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = existing.CreatedAt
		}
		m.untypeUnlocked(existing)
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}

	m.putNodeUnlocked(stored)
	m.log.Debug("node stored", zap.String("id", string(node.ID)), zap.String("type", node.Type))
	return nil
}

// GetNode retrieves a node by ID. Absence is reported as ErrNotFound.
func (m *MemoryEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	node, ok := m.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyNode(node), nil
}

// HasNode reports whether a node exists.
func (m *MemoryEngine) HasNode(id NodeID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	_, ok := m.nodes[id]
	return ok, nil
}

// DeleteNode removes a node and every edge incident to it.
func (m *MemoryEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	node, ok := m.nodes[id]
	if !ok {
		return ErrNotFound
	}

	incident := append(append([]EdgeID(nil), m.outgoingEdges[id]...), m.incomingEdges[id]...)
	for _, edgeID := range incident {
		m.deleteEdgeUnlocked(edgeID)
	}

	m.untypeUnlocked(node)
	delete(m.nodes, id)
	delete(m.outgoingEdges, id)
	delete(m.incomingEdges, id)
	return nil
}

// GetNodesByType returns all nodes of the given type, ordered by id.
func (m *MemoryEngine) GetNodesByType(nodeType string) ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	ids := m.nodesByType[nodeType]
	nodes := make([]*Node, 0, len(ids))
	for id := range ids {
		nodes = append(nodes, copyNode(m.nodes[id]))
	}
	sortNodesByID(nodes)
	return nodes, nil
}

// AllNodes returns every node, ordered by id.
func (m *MemoryEngine) AllNodes() ([]*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	nodes := make([]*Node, 0, len(m.nodes))
	for _, node := range m.nodes {
		nodes = append(nodes, copyNode(node))
	}
	sortNodesByID(nodes)
	return nodes, nil
}

// AddEdge stores a new directed edge and writes the assigned ID, Seq and
// CreatedAt back into edge.
func (m *MemoryEngine) AddEdge(edge *Edge) error {
	if err := validateEdge(edge); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	stored := copyEdge(edge)
	if stored.ID == "" {
		stored.ID = EdgeID(uuid.NewString())
	}
	if _, exists := m.edges[stored.ID]; exists {
		return fmt.Errorf("%w: %q", ErrEdgeExists, stored.ID)
	}

	now := time.Now()
	var missing []NodeID
	for _, endpoint := range []NodeID{stored.From, stored.To} {
		if _, ok := m.nodes[endpoint]; ok {
			continue
		}
		if !m.opts.AutoCreate {
			return endpointMissing(endpoint)
		}
		missing = append(missing, endpoint)
	}
	for _, id := range missing {
		if _, ok := m.nodes[id]; !ok {
			m.putNodeUnlocked(placeholderNode(id, now))
		}
	}

	m.seq++
	stored.Seq = m.seq
	stored.CreatedAt = now

	m.edges[stored.ID] = stored
	m.outgoingEdges[stored.From] = append(m.outgoingEdges[stored.From], stored.ID)
	m.incomingEdges[stored.To] = append(m.incomingEdges[stored.To], stored.ID)

	edge.ID = stored.ID
	edge.Seq = stored.Seq
	edge.CreatedAt = stored.CreatedAt

	m.log.Debug("edge stored",
		zap.String("id", string(stored.ID)),
		zap.String("from", string(stored.From)),
		zap.String("to", string(stored.To)),
		zap.String("type", stored.Type),
		zap.Uint64("seq", stored.Seq))
	return nil
}

// GetEdge retrieves an edge by ID.
func (m *MemoryEngine) GetEdge(id EdgeID) (*Edge, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	edge, ok := m.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEdge(edge), nil
}

// DeleteEdge removes an edge.
func (m *MemoryEngine) DeleteEdge(id EdgeID) error {
	if id == "" {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}

	if _, ok := m.edges[id]; !ok {
		return ErrNotFound
	}
	m.deleteEdgeUnlocked(id)
	return nil
}

// GetEdges returns the edges incident to nodeID in insertion order.
func (m *MemoryEngine) GetEdges(nodeID NodeID, direction Direction) ([]*Edge, error) {
	if nodeID == "" {
		return nil, ErrInvalidID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	var ids []EdgeID
	switch direction {
	case DirectionOutgoing:
		ids = m.outgoingEdges[nodeID]
	case DirectionIncoming:
		ids = m.incomingEdges[nodeID]
	case DirectionBoth:
		ids = mergeBySeq(m.edges, m.outgoingEdges[nodeID], m.incomingEdges[nodeID])
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidData, direction)
	}

	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, copyEdge(m.edges[id]))
	}
	return edges, nil
}

// mergeBySeq merges two Seq-ordered adjacency lists. An edge present in both
// (a self-loop) appears once.
func mergeBySeq(edges map[EdgeID]*Edge, a, b []EdgeID) []EdgeID {
	merged := make([]EdgeID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next EdgeID
		switch {
		case j >= len(b):
			next, i = a[i], i+1
		case i >= len(a):
			next, j = b[j], j+1
		case edges[a[i]].Seq == edges[b[j]].Seq:
			next, i, j = a[i], i+1, j+1
		case edges[a[i]].Seq < edges[b[j]].Seq:
			next, i = a[i], i+1
		default:
			next, j = b[j], j+1
		}
		merged = append(merged, next)
	}
	return merged
}

// AllEdges returns every edge in insertion order.
func (m *MemoryEngine) AllEdges() ([]*Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	edges := make([]*Edge, 0, len(m.edges))
	for _, edge := range m.edges {
		edges = append(edges, copyEdge(edge))
	}
	sortEdgesBySeq(edges)
	return edges, nil
}

// NodeCount returns the number of stored nodes.
func (m *MemoryEngine) NodeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of stored edges.
func (m *MemoryEngine) EdgeCount() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrStorageClosed
	}
	return int64(len(m.edges)), nil
}

// Clear removes every node and edge.
func (m *MemoryEngine) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStorageClosed
	}
	m.reset()
	return nil
}

// Sync is a no-op for the memory engine.
func (m *MemoryEngine) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStorageClosed
	}
	return nil
}

// Close marks the engine closed and drops its contents.
func (m *MemoryEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.reset()
	return nil
}

// ============================================================================
// Internal helpers (caller must hold lock)
// ============================================================================

func (m *MemoryEngine) putNodeUnlocked(node *Node) {
	m.nodes[node.ID] = node
	ids, ok := m.nodesByType[node.Type]
	if !ok {
		ids = make(map[NodeID]struct{})
		m.nodesByType[node.Type] = ids
	}
	ids[node.ID] = struct{}{}
}

func (m *MemoryEngine) untypeUnlocked(node *Node) {
	ids := m.nodesByType[node.Type]
	delete(ids, node.ID)
	if len(ids) == 0 {
		delete(m.nodesByType, node.Type)
	}
}

func (m *MemoryEngine) deleteEdgeUnlocked(id EdgeID) {
	edge, ok := m.edges[id]
	if !ok {
		return
	}
	m.outgoingEdges[edge.From] = removeEdgeID(m.outgoingEdges[edge.From], id)
	m.incomingEdges[edge.To] = removeEdgeID(m.incomingEdges[edge.To], id)
	delete(m.edges, id)
}

func removeEdgeID(ids []EdgeID, id EdgeID) []EdgeID {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func sortNodesByID(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// Ensure MemoryEngine implements Engine.
var _ Engine = (*MemoryEngine)(nil)
