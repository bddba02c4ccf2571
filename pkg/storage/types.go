// Package storage provides the node and edge store for corticai.
//
// The store owns every node and every directed, typed edge. Records are kept
// in id-keyed collections and adjacency is an id -> edge-id list, never a web
// of pointers, so records can be copied, serialized and deleted independently.
//
// Two engines implement Engine:
//   - BadgerEngine: persistent storage on BadgerDB
//   - MemoryEngine: in-memory storage for tests and short-lived graphs
//
// Example Usage:
//
//	engine, err := storage.NewBadgerEngine("./data/graph")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	engine.AddNode(&storage.Node{ID: "doc-1", Type: "document"})
//	engine.AddNode(&storage.Node{ID: "sec-1", Type: "section"})
//
//	edge := &storage.Edge{From: "doc-1", To: "sec-1", Type: "contains"}
//	if err := engine.AddEdge(edge); err != nil {
//		log.Fatal(err)
//	}
//
//	out, _ := engine.GetEdges("doc-1", storage.DirectionOutgoing)
//	fmt.Printf("doc-1 has %d outgoing edges\n", len(out))
//
// Durability:
//
// BadgerEngine commits every write in its own transaction when the call
// returns. A committed write is visible to every later read, but it is only
// guaranteed to survive abrupt process termination after Sync returns (or
// immediately, when SyncWrites is enabled). Sync is the flush boundary.
//
// Concurrency:
//
// Engines are safe for concurrent use, but there is no isolation across
// calls: a traversal that interleaves with writers can observe a graph that
// is half-way through a caller's sequence of writes. Serialize writers
// externally if that matters.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/value"
)

// Common errors
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidData     = errors.New("invalid data")
	ErrNodeExists      = errors.New("node already exists")
	ErrEdgeExists      = errors.New("edge already exists")
	ErrEndpointMissing = errors.New("edge endpoint missing")
	ErrStorageClosed   = errors.New("storage closed")
)

// PlaceholderType is the node type given to endpoints synthesized by AddEdge
// when auto-create is enabled.
const PlaceholderType = "placeholder"

// NodeID is a strongly-typed unique identifier for graph nodes.
type NodeID string

// EdgeID is a strongly-typed unique identifier for graph edges.
type EdgeID string

// Direction selects which incident edges GetEdges returns.
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
	DirectionBoth
)

// String returns the direction name used in configuration and the CLI.
func (d Direction) String() string {
	switch d {
	case DirectionOutgoing:
		return "outgoing"
	case DirectionIncoming:
		return "incoming"
	case DirectionBoth:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "outgoing", "incoming" or "both" (also "out", "in").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "outgoing", "out", "":
		return DirectionOutgoing, nil
	case "incoming", "in":
		return DirectionIncoming, nil
	case "both", "any":
		return DirectionBoth, nil
	}
	return 0, fmt.Errorf("%w: unknown direction %q", ErrInvalidData, s)
}

// DuplicatePolicy decides what AddNode does with an id that already exists.
type DuplicatePolicy int

const (
	// DuplicateUpsert replaces the stored node. This is the default.
	DuplicateUpsert DuplicatePolicy = iota
	// DuplicateReject fails with ErrNodeExists.
	DuplicateReject
)

// String returns the policy name used in configuration.
func (p DuplicatePolicy) String() string {
	if p == DuplicateReject {
		return "reject"
	}
	return "upsert"
}

// ParseDuplicatePolicy parses "upsert" (or "") and "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "upsert":
		return DuplicateUpsert, nil
	case "reject":
		return DuplicateReject, nil
	}
	return 0, fmt.Errorf("%w: unknown duplicate policy %q", ErrInvalidData, s)
}

// Node is a uniquely identified, typed record with ordered properties.
//
// Thread Safety:
//
//	Node structs are NOT thread-safe. Engines copy nodes on the way in and
//	out, so a returned node can be modified without touching stored state.
type Node struct {
	ID         NodeID            `json:"id"`
	Type       string            `json:"type"`
	Properties *value.Properties `json:"properties"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Edge is a directed, typed link between two nodes.
//
// Any number of edges may connect the same ordered pair, with the same or
// different types. Seq is assigned by the engine on AddEdge and increases
// with every edge added to the store; adjacency lookups return edges in Seq
// order, which is insertion order.
type Edge struct {
	ID         EdgeID            `json:"id"`
	From       NodeID            `json:"from"`
	To         NodeID            `json:"to"`
	Type       string            `json:"type"`
	Properties *value.Properties `json:"properties"`
	Seq        uint64            `json:"seq"`

	CreatedAt time.Time `json:"-"`
}

// Other returns the endpoint of e that is not id. For a self-loop it returns id.
func (e *Edge) Other(id NodeID) NodeID {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Reader is the read-only view of a store used by the traversal engine.
type Reader interface {
	GetNode(id NodeID) (*Node, error)
	HasNode(id NodeID) (bool, error)
	GetEdges(nodeID NodeID, direction Direction) ([]*Edge, error)
	AllNodes() ([]*Node, error)
	AllEdges() ([]*Edge, error)
}

// Engine defines the node and edge store.
//
// All Engine implementations MUST be:
//   - Thread-safe: safe for concurrent access from multiple goroutines
//   - Insertion-ordered: GetEdges and AllEdges return edges by ascending Seq
//   - Closed-aware: every call after Close returns ErrStorageClosed
type Engine interface {
	Reader

	// Node operations
	AddNode(node *Node) error
	DeleteNode(id NodeID) error
	GetNodesByType(nodeType string) ([]*Node, error)

	// Edge operations
	AddEdge(edge *Edge) error
	GetEdge(id EdgeID) (*Edge, error)
	DeleteEdge(id EdgeID) error

	// Stats
	NodeCount() (int64, error)
	EdgeCount() (int64, error)

	// Lifecycle
	Clear() error
	Sync() error
	Close() error
}

// Options configures behavior shared by every engine.
type Options struct {
	// AutoCreate makes AddEdge synthesize missing endpoints as placeholder
	// nodes instead of failing with ErrEndpointMissing.
	AutoCreate bool

	// Duplicates decides how AddNode treats an existing id.
	Duplicates DuplicatePolicy

	// Logger receives debug output. Nil means no logging.
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// endpointMissing builds the error returned for an absent edge endpoint.
func endpointMissing(id NodeID) error {
	return fmt.Errorf("%w: node %q", ErrEndpointMissing, id)
}

// placeholderNode returns the node synthesized for a missing endpoint.
func placeholderNode(id NodeID, now time.Time) *Node {
	return &Node{
		ID:         id,
		Type:       PlaceholderType,
		Properties: value.NewProperties(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func copyNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Properties = n.Properties.Clone()
	return &cp
}

func copyEdge(e *Edge) *Edge {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Properties = e.Properties.Clone()
	return &cp
}

func validateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}
	if err := validateKeyPart("node id", string(node.ID), ErrInvalidID); err != nil {
		return err
	}
	if err := validateKeyPart("node type", node.Type, ErrInvalidData); err != nil {
		return err
	}
	if err := node.Properties.Validate(); err != nil {
		return fmt.Errorf("%w: node %q: %v", ErrInvalidData, node.ID, err)
	}
	return nil
}

func validateEdge(edge *Edge) error {
	if edge == nil {
		return ErrInvalidData
	}
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("%w: edge endpoints must be set", ErrInvalidID)
	}
	if err := validateKeyPart("edge source", string(edge.From), ErrInvalidID); err != nil {
		return err
	}
	if err := validateKeyPart("edge target", string(edge.To), ErrInvalidID); err != nil {
		return err
	}
	if !utf8.ValidString(string(edge.ID)) {
		return fmt.Errorf("%w: edge id %q is not valid UTF-8", ErrInvalidID, edge.ID)
	}
	if !utf8.ValidString(edge.Type) {
		return fmt.Errorf("%w: edge type %q is not valid UTF-8", ErrInvalidData, edge.Type)
	}
	if err := edge.Properties.Validate(); err != nil {
		return fmt.Errorf("%w: edge %s->%s: %v", ErrInvalidData, edge.From, edge.To, err)
	}
	return nil
}

// validateKeyPart checks a string that is embedded in badger index keys.
// Keys separate fields with 0x00 and records are JSON, so NUL bytes and
// invalid UTF-8 are rejected in both engines.
func validateKeyPart(what, s string, sentinel error) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s %q is not valid UTF-8", sentinel, what, s)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s %q contains a NUL byte", sentinel, what, s)
	}
	return nil
}
