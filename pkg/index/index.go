// Package index provides the attribute index for corticai.
//
// The index maps (entity, attribute, value) triples to the entities holding
// them, independent of graph structure. An entity may hold several values
// under one attribute; values keep the order they were first added in.
//
// Example Usage:
//
//	idx := index.New()
//	idx.AddAttribute("sec-1", "type", value.String("section"))
//	idx.AddAttribute("sec-1", "level", value.Int(2))
//
//	sections := idx.FindByAttribute("type", index.Ptr(value.String("section")))
//
//	both, _ := idx.FindByAttributes([]index.Condition{
//		{Attribute: "type", Operator: index.OpEquals, Value: value.String("section")},
//		{Attribute: "level", Operator: index.OpEquals, Value: value.Int(2)},
//	}, index.ModeAnd)
//
//	if err := idx.Save("./data/index.json"); err != nil {
//		log.Fatal(err)
//	}
//
// Every result set is returned as a slice of entity ids sorted ascending.
// Absence is an empty slice, never an error.
//
// Thread Safety:
//
//	AttributeIndex is safe for concurrent use. Queries take a read lock,
//	mutations a write lock; there is no isolation across calls.
package index

import (
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/value"
)

// entity holds one entity's attributes in first-seen order.
type entity struct {
	order  []string
	values map[string][]value.Value
}

func newEntity() *entity {
	return &entity{values: make(map[string][]value.Value)}
}

// AttributeIndex is a secondary index over entity attributes.
type AttributeIndex struct {
	mu       sync.RWMutex
	entities map[string]*entity

	// byValue maps attribute -> value key -> holding entities.
	byValue map[string]map[string]map[string]struct{}
	// holders maps attribute -> entities with any value for it.
	holders map[string]map[string]struct{}

	log *zap.Logger
}

// Option configures an AttributeIndex.
type Option func(*AttributeIndex)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *AttributeIndex) {
		if l != nil {
			idx.log = l.Named("index")
		}
	}
}

// New creates an empty attribute index.
func New(opts ...Option) *AttributeIndex {
	idx := &AttributeIndex{log: zap.NewNop()}
	idx.reset()
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (idx *AttributeIndex) reset() {
	idx.entities = make(map[string]*entity)
	idx.byValue = make(map[string]map[string]map[string]struct{})
	idx.holders = make(map[string]map[string]struct{})
}

// Ptr returns a pointer to v, for the optional value of FindByAttribute.
func Ptr(v value.Value) *value.Value {
	return &v
}

func validateEntry(entityID, attribute string, v value.Value) error {
	if entityID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidEntry)
	}
	if !utf8.ValidString(entityID) {
		return fmt.Errorf("%w: entity id %q is not valid UTF-8", ErrInvalidEntry, entityID)
	}
	if attribute == "" {
		return fmt.Errorf("%w: empty attribute name", ErrInvalidEntry)
	}
	if !utf8.ValidString(attribute) {
		return fmt.Errorf("%w: attribute %q is not valid UTF-8", ErrInvalidEntry, attribute)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// AddAttribute records one triple. Adding a triple that is already present
// is a no-op; a new value under an existing attribute is appended.
func (idx *AttributeIndex) AddAttribute(entityID, attribute string, v value.Value) error {
	started := time.Now()
	if err := validateEntry(entityID, attribute, v); err != nil {
		recordOperation("add", started, err)
		return err
	}

	idx.mu.Lock()
	added := idx.addUnlocked(entityID, attribute, v)
	idx.mu.Unlock()

	if added {
		idx.log.Debug("attribute added",
			zap.String("entity", entityID),
			zap.String("attribute", attribute),
			zap.Stringer("value", v))
	}
	recordOperation("add", started, nil)
	return nil
}

// addUnlocked inserts a triple and reports whether it was new.
func (idx *AttributeIndex) addUnlocked(entityID, attribute string, v value.Value) bool {
	key := v.Key()

	e, ok := idx.entities[entityID]
	if !ok {
		e = newEntity()
		idx.entities[entityID] = e
	}
	existing, hasAttr := e.values[attribute]
	for _, old := range existing {
		if old.Key() == key {
			return false
		}
	}
	if !hasAttr {
		e.order = append(e.order, attribute)
	}
	e.values[attribute] = append(existing, v)

	values, ok := idx.byValue[attribute]
	if !ok {
		values = make(map[string]map[string]struct{})
		idx.byValue[attribute] = values
	}
	set, ok := values[key]
	if !ok {
		set = make(map[string]struct{})
		values[key] = set
	}
	set[entityID] = struct{}{}

	holders, ok := idx.holders[attribute]
	if !ok {
		holders = make(map[string]struct{})
		idx.holders[attribute] = holders
	}
	holders[entityID] = struct{}{}
	return true
}

// RemoveAttribute removes one triple and reports whether it was present.
// An entity left without attributes is dropped.
func (idx *AttributeIndex) RemoveAttribute(entityID, attribute string, v value.Value) bool {
	started := time.Now()
	defer recordOperation("remove", started, nil)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entities[entityID]
	if !ok {
		return false
	}
	key := v.Key()
	values := e.values[attribute]
	pos := -1
	for i, old := range values {
		if old.Key() == key {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}

	values = append(values[:pos:pos], values[pos+1:]...)
	idx.unindexValue(entityID, attribute, key)
	if len(values) > 0 {
		e.values[attribute] = values
		return true
	}

	delete(e.values, attribute)
	e.order = removeString(e.order, attribute)
	idx.unindexHolder(entityID, attribute)
	if len(e.values) == 0 {
		delete(idx.entities, entityID)
	}
	return true
}

// RemoveEntity removes every triple of an entity and reports whether it existed.
func (idx *AttributeIndex) RemoveEntity(entityID string) bool {
	started := time.Now()
	defer recordOperation("remove_entity", started, nil)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entities[entityID]
	if !ok {
		return false
	}
	for attribute, values := range e.values {
		for _, v := range values {
			idx.unindexValue(entityID, attribute, v.Key())
		}
		idx.unindexHolder(entityID, attribute)
	}
	delete(idx.entities, entityID)
	return true
}

func (idx *AttributeIndex) unindexValue(entityID, attribute, key string) {
	values := idx.byValue[attribute]
	set := values[key]
	delete(set, entityID)
	if len(set) == 0 {
		delete(values, key)
	}
	if len(values) == 0 {
		delete(idx.byValue, attribute)
	}
}

func (idx *AttributeIndex) unindexHolder(entityID, attribute string) {
	holders := idx.holders[attribute]
	delete(holders, entityID)
	if len(holders) == 0 {
		delete(idx.holders, attribute)
	}
}

// Clear removes every triple.
func (idx *AttributeIndex) Clear() {
	idx.mu.Lock()
	idx.reset()
	idx.mu.Unlock()
	idx.log.Debug("index cleared")
}

// Attributes returns a copy of an entity's attributes, or nil if it has none.
func (idx *AttributeIndex) Attributes(entityID string) map[string][]value.Value {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entities[entityID]
	if !ok {
		return nil
	}
	out := make(map[string][]value.Value, len(e.values))
	for attribute, values := range e.values {
		out[attribute] = append([]value.Value(nil), values...)
	}
	return out
}

// AttributeNames returns an entity's attribute names in first-seen order.
func (idx *AttributeIndex) AttributeNames(entityID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entities[entityID]
	if !ok {
		return nil
	}
	return append([]string(nil), e.order...)
}

// Entities returns every indexed entity id, sorted.
func (idx *AttributeIndex) Entities() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, len(idx.entities))
	for id := range idx.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FindByAttribute returns the entities holding exactly v under attribute.
// A nil v matches any value.
func (idx *AttributeIndex) FindByAttribute(attribute string, v *value.Value) []string {
	started := time.Now()

	idx.mu.RLock()
	var set map[string]struct{}
	if v == nil {
		set = idx.holders[attribute]
	} else {
		set = idx.byValue[attribute][v.Key()]
	}
	ids := sortedIDs(set)
	idx.mu.RUnlock()

	recordQuery("find", started, len(ids))
	return ids
}

// Statistics summarizes index contents.
type Statistics struct {
	TotalEntities int `json:"totalEntities"`
	// TotalAttributes counts distinct (entity, attribute) pairs.
	TotalAttributes int `json:"totalAttributes"`
	TotalValues     int `json:"totalValues"`
	// DistinctAttributes counts attribute names across all entities.
	DistinctAttributes         int     `json:"distinctAttributes"`
	AverageAttributesPerEntity float64 `json:"averageAttributesPerEntity"`
}

// Statistics computes statistics from the current contents.
func (idx *AttributeIndex) Statistics() Statistics {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.statisticsUnlocked()
}

func (idx *AttributeIndex) statisticsUnlocked() Statistics {
	stats := Statistics{
		TotalEntities:      len(idx.entities),
		DistinctAttributes: len(idx.holders),
	}
	for _, e := range idx.entities {
		stats.TotalAttributes += len(e.values)
		for _, values := range e.values {
			stats.TotalValues += len(values)
		}
	}
	if stats.TotalEntities > 0 {
		stats.AverageAttributesPerEntity = float64(stats.TotalAttributes) / float64(stats.TotalEntities)
	}
	return stats
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func removeString(s []string, target string) []string {
	for i, v := range s {
		if v == target {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}
