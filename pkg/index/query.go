package index

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwynia/corticai/pkg/value"
)

// ErrInvalidQuery is returned for an unknown operator or mode, or an operand
// of the wrong kind.
var ErrInvalidQuery = errors.New("invalid attribute query")

// Operator compares an attribute's values against a condition value.
type Operator string

const (
	// OpEquals matches entities holding the value.
	OpEquals Operator = "equals"
	// OpNotEquals matches entities holding the attribute but not the value.
	OpNotEquals Operator = "not_equals"
	// OpContains matches a substring of a string value or a member of a list value.
	OpContains Operator = "contains"
	// OpExists matches entities holding any value; the condition value is ignored.
	OpExists Operator = "exists"
	// OpGreaterThan matches a numeric value above the condition number.
	OpGreaterThan Operator = "greater_than"
	// OpLessThan matches a numeric value below the condition number.
	OpLessThan Operator = "less_than"
)

// ParseOperator accepts the operator names and a few symbolic aliases.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(s) {
	case "", "equals", "eq", "=", "==":
		return OpEquals, nil
	case "not_equals", "ne", "!=":
		return OpNotEquals, nil
	case "contains":
		return OpContains, nil
	case "exists":
		return OpExists, nil
	case "greater_than", "gt", ">":
		return OpGreaterThan, nil
	case "less_than", "lt", "<":
		return OpLessThan, nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, s)
}

// Mode combines the result sets of several conditions.
type Mode int

const (
	// ModeAnd intersects the condition results.
	ModeAnd Mode = iota
	// ModeOr unions the condition results.
	ModeOr
)

func (m Mode) String() string {
	if m == ModeOr {
		return "OR"
	}
	return "AND"
}

// ParseMode parses "and" or "or", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "and":
		return ModeAnd, nil
	case "or":
		return ModeOr, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, s)
}

// Condition is one term of a composite query.
type Condition struct {
	Attribute string
	Operator  Operator
	Value     value.Value
}

// FindByAttributes evaluates conditions and combines them with mode.
// An empty condition list matches nothing.
func (idx *AttributeIndex) FindByAttributes(conditions []Condition, mode Mode) ([]string, error) {
	started := time.Now()
	if mode != ModeAnd && mode != ModeOr {
		return nil, fmt.Errorf("%w: mode %d", ErrInvalidQuery, mode)
	}
	if len(conditions) == 0 {
		return []string{}, nil
	}
	for i, cond := range conditions {
		if err := cond.validate(); err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var result map[string]struct{}
	for i, cond := range conditions {
		matched, err := idx.matchUnlocked(cond)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		switch {
		case i == 0:
			result = make(map[string]struct{}, len(matched))
			for id := range matched {
				result[id] = struct{}{}
			}
		case mode == ModeAnd:
			for id := range result {
				if _, ok := matched[id]; !ok {
					delete(result, id)
				}
			}
		default:
			for id := range matched {
				result[id] = struct{}{}
			}
		}
		if mode == ModeAnd && len(result) == 0 {
			break
		}
	}

	ids := sortedIDs(result)
	recordQuery("find_composite", started, len(ids))
	return ids, nil
}

// validate checks the operator and, for ordered comparisons, the operand.
func (c Condition) validate() error {
	switch c.Operator {
	case OpEquals, "", OpNotEquals, OpContains, OpExists:
		return nil
	case OpGreaterThan, OpLessThan:
		if _, ok := c.Value.AsNumber(); !ok {
			return fmt.Errorf("%w: %s needs a number, got %s", ErrInvalidQuery, c.Operator, c.Value.Kind())
		}
		return nil
	}
	return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, c.Operator)
}

// matchUnlocked returns the entities satisfying one condition. The returned
// map may be shared index state and must not be modified.
func (idx *AttributeIndex) matchUnlocked(cond Condition) (map[string]struct{}, error) {
	switch cond.Operator {
	case OpEquals, "":
		return idx.byValue[cond.Attribute][cond.Value.Key()], nil
	case OpExists:
		return idx.holders[cond.Attribute], nil
	case OpNotEquals:
		key := cond.Value.Key()
		return idx.filterHolders(cond.Attribute, func(values []value.Value) bool {
			for _, v := range values {
				if v.Key() == key {
					return false
				}
			}
			return true
		}), nil
	case OpContains:
		return idx.filterHolders(cond.Attribute, func(values []value.Value) bool {
			for _, v := range values {
				if contains(v, cond.Value) {
					return true
				}
			}
			return false
		}), nil
	case OpGreaterThan, OpLessThan:
		bound, ok := cond.Value.AsNumber()
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a number, got %s", ErrInvalidQuery, cond.Operator, cond.Value.Kind())
		}
		greater := cond.Operator == OpGreaterThan
		return idx.filterHolders(cond.Attribute, func(values []value.Value) bool {
			for _, v := range values {
				n, ok := v.AsNumber()
				if !ok {
					continue
				}
				if (greater && n > bound) || (!greater && n < bound) {
					return true
				}
			}
			return false
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, cond.Operator)
}

// filterHolders returns the holders of attribute whose values satisfy keep.
func (idx *AttributeIndex) filterHolders(attribute string, keep func([]value.Value) bool) map[string]struct{} {
	out := make(map[string]struct{})
	for id := range idx.holders[attribute] {
		if keep(idx.entities[id].values[attribute]) {
			out[id] = struct{}{}
		}
	}
	return out
}

// contains reports whether held contains needle: a substring for strings,
// an element for lists.
func contains(held, needle value.Value) bool {
	if s, ok := held.AsString(); ok {
		sub, ok := needle.AsString()
		return ok && strings.Contains(s, sub)
	}
	if items, ok := held.AsList(); ok {
		for _, item := range items {
			if item.Equal(needle) {
				return true
			}
		}
	}
	return false
}
