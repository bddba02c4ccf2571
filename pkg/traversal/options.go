package traversal

import (
	"go.uber.org/zap"

	"github.com/jwynia/corticai/pkg/storage"
)

// contextCheckInterval is how many edge expansions pass between context checks.
const contextCheckInterval = 100

// Options configures an Engine.
type Options struct {
	// Budget is the maximum number of edge expansions per call. 0 means unlimited.
	Budget int

	// Direction is followed by ShortestPath and FindConnected. Default: outgoing.
	Direction storage.Direction

	// EdgeTypes restricts ShortestPath and FindConnected to these edge types.
	// Empty means every type.
	EdgeTypes []string

	Logger *zap.Logger
}

// Option is a functional option for configuring an Engine.
type Option func(*Options)

// WithBudget caps edge expansions per call. n <= 0 removes the cap.
func WithBudget(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.Budget = n
	}
}

// WithDirection sets the direction ShortestPath and FindConnected follow.
func WithDirection(d storage.Direction) Option {
	return func(o *Options) {
		o.Direction = d
	}
}

// WithEdgeTypes restricts ShortestPath and FindConnected to the given types.
func WithEdgeTypes(types ...string) Option {
	return func(o *Options) {
		o.EdgeTypes = append([]string(nil), types...)
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func applyOptions(opts []Option) Options {
	options := Options{
		Direction: storage.DirectionOutgoing,
		Logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// typeFilter reports whether an edge type passes; nil accepts everything.
type typeFilter map[string]struct{}

func newTypeFilter(types []string) typeFilter {
	if len(types) == 0 {
		return nil
	}
	f := make(typeFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

func (f typeFilter) allows(edgeType string) bool {
	if f == nil {
		return true
	}
	_, ok := f[edgeType]
	return ok
}
