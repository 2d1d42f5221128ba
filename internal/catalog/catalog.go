package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

var (
	// ErrDuplicateName reports a Define with a name that is already
	// registered.
	ErrDuplicateName = errors.New("global already defined")

	// ErrUnknownGlobal reports an id or name with no global.
	ErrUnknownGlobal = errors.New("unknown global")

	// ErrNotCollection reports a DML statement against a non-collection
	// global.
	ErrNotCollection = errors.New("global is not a collection")
)

// Option configures a Catalog or SQLiteStore.
type Option func(*options)

type options struct {
	ids    IDGenerator
	logger *slog.Logger
}

func buildOptions(opts []Option) options {
	o := options{ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIDGenerator sets the generator for global ids.
//
// Default: UUIDv7Generator
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger used for store failures that cannot be
// returned to the caller.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

type entry struct {
	id    string
	name  string
	value value.Value
}

// Catalog is an in-memory set of named globals. It is safe for
// concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	ids     IDGenerator
	entries []*entry // registration order
	byID    map[string]*entry
}

// New creates an empty Catalog.
func New(opts ...Option) *Catalog {
	o := buildOptions(opts)
	return &Catalog{ids: o.ids, byID: make(map[string]*entry)}
}

// Define registers a global and returns its id. Names are unique under
// exact comparison; names differing only in case may coexist.
func (c *Catalog) Define(name string, v value.Value) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.name == name {
			return "", errors.Wrapf(ErrDuplicateName, "%q", name)
		}
	}
	e := &entry{id: c.ids.Generate(), name: name, value: v}
	c.entries = append(c.entries, e)
	c.byID[e.id] = e
	return e.id, nil
}

// Resolve implements binder.GlobalBindings.
func (c *Catalog) Resolve(name plan.BindingName) binder.Resolution {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var first *entry
	count := 0
	for _, e := range c.entries {
		if name.Matches(e.name) {
			if first == nil {
				first = e
			}
			count++
		}
	}
	if first == nil {
		return binder.Undefined{}
	}
	return binder.Global{ID: first.id, Name: first.name, Candidates: count}
}

// Get returns the value of the global with the exact name.
func (c *Catalog) Get(name string) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return nil, false
}

// Names returns the global names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.name
	}
	sort.Strings(out)
	return out
}

// Session snapshots the current values for one execution.
func (c *Catalog) Session(now time.Time) *eval.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	globals := make(map[string]value.Value, len(c.entries))
	order := make([]string, len(c.entries))
	for i, e := range c.entries {
		globals[e.name] = e.value
		order[i] = e.name
	}
	return &eval.Session{Globals: globals, Order: order, Now: now}
}

// Insert implements compiler.Mutator. The target keeps its collection
// kind.
func (c *Catalog) Insert(_ context.Context, target compiler.Target, rows []value.Value) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[target.ID]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownGlobal, "%s", target.Name)
	}
	switch coll := e.value.(type) {
	case value.Bag:
		e.value = append(coll[:len(coll):len(coll)], rows...)
	case value.List:
		e.value = append(coll[:len(coll):len(coll)], rows...)
	default:
		return 0, errors.Wrapf(ErrNotCollection, "%s is %s", e.name, e.value.Kind())
	}
	return len(rows), nil
}

// Delete implements compiler.Mutator. Nothing is removed if match fails.
func (c *Catalog) Delete(_ context.Context, target compiler.Target, match func(value.Value) (bool, error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[target.ID]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownGlobal, "%s", target.Name)
	}
	var elems []value.Value
	switch coll := e.value.(type) {
	case value.Bag:
		elems = coll
	case value.List:
		elems = coll
	default:
		return 0, errors.Wrapf(ErrNotCollection, "%s is %s", e.name, e.value.Kind())
	}
	kept := make([]value.Value, 0, len(elems))
	for _, v := range elems {
		drop, err := match(v)
		if err != nil {
			return 0, err
		}
		if !drop {
			kept = append(kept, v)
		}
	}
	if _, isList := e.value.(value.List); isList {
		e.value = value.List(kept)
	} else {
		e.value = value.Bag(kept)
	}
	return len(elems) - len(kept), nil
}
