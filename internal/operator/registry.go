package operator

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
)

// Factory creates the operator for one compiled node.
type Factory interface {
	Kind() plan.RelKind
	Impl() string
	Create(spec Spec) (eval.Rows, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc struct {
	kind plan.RelKind
	impl string
	fn   func(Spec) (eval.Rows, error)
}

// NewFactory creates a Factory for (kind, impl).
func NewFactory(kind plan.RelKind, impl string, fn func(Spec) (eval.Rows, error)) *FactoryFunc {
	return &FactoryFunc{kind: kind, impl: impl, fn: fn}
}

func (f *FactoryFunc) Kind() plan.RelKind { return f.kind }
func (f *FactoryFunc) Impl() string       { return f.impl }

// Create calls the wrapped function after checking the spec's kind.
func (f *FactoryFunc) Create(spec Spec) (eval.Rows, error) {
	if k := KindOf(spec); k != f.kind {
		return nil, errors.AssertionFailedf("%s factory %q given a %s spec", f.kind, f.impl, k)
	}
	return f.fn(spec)
}

// Key identifies a factory.
type Key struct {
	Kind plan.RelKind
	Impl string
}

func (k Key) String() string {
	return fmt.Sprintf("%s[%s]", k.Kind, k.Impl)
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeDuplicateFactory indicates two factories share a key.
	ErrCodeDuplicateFactory ConfigErrorCode = "DUPLICATE_FACTORY"

	// ErrCodeUnknownImpl indicates a node tagged with an unregistered impl.
	ErrCodeUnknownImpl ConfigErrorCode = "UNKNOWN_IMPL"

	// ErrCodeMissingDefault indicates a kind with no default factory.
	ErrCodeMissingDefault ConfigErrorCode = "MISSING_DEFAULT"
)

// ConfigError reports an invalid operator configuration.
type ConfigError struct {
	Code    ConfigErrorCode
	Key     Key
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Key)
}

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Registry maps keys to factories. It is read-only once built.
type Registry struct {
	factories map[Key]Factory
}

// NewRegistry merges the default factories with extra ones. A key
// registered twice is a *ConfigError.
func NewRegistry(extra ...Factory) (*Registry, error) {
	return Merge(Defaults(), extra)
}

// Merge builds a registry from built-in and user factories. Every kind
// must have a default factory.
func Merge(builtin, user []Factory) (*Registry, error) {
	r := &Registry{factories: make(map[Key]Factory, len(builtin)+len(user))}
	for _, list := range [][]Factory{builtin, user} {
		for _, f := range list {
			key := Key{Kind: f.Kind(), Impl: f.Impl()}
			if _, dup := r.factories[key]; dup {
				return nil, &ConfigError{
					Code:    ErrCodeDuplicateFactory,
					Key:     key,
					Message: "operator factory registered twice",
				}
			}
			r.factories[key] = f
		}
	}
	for _, k := range plan.RelKinds() {
		key := Key{Kind: k, Impl: plan.DefaultImpl}
		if _, ok := r.factories[key]; !ok {
			return nil, &ConfigError{
				Code:    ErrCodeMissingDefault,
				Key:     key,
				Message: "no default operator factory",
			}
		}
	}
	return r, nil
}

// Lookup returns the factory for (kind, impl). An empty impl is "default".
func (r *Registry) Lookup(kind plan.RelKind, impl string) (Factory, error) {
	if impl == "" {
		impl = plan.DefaultImpl
	}
	key := Key{Kind: kind, Impl: impl}
	f, ok := r.factories[key]
	if !ok {
		return nil, &ConfigError{
			Code:    ErrCodeUnknownImpl,
			Key:     key,
			Message: "no operator factory registered",
		}
	}
	return f, nil
}

// Keys returns every registered key, sorted by kind then impl.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].Impl < keys[j].Impl
	})
	return keys
}
