package fn

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/value"
)

var numericKinds = []value.Kind{value.KindInt, value.KindDecimal, value.KindFloat}

// Builtins returns a fresh registry holding the built-in library.
//
// The logical connectives and, or and not are not routines: the evaluator
// compiles them as short-circuit forms.
func Builtins() *Registry {
	r := NewRegistry()
	for _, f := range builtinFunctions() {
		if err := r.Register(f); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "builtin registration"))
		}
	}
	return r
}

func builtinFunctions() []*Function {
	var fns []*Function

	arith := []struct {
		name string
		op   value.Op
	}{
		{"plus", value.OpAdd},
		{"minus", value.OpSub},
		{"times", value.OpMul},
		{"divide", value.OpDiv},
		{"modulo", value.OpMod},
	}
	for _, a := range arith {
		op := a.op
		for _, k := range numericKinds {
			fns = append(fns, &Function{
				Name:    a.name,
				Params:  []value.Kind{k, k},
				Returns: k,
				Invoke: func(_ Env, args []value.Value) (value.Value, error) {
					return value.Arith(op, args[0], args[1])
				},
			})
		}
	}
	for _, k := range numericKinds {
		fns = append(fns,
			unary("neg", k, k, value.Negate),
			unary("abs", k, k, value.Abs),
		)
	}

	fns = append(fns,
		binary("eq", value.KindBool, func(a, b value.Value) (value.Value, error) {
			return value.Bool(value.Equal(a, b)), nil
		}),
		binary("neq", value.KindBool, func(a, b value.Value) (value.Value, error) {
			return value.Bool(!value.Equal(a, b)), nil
		}),
		ordering("lt", func(c int) bool { return c < 0 }),
		ordering("lte", func(c int) bool { return c <= 0 }),
		ordering("gt", func(c int) bool { return c > 0 }),
		ordering("gte", func(c int) bool { return c >= 0 }),
	)

	fns = append(fns,
		&Function{
			Name:    "concat",
			Params:  []value.Kind{value.KindString, value.KindString},
			Returns: value.KindString,
			Invoke: func(_ Env, args []value.Value) (value.Value, error) {
				return args[0].(value.String) + args[1].(value.String), nil
			},
		},
		stringFn("upper", value.KindString, func(s string) value.Value { return value.String(strings.ToUpper(s)) }),
		stringFn("lower", value.KindString, func(s string) value.Value { return value.String(strings.ToLower(s)) }),
		stringFn("trim", value.KindString, func(s string) value.Value { return value.String(strings.TrimSpace(s)) }),
		stringFn("char_length", value.KindInt, func(s string) value.Value { return value.Int(utf8.RuneCountInString(s)) }),
	)

	for _, k := range []value.Kind{value.KindList, value.KindBag} {
		fns = append(fns,
			unary("size", k, value.KindInt, func(v value.Value) (value.Value, error) {
				elems, _ := value.Elements(v)
				return value.Int(len(elems)), nil
			}),
			unary("exists", k, value.KindBool, func(v value.Value) (value.Value, error) {
				elems, _ := value.Elements(v)
				return value.Bool(len(elems) > 0), nil
			}),
		)
	}
	fns = append(fns, unary("size", value.KindStruct, value.KindInt, func(v value.Value) (value.Value, error) {
		return value.Int(len(v.(value.Struct))), nil
	}))

	fns = append(fns,
		&Function{
			Name:            "is_null",
			Params:          []value.Kind{value.KindDynamic},
			Returns:         value.KindBool,
			HandlesUnknowns: true,
			Invoke: func(_ Env, args []value.Value) (value.Value, error) {
				return value.Bool(value.IsUnknown(args[0])), nil
			},
		},
		&Function{
			Name:            "is_missing",
			Params:          []value.Kind{value.KindDynamic},
			Returns:         value.KindBool,
			HandlesUnknowns: true,
			Invoke: func(_ Env, args []value.Value) (value.Value, error) {
				return value.Bool(args[0] == nil || args[0].Kind() == value.KindMissing), nil
			},
		},
		&Function{
			Name:            "coalesce2",
			Params:          []value.Kind{value.KindDynamic, value.KindDynamic},
			Returns:         value.KindDynamic,
			HandlesUnknowns: true,
			Invoke: func(_ Env, args []value.Value) (value.Value, error) {
				for _, a := range args {
					if !value.IsUnknown(a) {
						return a, nil
					}
				}
				return value.NullValue, nil
			},
		},
		&Function{
			Name:    "utcnow",
			Returns: value.KindTimestamp,
			Invoke: func(env Env, _ []value.Value) (value.Value, error) {
				return value.NewTimestamp(env.Now()), nil
			},
		},
	)
	return fns
}

func unary(name string, param, returns value.Kind, f func(value.Value) (value.Value, error)) *Function {
	return &Function{
		Name:    name,
		Params:  []value.Kind{param},
		Returns: returns,
		Invoke: func(_ Env, args []value.Value) (value.Value, error) {
			return f(args[0])
		},
	}
}

func binary(name string, returns value.Kind, f func(a, b value.Value) (value.Value, error)) *Function {
	return &Function{
		Name:    name,
		Params:  []value.Kind{value.KindDynamic, value.KindDynamic},
		Returns: returns,
		Invoke: func(_ Env, args []value.Value) (value.Value, error) {
			return f(args[0], args[1])
		},
	}
}

func ordering(name string, test func(int) bool) *Function {
	return binary(name, value.KindBool, func(a, b value.Value) (value.Value, error) {
		if !value.Comparable(a, b) {
			return nil, errors.Wrapf(ErrTypeMismatch, "%s(%s, %s)", name, a.Kind(), b.Kind())
		}
		return value.Bool(test(value.Compare(a, b))), nil
	})
}

func stringFn(name string, returns value.Kind, f func(string) value.Value) *Function {
	return unary(name, value.KindString, returns, func(v value.Value) (value.Value, error) {
		return f(string(v.(value.String))), nil
	})
}
