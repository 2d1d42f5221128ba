package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/cockroachdb/errors"

	"github.com/roach88/pql/internal/binder"
	"github.com/roach88/pql/internal/compiler"
	"github.com/roach88/pql/internal/eval"
	"github.com/roach88/pql/internal/plan"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for configuration failures.
const (
	ErrCodeRead    = "C001" // file could not be read
	ErrCodeSyntax  = "C002" // CUE does not compile
	ErrCodeInvalid = "C003" // value does not satisfy #Config
	ErrCodeDecode  = "C004" // value could not be decoded
)

// Error is a configuration error, positioned when CUE reports a position.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a configuration *Error.
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Impl routes an operator kind to a named implementation.
type Impl struct {
	Kind string `json:"kind"`
	Impl string `json:"impl"`
}

// Config is a decoded pipeline configuration.
type Config struct {
	TypingMode        string `json:"typing_mode"`
	AllowUndefined    bool   `json:"allow_undefined"`
	StrictFunctions   bool   `json:"strict_functions"`
	BuiltinStrategies bool   `json:"builtin_strategies"`
	Parallelism       int    `json:"parallelism"`
	Impls             []Impl `json:"impls"`
}

// Default returns the configuration of an empty file.
func Default() *Config {
	return &Config{TypingMode: "legacy", BuiltinStrategies: true}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(path, src)
}

// Parse validates src against #Config. filename is used in positions.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, "compile embedded schema")
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(ErrCodeSyntax, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(ErrCodeInvalid, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, formatCUEError(ErrCodeDecode, err)
	}
	return &cfg, nil
}

// formatCUEError converts the first CUE error to an *Error carrying its
// position.
func formatCUEError(code string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

// Mode returns the typing mode.
func (c *Config) Mode() eval.Mode {
	mode, err := eval.ParseMode(c.TypingMode)
	if err != nil {
		return eval.Legacy
	}
	return mode
}

// BinderOptions returns the binder options the configuration implies.
func (c *Config) BinderOptions() []binder.Option {
	return []binder.Option{binder.WithAllowUndefined(c.AllowUndefined)}
}

// CompilerOptions returns the compiler options the configuration implies.
// Each impl override becomes a Retag strategy, applied in file order after
// the built-in strategies. Factories for non-default impls are supplied by
// the caller.
func (c *Config) CompilerOptions() ([]compiler.Option, error) {
	opts := []compiler.Option{
		compiler.WithTypingMode(c.Mode()),
		compiler.WithStrictFunctions(c.StrictFunctions),
	}
	if !c.BuiltinStrategies {
		opts = append(opts, compiler.WithoutBuiltinStrategies())
	}
	strategies := make([]compiler.Strategy, 0, len(c.Impls))
	for _, impl := range c.Impls {
		kind, err := plan.ParseRelKind(impl.Kind)
		if err != nil {
			return nil, &Error{Code: ErrCodeInvalid, Message: err.Error()}
		}
		strategies = append(strategies, compiler.Retag(kind, impl.Impl))
	}
	if len(strategies) > 0 {
		opts = append(opts, compiler.WithStrategies(strategies...))
	}
	return opts, nil
}
