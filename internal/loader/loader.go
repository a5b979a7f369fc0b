// Package loader turns resolved variant artifacts into bindings, either
// from builtin factories or by opening Go plugins.
package loader

import (
	"context"
	"fmt"
	"os"
	"plugin"
	"sort"

	"github.com/unbound-force/bindcheck/internal/failure"
	"github.com/unbound-force/bindcheck/internal/variant"
)

// DefaultSymbol is the exported plugin variable looked up when
// Plugin.Symbol is empty.
const DefaultSymbol = "Binding"

// Builtin loads bindings from factories compiled into the binary. The
// artifact file must still exist; it marks the variant as built.
type Builtin[B any] struct {
	// Factories maps variant names to constructors.
	Factories map[string]func() B
}

// NewBuiltin returns a Builtin loader over factories.
func NewBuiltin[B any](factories map[string]func() B) Builtin[B] {
	return Builtin[B]{Factories: factories}
}

// Load implements variant.Loader.
func (l Builtin[B]) Load(_ context.Context, a variant.Artifact) (B, error) {
	var zero B
	if _, err := os.Stat(a.Path()); err != nil {
		return zero, failure.Wrap(failure.SetupFailure,
			fmt.Sprintf("artifact for %q", a.Variant()), err)
	}
	f, ok := l.Factories[a.Variant()]
	if !ok {
		return zero, failure.Newf(failure.SetupFailure,
			"no builtin factory for variant %q (known: %v)", a.Variant(), l.names())
	}
	return f(), nil
}

func (l Builtin[B]) names() []string {
	names := make([]string, 0, len(l.Factories))
	for name := range l.Factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Plugin loads bindings from Go plugins built with -buildmode=plugin.
// The plugin must export Symbol as a B or a *B.
type Plugin[B any] struct {
	// Symbol is the exported name to look up. Default: "Binding".
	Symbol string
}

// Load implements variant.Loader.
func (l Plugin[B]) Load(_ context.Context, a variant.Artifact) (B, error) {
	var zero B
	p, err := plugin.Open(a.Path())
	if err != nil {
		return zero, failure.Wrap(failure.SetupFailure,
			fmt.Sprintf("opening plugin for %q", a.Variant()), err)
	}
	name := l.Symbol
	if name == "" {
		name = DefaultSymbol
	}
	sym, err := p.Lookup(name)
	if err != nil {
		return zero, failure.Wrap(failure.SetupFailure,
			fmt.Sprintf("looking up %s in %s", name, a.Path()), err)
	}
	return fromSymbol[B](sym, name)
}

// fromSymbol converts a looked-up plugin symbol to B. Exported
// variables arrive as pointers, exported functions as values.
func fromSymbol[B any](sym any, name string) (B, error) {
	switch v := sym.(type) {
	case *B:
		if v == nil {
			var zero B
			return zero, failure.Newf(failure.SetupFailure, "symbol %s is nil", name)
		}
		return *v, nil
	case B:
		return v, nil
	case func() B:
		return v(), nil
	default:
		var zero B
		return zero, failure.Newf(failure.SetupFailure,
			"symbol %s has type %T, want %T", name, sym, zero)
	}
}
