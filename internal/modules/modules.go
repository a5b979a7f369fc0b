// Package modules holds the built-in test modules run by bindcheck.
package modules

import (
	"context"

	"github.com/unbound-force/bindcheck/internal/binding"
	"github.com/unbound-force/bindcheck/internal/suite"
)

// All returns every built-in module in run order.
func All() []suite.Module {
	return []suite.Module{
		ArrayBuffer(),
		AsyncWorker(),
		Error(),
		External(),
		Function(),
	}
}

// Names returns the names of All, in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = m.Name
	}
	return names
}

// catch runs fn and converts a raised binding exception into an
// error, so the exceptions and noexcept variants report alike.
func catch(fn func() error) func(context.Context) error {
	return func(context.Context) error {
		return binding.Catch(fn)
	}
}
