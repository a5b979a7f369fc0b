// Package binding defines the capability surface exercised by test
// modules, and an in-process reference implementation with two
// variants: one that raises exceptions by panicking and one that
// returns them as errors.
package binding

import (
	"fmt"
	"sort"
)

// Reference variant names.
const (
	VariantExceptions = "binding"
	VariantNoExcept   = "binding_noexcept"
)

// Binding is one loaded variant of the extension.
type Binding interface {
	// Variant returns the variant name the binding was built as.
	Variant() string

	ArrayBuffers() ArrayBuffers
	Externals() Externals
	Functions() Functions
	Errors() Errors
	AsyncWorkers() AsyncWorkers
}

// ExceptionKind is the constructor name of a raised exception.
type ExceptionKind string

// Exception kinds.
const (
	KindError      ExceptionKind = "Error"
	KindTypeError  ExceptionKind = "TypeError"
	KindRangeError ExceptionKind = "RangeError"
)

// Exception is an error raised by a binding. The exceptions variant
// panics with it; the noexcept variant returns it.
type Exception struct {
	Kind    ExceptionKind
	Message string
}

func (e *Exception) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = KindError
	}
	return fmt.Sprintf("%s: %s", kind, e.Message)
}

// Catch calls fn and returns the exception it raised, whether the
// binding panicked with it or returned it. Other panics propagate.
func Catch(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(*Exception); ok {
				err = e
				return
			}
			panic(rec)
		}
	}()
	return fn()
}

// Factory builds a fresh binding instance.
type Factory func() Binding

// Factories returns the reference variants keyed by name.
func Factories() map[string]Factory {
	return map[string]Factory{
		VariantExceptions: func() Binding { return newReference(VariantExceptions, true) },
		VariantNoExcept:   func() Binding { return newReference(VariantNoExcept, false) },
	}
}

// Names returns the reference variant names in sorted order.
func Names() []string {
	f := Factories()
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a fresh reference binding for variant.
func New(variant string) (Binding, error) {
	f, ok := Factories()[variant]
	if !ok {
		return nil, fmt.Errorf("unknown reference variant %q", variant)
	}
	return f(), nil
}

type reference struct {
	variant    string
	exceptions bool

	buffers   *arrayBuffers
	externals *externals
	functions *functions
	errs      *errorsAPI
	workers   *asyncWorkers
}

func newReference(variant string, exceptions bool) *reference {
	r := &reference{variant: variant, exceptions: exceptions}
	r.buffers = &arrayBuffers{r: r}
	r.externals = &externals{}
	r.functions = &functions{}
	r.errs = &errorsAPI{r: r}
	r.workers = &asyncWorkers{}
	return r
}

func (r *reference) Variant() string            { return r.variant }
func (r *reference) ArrayBuffers() ArrayBuffers { return r.buffers }
func (r *reference) Externals() Externals       { return r.externals }
func (r *reference) Functions() Functions       { return r.functions }
func (r *reference) Errors() Errors             { return r.errs }
func (r *reference) AsyncWorkers() AsyncWorkers { return r.workers }

// raise delivers e the way the variant reports exceptions.
func (r *reference) raise(e *Exception) error {
	if r.exceptions {
		panic(e)
	}
	return e
}
