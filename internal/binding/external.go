package binding

import (
	"runtime"
	"sync/atomic"
)

// External wraps an arbitrary Go value handed across the binding.
type External struct {
	value any
}

// Value returns the wrapped value.
func (e *External) Value() any { return e.value }

// Externals creates externals with and without finalizers.
type Externals interface {
	Create(value any) *External
	CreateWithFinalize(value any) *External

	// FinalizeCount is the number of external finalizers that have run
	// since the last external was created.
	FinalizeCount() int
}

type externals struct {
	finalize atomic.Int64
}

func (x *externals) Create(value any) *External {
	x.finalize.Store(0)
	return &External{value: value}
}

func (x *externals) CreateWithFinalize(value any) *External {
	x.finalize.Store(0)
	e := &External{value: value}
	runtime.SetFinalizer(e, func(*External) { x.finalize.Add(1) })
	return e
}

func (x *externals) FinalizeCount() int {
	return int(x.finalize.Load())
}
