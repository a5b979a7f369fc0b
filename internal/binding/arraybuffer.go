package binding

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// bufferLength is the size of every buffer the reference binding
// creates. Byte i holds the value i.
const bufferLength = 4

// ArrayBuffer is a fixed-length byte buffer owned by a binding.
type ArrayBuffer struct {
	data     []byte
	external bool
}

// Len returns the buffer length.
func (b *ArrayBuffer) Len() int { return len(b.data) }

// Bytes returns the backing bytes.
func (b *ArrayBuffer) Bytes() []byte { return b.data }

// External reports whether the memory is owned outside the buffer.
func (b *ArrayBuffer) External() bool { return b.external }

// Slice returns a copy of b[start:end] as a new internal buffer.
func (b *ArrayBuffer) Slice(start, end int) *ArrayBuffer {
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return &ArrayBuffer{data: out}
}

// ArrayBuffers creates and checks buffers.
type ArrayBuffers interface {
	CreateBuffer() *ArrayBuffer
	CreateExternalBuffer() *ArrayBuffer
	CreateExternalBufferWithFinalize() *ArrayBuffer
	CreateExternalBufferWithFinalizeHint() *ArrayBuffer

	// CheckBuffer raises an exception if b is not a test buffer.
	CheckBuffer(b *ArrayBuffer) error

	// FinalizeCount is the number of external buffer finalizers that
	// have run since the last external buffer was created.
	FinalizeCount() int
}

type arrayBuffers struct {
	r        *reference
	finalize atomic.Int64
}

func testData() []byte {
	data := make([]byte, bufferLength)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func (a *arrayBuffers) CreateBuffer() *ArrayBuffer {
	return &ArrayBuffer{data: testData()}
}

func (a *arrayBuffers) CreateExternalBuffer() *ArrayBuffer {
	a.finalize.Store(0)
	return &ArrayBuffer{data: testData(), external: true}
}

func (a *arrayBuffers) CreateExternalBufferWithFinalize() *ArrayBuffer {
	a.finalize.Store(0)
	buf := &ArrayBuffer{data: testData(), external: true}
	runtime.SetFinalizer(buf, func(b *ArrayBuffer) {
		b.data = nil
		a.finalize.Add(1)
	})
	return buf
}

type finalizeHint struct {
	data []byte
}

func (a *arrayBuffers) CreateExternalBufferWithFinalizeHint() *ArrayBuffer {
	a.finalize.Store(0)
	hint := &finalizeHint{}
	buf := &ArrayBuffer{data: testData(), external: true}
	hint.data = buf.data
	runtime.SetFinalizer(buf, func(b *ArrayBuffer) {
		if &b.data[0] == &hint.data[0] {
			a.finalize.Add(1)
		}
		b.data = nil
	})
	return buf
}

func (a *arrayBuffers) CheckBuffer(b *ArrayBuffer) error {
	if b == nil {
		return a.r.raise(&Exception{Kind: KindTypeError, Message: "A buffer was expected."})
	}
	if b.Len() != bufferLength {
		return a.r.raise(&Exception{Message: fmt.Sprintf("Incorrect buffer length: %d", b.Len())})
	}
	for i, v := range b.data {
		if v != byte(i) {
			return a.r.raise(&Exception{Message: fmt.Sprintf("Incorrect buffer value at %d: %d", i, v)})
		}
	}
	return nil
}

func (a *arrayBuffers) FinalizeCount() int {
	return int(a.finalize.Load())
}
