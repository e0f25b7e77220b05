package colo

import (
	"bytes"

	"github.com/pkg/errors"
)

// DefaultBufferCapacity is the staging buffer's base capacity. One
// checkpoint's serialized state usually fits without regrowing.
const DefaultBufferCapacity = 4 * 1024 * 1024

// ErrBufferAllocation indicates the staging buffer could not be created at
// phase entry.
var ErrBufferAllocation = errors.New("can't allocate staging buffer")

// stagingBuffer is the reusable byte store one checkpoint's serialized state
// is staged in. It is allocated once per phase and truncated, never
// reallocated, at the start of every transaction, so steady-state cycles
// allocate nothing. It is owned and mutated by exactly one loop at a time.
type stagingBuffer struct {
	buf *bytes.Buffer
}

func newStagingBuffer(capacity int) (*stagingBuffer, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrBufferAllocation, "invalid capacity %d", capacity)
	}
	return &stagingBuffer{
		buf: bytes.NewBuffer(make([]byte, 0, capacity)),
	}, nil
}

// Reset truncates the buffer to zero length, keeping its storage.
func (b *stagingBuffer) Reset() {
	b.buf.Reset()
}

func (b *stagingBuffer) Len() int {
	return b.buf.Len()
}

// Bytes returns the staged contents. The slice is valid until the next Reset
// or Write.
func (b *stagingBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Write appends to the staged contents; it is the sink the snapshotter
// serializes into.
func (b *stagingBuffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// free drops the storage. The buffer must not be used afterwards.
func (b *stagingBuffer) free() {
	b.buf = nil
}
