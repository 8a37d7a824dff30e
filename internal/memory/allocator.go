// Package memory provides the point-buffer allocators used by the
// distributed table. Buffers come from one of two places: the Go heap
// (through the Arrow allocator abstraction) or a process-wide
// memory-mapped arena. Every buffer carries an ownership tag and is
// released through the same allocator that produced it.
package memory

import (
	"unsafe"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
)

// Ownership tags where a buffer's backing storage lives.
type Ownership uint8

const (
	OwnHeap Ownership = iota
	OwnArena
)

func (o Ownership) String() string {
	if o == OwnArena {
		return "arena"
	}
	return "heap"
}

// Allocator hands out float64 point buffers. Implementations are safe for
// use by a single rank; ranks never share an allocator.
type Allocator interface {
	// AllocFloat64 returns a zeroed buffer of n float64s.
	AllocFloat64(n int) []float64

	// Free releases a buffer previously returned by AllocFloat64.
	// Arena-owned buffers are reclaimed wholesale when the arena closes,
	// so Free is a no-op there.
	Free(buf []float64)

	// Ownership reports where this allocator's buffers live.
	Ownership() Ownership
}

// HeapAllocator allocates through an Arrow memory.Allocator.
type HeapAllocator struct {
	mem arrowmem.Allocator
}

// NewHeapAllocator returns a heap allocator backed by the default Arrow
// Go allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{mem: arrowmem.NewGoAllocator()}
}

// NewHeapAllocatorWith wraps an existing Arrow allocator, e.g. a
// CheckedAllocator in tests.
func NewHeapAllocatorWith(mem arrowmem.Allocator) *HeapAllocator {
	return &HeapAllocator{mem: mem}
}

func (h *HeapAllocator) AllocFloat64(n int) []float64 {
	if n == 0 {
		return nil
	}
	raw := h.mem.Allocate(n * 8)
	return bytesToFloat64(raw, n)
}

func (h *HeapAllocator) Free(buf []float64) {
	if len(buf) == 0 {
		return
	}
	h.mem.Free(float64ToBytes(buf))
}

func (h *HeapAllocator) Ownership() Ownership {
	return OwnHeap
}

func bytesToFloat64(raw []byte, n int) []float64 {
	return unsafe.Slice((*float64)(unsafe.Pointer(&raw[0])), n)
}

func float64ToBytes(buf []float64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), len(buf)*8)
}
