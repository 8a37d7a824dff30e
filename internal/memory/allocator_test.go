package memory

import (
	"path/filepath"
	"testing"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocatorRoundTrip(t *testing.T) {
	checked := arrowmem.NewCheckedAllocator(arrowmem.NewGoAllocator())
	alloc := NewHeapAllocatorWith(checked)

	buf := alloc.AllocFloat64(128)
	require.Len(t, buf, 128)
	assert.Equal(t, OwnHeap, alloc.Ownership())

	for i := range buf {
		buf[i] = float64(i)
	}
	assert.Equal(t, 127.0, buf[127])

	alloc.Free(buf)
	checked.AssertSize(t, 0)
}

func TestHeapAllocatorEmpty(t *testing.T) {
	alloc := NewHeapAllocator()
	assert.Nil(t, alloc.AllocFloat64(0))
	alloc.Free(nil)
}

func TestArenaAlloc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.arena")
	arena, err := NewArena(path, 1<<16)
	require.NoError(t, err)
	defer arena.Close()

	assert.Equal(t, OwnArena, arena.Ownership())

	a := arena.AllocFloat64(100)
	b := arena.AllocFloat64(50)
	require.Len(t, a, 100)
	require.Len(t, b, 50)

	// Buffers come back zeroed and disjoint.
	for i := range a {
		assert.Zero(t, a[i])
		a[i] = 1
	}
	for i := range b {
		assert.Zero(t, b[i])
	}

	// Free is a no-op; the buffer stays valid until Close.
	arena.Free(a)
	assert.Equal(t, 1.0, a[0])
}

func TestArenaExhaustionPanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.arena")
	arena, err := NewArena(path, 64)
	require.NoError(t, err)
	defer arena.Close()

	assert.Panics(t, func() {
		arena.AllocFloat64(1024)
	})
}

func TestArenaRejectsBadConfig(t *testing.T) {
	_, err := NewArena(filepath.Join(t.TempDir(), "bad.arena"), 0)
	assert.Error(t, err)
}
