package memory

import (
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/sagpant/mlpack/internal/errors"
	"github.com/sagpant/mlpack/internal/metrics"
)

// Arena is a file-backed bump allocator. One arena is created per process
// before any distributed table exists and torn down after every table has
// been released; individual buffers are never returned to it.
type Arena struct {
	f    *os.File
	data mmap.MMap

	mu  sync.Mutex
	off int
}

// NewArena creates (or truncates) the file at path and maps size bytes.
func NewArena(path string, size int) (*Arena, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrorTypeConfiguration, "arena.new", "arena size must be positive")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "arena.new", "open arena file")
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "arena.new", "size arena file")
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "arena.new", "map arena file")
	}
	return &Arena{f: f, data: m}, nil
}

// AllocFloat64 bumps the arena cursor and returns an 8-byte aligned view.
// Allocation failure is unrecoverable for the process: the protocol has
// no path that can continue without the buffer, so exhaustion panics.
func (a *Arena) AllocFloat64(n int) []float64 {
	if n == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	off := (a.off + 7) &^ 7
	need := n * 8
	if off+need > len(a.data) {
		panic(errors.Newf(errors.ErrorTypeStorage, "arena.alloc",
			"arena exhausted: need %d bytes, %d free", need, len(a.data)-off))
	}
	a.off = off + need
	metrics.ArenaAllocatedBytes.Add(float64(need))

	buf := bytesToFloat64(a.data[off:off+need], n)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Free is a no-op: arena storage is reclaimed when the arena closes.
func (a *Arena) Free(buf []float64) {}

func (a *Arena) Ownership() Ownership {
	return OwnArena
}

// Close unmaps and closes the backing file. No buffer handed out by the
// arena may be used after Close.
func (a *Arena) Close() error {
	if a.data != nil {
		if err := a.data.Unmap(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "arena.close", "unmap arena")
		}
		a.data = nil
	}
	if a.f != nil {
		err := a.f.Close()
		a.f = nil
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "arena.close", "close arena file")
		}
	}
	return nil
}
