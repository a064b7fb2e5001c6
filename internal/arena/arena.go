// Package arena provides an off-heap slab allocator for state payloads.
//
// # Concurrency Model
//
// Arena supports concurrent allocations (AllocFloat64Slice) but
// does NOT support Free concurrently with allocations. The typical usage is:
//   - Create one arena per allocator context during setup
//   - Carve slabs from many goroutines (SAFE)
//   - Call Free() once at teardown (NOT concurrent with allocations)
package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/cspace/internal/conv"
	"github.com/hupe1980/cspace/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when the arena exceeds the maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrTooLarge is returned when a single allocation does not fit in a chunk.
	ErrTooLarge = errors.New("arena: allocation larger than chunk size")
	// ErrClosed is returned when allocating from a freed arena.
	ErrClosed = errors.New("arena: closed")
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1024 * 1024
	// DefaultAlignment is the default memory alignment (8 bytes).
	DefaultAlignment = 8
	// DefaultMaxChunks limits the number of chunks (64GB with 1MB chunks).
	DefaultMaxChunks = 65536

	minChunkSize = 64
)

// Stats tracks arena memory usage metrics.
//
// Note on semantics:
//   - BytesReserved: total memory reserved from the OS
//   - BytesUsed: bytes handed out by allocations (before alignment)
//   - BytesWasted: padding added for alignment
//   - ActiveChunks: number of chunks currently held
//   - TotalAllocs: cumulative allocation count
type Stats struct {
	ChunksAllocated uint64 // Historical: total chunks ever created
	BytesReserved   uint64
	BytesUsed       uint64
	BytesWasted     uint64
	ActiveChunks    uint64
	TotalAllocs     uint64
}

type atomicStats struct {
	ChunksAllocated atomic.Uint64
	BytesReserved   atomic.Uint64
	BytesUsed       atomic.Uint64
	BytesWasted     atomic.Uint64
	ActiveChunks    atomic.Uint64
	TotalAllocs     atomic.Uint64
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping
	offset  atomic.Int64 // MUST be atomic - accessed concurrently without locks
}

// Arena is a memory arena allocator.
type Arena struct {
	chunkSize int
	maxChunks int
	chunks    []*chunk // append-only, protected by mu
	current   atomic.Pointer[chunk]
	mu        sync.Mutex
	stats     atomicStats
	acquirer  MemoryAcquirer
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// WithMaxChunks bounds the number of chunks the arena may map.
func WithMaxChunks(n int) Option {
	return func(a *Arena) {
		if n > 0 {
			a.maxChunks = n
		}
	}
}

// New creates a new Arena. chunkSize is rounded up to a power of two.
// The first chunk is mapped lazily by the first allocation.
func New(chunkSize int, opts ...Option) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = max(chunkSize, minChunkSize)

	// Round up to next power of 2.
	chunkSize = 1 << bits.Len(uint(chunkSize-1)) //nolint:gosec // chunkSize > 0

	a := &Arena{
		chunkSize: chunkSize,
		maxChunks: DefaultMaxChunks,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.current.Store(&chunk{}) // empty sentinel: forces a real chunk on first use
	return a
}

// ChunkSize returns the effective chunk size in bytes.
func (a *Arena) ChunkSize() int {
	return a.chunkSize
}

func (a *Arena) allocateChunkLocked() error {
	if len(a.chunks) >= a.maxChunks {
		// This is a critical failure for the arena.
		return ErrMaxChunksExceeded
	}

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(int64(a.chunkSize)); err != nil {
			return err
		}
	}

	// Use off-heap anonymous mapping to avoid GC pressure for large pools
	mapping, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(a.chunkSize))
		}
		return fmt.Errorf("failed to map anonymous memory for chunk: %w", err)
	}

	newChunk := &chunk{
		data:    mapping.Bytes(),
		mapping: mapping,
	}
	a.chunks = append(a.chunks, newChunk)

	chunkSizeU64, _ := conv.IntToUint64(a.chunkSize)
	a.stats.ChunksAllocated.Add(1)
	a.stats.BytesReserved.Add(chunkSizeU64)
	a.stats.ActiveChunks.Add(1)

	// Make visible to alloc
	a.current.Store(newChunk)

	return nil
}

// AllocFloat64Slice allocates a zeroed float64 slice of length n.
func (a *Arena) AllocFloat64Slice(n int) ([]float64, error) {
	if n <= 0 {
		return nil, nil
	}

	size := n * int(unsafe.Sizeof(float64(0)))
	b, err := a.alloc(size)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), n), nil //nolint:gosec // unsafe is required for arena implementation
}

func (a *Arena) alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	if size > a.chunkSize {
		return nil, ErrTooLarge
	}

	mask := DefaultAlignment - 1
	alignedSize := (size + mask) & ^mask

	for {
		curr := a.current.Load()
		if curr == nil {
			return nil, ErrClosed
		}

		if data, ok := a.tryAllocInChunk(curr, size, alignedSize); ok {
			return data, nil
		}

		// Current chunk is full. Only one goroutine maps the next chunk;
		// the others retry on the new current.
		a.mu.Lock()
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}

		if err := a.allocateChunkLocked(); err != nil {
			a.mu.Unlock()
			return nil, err
		}
		a.mu.Unlock()
	}
}

func (a *Arena) tryAllocInChunk(curr *chunk, size, alignedSize int) ([]byte, bool) {
	for {
		oldOffset := curr.offset.Load()
		newOffset := oldOffset + int64(alignedSize)

		if newOffset > int64(len(curr.data)) {
			return nil, false
		}

		if curr.offset.CompareAndSwap(oldOffset, newOffset) {
			sizeU64, _ := conv.IntToUint64(size)
			a.stats.BytesUsed.Add(sizeU64)
			wastedU64, _ := conv.IntToUint64(alignedSize - size)
			a.stats.BytesWasted.Add(wastedU64)
			a.stats.TotalAllocs.Add(1)

			return curr.data[oldOffset : oldOffset+int64(size) : oldOffset+int64(size)], true
		}
	}
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		ChunksAllocated: a.stats.ChunksAllocated.Load(),
		BytesReserved:   a.stats.BytesReserved.Load(),
		BytesUsed:       a.stats.BytesUsed.Load(),
		BytesWasted:     a.stats.BytesWasted.Load(),
		ActiveChunks:    a.stats.ActiveChunks.Load(),
		TotalAllocs:     a.stats.TotalAllocs.Load(),
	}
}

// Free unmaps all arena memory.
//
// IMPORTANT:
//  1. Do NOT call Free concurrently with allocations
//  2. All slices allocated from this arena become invalid after Free
//
// After Free(), the arena cannot be reused. Create a new arena instead.
// Free is idempotent.
func (a *Arena) Free() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current.Swap(nil) == nil {
		return nil
	}

	var errs []error
	for _, c := range a.chunks {
		if err := c.mapping.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.acquirer != nil && len(a.chunks) > 0 {
		a.acquirer.ReleaseMemory(int64(len(a.chunks)) * int64(a.chunkSize))
	}
	a.chunks = nil

	a.stats.ActiveChunks.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)

	return errors.Join(errs...)
}

// Usage returns the share of reserved bytes handed out, in percent.
func (a *Arena) Usage() float64 {
	stats := a.Stats()
	if stats.BytesReserved == 0 {
		return 0
	}
	return float64(stats.BytesUsed) / float64(stats.BytesReserved) * 100
}
