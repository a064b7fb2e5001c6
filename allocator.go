package cspace

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/hupe1980/cspace/internal/arena"
)

// shard is one mutex-guarded free list. Counters are guarded by mu.
type shard struct {
	_  cpu.CacheLinePad
	mu sync.Mutex

	free    []State
	allocs  uint64
	frees   uint64
	fresh   uint64
	steals  uint64
	refills uint64
	_       cpu.CacheLinePad
}

// allocator hands out fixed-size payloads carved from an off-heap arena.
//
// Payloads are recycled through sharded free lists and never returned to the
// arena; the arena releases everything at once when the space is closed. A
// payload sits on at most one free list, so it is never handed out twice
// between a free and the next allocation.
type allocator struct {
	size    int
	perFill int
	shards  []shard
	ticket  atomic.Uint64
	arena   *arena.Arena
	metrics MetricsCollector

	outOfMemory atomic.Uint64
}

func newAllocator(size int, o options, a *arena.Arena) *allocator {
	perFill := 0
	if size > 0 {
		perFill = min(o.refillBatch, a.ChunkSize()/(size*8))
	}
	return &allocator{
		size:    size,
		perFill: max(perFill, 1),
		shards:  make([]shard, o.shards),
		arena:   a,
		metrics: o.metricsCollector,
	}
}

func (a *allocator) next() int {
	return int(a.ticket.Add(1) % uint64(len(a.shards))) //nolint:gosec // shard count is small
}

// get pops a payload. The contents are unspecified.
func (a *allocator) get() (State, error) {
	if a.size == 0 {
		return State{}, nil
	}

	i := a.next()
	sh := &a.shards[i]

	sh.mu.Lock()
	if n := len(sh.free); n > 0 {
		s := sh.free[n-1]
		sh.free[n-1] = nil
		sh.free = sh.free[:n-1]
		sh.allocs++
		sh.mu.Unlock()
		return s, nil
	}
	sh.mu.Unlock()

	return a.slow(i)
}

// slow refills shard i, first by stealing half of a neighbour's idle
// payloads and then by carving a fresh batch from the arena.
func (a *allocator) slow(i int) (State, error) {
	if stolen := a.steal(i); stolen != nil {
		a.metrics.RecordSteal(len(stolen))
		return a.keep(i, stolen, false), nil
	}

	start := time.Now()
	fresh, err := a.carve()
	a.metrics.RecordRefill(len(fresh), time.Since(start), err)
	if err != nil {
		a.outOfMemory.Add(1)
		return nil, err
	}
	return a.keep(i, fresh, true), nil
}

func (a *allocator) steal(i int) []State {
	for d := 1; d < len(a.shards); d++ {
		victim := &a.shards[(i+d)%len(a.shards)]

		victim.mu.Lock()
		n := len(victim.free)
		if n == 0 {
			victim.mu.Unlock()
			continue
		}
		take := (n + 1) / 2
		stolen := make([]State, take)
		copy(stolen, victim.free[n-take:])
		clear(victim.free[n-take:])
		victim.free = victim.free[:n-take]
		victim.mu.Unlock()
		return stolen
	}
	return nil
}

func (a *allocator) carve() ([]State, error) {
	slab, err := a.arena.AllocFloat64Slice(a.perFill * a.size)
	if err != nil {
		return nil, outOfMemory(err)
	}
	fresh := make([]State, a.perFill)
	for k := range fresh {
		lo, hi := k*a.size, (k+1)*a.size
		fresh[k] = State(slab[lo:hi:hi])
	}
	return fresh, nil
}

// keep returns the first payload and pushes the rest onto shard i.
func (a *allocator) keep(i int, payloads []State, fresh bool) State {
	sh := &a.shards[i]
	sh.mu.Lock()
	sh.free = append(sh.free, payloads[1:]...)
	sh.allocs++
	if fresh {
		sh.fresh += uint64(len(payloads))
		sh.refills++
	} else {
		sh.steals++
	}
	sh.mu.Unlock()
	return payloads[0]
}

func (a *allocator) put(s State) {
	if a.size == 0 {
		return
	}
	sh := &a.shards[a.next()]
	sh.mu.Lock()
	sh.free = append(sh.free, s)
	sh.frees++
	sh.mu.Unlock()
}

func (a *allocator) stats() Stats {
	st := Stats{
		Shards:      len(a.shards),
		StateSize:   a.size,
		OutOfMemory: a.outOfMemory.Load(),
	}
	for i := range a.shards {
		sh := &a.shards[i]
		sh.mu.Lock()
		st.Allocs += sh.allocs
		st.Frees += sh.frees
		st.FreshAllocs += sh.fresh
		st.Steals += sh.steals
		st.Refills += sh.refills
		st.Idle += len(sh.free)
		sh.mu.Unlock()
	}
	st.Live = int64(st.Allocs) - int64(st.Frees) //nolint:gosec // counters stay far below 2^63
	return st
}

func outOfMemory(err error) error {
	switch {
	case errors.Is(err, arena.ErrClosed):
		return ErrClosed
	default:
		return errors.Join(ErrOutOfMemory, err)
	}
}
