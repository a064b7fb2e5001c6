package cspace

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/cspace/internal/arena"
	"github.com/hupe1980/cspace/internal/conv"
	"github.com/hupe1980/cspace/resource"
)

type spaceStatus int32

const (
	statusNew spaceStatus = iota
	statusReady
	statusClosed
)

// Stats is a snapshot of a space's allocator counters.
type Stats struct {
	// Allocs is the number of states handed out.
	Allocs uint64
	// Frees is the number of states returned.
	Frees uint64
	// Live is Allocs - Frees.
	Live int64
	// FreshAllocs counts payloads carved from the arena.
	FreshAllocs uint64
	// Refills counts arena carves.
	Refills uint64
	// Steals counts refills served by a neighbouring shard.
	Steals uint64
	// OutOfMemory counts allocations refused for lack of memory.
	OutOfMemory uint64
	// Idle is the number of payloads waiting on free lists.
	Idle int

	Shards    int
	StateSize int

	// Arena figures.
	Chunks        uint64
	BytesReserved uint64
	BytesUsed     uint64
	// ArenaUsage is BytesUsed in percent of BytesReserved.
	ArenaUsage float64

	// Budget figures, zero when the space is unbounded. A budget shared
	// with other spaces reports their totals.
	BudgetLimit  int64
	BudgetUsed   int64
	BudgetPeak   int64
	BudgetDenied int64
}

// Space binds a manifold to a concurrent state allocator.
//
// A Space is created with NewSpace, configured single-threaded, made ready by
// Setup and torn down by Close. Between Setup and Close every method is safe
// for concurrent use. States allocated by a space must be freed to the same
// space and become invalid once it is closed.
//
// Example:
//
//	se3 := cspace.NewSE3()
//	_ = se3.SetBounds(cspace.NewBounds(3, -1, 1))
//
//	sp := cspace.NewSpace(se3)
//	if err := sp.Setup(); err != nil {
//	    return err
//	}
//	defer sp.Close()
//
//	s, err := sp.AllocState()
//	if err != nil {
//	    return err
//	}
//	defer sp.FreeState(s)
type Space struct {
	id       string
	manifold Manifold
	opts     options
	logger   *Logger

	mu     sync.Mutex // serializes Setup and Close
	status atomic.Int32
	arena  *arena.Arena
	budget *resource.Controller
	alloc  *allocator
}

// NewSpace creates a space for m. The space is unusable until Setup.
func NewSpace(m Manifold, optFns ...Option) *Space {
	o := applyOptions(optFns)
	id := uuid.NewString()
	sp := &Space{
		id:       id,
		manifold: m,
		opts:     o,
		logger:   o.logger.WithSpace(id),
	}
	if m != nil {
		sp.logger = sp.logger.WithManifold(m)
	}
	return sp
}

// ID returns the unique instance identifier of the space.
func (sp *Space) ID() string { return sp.id }

// Manifold returns the manifold the space allocates for.
func (sp *Space) Manifold() Manifold { return sp.manifold }

// Setup locks and validates the manifold tree and builds the allocator.
// Calling Setup on a ready space is a no-op.
func (sp *Space) Setup() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	switch spaceStatus(sp.status.Load()) {
	case statusReady:
		return nil
	case statusClosed:
		return ErrClosed
	}

	err := sp.setupLocked()
	size := 0
	if err == nil {
		size = sp.alloc.size
	}
	sp.logger.LogSetup(context.Background(), size, sp.opts.shards, err)
	return err
}

func (sp *Space) setupLocked() error {
	if sp.manifold == nil {
		return invalidf("space has no manifold")
	}
	if v, ok := sp.manifold.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return err
		}
	}
	sp.manifold.Lock()

	size := sp.manifold.StateSize()
	stateBytes, err := conv.IntToUint64(size * 8)
	if err != nil {
		return invalidf("state size: %v", err)
	}
	chunkSize, err := conv.Uint64ToInt(max(stateBytes, uint64(sp.opts.chunkSize))) //nolint:gosec // chunkSize > 0
	if err != nil {
		return invalidf("chunk size: %v", err)
	}

	sp.budget = sp.opts.budget
	if sp.budget == nil && sp.opts.memoryLimit > 0 {
		sp.budget = resource.NewController(resource.Config{MemoryLimitBytes: sp.opts.memoryLimit})
	}

	var arenaOpts []arena.Option
	if sp.budget != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(sp.budget))
	}
	if sp.opts.maxChunks > 0 {
		arenaOpts = append(arenaOpts, arena.WithMaxChunks(sp.opts.maxChunks))
	}
	sp.arena = arena.New(chunkSize, arenaOpts...)
	sp.alloc = newAllocator(size, sp.opts, sp.arena)
	sp.status.Store(int32(statusReady))
	return nil
}

// IsSetup reports whether the space is ready for allocation.
func (sp *Space) IsSetup() bool {
	return spaceStatus(sp.status.Load()) == statusReady
}

func (sp *Space) ready() error {
	switch spaceStatus(sp.status.Load()) {
	case statusReady:
		return nil
	case statusClosed:
		return ErrClosed
	default:
		return ErrNotSetup
	}
}

// AllocState returns a default-initialized state. It fails with
// ErrOutOfMemory when the memory budget is exhausted; the allocation is not
// retried. On success the state is never nil.
func (sp *Space) AllocState() (State, error) {
	if err := sp.ready(); err != nil {
		return nil, err
	}
	s, err := sp.alloc.get()
	if err != nil {
		sp.logger.LogAllocFailure(context.Background(), sp.alloc.size, err)
		return nil, err
	}
	sp.manifold.SetDefault(s)
	return s, nil
}

// FreeState returns s to the allocator. s must have been obtained from this
// space and must not be used afterwards. Freeing a state twice is undefined.
func (sp *Space) FreeState(s State) {
	if s == nil || sp.ready() != nil {
		return
	}
	sp.alloc.put(s)
}

// AllocStates allocates n states. On failure every state allocated by the
// call is freed again.
func (sp *Space) AllocStates(n int) ([]State, error) {
	if n < 0 {
		return nil, &ErrIndexOutOfRange{Index: n, Count: 0}
	}
	states := make([]State, 0, n)
	for range n {
		s, err := sp.AllocState()
		if err != nil {
			sp.FreeStates(states)
			return nil, err
		}
		states = append(states, s)
	}
	return states, nil
}

// FreeStates frees every state of states.
func (sp *Space) FreeStates(states []State) {
	for _, s := range states {
		sp.FreeState(s)
	}
}

// CloneState allocates a deep copy of s.
func (sp *Space) CloneState(s State) (State, error) {
	c, err := sp.AllocState()
	if err != nil {
		return nil, err
	}
	sp.manifold.CopyState(c, s)
	return c, nil
}

// CopyState deep-copies src into dst.
func (sp *Space) CopyState(dst, src State) { sp.manifold.CopyState(dst, src) }

// EqualStates compares two states exactly.
func (sp *Space) EqualStates(a, b State) bool { return sp.manifold.EqualStates(a, b) }

// Distance returns the manifold distance between a and b.
func (sp *Space) Distance(a, b State) float64 { return sp.manifold.Distance(a, b) }

// Interpolate writes the state at fraction t from `from` to `to` into out.
func (sp *Space) Interpolate(from, to State, t float64, out State) {
	sp.manifold.Interpolate(from, to, t, out)
}

// EnforceBounds brings s back into the valid region.
func (sp *Space) EnforceBounds(s State) { sp.manifold.EnforceBounds(s) }

// SatisfiesBounds reports whether s lies in the valid region.
func (sp *Space) SatisfiesBounds(s State) bool { return sp.manifold.SatisfiesBounds(s) }

// NewSampler returns a sampler over the space's manifold seeded with seed.
// Samplers are not safe for concurrent use; create one per goroutine.
func (sp *Space) NewSampler(seed uint64) (*Sampler, error) {
	if err := sp.ready(); err != nil {
		return nil, err
	}
	return NewSampler(sp.manifold, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))) //nolint:gosec // sampling, not crypto
}

// Stats returns a snapshot of the allocator counters.
func (sp *Space) Stats() Stats {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.alloc == nil {
		return Stats{Shards: sp.opts.shards}
	}
	st := sp.alloc.stats()
	as := sp.arena.Stats()
	st.Chunks = as.ActiveChunks
	st.BytesReserved = as.BytesReserved
	st.BytesUsed = as.BytesUsed
	st.ArenaUsage = sp.arena.Usage()
	st.BudgetLimit = sp.budget.MemoryLimit()
	st.BudgetUsed = sp.budget.MemoryUsage()
	st.BudgetPeak = sp.budget.PeakMemoryUsage()
	st.BudgetDenied = sp.budget.Denied()
	return st
}

// MemoryBudget returns the controller accounting the space's memory, or nil
// when the space is unbounded.
func (sp *Space) MemoryBudget() *resource.Controller {
	return sp.budget
}

// Close releases all memory held by the space. Every state allocated from it
// becomes invalid, whether or not it was freed. Close is idempotent.
func (sp *Space) Close() error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	prev := spaceStatus(sp.status.Swap(int32(statusClosed)))
	if prev != statusReady {
		return nil
	}

	st := sp.alloc.stats()
	as := sp.arena.Stats()
	st.BytesReserved = as.BytesReserved

	var err error
	if ferr := sp.arena.Free(); ferr != nil {
		err = fmt.Errorf("close space %s: %w", sp.id, ferr)
	}
	sp.logger.LogClose(context.Background(), st, err)
	return err
}

func (sp *Space) metrics() MetricsCollector {
	return sp.opts.metricsCollector
}
