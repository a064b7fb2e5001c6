// Package resource implements the memory budget shared by state arenas.
//
// A Controller bounds the off-heap memory of one or more spaces. Pass it to
// every space that should draw from the same budget:
//
//	budget := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	poses := cspace.NewSpace(se3, cspace.WithMemoryBudget(budget))
//	joints := cspace.NewSpace(arm, cspace.WithMemoryBudget(budget))
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	if err := budget.AcquireMemory(1024*1024); err != nil {
//	    // ErrMemoryLimitExceeded - the allocator reports out of memory
//	}
//	defer budget.ReleaseMemory(1024*1024)
//
// The arena reserves one chunk at a time, so the budget is consumed in
// chunk-sized steps rather than per state.
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
