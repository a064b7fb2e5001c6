// Package arena provides an off-heap slab allocator for state payloads.
//
// The arena hands out float64 slices carved from large anonymous mappings.
// Memory is never returned piecemeal: callers recycle what they carved and
// the whole arena is released at once by Free.
//
// # Features
//
//   - Off-heap allocation via mmap (no GC scanning of payloads)
//   - Lock-free CAS bump allocation within a chunk
//   - Optional memory budget through a MemoryAcquirer
//
// # Safety
//
// All methods return errors instead of panicking. Slices obtained from the
// arena are invalid after Free.
package arena
