//go:build !unix && !windows

package mmap

// Platforms without mmap fall back to heap memory; unmap drops the reference.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), func([]byte) error { return nil }, nil
}
