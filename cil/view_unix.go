//go:build linux || darwin

package cil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// loadFile mmaps the assembly read-only. The view never mutates the
// original bytes, so a shared read-only mapping is safe and avoids
// copying large assemblies into the heap.
func loadFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	sz := st.Size()
	if sz == 0 {
		_ = f.Close()
		return nil, nil, fmt.Errorf("empty assembly file: %s", path)
	}

	data, err := unix.Mmap(
		int(f.Fd()),
		0,
		int(sz),
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("mmap failed: %w", err)
	}

	closer := func() error {
		_ = unix.Munmap(data)
		return f.Close()
	}
	return data, closer, nil
}
