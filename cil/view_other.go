//go:build !linux && !darwin

package cil

import (
	"fmt"
	"io"
	"os"
)

// loadFile reads the assembly into memory on platforms without mmap support.
func loadFile(path string) ([]byte, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	sz := st.Size()
	if sz == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("empty assembly file: %s", path)
	}

	buf := make([]byte, sz)
	if _, err := io.ReadFull(f, buf); err != nil {
		f.Close()
		return nil, nil, err
	}

	return buf, f.Close, nil
}
