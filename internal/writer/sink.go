package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink receives the finished image bytes.
type Sink interface {
	WriteImage(buf []byte) error
}

// FileSink writes image bytes to a filesystem path atomically.
type FileSink struct {
	Path string
}

// WriteImage writes buf to the configured path atomically via temp file + rename.
func (s *FileSink) WriteImage(buf []byte) error {
	// Create temp file in same directory to ensure atomic rename
	dir := filepath.Dir(s.Path)
	tmpFile, err := os.CreateTemp(dir, ".cilkit-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	// Write data
	if _, writeErr := tmpFile.Write(buf); writeErr != nil {
		return fmt.Errorf("write temp file: %w", writeErr)
	}

	// Sync to disk
	if syncErr := tmpFile.Sync(); syncErr != nil {
		return fmt.Errorf("sync temp file: %w", syncErr)
	}

	// Close before rename
	if closeErr := tmpFile.Close(); closeErr != nil {
		return fmt.Errorf("close temp file: %w", closeErr)
	}
	tmpFile = nil // Don't clean up in defer

	// Atomic rename
	if renameErr := os.Rename(tmpPath, s.Path); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", renameErr)
	}

	return nil
}

// MemSink captures image bytes in memory.
type MemSink struct {
	Buf []byte
}

// WriteImage stores a copy of the provided buffer.
func (s *MemSink) WriteImage(buf []byte) error {
	s.Buf = append(s.Buf[:0], buf...)
	return nil
}
