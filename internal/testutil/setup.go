package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pmikstacki/cilkit/cil"
)

// SetupAssembly parses the minimal in-memory image and returns the view and
// a cleanup function.
//
// Example:
//
//	v, cleanup := testutil.SetupAssembly(t)
//	defer cleanup()
func SetupAssembly(t *testing.T) (*cil.View, func()) {
	t.Helper()

	v, err := cil.FromBytes(BuildMinimalAssembly())
	if err != nil {
		t.Fatalf("Failed to parse fixture image: %v", err)
	}
	return v, func() { _ = v.Close() }
}

// SetupAssemblyFile writes the minimal image to a temporary file and opens
// it through the path-based loader. Returns the view, the file path and a
// cleanup function.
func SetupAssemblyFile(t *testing.T) (*cil.View, string, func()) {
	t.Helper()

	path := WriteTempImage(t, BuildMinimalAssembly())
	v, err := cil.Open(path)
	if err != nil {
		t.Fatalf("Failed to open fixture image: %v", err)
	}
	return v, path, func() { _ = v.Close() }
}

// WriteTempImage writes image bytes under t.TempDir and returns the path.
func WriteTempImage(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.dll")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write temp image: %v", err)
	}
	return path
}
