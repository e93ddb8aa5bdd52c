package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/internal/testutil"
)

// testImage writes the synthetic minimal assembly to a temp file and
// returns its path.
func testImage(t *testing.T) string {
	t.Helper()
	return testutil.WriteTempImage(t, testutil.BuildMinimalAssembly())
}

// resetCommandState restores global flag and config state when the test
// finishes so cases cannot leak settings into each other.
func resetCommandState(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		verbose = false
		quiet = false
		jsonOut = false
		cfgFile = ""
		outPath = ""
		cfg = nil
		tablesAll = false
		stringsMax = 64
		validatePreset = ""
		stripNamespace = ""
		stripCascade = false
	})
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout

	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w
	fnErr := fn()
	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)

	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON
func assertJSON(t *testing.T, output string) {
	t.Helper()
	var result interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &result), "invalid JSON output:\n%s", output)
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		require.Contains(t, output, want)
	}
}
