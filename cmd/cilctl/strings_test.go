package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringsCommand(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)

	out, err := captureOutput(t, func() error {
		return runStrings([]string{path})
	})
	require.NoError(t, err)
	assertContains(t, out, []string{"test.dll", "Widget", "System"})
}

func TestStringsCommandMax(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)
	stringsMax = 1

	out, err := captureOutput(t, func() error {
		return runStrings([]string{path})
	})
	require.NoError(t, err)
	require.Contains(t, out, "test.dll")
	require.NotContains(t, out, "Widget")
}

func TestStringsCommandJSON(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)
	jsonOut = true

	out, err := captureOutput(t, func() error {
		return runStrings([]string{path})
	})
	require.NoError(t, err)

	var entries []struct {
		Offset uint32 `json:"offset"`
		Value  string `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.NotEmpty(t, entries)
	require.Equal(t, uint32(1), entries[0].Offset)
	require.Equal(t, "test.dll", entries[0].Value)
}
