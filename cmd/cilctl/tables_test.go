package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTablesCommand(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)

	out, err := captureOutput(t, func() error {
		return runTables([]string{path})
	})
	require.NoError(t, err)
	assertContains(t, out, []string{"Module", "TypeRef", "TypeDef", "MethodDef"})
	require.NotContains(t, out, "AssemblyRef")
}

func TestTablesCommandAll(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)
	tablesAll = true

	out, err := captureOutput(t, func() error {
		return runTables([]string{path})
	})
	require.NoError(t, err)
	assertContains(t, out, []string{"AssemblyRef", "NestedClass"})
}

func TestTablesCommandJSON(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)
	jsonOut = true

	out, err := captureOutput(t, func() error {
		return runTables([]string{path})
	})
	require.NoError(t, err)

	var entries []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Rows uint32 `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 4)
	require.Equal(t, "0x02", entries[2].ID)
	require.Equal(t, "TypeDef", entries[2].Name)
	require.Equal(t, uint32(2), entries[2].Rows)
}
