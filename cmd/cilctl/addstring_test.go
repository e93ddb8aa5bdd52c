package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmikstacki/cilkit/cil"
)

func TestAddStringCommand(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)
	jsonOut = true

	out, err := captureOutput(t, func() error {
		return runAddString([]string{path, "Gadget"})
	})
	require.NoError(t, err)

	var got struct {
		Out    string `json:"out"`
		Offset uint32 `json:"offset"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotEmpty(t, got.Out)

	v, err := cil.Open(got.Out)
	require.NoError(t, err)
	defer v.Close()

	value, err := v.String(got.Offset)
	require.NoError(t, err)
	require.Equal(t, "Gadget", value)
}

func TestAddStringCommandTextOutput(t *testing.T) {
	resetCommandState(t)
	path := testImage(t)

	out, err := captureOutput(t, func() error {
		return runAddString([]string{path, "Sprocket"})
	})
	require.NoError(t, err)
	assertContains(t, out, []string{`Added "Sprocket"`, "Wrote"})
}

func TestAddStringCommandMissingFile(t *testing.T) {
	resetCommandState(t)

	_, err := captureOutput(t, func() error {
		return runAddString([]string{"no-such-file.dll", "X"})
	})
	require.Error(t, err)
}
