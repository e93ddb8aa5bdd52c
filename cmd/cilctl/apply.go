package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pmikstacki/cilkit/cil/assembly"
)

// applyAndWrite validates the pending session with the configured preset,
// applies it, and writes the patched image. It returns the output path.
func applyAndWrite(a *assembly.Assembly, input string) (string, error) {
	preset := configString(cfgKeyPreset, defaultPreset)
	verifyCfg, err := presetConfig(preset)
	if err != nil {
		return "", err
	}

	printVerbose("Applying changes (%s preset)\n", preset)

	if err := a.ValidateAndApplyWithConfig(context.Background(), verifyCfg); err != nil {
		return "", fmt.Errorf("failed to apply changes: %w", err)
	}

	out := resolveOutPath(input)
	if err := a.WriteToFile(context.Background(), out); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", out, err)
	}
	return out, nil
}

// resolveOutPath picks the output file: the --out flag, then the config
// default, then <input>.patched.<ext> next to the input.
func resolveOutPath(input string) string {
	if outPath != "" {
		return outPath
	}
	if s := configString(cfgKeyOut, ""); s != "" {
		return s
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".patched" + ext
}
