//go:build mage

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Vet runs go vet, the lighter check when golangci-lint is unavailable.
func Vet() error {
	return sh.RunV(binGo, "vet", "./...")
}
