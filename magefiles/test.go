//go:build mage

package main

import (
	"github.com/magefile/mage/sh"
)

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Cover runs all tests with coverage and prints the per-function summary.
func Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func=coverage.out")
}

// Bench runs benchmarks across the module.
func Bench() error {
	return sh.RunV(binGo, "test", "-run=^$", "-bench=.", "-benchmem", "./...")
}
