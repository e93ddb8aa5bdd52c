//go:build mage

// Package main provides build targets for the cilkit project using Mage.
//
// Usage:
//
//	mage build    Compile the cilctl binary to bin/
//	mage test     Run all tests
//	mage cover    Run tests with a coverage summary
//	mage bench    Run benchmarks
//	mage lint     Run golangci-lint
//	mage clean    Remove build artifacts
//	mage install  Install cilctl to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "cilctl"
	binaryDir  = "bin"
	cmdDir     = "./cmd/cilctl"
)

// Build compiles the cilctl binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove("coverage.out"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean")
}
