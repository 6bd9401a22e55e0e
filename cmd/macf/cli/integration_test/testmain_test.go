//go:build integration

// Package integration drives the compiled macf binary end to end through
// a real pty, the way the teacher's cmd/entire/cli/integration_test
// package drives entire. Gated behind the integration build tag since it
// shells out to `go build` and spawns a pty — too slow/host-dependent to
// run on every `go test ./...`.
package integration

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

// testBinaryPath holds the path to the macf binary built once in TestMain.
var testBinaryPath string

func getTestBinary() string {
	if testBinaryPath == "" {
		panic("testBinaryPath not set - TestMain must run before tests")
	}
	return testBinaryPath
}

func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "macf-integration-test-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir for binary: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmpDir)

	testBinaryPath = filepath.Join(tmpDir, "macf")
	moduleRoot := findModuleRoot()

	buildCmd := exec.Command("go", "build", "-o", testBinaryPath, ".")
	buildCmd.Dir = filepath.Join(moduleRoot, "cmd", "macf")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build macf binary: %v\nOutput: %s\n", err, out)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// findModuleRoot walks up from this file to the directory containing
// go.mod.
func findModuleRoot() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("failed to get current file path via runtime.Caller")
	}
	dir := filepath.Dir(thisFile)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find go.mod starting from " + thisFile)
		}
		dir = parent
	}
}
