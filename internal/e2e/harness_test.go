//go:build !windows

// Package e2e runs blackbox tests against a built sisyphus binary.
// These cover the paths unit tests cannot: the detached supervisor
// re-exec and the CLI flag plumbing around it.
package e2e

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
)

// resolveBinaryPath builds the sisyphus binary once per test run.
// SISYPHUS_E2E_BIN overrides the build for pre-built environments.
func resolveBinaryPath(t *testing.T) string {
	t.Helper()
	if override := os.Getenv("SISYPHUS_E2E_BIN"); override != "" {
		return override
	}
	buildOnce.Do(func() {
		tmpDir, err := os.MkdirTemp("", "sisyphus-e2e-bin-*")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(tmpDir, "sisyphus")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/sisyphus")
		cmd.Dir = repoRoot()
		out, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("go build failed: %w\n%s", err, string(out))
		}
	})
	if buildErr != nil {
		t.Fatalf("resolve binary: %v", buildErr)
	}
	return binPath
}

func repoRoot() string {
	wd, _ := os.Getwd()
	// internal/e2e -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

type cliResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

type harness struct {
	t        *testing.T
	binPath  string
	stateDir string
	workDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rootDir := t.TempDir()
	stateDir := filepath.Join(rootDir, "state")
	workDir := filepath.Join(rootDir, "work")
	for _, dir := range []string{stateDir, workDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	// A shell-backed provider preset, so jobs run real processes
	// without any AI CLI on the machine.
	config := "[providers.shell]\ncommand = \"sh\"\nargs = [\"-c\"]\n"
	if err := os.WriteFile(filepath.Join(stateDir, "config.toml"), []byte(config), 0644); err != nil {
		t.Fatalf("writing config.toml: %v", err)
	}

	return &harness{
		t:        t,
		binPath:  resolveBinaryPath(t),
		stateDir: stateDir,
		workDir:  workDir,
	}
}

// run invokes the binary with --state-dir pinned to the harness root.
func (h *harness) run(args ...string) cliResult {
	h.t.Helper()

	cmd := exec.Command(h.binPath, append(args, "--state-dir", h.stateDir)...)
	cmd.Dir = h.workDir
	// Scrub the env override so --state-dir is what gets exercised.
	cmd.Env = append(os.Environ(), "SISYPHUS_STATE_DIR=")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	code := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			h.t.Fatalf("run %v failed: %v", args, err)
		}
		code = exitErr.ExitCode()
	}
	return cliResult{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}
}

func (h *harness) mustRun(args ...string) cliResult {
	h.t.Helper()
	res := h.run(args...)
	if res.ExitCode != 0 {
		h.t.Fatalf("expected success, got exit=%d\nargs=%v\nstdout=%s\nstderr=%s",
			res.ExitCode, args, res.Stdout, res.Stderr)
	}
	return res
}

// writePromptFile puts a shell script prompt in the work dir.
func (h *harness) writePromptFile(name, script string) string {
	h.t.Helper()
	path := filepath.Join(h.workDir, name)
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		h.t.Fatalf("writing prompt file: %v", err)
	}
	return path
}

// parseJobID extracts the id from 'launched job <id> (<provider>)'.
func parseJobID(t *testing.T, output string) string {
	t.Helper()
	const prefix = "launched job "
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, prefix) {
			rest := strings.TrimPrefix(line, prefix)
			if idx := strings.IndexByte(rest, ' '); idx > 0 {
				return rest[:idx]
			}
			return rest
		}
	}
	t.Fatalf("no job id in launch output:\n%s", output)
	return ""
}
