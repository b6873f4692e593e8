// Package launch spawns provider CLI processes and registers them as jobs.
//
// Background jobs are supervised by a re-exec of this binary (a hidden
// subcommand), so the launching process can exit while the job runs on.
// Foreground invocation is the same path run in-process.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/config"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/job"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/provider"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/workspace"
)

// Input validation errors, reported synchronously to the caller and
// never silently defaulted.
var (
	ErrNoPromptSource   = errors.New("either an inline prompt or a prompt file is required")
	ErrAmbiguousPrompt  = errors.New("inline prompt and prompt file are mutually exclusive")
	ErrEmptyPrompt      = errors.New("prompt must not be empty")
	ErrInlineBackground = errors.New("inline prompts are foreground-only; use a prompt file for background jobs")
)

// Options describes one launch request.
type Options struct {
	// Provider selects the CLI family; empty uses the configured default.
	Provider string

	// Prompt is an inline prompt. Exactly one of Prompt/PromptFile must
	// be usable.
	Prompt string

	// PromptFile references a caller-supplied prompt file, resolved
	// against WorkDir when relative.
	PromptFile string

	// OutputFile receives the process output; generated from the job id
	// when empty so results are always locatable.
	OutputFile string

	// ExtraArgs are inserted between the provider's base args and the
	// prompt.
	ExtraArgs []string

	// WorkDir is the provider process's working directory; defaults to
	// the caller's cwd.
	WorkDir string

	// Background detaches the job; the call returns once the record is
	// written.
	Background bool
}

// Result is the outcome of a launch.
type Result struct {
	Job *job.Job

	// Output holds the captured process output for foreground runs.
	Output string
}

// Launcher wires the registry, provider presets, and config together.
type Launcher struct {
	registry  *job.Registry
	providers *provider.Registry
	cfg       *config.Config
}

// New creates a launcher.
func New(registry *job.Registry, providers *provider.Registry, cfg *config.Config) *Launcher {
	return &Launcher{registry: registry, providers: providers, cfg: cfg}
}

// Launch validates the request, writes the job record, and either
// detaches a supervisor (background) or runs the job to completion
// (foreground). The record exists with status spawned before any
// process starts.
func (l *Launcher) Launch(opts Options) (*Result, error) {
	p, promptRef, err := l.validate(&opts)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	jobsDir := filepath.Join(l.registry.Store().Root(), "jobs", p.Name)
	if err := os.MkdirAll(jobsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating jobs directory: %w", err)
	}

	// Inline prompts are persisted before spawn so every job's input is
	// reproducible from disk.
	if promptRef == "" {
		promptRef = filepath.Join(jobsDir, id+".prompt")
		if err := os.WriteFile(promptRef, []byte(opts.Prompt), 0644); err != nil {
			return nil, fmt.Errorf("persisting prompt: %w", err)
		}
	}

	outputFile := opts.OutputFile
	if outputFile == "" {
		outputFile = filepath.Join(jobsDir, id+".out")
	} else if outputFile, err = workspace.ResolvePath(outputFile, opts.WorkDir); err != nil {
		return nil, err
	}

	j := &job.Job{
		ID:         id,
		Provider:   p.Name,
		Status:     job.StatusSpawned,
		Command:    renderCommand(p, opts.ExtraArgs),
		PromptRef:  promptRef,
		OutputFile: outputFile,
		WorkDir:    opts.WorkDir,
		ExtraArgs:  opts.ExtraArgs,
	}
	if err := l.registry.Create(j); err != nil {
		return nil, err
	}

	if !opts.Background {
		if err := l.Supervise(p.Name, id); err != nil {
			return nil, err
		}
		final, err := l.registry.Get(p.Name, id)
		if err != nil {
			return nil, err
		}
		output, readErr := os.ReadFile(final.OutputFile)
		if readErr != nil && !os.IsNotExist(readErr) {
			return nil, fmt.Errorf("reading output: %w", readErr)
		}
		return &Result{Job: final, Output: string(output)}, nil
	}

	if err := l.spawnSupervisor(p.Name, id); err != nil {
		failed, _ := l.registry.Update(p.Name, id, func(cur *job.Job) {
			cur.Status = job.StatusFailed
			cur.Error = err.Error()
		})
		if failed != nil {
			j = failed
		}
		return nil, fmt.Errorf("spawning supervisor: %w", err)
	}
	return &Result{Job: j}, nil
}

// validate resolves the provider and prompt source. Returns the resolved
// prompt file path, or "" when the inline prompt still needs persisting.
func (l *Launcher) validate(opts *Options) (provider.Provider, string, error) {
	name := opts.Provider
	if name == "" {
		name = l.cfg.DefaultProvider
	}
	p, err := l.providers.Resolve(name)
	if err != nil {
		return provider.Provider{}, "", err
	}

	inline := strings.TrimSpace(opts.Prompt) != ""
	hasFile := opts.PromptFile != ""

	switch {
	case inline && hasFile:
		return provider.Provider{}, "", ErrAmbiguousPrompt
	case inline && opts.Background:
		return provider.Provider{}, "", ErrInlineBackground
	case inline:
		return p, "", nil
	case !hasFile:
		if opts.Prompt != "" {
			return provider.Provider{}, "", ErrEmptyPrompt
		}
		return provider.Provider{}, "", ErrNoPromptSource
	}

	promptRef, err := workspace.ResolvePath(opts.PromptFile, opts.WorkDir)
	if err != nil {
		return provider.Provider{}, "", err
	}
	info, err := os.Stat(promptRef)
	if err != nil {
		return provider.Provider{}, "", fmt.Errorf("prompt file %s: %w", promptRef, err)
	}
	if info.IsDir() {
		return provider.Provider{}, "", fmt.Errorf("prompt file %s is a directory", promptRef)
	}
	if info.Size() == 0 {
		return provider.Provider{}, "", fmt.Errorf("%w: %s", ErrEmptyPrompt, promptRef)
	}
	return p, promptRef, nil
}

// spawnSupervisor re-execs this binary as a detached supervisor for the
// job. The child owns the job from here on; the parent returns
// immediately and may exit before the job finishes.
func (l *Launcher) spawnSupervisor(providerName, id string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}

	args := []string{"job", "run", id, "--provider", providerName}
	if root := l.registry.Store().Root(); root != "" {
		args = append(args, "--state-dir", root)
	}

	cmd := exec.Command(self, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return err
	}
	// The supervisor outlives us; don't hold the process handle.
	return cmd.Process.Release()
}

func renderCommand(p provider.Provider, extraArgs []string) string {
	parts := append([]string{p.Command}, p.Args...)
	parts = append(parts, extraArgs...)
	if p.PromptViaStdin {
		return strings.Join(parts, " ") + " < <prompt>"
	}
	return strings.Join(parts, " ") + " <prompt>"
}
