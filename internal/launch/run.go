package launch

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/job"
)

// Supervise runs one job to completion: start the provider process with
// output redirected, record running + pid, wait, record the terminal
// status. It is the body of the hidden `job run` subcommand and the
// foreground launch path.
//
// Supervision is the only writer of this job's status besides Kill; the
// registry's monotonic guard settles that race in favor of whichever
// terminal state lands first.
func (l *Launcher) Supervise(providerName, id string) error {
	j, err := l.registry.Get(providerName, id)
	if err != nil {
		return err
	}

	logger, logClose := l.jobLogger(providerName, id)
	defer logClose()

	p, err := l.providers.Resolve(j.Provider)
	if err != nil {
		return l.fail(j, logger, fmt.Errorf("resolving provider: %w", err))
	}

	prompt, err := os.ReadFile(j.PromptRef)
	if err != nil {
		return l.fail(j, logger, fmt.Errorf("reading prompt: %w", err))
	}

	// Extra args sit between the preset's base args and the prompt.
	invocation := p
	invocation.Args = append(append([]string{}, p.Args...), j.ExtraArgs...)
	args, stdin := invocation.CommandLine(string(prompt))

	out, err := os.OpenFile(j.OutputFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return l.fail(j, logger, fmt.Errorf("opening output file: %w", err))
	}
	defer out.Close()

	cmd := exec.Command(p.Command, args...)
	cmd.Dir = j.WorkDir
	cmd.Stdout = out
	cmd.Stderr = out
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	// Own process group, so the hard-timeout kill takes descendants too.
	cmd.SysProcAttr = groupAttr()

	if err := cmd.Start(); err != nil {
		return l.fail(j, logger, fmt.Errorf("starting %s: %w", p.Command, err))
	}

	pid := cmd.Process.Pid
	logger.Printf("job %s: started %s (PID %d)", id, p.Command, pid)

	if _, err := l.registry.Update(providerName, id, func(cur *job.Job) {
		cur.Status = job.StatusRunning
		cur.PID = pid
	}); err != nil {
		if errors.Is(err, job.ErrAlreadyTerminal) {
			// Killed between spawn and start; take the process back down.
			logger.Printf("job %s: killed before running, stopping PID %d", id, pid)
			killGroup(pid)
			_ = cmd.Wait()
			return nil
		}
		logger.Printf("job %s: recording running state: %v", id, err)
	}

	hardTimeout := l.cfg.HardTimeout()
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-done:
	case <-time.After(hardTimeout):
		timedOut = true
		logger.Printf("job %s: hard timeout after %v, killing PID %d", id, hardTimeout, pid)
		killGroup(pid)
		waitErr = <-done
	}

	_, err = l.registry.Update(providerName, id, func(cur *job.Job) {
		switch {
		case timedOut:
			cur.Status = job.StatusTimeout
			cur.Error = fmt.Sprintf("exceeded hard timeout of %v", hardTimeout)
		case waitErr != nil:
			cur.Status = job.StatusFailed
			cur.Error = waitErr.Error()
		default:
			cur.Status = job.StatusCompleted
		}
	})
	if errors.Is(err, job.ErrAlreadyTerminal) {
		// Kill won the race; the record stays killed.
		logger.Printf("job %s: already terminal, exit result discarded", id)
		return nil
	}
	if err != nil {
		logger.Printf("job %s: recording terminal state: %v", id, err)
		return err
	}

	switch {
	case timedOut:
		logger.Printf("job %s: timeout", id)
	case waitErr != nil:
		logger.Printf("job %s: failed: %v", id, waitErr)
	default:
		logger.Printf("job %s: completed", id)
	}
	return nil
}

// fail records a failed status with the error, best-effort, and returns
// the error for the synchronous caller.
func (l *Launcher) fail(j *job.Job, logger *log.Logger, cause error) error {
	logger.Printf("job %s: %v", j.ID, cause)
	_, err := l.registry.Update(j.Provider, j.ID, func(cur *job.Job) {
		cur.Status = job.StatusFailed
		cur.Error = cause.Error()
	})
	if err != nil && !errors.Is(err, job.ErrAlreadyTerminal) {
		logger.Printf("job %s: recording failure: %v", j.ID, err)
	}
	return cause
}

// jobLogger writes supervisor diagnostics to <id>.log next to the job
// record. Logging failures fall back to a discard logger; supervision
// must not die for want of a log file.
func (l *Launcher) jobLogger(providerName, id string) (*log.Logger, func()) {
	path := filepath.Join(l.registry.Store().Root(), "jobs", providerName, id+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return log.New(os.Stderr, "", log.LstdFlags), func() {}
	}
	return log.New(f, "", log.LstdFlags), func() { _ = f.Close() }
}
