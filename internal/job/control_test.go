//go:build !windows

package job

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestKillRunningJob(t *testing.T) {
	r := newTestRegistry(t)

	// A real process to signal, so delivery is exercised end to end.
	// Reap in the background: an unreaped child is a zombie, and a
	// zombie still answers signal-0 probes as alive.
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting sleep: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	defer cmd.Process.Kill()

	if err := r.Create(&Job{ID: "abc123", Provider: "claude"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Update("claude", "abc123", func(j *Job) {
		j.Status = StatusRunning
		j.PID = cmd.Process.Pid
	}); err != nil {
		t.Fatal(err)
	}

	j, err := r.Kill("abc123", "")
	if err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if j.Status != StatusKilled {
		t.Errorf("Status = %s, want killed", j.Status)
	}
	if j.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	if j.Error == "" {
		t.Error("Error not populated on killed job")
	}

	// SIGTERM should take sleep down promptly.
	select {
	case waitErr := <-done:
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			t.Fatalf("Wait() = %v, want signal exit", waitErr)
		}
		status, ok := exitErr.Sys().(syscall.WaitStatus)
		if !ok || !status.Signaled() || status.Signal() != syscall.SIGTERM {
			t.Errorf("process exit status = %v, want SIGTERM", exitErr)
		}
		// Reaped now, so the liveness probe agrees the process is gone.
		if processAlive(cmd.Process.Pid) {
			t.Error("processAlive reports reaped process as alive")
		}
	case <-time.After(2 * time.Second):
		t.Error("process still alive after SIGTERM")
	}
}

func TestKillCompletedJobIsError(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Create(&Job{ID: "abc123", Provider: "claude"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Update("claude", "abc123", func(j *Job) { j.Status = StatusCompleted }); err != nil {
		t.Fatal(err)
	}
	before, err := r.Get("claude", "abc123")
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Kill("abc123", "")
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Kill(completed) = %v, want ErrNotRunning", err)
	}

	after, err := r.Get("claude", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != before.Status || !after.CompletedAt.Equal(*before.CompletedAt) {
		t.Errorf("Kill mutated a completed job: %+v -> %+v", before, after)
	}
}

func TestKillSpawnedJobWithoutPID(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Create(&Job{ID: "abc123", Provider: "claude"}); err != nil {
		t.Fatal(err)
	}

	j, err := r.Kill("abc123", "")
	if err != nil {
		t.Fatalf("Kill(spawned): %v", err)
	}
	if j.Status != StatusKilled {
		t.Errorf("Status = %s, want killed", j.Status)
	}
}

func TestKillUnknownSignal(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Create(&Job{ID: "abc123", Provider: "claude"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Kill("abc123", "NOPE"); err == nil {
		t.Fatal("Kill with bogus signal succeeded, want error")
	}
}

func TestKillMissingJob(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Kill("ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Kill(ghost) = %v, want ErrNotFound", err)
	}
}
