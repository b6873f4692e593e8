package job

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/config"
)

// PreviewLimit caps the output preview returned by Wait.
const PreviewLimit = 4096

// WaitOptions tunes one Wait call. Zero values take the config defaults.
type WaitOptions struct {
	// Timeout bounds the whole wait; clamped to config.MaxWaitTimeout.
	Timeout time.Duration

	// PollFloor is the first sleep interval; must be positive.
	PollFloor time.Duration

	// PollCeiling caps the interval growth; must be finite.
	PollCeiling time.Duration
}

// WaitResult is the outcome of polling one job.
type WaitResult struct {
	// Job is the last observed record.
	Job *Job

	// TimedOut is true when the poller gave up before a terminal
	// status. The job itself is untouched and may still be running.
	TimedOut bool

	// Output is a truncated preview of the output file, set only on a
	// terminal result.
	Output string

	// Truncated reports whether Output was cut at PreviewLimit.
	Truncated bool

	Elapsed time.Duration
	Polls   int
}

// Wait polls the registry for a job until it reaches a terminal status
// or the timeout elapses. The backoff doubles from the floor up to the
// ceiling, so the poller never busy-spins and never sleeps unboundedly.
// A timeout is a distinct outcome, not an error: the poller has no
// authority to mutate a job it does not own.
func (r *Registry) Wait(id string, opts WaitOptions) (*WaitResult, error) {
	timeout := config.ClampWait(opts.Timeout)
	floor := opts.PollFloor
	if floor <= 0 {
		floor = config.DefaultPollFloor
	}
	ceiling := opts.PollCeiling
	if ceiling <= 0 {
		ceiling = config.DefaultPollCeiling
	}
	if ceiling < floor {
		ceiling = floor
	}

	start := time.Now()
	deadline := start.Add(timeout)
	interval := floor
	polls := 0

	for {
		j, err := r.Find(id)
		if err != nil {
			return nil, err
		}
		polls++

		if j.Status.Terminal() {
			preview, truncated := readPreview(j.OutputFile)
			return &WaitResult{
				Job:       j,
				Output:    preview,
				Truncated: truncated,
				Elapsed:   time.Since(start),
				Polls:     polls,
			}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &WaitResult{
				Job:      j,
				TimedOut: true,
				Elapsed:  time.Since(start),
				Polls:    polls,
			}, nil
		}

		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)

		interval *= 2
		if interval > ceiling {
			interval = ceiling
		}
	}
}

// readPreview returns up to PreviewLimit bytes of the output file.
// A missing file is an empty preview, not an error: the job may have
// produced no output.
func readPreview(path string) (preview string, truncated bool) {
	if path == "" {
		return "", false
	}
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	// ReadFull, not a single Read: a short read must not shrink the
	// preview below the limit.
	buf := make([]byte, PreviewLimit+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false
	}
	if n > PreviewLimit {
		return string(buf[:PreviewLimit]), true
	}
	return string(buf[:n]), false
}

// Describe renders a one-line human summary of a wait outcome.
func (w *WaitResult) Describe() string {
	if w.TimedOut {
		return fmt.Sprintf("job %s still %s after %s (%d polls)",
			w.Job.ID, w.Job.Status, w.Elapsed.Round(time.Millisecond), w.Polls)
	}
	return fmt.Sprintf("job %s %s after %s (%d polls)",
		w.Job.ID, w.Job.Status, w.Elapsed.Round(time.Millisecond), w.Polls)
}
