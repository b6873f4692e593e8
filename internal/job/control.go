package job

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotRunning is returned by Kill when the job is not in a killable
// state. Killing a finished job is a reported error, not a silent
// success.
var ErrNotRunning = errors.New("job not running")

// ProcessAlive probes whether the job's recorded pid is still alive.
// The registry status and OS reality can disagree (a killed process may
// ignore SIGTERM); this is the cheap way to surface the discrepancy.
func (j *Job) ProcessAlive() bool {
	return processAlive(j.PID)
}

// Kill delivers a termination signal to a spawned or running job and
// records it as killed. Delivery is optimistic: the process is not
// guaranteed to honor the signal, and killed is recorded regardless.
// The registry's monotonic guard then keeps the supervisor's own exit
// write from overwriting the killed status.
//
// signalName is empty for the default graceful signal (SIGTERM).
func (r *Registry) Kill(id, signalName string) (*Job, error) {
	j, err := r.Find(id)
	if err != nil {
		return nil, err
	}
	if j.Status != StatusSpawned && j.Status != StatusRunning {
		return j, fmt.Errorf("%w: job %s is %s", ErrNotRunning, id, j.Status)
	}

	sig, sigLabel, err := parseSignal(signalName)
	if err != nil {
		return nil, err
	}

	// A spawned job may not have a pid yet; recording killed is still
	// correct — the supervisor's running transition will be rejected.
	if j.PID > 0 {
		proc, err := os.FindProcess(j.PID)
		if err == nil {
			// Best-effort: the process may already be gone.
			_ = proc.Signal(sig)
		}
	}

	updated, err := r.Update(j.Provider, j.ID, func(cur *Job) {
		cur.Status = StatusKilled
		cur.Error = fmt.Sprintf("killed with %s", sigLabel)
	})
	if errors.Is(err, ErrAlreadyTerminal) {
		// Lost the race with the job's own exit; report the actual state.
		return updated, fmt.Errorf("%w: job %s is %s", ErrNotRunning, id, updated.Status)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}
