// Package job tracks the lifecycle of external CLI invocations.
//
// Each job is one record in the state store under jobs/<provider>/<id>.
// Status transitions are monotonic: spawned → running → one terminal
// status, and a terminal record never changes again.
package job

import "time"

// Status is a job lifecycle state.
type Status string

const (
	// StatusSpawned means the record exists but the OS has not yet
	// confirmed the process started.
	StatusSpawned Status = "spawned"

	// StatusRunning means the process started and has a recorded pid.
	StatusRunning Status = "running"

	// Terminal statuses. Once reached, the record is frozen.
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusKilled    Status = "killed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusKilled:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusSpawned, StatusRunning, StatusCompleted, StatusFailed, StatusTimeout, StatusKilled:
		return true
	}
	return false
}

// Job is one tracked invocation of an external command-line process.
type Job struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Status   Status `json:"status"`

	// Command is the rendered command line, for display and audit.
	Command string `json:"command,omitempty"`

	// PromptRef is the prompt file the job reads: the persisted audit
	// copy for inline prompts, or the caller-supplied file.
	PromptRef string `json:"prompt_ref,omitempty"`

	// OutputFile receives the process's stdout and stderr. May not
	// exist yet while the job is running.
	OutputFile string `json:"output_file,omitempty"`

	// PID is the provider process id, present once running. Used only
	// for signaling.
	PID int `json:"pid,omitempty"`

	// WorkDir is the directory the provider process runs in.
	WorkDir string `json:"workdir,omitempty"`

	// ExtraArgs are caller-supplied arguments inserted before the prompt.
	ExtraArgs []string `json:"extra_args,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Error is populated only on failed/timeout/killed.
	Error string `json:"error,omitempty"`
}
