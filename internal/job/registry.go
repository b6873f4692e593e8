package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/state"
)

// jobsDir is the state-store subtree holding job records.
const jobsDir = "jobs"

// FilterActive is the statusFilter shorthand for {spawned, running}.
const FilterActive = "active"

// DefaultListLimit bounds List results when the caller passes no limit.
const DefaultListLimit = 50

// ErrNotFound is returned when no record exists for a job id.
var ErrNotFound = errors.New("job not found")

// ErrAlreadyTerminal is returned by Update when the record reached a
// terminal status before the update; the record is left frozen.
var ErrAlreadyTerminal = errors.New("job already terminal")

// Registry stores job records in the state store's jobs/ subtree.
type Registry struct {
	store *state.Store
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store *state.Store) *Registry {
	return &Registry{store: store}
}

// Store returns the backing state store.
func (r *Registry) Store() *state.Store {
	return r.store
}

func modeKey(provider, id string) string {
	return path.Join(jobsDir, provider, id)
}

// lockPath returns the flock path guarding one record's read-modify-write.
func (r *Registry) lockPath(provider, id string) string {
	return filepath.Join(r.store.Root(), jobsDir, provider, id+".json.lock")
}

// Create writes a new record with status spawned. The caller owns id
// uniqueness; ids come from uuid generation in the launcher.
func (r *Registry) Create(j *Job) error {
	if j.ID == "" {
		return fmt.Errorf("job id must not be empty")
	}
	if j.Provider == "" {
		return fmt.Errorf("job provider must not be empty")
	}
	if j.Status == "" {
		j.Status = StatusSpawned
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}

	payload, err := jobPayload(j)
	if err != nil {
		return err
	}
	return r.store.Write(modeKey(j.Provider, j.ID), payload, "")
}

// Get returns the record for (provider, id), or ErrNotFound.
func (r *Registry) Get(provider, id string) (*Job, error) {
	doc, err := r.store.Read(modeKey(provider, id), "")
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return jobFromPayload(doc.Payload)
}

// Update applies patch to the current record under a cross-process file
// lock and writes the result back. If the record is already terminal the
// patch is discarded and ErrAlreadyTerminal is returned: by convention
// exactly one process owns a job's transitions, and the guard keeps a
// late supervisor write from resurrecting a killed job.
func (r *Registry) Update(provider, id string, patch func(*Job)) (*Job, error) {
	// Existence check before locking: flock cannot create its file in a
	// provider directory that was never written, and a missing record
	// must surface as ErrNotFound, not a lock error.
	if _, err := r.Get(provider, id); err != nil {
		return nil, err
	}

	lock := flock.New(r.lockPath(provider, id))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking job record: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	j, err := r.Get(provider, id)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		return j, ErrAlreadyTerminal
	}

	patch(j)

	if j.Status.Terminal() && j.CompletedAt == nil {
		now := time.Now().UTC()
		j.CompletedAt = &now
	}

	payload, err := jobPayload(j)
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(modeKey(provider, id), payload, ""); err != nil {
		return nil, err
	}
	return j, nil
}

// Find locates a job by bare id, scanning every provider subtree.
// Caller-facing operations identify jobs by id alone.
func (r *Registry) Find(id string) (*Job, error) {
	providers, err := r.Providers()
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		j, err := r.Get(p, id)
		if err == nil {
			return j, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

// Providers lists the provider subtrees that hold at least one record.
func (r *Registry) Providers() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.store.Root(), jobsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing providers: %w", err)
	}
	var providers []string
	for _, entry := range entries {
		if entry.IsDir() {
			providers = append(providers, entry.Name())
		}
	}
	return providers, nil
}

// List returns jobs for a provider, newest first by CreatedAt. An empty
// provider means all providers. statusFilter is "" for everything,
// FilterActive for {spawned, running}, or a literal status. limit <= 0
// applies DefaultListLimit.
func (r *Registry) List(provider, statusFilter string, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	providers := []string{provider}
	if provider == "" {
		var err error
		providers, err = r.Providers()
		if err != nil {
			return nil, err
		}
	}

	var jobs []*Job
	for _, p := range providers {
		dir := filepath.Join(r.store.Root(), jobsDir, p)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("listing jobs for %s: %w", p, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			j, err := r.Get(p, strings.TrimSuffix(name, ".json"))
			if err != nil {
				continue // record vanished between readdir and read
			}
			if !matchesFilter(j.Status, statusFilter) {
				continue
			}
			jobs = append(jobs, j)
		}
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func matchesFilter(s Status, filter string) bool {
	switch filter {
	case "":
		return true
	case FilterActive:
		return s == StatusSpawned || s == StatusRunning
	default:
		return s == Status(filter)
	}
}

func jobPayload(j *Job) (map[string]interface{}, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("marshaling job %s: %w", j.ID, err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("reshaping job %s: %w", j.ID, err)
	}
	return payload, nil
}

func jobFromPayload(payload map[string]interface{}) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("reshaping job record: %w", err)
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing job record: %w", err)
	}
	return &j, nil
}
