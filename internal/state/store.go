// Package state provides the on-disk mode-state store.
//
// Each document is one JSON file keyed by (mode, scope). Scope is either
// global or session-qualified; a session-scoped document and a global
// document for the same mode are independent files and never merge.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned by Read when no document exists for the
// requested (mode, scope). Absence is an expected case, not a failure.
var ErrNotFound = errors.New("state document not found")

// metaKey is the reserved payload key stamped by the store on every write.
const metaKey = "_meta"

// sessionsDir is the subtree holding session-scoped documents. The name is
// reserved: no global mode may start with it.
const sessionsDir = "sessions"

// Meta records provenance for a stored document. It is stamped by the
// store on every write; caller-supplied values are discarded.
type Meta struct {
	WrittenAt time.Time `json:"written_at"`
	Writer    string    `json:"writer"`
}

// Document is a stored mode-state blob plus its provenance.
type Document struct {
	Mode    string
	Payload map[string]interface{}
	Meta    Meta
}

// ModeStatus summarizes one mode within a scope.
type ModeStatus struct {
	Mode      string    `json:"mode"`
	Active    bool      `json:"active"`
	WrittenAt time.Time `json:"written_at,omitzero"`
	Writer    string    `json:"writer,omitempty"`
}

// Store is a filesystem-backed document store rooted at a single
// directory. Writes to distinct keys need no coordination; writes to the
// same key are last-writer-wins with whole-file atomicity.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// ValidateMode checks a mode key. Modes may be multi-segment paths
// (the job registry uses jobs/<provider>/<id>); each segment must be a
// plain identifier, and the reserved sessions subtree is off limits.
func ValidateMode(mode string) error {
	if mode == "" {
		return fmt.Errorf("mode must not be empty")
	}
	segments := strings.Split(mode, "/")
	if segments[0] == sessionsDir {
		return fmt.Errorf("mode %q uses reserved prefix %q", mode, sessionsDir)
	}
	for _, seg := range segments {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("invalid mode %q: %w", mode, err)
		}
	}
	return nil
}

// ValidateSessionID checks a session identifier. Empty means global scope.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := validateSegment(sessionID); err != nil {
		return fmt.Errorf("invalid session id %q: %w", sessionID, err)
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty path segment")
	}
	if seg == "." || seg == ".." {
		return fmt.Errorf("dot segment not allowed")
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("character %q not allowed", r)
		}
	}
	return nil
}

// scopeDir returns the directory holding top-level documents for a scope.
func (s *Store) scopeDir(sessionID string) string {
	if sessionID == "" {
		return s.root
	}
	return filepath.Join(s.root, sessionsDir, sessionID)
}

func (s *Store) docPath(mode, sessionID string) string {
	return filepath.Join(s.scopeDir(sessionID), filepath.FromSlash(mode)+".json")
}

// Write stores payload under (mode, scope), stamping _meta and creating
// parent directories as needed. The write is atomic: a concurrent reader
// observes either the previous document or this one, never a blend.
func (s *Store) Write(mode string, payload map[string]interface{}, sessionID string) error {
	if err := ValidateMode(mode); err != nil {
		return err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	doc := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		if k == metaKey {
			continue
		}
		doc[k] = v
	}
	doc[metaKey] = Meta{
		WrittenAt: time.Now().UTC(),
		Writer:    writerID(),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s state: %w", mode, err)
	}

	path := s.docPath(mode, sessionID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Read returns the current document for (mode, scope), or ErrNotFound if
// it has never been written (or was cleared).
func (s *Store) Read(mode, sessionID string) (*Document, error) {
	if err := ValidateMode(mode); err != nil {
		return nil, err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.docPath(mode, sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s state: %w", mode, err)
	}
	return decodeDocument(mode, data)
}

// Clear removes the document for (mode, scope). Clearing a document that
// does not exist is a successful no-op.
func (s *Store) Clear(mode, sessionID string) error {
	if err := ValidateMode(mode); err != nil {
		return err
	}
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}

	err := os.Remove(s.docPath(mode, sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing %s state: %w", mode, err)
	}
	return nil
}

// ListActive returns the mode names in a scope whose payload has a truthy
// "active" field, in lexical order. Pure read, no mutation.
func (s *Store) ListActive(sessionID string) ([]string, error) {
	statuses, err := s.Status("", sessionID)
	if err != nil {
		return nil, err
	}
	var active []string
	for _, st := range statuses {
		if st.Active {
			active = append(active, st.Mode)
		}
	}
	return active, nil
}

// Status summarizes one mode, or every known top-level mode in the scope
// when mode is empty. A mode that has never been written reports inactive.
func (s *Store) Status(mode, sessionID string) ([]ModeStatus, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	if mode != "" {
		doc, err := s.Read(mode, sessionID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return []ModeStatus{{Mode: mode}}, nil
			}
			return nil, err
		}
		return []ModeStatus{statusOf(doc)}, nil
	}

	entries, err := os.ReadDir(s.scopeDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing state directory: %w", err)
	}

	var statuses []ModeStatus
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		modeName := strings.TrimSuffix(name, ".json")
		doc, err := s.Read(modeName, sessionID)
		if err != nil {
			// Skip documents that vanished or fail validation; a torn
			// document is impossible by the atomic write contract.
			continue
		}
		statuses = append(statuses, statusOf(doc))
	}
	return statuses, nil
}

func statusOf(doc *Document) ModeStatus {
	return ModeStatus{
		Mode:      doc.Mode,
		Active:    isTruthy(doc.Payload["active"]),
		WrittenAt: doc.Meta.WrittenAt,
		Writer:    doc.Meta.Writer,
	}
}

// isTruthy applies the truthiness rules of the JSON payload's source
// conventions: false, 0, "", and null are falsy; everything else counts.
func isTruthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

func decodeDocument(mode string, data []byte) (*Document, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parsing %s state: %w", mode, err)
	}

	var metaHolder struct {
		Meta Meta `json:"_meta"`
	}
	// Meta is best-effort: documents written by older tooling may lack it.
	_ = json.Unmarshal(data, &metaHolder)
	delete(payload, metaKey)

	return &Document{
		Mode:    mode,
		Payload: payload,
		Meta:    metaHolder.Meta,
	}, nil
}

// writeFileAtomic writes data to path via a temp file in the same
// directory plus rename, so readers never observe a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmp := f.Name()

	_, writeErr := f.Write(data)
	if closeErr := f.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing state file: %w", writeErr)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("setting state file mode: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}

func writerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%d@%s", os.Getpid(), host)
}
