package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	payload := map[string]interface{}{"active": true, "iteration": float64(3)}
	if err := s.Write("ralph", payload, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := s.Read("ralph", "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Mode != "ralph" {
		t.Errorf("Mode = %q, want %q", doc.Mode, "ralph")
	}
	if doc.Payload["active"] != true {
		t.Errorf("Payload[active] = %v, want true", doc.Payload["active"])
	}
	if doc.Payload["iteration"] != float64(3) {
		t.Errorf("Payload[iteration] = %v, want 3", doc.Payload["iteration"])
	}
	if doc.Meta.WrittenAt.IsZero() {
		t.Error("Meta.WrittenAt not stamped")
	}
	if doc.Meta.Writer == "" {
		t.Error("Meta.Writer not stamped")
	}
}

func TestReadNeverWrittenReturnsNotFound(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Read("ghost", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read(ghost) = %v, want ErrNotFound", err)
	}
}

func TestCallerMetaDiscarded(t *testing.T) {
	s := NewStore(t.TempDir())

	payload := map[string]interface{}{
		"_meta":  map[string]interface{}{"writer": "forged"},
		"active": true,
	}
	if err := s.Write("ralph", payload, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	doc, err := s.Read("ralph", "")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Meta.Writer == "forged" {
		t.Error("caller-supplied _meta survived the write")
	}
	if _, ok := doc.Payload["_meta"]; ok {
		t.Error("_meta leaked into Payload")
	}
}

func TestClearIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write("ralph", map[string]interface{}{"active": true}, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Clear("ralph", ""); err != nil {
		t.Fatalf("first Clear: %v", err)
	}
	if err := s.Clear("ralph", ""); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if _, err := s.Read("ralph", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after Clear = %v, want ErrNotFound", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write("ralph", map[string]interface{}{"origin": "global"}, ""); err != nil {
		t.Fatalf("global Write: %v", err)
	}
	if err := s.Write("ralph", map[string]interface{}{"origin": "session"}, "abc"); err != nil {
		t.Fatalf("session Write: %v", err)
	}

	global, err := s.Read("ralph", "")
	if err != nil {
		t.Fatalf("global Read: %v", err)
	}
	if global.Payload["origin"] != "global" {
		t.Errorf("global origin = %v, want global", global.Payload["origin"])
	}

	session, err := s.Read("ralph", "abc")
	if err != nil {
		t.Fatalf("session Read: %v", err)
	}
	if session.Payload["origin"] != "session" {
		t.Errorf("session origin = %v, want session", session.Payload["origin"])
	}

	if err := s.Clear("ralph", "abc"); err != nil {
		t.Fatalf("session Clear: %v", err)
	}
	if _, err := s.Read("ralph", ""); err != nil {
		t.Fatalf("global Read after session Clear: %v", err)
	}
}

func TestListActiveScoping(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write("ralph", map[string]interface{}{"active": true}, "abc"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("ultrathink", map[string]interface{}{"active": false}, "abc"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	active, err := s.ListActive("abc")
	if err != nil {
		t.Fatalf("ListActive(abc): %v", err)
	}
	if len(active) != 1 || active[0] != "ralph" {
		t.Fatalf("ListActive(abc) = %v, want [ralph]", active)
	}

	global, err := s.ListActive("")
	if err != nil {
		t.Fatalf("ListActive(): %v", err)
	}
	for _, mode := range global {
		if mode == "ralph" {
			t.Error("session-scoped mode leaked into global ListActive")
		}
	}
}

func TestListActiveTruthiness(t *testing.T) {
	s := NewStore(t.TempDir())

	writes := map[string]interface{}{
		"boolmode":  true,
		"strmode":   "yes",
		"nummode":   float64(2),
		"zeromode":  float64(0),
		"emptymode": "",
		"offmode":   false,
	}
	for mode, active := range writes {
		if err := s.Write(mode, map[string]interface{}{"active": active}, ""); err != nil {
			t.Fatalf("Write(%s): %v", mode, err)
		}
	}
	// No active field at all.
	if err := s.Write("bare", map[string]interface{}{"note": "hi"}, ""); err != nil {
		t.Fatalf("Write(bare): %v", err)
	}

	active, err := s.ListActive("")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	want := []string{"boolmode", "nummode", "strmode"}
	if len(active) != len(want) {
		t.Fatalf("ListActive = %v, want %v", active, want)
	}
	for i := range want {
		if active[i] != want[i] {
			t.Errorf("ListActive[%d] = %q, want %q", i, active[i], want[i])
		}
	}
}

func TestStatusAllAndSingle(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write("ralph", map[string]interface{}{"active": true}, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("ultrathink", map[string]interface{}{"active": false}, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	all, err := s.Status("", "")
	if err != nil {
		t.Fatalf("Status all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Status all returned %d modes, want 2", len(all))
	}

	single, err := s.Status("ralph", "")
	if err != nil {
		t.Fatalf("Status(ralph): %v", err)
	}
	if len(single) != 1 || !single[0].Active {
		t.Fatalf("Status(ralph) = %+v, want one active entry", single)
	}

	missing, err := s.Status("ghost", "")
	if err != nil {
		t.Fatalf("Status(ghost): %v", err)
	}
	if len(missing) != 1 || missing[0].Active {
		t.Fatalf("Status(ghost) = %+v, want one inactive entry", missing)
	}
}

func TestConcurrentWritersNeverTearDocument(t *testing.T) {
	s := NewStore(t.TempDir())

	old := map[string]interface{}{"generation": "old", "active": true}
	if err := s.Write("ralph", old, ""); err != nil {
		t.Fatalf("seed Write: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		gen := "old"
		if i%2 == 0 {
			gen = "new"
		}
		wg.Add(1)
		go func(gen string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = s.Write("ralph", map[string]interface{}{"generation": gen, "active": true}, "")
			}
		}(gen)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		doc, err := s.Read("ralph", "")
		if err != nil {
			t.Fatalf("Read during concurrent writes: %v", err)
		}
		gen, _ := doc.Payload["generation"].(string)
		if gen != "old" && gen != "new" {
			t.Fatalf("torn read: generation = %q", gen)
		}
	}
}

func TestNestedModeKeys(t *testing.T) {
	s := NewStore(t.TempDir())

	if err := s.Write("jobs/claude/abc123", map[string]interface{}{"status": "spawned"}, ""); err != nil {
		t.Fatalf("nested Write: %v", err)
	}

	doc, err := s.Read("jobs/claude/abc123", "")
	if err != nil {
		t.Fatalf("nested Read: %v", err)
	}
	if doc.Payload["status"] != "spawned" {
		t.Errorf("status = %v, want spawned", doc.Payload["status"])
	}

	// Nested keys must not surface as top-level modes.
	all, err := s.Status("", "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Status surfaced nested keys: %+v", all)
	}
}

func TestValidation(t *testing.T) {
	s := NewStore(t.TempDir())

	bad := []string{"", "..", "a/../b", "a//b", "sessions/sneaky", "sp ace", "semi;colon"}
	for _, mode := range bad {
		if err := s.Write(mode, nil, ""); err == nil {
			t.Errorf("Write(%q) succeeded, want validation error", mode)
		}
	}

	if err := s.Write("ok", nil, "bad/session"); err == nil {
		t.Error("Write with path-separator session id succeeded, want error")
	}
}

func TestDocumentOnDiskShape(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	if err := s.Write("ralph", map[string]interface{}{"active": true}, ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ralph.json"))
	if err != nil {
		t.Fatalf("reading raw document: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("raw document is not valid JSON: %v", err)
	}
	if _, ok := raw["_meta"]; !ok {
		t.Error("raw document missing _meta")
	}
}
