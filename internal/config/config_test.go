package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/provider"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "claude" {
		t.Errorf("DefaultProvider = %q, want claude", cfg.DefaultProvider)
	}
	if cfg.PollFloor() != DefaultPollFloor {
		t.Errorf("PollFloor = %v, want %v", cfg.PollFloor(), DefaultPollFloor)
	}
	if cfg.PollCeiling() != DefaultPollCeiling {
		t.Errorf("PollCeiling = %v, want %v", cfg.PollCeiling(), DefaultPollCeiling)
	}
	if cfg.HardTimeout() != DefaultHardTimeout {
		t.Errorf("HardTimeout = %v, want %v", cfg.HardTimeout(), DefaultHardTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
default_provider = "gemini"

[poll]
floor_ms = 50
ceiling_ms = 2000

[jobs]
hard_timeout_ms = 60000

[providers.codex]
command = "/usr/local/bin/codex"
args = ["exec"]
prompt_via_stdin = true
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "gemini" {
		t.Errorf("DefaultProvider = %q, want gemini", cfg.DefaultProvider)
	}
	if cfg.PollFloor() != 50*time.Millisecond {
		t.Errorf("PollFloor = %v, want 50ms", cfg.PollFloor())
	}
	if cfg.PollCeiling() != 2*time.Second {
		t.Errorf("PollCeiling = %v, want 2s", cfg.PollCeiling())
	}
	if cfg.HardTimeout() != time.Minute {
		t.Errorf("HardTimeout = %v, want 1m", cfg.HardTimeout())
	}

	reg := provider.Defaults()
	if err := cfg.ApplyProviders(reg); err != nil {
		t.Fatalf("ApplyProviders: %v", err)
	}
	p, ok := reg.Lookup("codex")
	if !ok {
		t.Fatal("codex override not registered")
	}
	if p.Command != "/usr/local/bin/codex" || !p.PromptViaStdin {
		t.Errorf("codex preset = %+v, want configured command and stdin delivery", p)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[poll\nfloor"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load of malformed toml succeeded, want error")
	}
}

func TestCeilingNeverBelowFloor(t *testing.T) {
	var cfg Config
	cfg.Poll.FloorMs = 5000
	cfg.Poll.CeilingMs = 100

	if got := cfg.PollCeiling(); got != cfg.PollFloor() {
		t.Errorf("PollCeiling = %v, want floor %v", got, cfg.PollFloor())
	}
}

func TestClampWait(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{0, MaxWaitTimeout},
		{-time.Second, MaxWaitTimeout},
		{30 * time.Second, 30 * time.Second},
		{2 * time.Hour, MaxWaitTimeout},
	}
	for _, tc := range cases {
		if got := ClampWait(tc.in); got != tc.want {
			t.Errorf("ClampWait(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
