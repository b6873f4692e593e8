package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal returns true if stdout is connected to a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects NO_COLOR (https://no-color.org/), CLICOLOR, and CLICOLOR_FORCE conventions.
func ShouldUseColor() bool {
	// NO_COLOR takes precedence - any value disables color
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}

	// CLICOLOR=0 disables color
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}

	// CLICOLOR_FORCE enables color even in non-TTY
	if _, exists := os.LookupEnv("CLICOLOR_FORCE"); exists {
		return true
	}

	// default: use color only if stdout is a TTY
	return IsTerminal()
}

// IsAgentMode returns true if the CLI is being driven by a coding agent
// rather than a human. Agent mode keeps output compact and plain so it
// parses cleanly inside an LLM context window.
func IsAgentMode() bool {
	if os.Getenv("SISYPHUS_AGENT_MODE") == "1" {
		return true
	}
	// auto-detect a Claude Code session driving us
	if os.Getenv("CLAUDE_CODE") != "" {
		return true
	}
	return false
}
