// Package cmd provides CLI commands for the sisyphus tool.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:     "sisyphus",
	Short:   "Sisyphus - background AI job runner",
	Version: Version,
	Long: `Sisyphus launches AI assistant CLIs (claude, gemini, ...) as managed
background jobs and tracks their lifecycle in a file-backed registry.

It also keeps small per-mode state documents for coordinating sessions
that share a workspace.`,
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	ui.Init()
	if err := rootCmd.Execute(); err != nil {
		// Errors already printed by cobra
		return 1
	}
	return 0
}

// Command group IDs - used by subcommands to organize help output
const (
	GroupJobs  = "jobs"
	GroupState = "state"
	GroupDiag  = "diag"
)

func init() {
	// Enable prefix matching for subcommands (e.g., "sisyphus j l" -> "sisyphus job launch")
	cobra.EnablePrefixMatching = true

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupJobs, Title: "Job Management:"},
		&cobra.Group{ID: GroupState, Title: "Mode State:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)

	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)
}

// buildCommandPath walks the command hierarchy to build the full command path.
// For example: "sisyphus job launch", "sisyphus state read", etc.
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands like "sisyphus job foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return fmt.Errorf("unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
