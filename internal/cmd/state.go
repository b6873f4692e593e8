package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/state"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/ui"
)

var stateCmd = &cobra.Command{
	Use:     "state",
	GroupID: GroupState,
	Short:   "Read and write per-mode state documents",
	RunE:    requireSubcommand,
	Long: `Small JSON documents keyed by mode name, used to coordinate
sessions sharing a workspace.

Documents live globally or scoped to a session id; the two scopes never
merge. Writes are atomic and last-writer-wins.`,
}

var stateReadCmd = &cobra.Command{
	Use:   "read <mode>",
	Short: "Print a mode's document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateRead,
}

var stateWriteCmd = &cobra.Command{
	Use:   "write <mode> <json>",
	Short: "Replace a mode's document",
	Long: `Replace a mode's document with the given JSON object.

Pass '-' as the JSON argument to read the payload from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runStateWrite,
}

var stateClearCmd = &cobra.Command{
	Use:   "clear <mode>",
	Short: "Delete a mode's document (no-op when absent)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateClear,
}

var stateActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "List modes whose document is active",
	RunE:  runStateActive,
}

var stateStatusCmd = &cobra.Command{
	Use:   "status [mode]",
	Short: "Show active/inactive per mode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStateStatus,
}

// stateSession scopes a state command to one session's namespace.
var stateSession string

func init() {
	stateCmd.AddCommand(stateReadCmd)
	stateCmd.AddCommand(stateWriteCmd)
	stateCmd.AddCommand(stateClearCmd)
	stateCmd.AddCommand(stateActiveCmd)
	stateCmd.AddCommand(stateStatusCmd)

	stateCmd.PersistentFlags().StringVar(&stateSession, "session", "", "Session id scope (default: global)")

	rootCmd.AddCommand(stateCmd)
}

func runStateRead(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	doc, err := e.Store.Read(args[0], stateSession)
	if errors.Is(err, state.ErrNotFound) {
		// Absence is an expected case, not a failure.
		fmt.Println("null")
		return nil
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering document: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runStateWrite(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	raw := []byte(args[1])
	if args[1] == "-" {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("payload must be a JSON object: %w", err)
	}

	if err := e.Store.Write(args[0], payload, stateSession); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", modeLabel(args[0]))
	return nil
}

func runStateClear(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.Store.Clear(args[0], stateSession); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", modeLabel(args[0]))
	return nil
}

func runStateActive(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	modes, err := e.Store.ListActive(stateSession)
	if err != nil {
		return err
	}
	if len(modes) == 0 {
		fmt.Println("no active modes")
		return nil
	}
	for _, m := range modes {
		fmt.Println(m)
	}
	return nil
}

func runStateStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	mode := ""
	if len(args) == 1 {
		mode = args[0]
	}
	statuses, err := e.Store.Status(mode, stateSession)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Println("no modes")
		return nil
	}
	for _, s := range statuses {
		label := "inactive"
		switch {
		case s.Active:
			label = "active"
		case s.WrittenAt.IsZero():
			label = ui.Dim("absent")
		}
		fmt.Printf("%-20s %s\n", s.Mode, label)
	}
	return nil
}

func modeLabel(mode string) string {
	if stateSession != "" {
		return fmt.Sprintf("%s (session %s)", mode, stateSession)
	}
	return mode
}
