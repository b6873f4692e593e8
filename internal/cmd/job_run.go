package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// jobRunCmd is the detached supervisor process behind 'job launch
// --background'. The launcher re-execs the running binary with this
// hidden subcommand; it owns the provider process for one job and is
// the only writer of that job's terminal status (kill aside).
var jobRunCmd = &cobra.Command{
	Use:    "run <job-id>",
	Short:  "Supervise one job in the foreground (internal)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE:   runJobRun,
}

var runProvider string

func init() {
	jobRunCmd.Flags().StringVar(&runProvider, "provider", "", "Provider owning the job record")
	_ = jobRunCmd.MarkFlagRequired("provider")
}

func runJobRun(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.Launcher.Supervise(runProvider, args[0]); err != nil {
		return fmt.Errorf("supervising job %s: %w", args[0], err)
	}
	return nil
}
