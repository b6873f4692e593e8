package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/job"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/launch"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/ui"
)

var jobCmd = &cobra.Command{
	Use:     "job",
	GroupID: GroupJobs,
	Short:   "Launch and manage background AI jobs",
	RunE:    requireSubcommand,
	Long: `Launch AI assistant CLI processes as tracked jobs.

Each job is spawned detached with its output captured to a file, and its
lifecycle (spawned, running, completed/failed/timeout/killed) recorded in
the state directory. Jobs survive the launching terminal.`,
}

var jobLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a provider CLI as a job",
	Long: `Launch a provider CLI (claude, gemini, ...) with a prompt.

The prompt comes from --prompt (inline, foreground-only) or
--prompt-file. Background jobs detach and return immediately; poll them
with 'sisyphus job wait'.`,
	Example: `  sisyphus job launch --prompt-file task.md --background
  sisyphus job launch --prompt "summarize the repo"
  sisyphus job launch --provider gemini --prompt-file task.md --background`,
	RunE: runJobLaunch,
}

var jobWaitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Wait for a job to finish",
	Long: `Poll a job until it reaches a terminal status or the timeout elapses.

Polling backs off geometrically, and a timeout is reported as its own
outcome - the job keeps running.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobWait,
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one job's record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobStatus,
}

var jobKillCmd = &cobra.Command{
	Use:   "kill <job-id>",
	Short: "Signal a running job and mark it killed",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobKill,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobList,
}

var (
	launchProvider   string
	launchPrompt     string
	launchPromptFile string
	launchOutput     string
	launchWorkDir    string
	launchExtraArgs  []string
	launchBackground bool

	waitTimeout time.Duration

	killSignal string

	listProvider string
	listStatus   string
	listLimit    int
)

func init() {
	jobCmd.AddCommand(jobLaunchCmd)
	jobCmd.AddCommand(jobWaitCmd)
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobKillCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobRunCmd)

	jobLaunchCmd.Flags().StringVarP(&launchProvider, "provider", "p", "", "Provider preset (default from config)")
	jobLaunchCmd.Flags().StringVar(&launchPrompt, "prompt", "", "Inline prompt (foreground only)")
	jobLaunchCmd.Flags().StringVarP(&launchPromptFile, "prompt-file", "f", "", "Prompt file path")
	jobLaunchCmd.Flags().StringVarP(&launchOutput, "output", "o", "", "Output file (default: generated from the job id)")
	jobLaunchCmd.Flags().StringVar(&launchWorkDir, "workdir", "", "Working directory for the provider process")
	jobLaunchCmd.Flags().StringArrayVar(&launchExtraArgs, "arg", nil, "Extra provider argument (repeatable)")
	jobLaunchCmd.Flags().BoolVarP(&launchBackground, "background", "b", false, "Detach and return immediately")

	jobWaitCmd.Flags().DurationVarP(&waitTimeout, "timeout", "t", 10*time.Minute, "Maximum wait (clamped to 1h)")

	jobKillCmd.Flags().StringVarP(&killSignal, "signal", "s", "", "Signal name (default SIGTERM)")

	jobListCmd.Flags().StringVarP(&listProvider, "provider", "p", "", "Only this provider")
	jobListCmd.Flags().StringVarP(&listStatus, "status", "s", job.FilterActive,
		"Status filter: active, all, or a literal status")
	jobListCmd.Flags().IntVarP(&listLimit, "limit", "n", job.DefaultListLimit, "Maximum jobs to show")

	rootCmd.AddCommand(jobCmd)
}

func runJobLaunch(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	res, err := e.Launcher.Launch(launch.Options{
		Provider:   launchProvider,
		Prompt:     launchPrompt,
		PromptFile: launchPromptFile,
		OutputFile: launchOutput,
		ExtraArgs:  launchExtraArgs,
		WorkDir:    launchWorkDir,
		Background: launchBackground,
	})
	if err != nil {
		return err
	}

	if launchBackground {
		fmt.Printf("launched job %s (%s)\n", res.Job.ID, res.Job.Provider)
		fmt.Printf("  output: %s\n", ui.Dim(res.Job.OutputFile))
		fmt.Printf("  wait:   sisyphus job wait %s\n", res.Job.ID)
		return nil
	}

	// Foreground: the job already finished; print its output.
	if res.Output != "" {
		fmt.Print(res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Println()
		}
	}
	if res.Job.Status != job.StatusCompleted {
		return fmt.Errorf("job %s %s: %s", res.Job.ID, res.Job.Status, res.Job.Error)
	}
	return nil
}

func runJobWait(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	res, err := e.Registry.Wait(args[0], job.WaitOptions{
		Timeout:     waitTimeout,
		PollFloor:   e.Config.PollFloor(),
		PollCeiling: e.Config.PollCeiling(),
	})
	if err != nil {
		return err
	}

	fmt.Println(res.Describe())
	if res.TimedOut {
		// Timeout is an outcome, not corruption; exit non-zero so
		// scripts can branch on it.
		return fmt.Errorf("timed out waiting for job %s", args[0])
	}
	if res.Output != "" {
		fmt.Println()
		fmt.Print(res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Println()
		}
		if res.Truncated {
			fmt.Printf("\n%s\n", ui.Dim(fmt.Sprintf("(output truncated; full output in %s)", res.Job.OutputFile)))
		}
	}
	if res.Job.Status != job.StatusCompleted {
		return fmt.Errorf("job %s %s: %s", res.Job.ID, res.Job.Status, res.Job.Error)
	}
	return nil
}

func runJobStatus(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	j, err := e.Registry.Find(args[0])
	if err != nil {
		return err
	}
	printJob(j)
	return nil
}

func runJobKill(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	j, err := e.Registry.Kill(args[0], killSignal)
	if err != nil {
		return err
	}
	fmt.Printf("job %s %s\n", j.ID, ui.RenderStatus(j.Status))
	return nil
}

func runJobList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	filter := listStatus
	if filter == "all" {
		filter = ""
	}
	jobs, err := e.Registry.List(listProvider, filter, listLimit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}

	fmt.Printf("%s  %s  %s  %s\n",
		ui.Header(fmt.Sprintf("%-36s", "ID")),
		ui.Header(fmt.Sprintf("%-10s", "PROVIDER")),
		ui.Header(fmt.Sprintf("%-9s", "STATUS")),
		ui.Header("AGE"))
	for _, j := range jobs {
		fmt.Printf("%-36s  %-10s  %s  %s\n",
			j.ID, j.Provider,
			fmt.Sprintf("%-9s", ui.RenderStatus(j.Status)),
			ui.Dim(age(j.CreatedAt)))
	}
	return nil
}

func printJob(j *job.Job) {
	fmt.Printf("%s %s\n", ui.Header("job"), j.ID)
	fmt.Printf("  provider: %s\n", j.Provider)
	fmt.Printf("  status:   %s\n", ui.RenderStatus(j.Status))
	if j.Command != "" {
		fmt.Printf("  command:  %s\n", j.Command)
	}
	if j.PID > 0 {
		alive := ""
		if j.Status == job.StatusRunning && !j.ProcessAlive() {
			alive = ui.Dim(" (process gone)")
		}
		fmt.Printf("  pid:      %d%s\n", j.PID, alive)
	}
	if j.OutputFile != "" {
		fmt.Printf("  output:   %s\n", j.OutputFile)
	}
	fmt.Printf("  created:  %s\n", j.CreatedAt.Local().Format(time.RFC3339))
	if j.CompletedAt != nil {
		fmt.Printf("  finished: %s\n", j.CompletedAt.Local().Format(time.RFC3339))
	}
	if j.Error != "" {
		fmt.Printf("  error:    %s\n", j.Error)
	}
}

// age renders a compact duration for list output: 42s, 3m, 2h, 5d.
func age(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
