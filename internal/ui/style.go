package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/job"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)

	statusStyles = map[job.Status]lipgloss.Style{
		job.StatusSpawned:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")), // yellow
		job.StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")), // cyan
		job.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // green
		job.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),  // red
		job.StatusTimeout:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")), // magenta
		job.StatusKilled:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Faint(true),
	}
)

// Init configures the renderer once at CLI startup. Color handling
// follows ShouldUseColor rather than lipgloss's own detection so that
// NO_COLOR / CLICOLOR / piped output all behave the same across
// commands.
func Init() {
	if !ShouldUseColor() || IsAgentMode() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// Header renders a section or column header.
func Header(s string) string {
	return headerStyle.Render(s)
}

// Dim renders secondary detail like timestamps and file paths.
func Dim(s string) string {
	return dimStyle.Render(s)
}

// RenderStatus renders a job status in its color.
func RenderStatus(s job.Status) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}
