// Package cmd implements voicelinkctl, a diagnostics tool for voice
// selection and gesture recognition.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var verbose bool

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	eventStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B"))
)

var rootCmd = &cobra.Command{
	Use:   "voicelinkctl",
	Short: "VoiceLink diagnostics",
	Long: `voicelinkctl inspects how VoiceLink picks voices and turns hand
gestures into spoken phrases, without starting the desktop app.

Commands:
  voices  - rank the voices available for a language and persona
  replay  - run a recorded gesture trace through the recognizer`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
