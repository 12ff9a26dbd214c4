// Package cliout provides terminal output formatting for rpcswitchctl.
package cliout

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Slate color theme for rpcswitchctl output.
var (
	ColorAccent = lipgloss.Color("#38bdf8") // primary accent (sky blue)
	ColorWhite  = lipgloss.Color("#fafaf9")
	ColorMuted  = lipgloss.Color("#78716c")
	ColorGreen  = lipgloss.Color("#10b981") // worker healthy / auth ok
	ColorRed    = lipgloss.Color("#f43f5e") // worker gone / error
	ColorGray   = lipgloss.Color("#a8a29e")
)

// slateStyles returns charmbracelet/log styles using the slate theme.
func slateStyles() *log.Styles {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(ColorAccent).
		Bold(true)

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Foreground(lipgloss.Color("#eab308")).
		Bold(true)

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Foreground(ColorRed).
		Bold(true)

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Foreground(ColorMuted)

	styles.Timestamp = lipgloss.NewStyle().Foreground(ColorMuted)
	styles.Key = lipgloss.NewStyle().Foreground(ColorAccent)
	styles.Value = lipgloss.NewStyle().Foreground(ColorGray)

	return styles
}
