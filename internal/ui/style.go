// Package ui holds console styles. Colors degrade to plain text when
// output is not a terminal.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle = lipgloss.NewStyle().Inline(true).Bold(true).Foreground(lipgloss.Color("252")).Render
	HelpStyle  = lipgloss.NewStyle().Inline(true).Foreground(lipgloss.Color("241")).Render
	GoodStyle  = lipgloss.NewStyle().Inline(true).Foreground(lipgloss.Color("42")).Render
	BadStyle   = lipgloss.NewStyle().Inline(true).Foreground(lipgloss.Color("203")).Render
)

// Health renders a status word in green or red
func Health(healthy bool) string {
	if healthy {
		return GoodStyle("healthy")
	}
	return BadStyle("unhealthy")
}
