package ui

import "github.com/charmbracelet/lipgloss"

// Basic ANSI colors so the palette follows the terminal theme.
var (
	// TitleStyle cyan, readable on light and dark backgrounds
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle green, also marks resolved points
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle gray for secondary text
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle yellow, also marks ongoing points
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	AccentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
)
