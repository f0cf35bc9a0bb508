// Package ui provides terminal styling for issueflow CLI output.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/chatretro/issueflow/internal/types"
)

var (
	ColorGood = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorBad = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

var (
	GoodStyle   = lipgloss.NewStyle().Foreground(ColorGood)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	BadStyle    = lipgloss.NewStyle().Foreground(ColorBad)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// StatusStyle picks a style for an issue status.
func StatusStyle(s types.Status) lipgloss.Style {
	switch s {
	case types.StatusResolved:
		return GoodStyle
	case types.StatusWontFix, types.StatusDeferred:
		return MutedStyle
	case types.StatusPrioritized, types.StatusInProgress:
		return WarnStyle
	default:
		return AccentStyle
	}
}

// SeverityStyle picks a style for a severity.
func SeverityStyle(s types.Severity) lipgloss.Style {
	switch s {
	case types.SeverityCritical:
		return BadStyle
	case types.SeverityHigh:
		return WarnStyle
	case types.SeverityLow:
		return MutedStyle
	default:
		return AccentStyle
	}
}
