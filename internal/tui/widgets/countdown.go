// ABOUTME: Countdown bar that drains as a deadline approaches
// ABOUTME: Turns amber then red as the remaining share of the window shrinks

package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CountdownBarConfig holds configuration for the countdown bar
type CountdownBarConfig struct {
	Width         int
	WarnThreshold float64 // Remaining percentage where warning zone starts (default 25)
	CritThreshold float64 // Remaining percentage where critical zone starts (default 10)
	OKColor       lipgloss.Color
	WarnColor     lipgloss.Color
	CritColor     lipgloss.Color
	EmptyColor    lipgloss.Color
}

// DefaultCountdownBarConfig returns sensible defaults
func DefaultCountdownBarConfig() CountdownBarConfig {
	return CountdownBarConfig{
		Width:         30,
		WarnThreshold: 25,
		CritThreshold: 10,
		OKColor:       lipgloss.Color("#10B981"), // Green
		WarnColor:     lipgloss.Color("#F59E0B"), // Amber
		CritColor:     lipgloss.Color("#EF4444"), // Red
		EmptyColor:    lipgloss.Color("#374151"), // Dark gray
	}
}

// RemainingPercent returns remaining/total as a clamped percentage.
func RemainingPercent(remaining, total int) float64 {
	if total <= 0 || remaining <= 0 {
		return 0
	}
	p := float64(remaining) / float64(total) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Level classifies a remaining percentage.
func (c CountdownBarConfig) Level(percent float64) StatusLevel {
	switch {
	case percent <= c.CritThreshold:
		return StatusCritical
	case percent <= c.WarnThreshold:
		return StatusWarning
	default:
		return StatusOK
	}
}

// CountdownBar renders the remaining share of a window. The whole filled
// portion takes the color of the current zone.
func CountdownBar(remaining, total int, config CountdownBarConfig) string {
	if config.Width <= 0 {
		config.Width = 30
	}

	percent := RemainingPercent(remaining, total)
	filled := int(percent / 100.0 * float64(config.Width))
	if filled == 0 && remaining > 0 {
		filled = 1
	}

	color := config.OKColor
	switch config.Level(percent) {
	case StatusCritical:
		color = config.CritColor
	case StatusWarning:
		color = config.WarnColor
	}

	var bar strings.Builder
	bar.WriteString("[")
	bar.WriteString(lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)))
	bar.WriteString(lipgloss.NewStyle().Foreground(config.EmptyColor).Render(strings.Repeat("░", config.Width-filled)))
	bar.WriteString("]")
	return bar.String()
}

// FormatSeconds renders a countdown as "1h 02m", "4m 05s", or "9s".
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
