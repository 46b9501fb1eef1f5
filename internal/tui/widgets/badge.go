// ABOUTME: Inline status badges for the session screen
// ABOUTME: Maps a severity level to colors and an icon

package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/markalston/fleet-dashboard/internal/tui/icons"
)

// StatusLevel represents the severity of a status
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusInfo
	StatusNeutral
)

type levelStyle struct {
	bg, fg lipgloss.Color
	icon   icons.Icon
}

var levelStyles = map[StatusLevel]levelStyle{
	StatusOK:       {lipgloss.Color("#10B981"), lipgloss.Color("#FFFFFF"), icons.CheckOK},
	StatusWarning:  {lipgloss.Color("#F59E0B"), lipgloss.Color("#000000"), icons.Warning},
	StatusCritical: {lipgloss.Color("#EF4444"), lipgloss.Color("#FFFFFF"), icons.Critical},
	StatusInfo:     {lipgloss.Color("#3B82F6"), lipgloss.Color("#FFFFFF"), icons.Info},
}

var neutralStyle = levelStyle{lipgloss.Color("#6B7280"), lipgloss.Color("#FFFFFF"), icons.Icon{NerdFont: "•", Fallback: "•"}}

func styleFor(level StatusLevel) levelStyle {
	if s, ok := levelStyles[level]; ok {
		return s
	}
	return neutralStyle
}

// Badge renders text on a background colored by level
func Badge(text string, level StatusLevel) string {
	s := styleFor(level)
	return lipgloss.NewStyle().
		Background(s.bg).
		Foreground(s.fg).
		Padding(0, 1).
		Bold(true).
		Render(text)
}

// StatusText renders text in the level's color, prefixed by its icon
func StatusText(text string, level StatusLevel) string {
	s := styleFor(level)
	style := lipgloss.NewStyle().Foreground(s.bg)
	return style.Render(s.icon.String()) + " " + style.Render(text)
}
