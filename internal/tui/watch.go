// ABOUTME: Bubbletea screen showing live session countdowns
// ABOUTME: Turns keyboard and mouse input into activity and drives the idle warning

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/markalston/fleet-dashboard/internal/tui/icons"
	"github.com/markalston/fleet-dashboard/internal/tui/styles"
	"github.com/markalston/fleet-dashboard/internal/tui/widgets"
)

// pointerInterval limits how often mouse motion counts as activity; every
// activity event rewrites the session record.
const pointerInterval = 500 * time.Millisecond

// Controller is the part of the lifecycle controller the screen drives.
type Controller interface {
	State() session.State
	Updates() <-chan session.State
	StayActive()
	ForceLogout()
}

// stateMsg carries a published controller state into the update loop
type stateMsg session.State

// Watch is the root model for the session screen
type Watch struct {
	ctrl     Controller
	feed     *session.ActivityFeed
	username string

	state   session.State
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int

	lastPointer time.Time
	now         func() time.Time
	quitting    bool
}

// NewWatch creates the screen. username is shown in the header when set.
func NewWatch(ctrl Controller, feed *session.ActivityFeed, username string) *Watch {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Accent)

	return &Watch{
		ctrl:     ctrl,
		feed:     feed,
		username: username,
		state:    ctrl.State(),
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
		width:    80,
		now:      time.Now,
	}
}

// State returns the last state the screen rendered.
func (w *Watch) State() session.State {
	return w.state
}

// Init implements tea.Model
func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.waitForState())
}

func (w *Watch) waitForState() tea.Cmd {
	updates := w.ctrl.Updates()
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return stateMsg(s)
	}
}

// Update implements tea.Model
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.help.Width = msg.Width
		return w, nil

	case tea.KeyMsg:
		return w.handleKey(msg)

	case tea.MouseMsg:
		w.handleMouse(msg)
		return w, nil

	case stateMsg:
		w.state = session.State(msg)
		if w.state.Status == session.StatusInvalid {
			w.quitting = true
			return w, tea.Quit
		}
		return w, w.waitForState()

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}

	return w, nil
}

func (w *Watch) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, w.keys.Quit) {
		w.quitting = true
		return w, tea.Quit
	}

	switch {
	case key.Matches(msg, w.keys.Logout):
		w.ctrl.ForceLogout()
		return w, nil
	case key.Matches(msg, w.keys.StayActive) && w.state.Warning:
		w.ctrl.StayActive()
		return w, nil
	case key.Matches(msg, w.keys.Help):
		w.help.ShowAll = !w.help.ShowAll
	}

	w.emit(session.EventKeyPress)
	return w, nil
}

func (w *Watch) handleMouse(msg tea.MouseMsg) {
	switch {
	case tea.MouseEvent(msg).IsWheel():
		w.emit(session.EventScroll)
	case msg.Action == tea.MouseActionPress:
		w.emit(session.EventClick)
	case msg.Action == tea.MouseActionMotion:
		now := w.now()
		if now.Sub(w.lastPointer) < pointerInterval {
			return
		}
		w.lastPointer = now
		w.emit(session.EventPointerMove)
	}
}

func (w *Watch) emit(kind session.EventKind) {
	if w.feed != nil {
		w.feed.Emit(kind)
	}
}

// View implements tea.Model
func (w *Watch) View() string {
	var b strings.Builder

	title := "Fleet Dashboard Session"
	if w.username != "" {
		title = fmt.Sprintf("%s  %s %s", title, icons.User, w.username)
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n")

	if w.state.Status == session.StatusInvalid {
		b.WriteString(styles.Panel.Render(w.renderInvalid()))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(styles.Panel.Render(w.renderCountdowns()))
	b.WriteString("\n")

	if w.state.Warning {
		b.WriteString(styles.WarningPanel.Render(w.renderWarning()))
		b.WriteString("\n")
	}

	if !w.quitting {
		b.WriteString(styles.Help.Render(w.help.View(w.keys)))
		b.WriteString("\n")
	}
	return b.String()
}

func (w *Watch) renderCountdowns() string {
	s := w.state
	barCfg := widgets.DefaultCountdownBarConfig()
	if w.width > 0 && w.width < 70 {
		barCfg.Width = 16
	}

	status := widgets.Badge("ACTIVE", widgets.StatusOK)
	if s.Status == session.StatusUninitialized {
		status = widgets.Badge("STARTING", widgets.StatusNeutral)
	} else if s.Warning {
		status = widgets.Badge("IDLE", widgets.StatusWarning)
	}

	lines := []string{
		styles.Label.Render("Status") + status,
		styles.Label.Render(fmt.Sprintf("%s Idle logout", icons.Clock)) +
			widgets.CountdownBar(s.SecondsUntilIdleLogout, s.IdleTimeoutSeconds, barCfg) + " " +
			styles.ValueStyle.Render(widgets.FormatSeconds(s.SecondsUntilIdleLogout)),
		styles.Label.Render(fmt.Sprintf("%s Token expires", icons.Key)) +
			styles.ValueStyle.Render(widgets.FormatSeconds(s.SecondsUntilTokenExpires)),
	}

	if s.IsRefreshing {
		lines = append(lines, styles.Label.Render("")+w.spinner.View()+" "+
			widgets.StatusText(fmt.Sprintf("%s Renewing session", icons.Refresh), widgets.StatusInfo))
	}
	return strings.Join(lines, "\n")
}

func (w *Watch) renderWarning() string {
	return strings.Join([]string{
		styles.StatusWarning.Render(fmt.Sprintf("%s Are you still there?", icons.Warning)),
		fmt.Sprintf("You will be signed out in %s.", styles.ValueStyle.Render(widgets.FormatSeconds(w.state.SecondsUntilIdleLogout))),
		fmt.Sprintf("Press %s to stay signed in.", styles.KeyStyle.Render("enter")),
	}, "\n")
}

func (w *Watch) renderInvalid() string {
	msg := w.state.Reason.Message()
	if msg == "" {
		msg = "Session ended."
	}
	level := widgets.StatusCritical
	if w.state.Reason == session.ReasonLogout {
		level = widgets.StatusInfo
	}
	return fmt.Sprintf("%s %s", icons.Lock, widgets.StatusText(msg, level))
}

// Run starts the screen and blocks until it exits. The returned state is
// the last one rendered.
func Run(ctrl Controller, feed *session.ActivityFeed, username string) (session.State, error) {
	w := NewWatch(ctrl, feed, username)

	p := tea.NewProgram(
		w,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	_, err := p.Run()
	return w.State(), err
}
