// ABOUTME: Status command for the fleet CLI
// ABOUTME: Reports the stored session's idle and expiry countdowns

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
	"github.com/markalston/fleet-dashboard/internal/tui/widgets"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Long: `Display whether a session is stored and how long until it is signed out
for inactivity or expires. Exits 0 when the session is usable, 2 otherwise.`,
	Run: func(cmd *cobra.Command, args []string) {
		d, closeLog, err := setup(false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		defer closeLog()

		exitCode := runStatus(os.Stdout, d.store, time.Now())
		if exitCode != 0 {
			closeLog()
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusReport is the JSON shape of the status command
type statusReport struct {
	Status                   string  `json:"status"`
	Reason                   string  `json:"reason,omitempty"`
	Message                  string  `json:"message,omitempty"`
	LastActivityAt           string  `json:"last_activity_at,omitempty"`
	ExpiresAt                string  `json:"expires_at,omitempty"`
	IdleTimeoutMinutes       float64 `json:"idle_timeout_minutes,omitempty"`
	SecondsUntilIdleLogout   int     `json:"seconds_until_idle_logout"`
	SecondsUntilTokenExpires int     `json:"seconds_until_token_expires"`
}

// runStatus inspects the stored record and returns the exit code
func runStatus(w io.Writer, store *session.Store, now time.Time) int {
	report := buildStatusReport(store, now)

	if IsJSONOutput() {
		fmt.Fprintln(w, formatStatusJSON(report))
	} else {
		fmt.Fprintln(w, formatStatusHuman(report))
	}

	if report.Status != string(session.StatusActive) {
		return 2
	}
	return 0
}

func buildStatusReport(store *session.Store, now time.Time) statusReport {
	stored, err := store.Load()
	if err != nil {
		reason := session.ReasonStorageUnavailable
		switch {
		case errors.Is(err, session.ErrNoSession):
			reason = session.ReasonNoSession
		case errors.Is(err, session.ErrCorruptSession):
			reason = session.ReasonCorruptSession
		}
		return statusReport{
			Status:  string(session.StatusInvalid),
			Reason:  string(reason),
			Message: reason.Message(),
		}
	}

	meta := sessionmeta.Normalize(stored.Raw(), now)
	cd := session.Evaluate(meta, now)

	report := statusReport{
		Status:                   string(session.StatusActive),
		LastActivityAt:           time.UnixMilli(meta.LastActivityAt).UTC().Format(time.RFC3339),
		ExpiresAt:                time.UnixMilli(meta.ExpiresAtMs).UTC().Format(time.RFC3339),
		IdleTimeoutMinutes:       meta.IdleTimeoutMinutes,
		SecondsUntilIdleLogout:   cd.SecondsUntilIdleLogout(),
		SecondsUntilTokenExpires: cd.SecondsUntilTokenExpires(),
	}

	var reason session.Reason
	switch {
	case cd.IdleExpired():
		reason = session.ReasonIdleTimeout
	case cd.TokenExpired():
		reason = session.ReasonTokenExpired
	}
	if reason != "" {
		report.Status = string(session.StatusInvalid)
		report.Reason = string(reason)
		report.Message = reason.Message()
	}
	return report
}

// formatStatusHuman formats the report for human readability
func formatStatusHuman(r statusReport) string {
	if r.LastActivityAt == "" {
		return r.Message
	}

	state := "active"
	if r.Reason != "" {
		state = r.Reason
	}

	out := fmt.Sprintf(`Session:        %s
Last activity:  %s
Idle logout:    %s (timeout %.0f min)
Expires:        %s (%s)`,
		state,
		r.LastActivityAt,
		widgets.FormatSeconds(r.SecondsUntilIdleLogout), r.IdleTimeoutMinutes,
		widgets.FormatSeconds(r.SecondsUntilTokenExpires), r.ExpiresAt)

	if r.Message != "" {
		out += "\n\n" + r.Message
	}
	return out
}

// formatStatusJSON formats the report as JSON
func formatStatusJSON(r statusReport) string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}
