// ABOUTME: Watch command for the fleet CLI
// ABOUTME: Runs the session controller behind the full-screen countdown view

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/markalston/fleet-dashboard/internal/tui"
	"github.com/spf13/cobra"
)

var watchNoTUI bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session alive while you work",
	Long: `Show live idle and expiry countdowns. Keyboard and mouse input count as
activity; the session is renewed shortly before it expires and signed out
after the idle timeout. Press q to leave without signing out.

With --no-tui, state changes are printed as JSON lines instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// The full-screen view owns the terminal, so logs go to a file.
		d, closeLog, err := setup(!watchNoTUI)
		if err != nil {
			return err
		}
		defer closeLog()

		go func() {
			if err := d.jar.Watch(ctx); err != nil {
				slog.Debug("Cookie jar not watched", "error", err)
			}
		}()

		feed := session.NewActivityFeed()
		ctrl := newWatchController(d, feed)
		defer ctrl.Stop()

		if ctrl.Start().Status != session.StatusActive {
			printFinalState(os.Stdout, ctrl.State())
			return ExitCode(2)
		}
		slog.Debug("Watching session", "controller_id", ctrl.ID(), "tui", !watchNoTUI)

		var final session.State
		if watchNoTUI {
			final = streamStates(ctx, os.Stdout, ctrl)
		} else {
			final, err = tui.Run(ctrl, feed, currentUsername(ctx, d))
			if err != nil {
				return fmt.Errorf("session view failed: %w", err)
			}
		}

		printFinalState(os.Stdout, final)
		if final.Status == session.StatusInvalid && final.Reason != session.ReasonLogout {
			return ExitCode(2)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoTUI, "no-tui", false, "Print state changes as JSON lines")
	rootCmd.AddCommand(watchCmd)
}

// newWatchController wires the controller to the backend through the
// shared client and store.
func newWatchController(d *deps, feed *session.ActivityFeed) *session.Controller {
	return session.NewController(session.Config{
		Store:     d.store,
		Refresher: session.NewRefreshCoordinator(d.client, d.store, session.DefaultRefreshTimeout),
		Throttle:  session.NewActivityThrottle(d.client, session.DefaultActivityInterval),
		Ender:     d.client,
		Activity:  feed,
	})
}

// currentUsername asks the backend who is signed in. The header falls back
// to no name when the backend is unreachable.
func currentUsername(ctx context.Context, d *deps) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	info, err := d.client.Me(ctx)
	if err != nil {
		slog.Debug("Could not fetch current user", "error", err)
		return ""
	}
	return info.Username
}

// streamStates prints each published state until the session ends or ctx
// is cancelled, and returns the last state seen.
func streamStates(ctx context.Context, w io.Writer, ctrl *session.Controller) session.State {
	enc := json.NewEncoder(w)
	last := ctrl.State()
	for {
		select {
		case <-ctx.Done():
			return last
		case s := <-ctrl.Updates():
			last = s
			enc.Encode(s)
			if s.Status == session.StatusInvalid {
				return last
			}
		}
	}
}

func printFinalState(w io.Writer, s session.State) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(s, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	if msg := s.Reason.Message(); msg != "" {
		fmt.Fprintln(w, msg)
		return
	}
	fmt.Fprintln(w, "Left the session running. Run 'fleet watch' to resume.")
}

// ExitCode is returned by commands that fail without a message to print.
// The process exits with its value.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}
