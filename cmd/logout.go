// ABOUTME: Logout command for the fleet CLI
// ABOUTME: Clears local session metadata and ends the backend session

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/spf13/cobra"
)

var logoutYes bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the Fleet Dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, closeLog, err := setup(false)
		if err != nil {
			return err
		}
		defer closeLog()

		if !logoutYes {
			confirmed := true
			err := huh.NewConfirm().
				Title("Sign out of the Fleet Dashboard?").
				Affirmative("Sign out").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil && !errors.Is(err, huh.ErrUserAborted) {
				return err
			}
			if err != nil || !confirmed {
				fmt.Fprintln(os.Stdout, "Still signed in.")
				return nil
			}
		}

		ctrl := session.NewController(session.Config{
			Store: d.store,
			Ender: d.client,
		})
		runLogout(os.Stdout, ctrl)
		return nil
	},
}

func init() {
	logoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(logoutCmd)
}

// sessionEnder is the part of the controller logout drives
type sessionEnder interface {
	Start() session.State
	ForceLogout()
	Stop()
	State() session.State
}

// runLogout ends the session through the controller so the local record is
// cleared and the backend is told exactly once. Stop waits for the backend
// call. A missing or unreadable local record still ends the backend session.
func runLogout(w io.Writer, ctrl sessionEnder) {
	if ctrl.Start().Status == session.StatusActive {
		ctrl.ForceLogout()
	}
	ctrl.Stop()

	state := ctrl.State()
	if IsJSONOutput() {
		fmt.Fprintln(w, formatStatusJSON(statusReport{
			Status:  string(state.Status),
			Reason:  string(state.Reason),
			Message: session.ReasonLogout.Message(),
		}))
		return
	}
	fmt.Fprintln(w, session.ReasonLogout.Message())
}
