// ABOUTME: Login command for the fleet CLI
// ABOUTME: Authenticates against the backend and records session metadata

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/markalston/fleet-dashboard/internal/client"
	"github.com/markalston/fleet-dashboard/internal/session"
	"github.com/markalston/fleet-dashboard/internal/sessionmeta"
	"github.com/markalston/fleet-dashboard/internal/tui/widgets"
	"github.com/spf13/cobra"
)

var (
	loginUsername      string
	loginPasswordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Fleet Dashboard",
	Long: `Sign in with a username and password. Prompts for any credential not
given on the command line. Use --password-stdin in scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		d, closeLog, err := setup(false)
		if err != nil {
			return err
		}
		defer closeLog()

		username, password, err := readCredentials(os.Stdin)
		if err != nil {
			return err
		}
		return runLogin(ctx, os.Stdout, d.client, d.store, username, password, time.Now())
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	rootCmd.AddCommand(loginCmd)
}

func readCredentials(stdin io.Reader) (string, string, error) {
	username := loginUsername
	var password string

	if loginPasswordStdin {
		if username == "" {
			return "", "", errors.New("--password-stdin requires --username")
		}
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		return username, strings.TrimRight(line, "\r\n"), nil
	}

	fields := []huh.Field{}
	if username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&username).
			Validate(required("username")))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&password).
		Validate(required("password")))

	if err := huh.NewForm(huh.NewGroup(fields...).Title("Fleet Dashboard sign in")).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", "", errors.New("login cancelled")
		}
		return "", "", err
	}
	return strings.TrimSpace(username), password, nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

// loginResult is the JSON shape printed after a successful login
type loginResult struct {
	Username           string  `json:"username"`
	ExpiresAt          string  `json:"expires_at"`
	IdleTimeoutMinutes float64 `json:"idle_timeout_minutes"`
}

// runLogin authenticates and stores the normalized session record. The
// backend's cookies land in the same jar the store writes to.
func runLogin(ctx context.Context, w io.Writer, c *client.Client, store *session.Store, username, password string, now time.Time) error {
	resp, err := c.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	raw := resp.Raw()
	raw.LastActivityAt = now.UnixMilli()
	meta := sessionmeta.Normalize(raw, now)

	if err := store.Write(meta.Metadata()); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	name := resp.Username
	if name == "" {
		name = username
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(loginResult{
			Username:           name,
			ExpiresAt:          meta.ExpiresAt.String(),
			IdleTimeoutMinutes: meta.IdleTimeoutMinutes,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return nil
	}

	cd := session.Evaluate(meta, now)
	fmt.Fprintf(w, "Signed in as %s.\nIdle timeout:   %s\nSession ends:   in %s\n",
		name,
		widgets.FormatSeconds(cd.SecondsUntilIdleLogout()),
		widgets.FormatSeconds(cd.SecondsUntilTokenExpires()))
	return nil
}
