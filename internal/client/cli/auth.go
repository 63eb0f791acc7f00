package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/shoetrack/internal/validation"
)

// ErrPasswordMismatch пароль и подтверждение не совпали
var ErrPasswordMismatch = errors.New("passwords do not match")

func (a *App) newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			username, err := a.username(args)
			if err != nil {
				return err
			}

			password, err := c.IO.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if err := validation.ValidatePassword(password); err != nil {
				return err
			}
			confirm, err := c.IO.ReadPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if password != confirm {
				return ErrPasswordMismatch
			}

			userID, err := c.Auth.Register(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			c.IO.Printf("✓ Registered %s (user id %s)\n", username, userID)
			c.IO.Println("Run 'shoetrack login' to start syncing.")
			return nil
		},
	}
}

func (a *App) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and store the access token locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.cli
			username, err := a.username(args)
			if err != nil {
				return err
			}
			password, err := c.IO.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			data, err := c.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			c.IO.Printf("✓ Logged in as %s\n", data.Username)
			if !data.ExpiresAt.IsZero() {
				c.IO.Printf("Token expires: %s\n", data.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}

			st, err := c.Sync.Status(cmd.Context())
			if err == nil && st.PendingOperations > 0 {
				c.IO.Printf("%d change(s) waiting to sync. Run 'shoetrack sync'.\n", st.PendingOperations)
			}
			return nil
		},
	}
}

func (a *App) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Long:  "Forget the stored access token. Unsynced changes stay queued and are sent after the next login.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := a.cli
			if err := c.Auth.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			c.IO.Println("✓ Logged out")
			return nil
		},
	}
}

// username из аргумента или интерактивно
func (a *App) username(args []string) (string, error) {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		if username, err = a.cli.IO.ReadInput("Username: "); err != nil {
			return "", fmt.Errorf("failed to read username: %w", err)
		}
	}
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return "", err
	}
	return username, nil
}
