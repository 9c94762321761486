package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// LoginCmd exchanges email and password for a bearer token and stores it.
func LoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store an access token",
		Long:  "Exchange email and password for an access token stored in ~/.config/ragdesk/config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email == "" {
				if email, err = prompt(cmd.OutOrStdout(), in, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), in, "Password: "); err != nil {
					return err
				}
			}
			return runLogin(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")

	return cmd
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func runLogin(cmd *cobra.Command, email, password string) error {
	api, err := NewAPIClientWithCmd(cmd, true)
	if err != nil {
		return err
	}

	resp, err := api.PostForm(cmd.Context(), "/auth/login", url.Values{
		"username": {email},
		"password": {password},
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var token tokenResponse
	if err := resp.Decode(&token); err != nil {
		return err
	}

	if err := SaveGlobalConfig(&GlobalConfig{Token: token.AccessToken, APIURL: api.baseURL}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token expires %s)\n", email, token.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// LogoutCmd removes stored credentials.
func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

// WhoamiCmd shows the account behind the current token.
func WhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd, false)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/users/me")
			if err != nil {
				return err
			}

			var user userResponse
			if err := resp.Decode(&user); err != nil {
				return err
			}

			if outputJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), user)
			}

			role := "user"
			if user.IsSuperuser {
				role = "superuser"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> %s\n", user.Username, user.Email, role)
			return nil
		},
	}
}

func outputJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("output")
	return v
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
