package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cloo-solutions/ragdesk/internal/domain"
	"github.com/cloo-solutions/ragdesk/internal/repository"
	"github.com/cloo-solutions/ragdesk/internal/service"
	"github.com/spf13/cobra"
)

// UserCmd returns the user command with subcommands
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list ragdesk users directly in the database",
	}

	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())

	return cmd
}

// withUserService runs fn against a user service on a short-lived pool.
func withUserService(ctx context.Context, fn func(svc *service.AuthService) error) error {
	cfg, flush, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer flush()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(newUserService(repository.NewUserRepository(pool), cfg.JWTSecret))
}

func newUserService(users service.UserRepositoryInterface, secret string) *service.AuthService {
	return service.NewAuthService(users, secret, 0, &service.DefaultUUIDGenerator{})
}

func userCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Example: `  ragdeskd user create --email admin@example.com --username admin --password 's3cret-pass' --superuser
  ragdeskd user create --email bob@example.com --username bob --password 'changeme1'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			superuser, _ := cmd.Flags().GetBool("superuser")

			return withUserService(cmd.Context(), func(svc *service.AuthService) error {
				return createUser(cmd.Context(), svc, cmd.OutOrStdout(), service.CreateUserInput{
					Email:       email,
					Username:    username,
					Password:    password,
					IsSuperuser: superuser,
				})
			})
		},
	}

	cmd.Flags().String("email", "", "Email address (required)")
	cmd.Flags().String("username", "", "Username (required)")
	cmd.Flags().String("password", "", "Password, at least 8 characters (required)")
	cmd.Flags().Bool("superuser", false, "Grant administrator rights")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func createUser(ctx context.Context, svc *service.AuthService, out io.Writer, in service.CreateUserInput) error {
	user, err := svc.CreateUser(ctx, in)
	if err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			return errors.New(domainErr.Message)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	role := "user"
	if user.IsSuperuser {
		role = "superuser"
	}
	fmt.Fprintf(out, "Created %s %s (%s)\n", role, user.Email, user.ID)
	return nil
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withUserService(cmd.Context(), func(svc *service.AuthService) error {
				users, err := svc.ListUsers(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}
				return printUsers(cmd.OutOrStdout(), users, asJSON)
			})
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}

type userRow struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

func printUsers(out io.Writer, users []*domain.User, asJSON bool) error {
	rows := make([]userRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, userRow{ID: u.ID, Email: u.Email, Username: u.Username, IsActive: u.IsActive, IsSuperuser: u.IsSuperuser})
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No users")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tUSERNAME\tACTIVE\tSUPERUSER")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", r.ID, r.Email, r.Username, r.IsActive, r.IsSuperuser)
	}
	return w.Flush()
}
