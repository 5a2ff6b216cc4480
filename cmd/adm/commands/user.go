package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/spf13/cobra"
)

// readPassword prompts on the terminal without echoing input
var readPassword = func(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UserCommands returns the user management commands
func UserCommands(provide Provider, logger *observability.Logger) *cobra.Command {
	userCmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "User management commands",
		Long: `User management commands for NoiseWatch.

Available commands:
  list           - List accounts, newest first
  verify         - Mark an account's email as verified
  reset-password - Set a new password for an account
  delete         - Delete an account (its reports are kept anonymously)`,
	}

	userCmd.AddCommand(listUsersCmd(provide, logger))
	userCmd.AddCommand(verifyUserCmd(provide, logger))
	userCmd.AddCommand(resetPasswordCmd(provide, logger))
	userCmd.AddCommand(deleteUserCmd(provide, logger))

	return userCmd
}

func listUsersCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			users, err := env.Users.ListUsers(ctx, nil, limit)
			if err != nil {
				logger.Error(ctx, "Failed to list users", err, nil)
				return contextutils.WrapError(err, "failed to list users")
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found")
				return nil
			}

			fmt.Fprintf(out, "%-36s %-20s %-30s %-8s %-8s %-10s\n", "ID", "Username", "Email", "Type", "Verified", "Created")
			fmt.Fprintln(out, strings.Repeat("-", 117))
			for _, u := range users {
				fmt.Fprintf(out, "%-36s %-20s %-30s %-8s %-8s %-10s\n",
					u.ID,
					u.Username,
					u.Email,
					u.UserType,
					yesNo(u.IsVerified),
					u.CreatedAt.Format("2006-01-02"),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of users to list")
	return cmd
}

func verifyUserCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <user-id>",
		Short: "Mark a user's email as verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			if err := env.Users.MarkVerified(ctx, args[0]); err != nil {
				logger.Error(ctx, "Failed to verify user", err, map[string]interface{}{"user_id": args[0]})
				return contextutils.WrapErrorf(err, "failed to verify user %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s marked as verified\n", args[0])
			return nil
		},
	}
}

func resetPasswordCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "reset-password <user-id>",
		Short: "Reset the password for a user",
		Long:  `Reset the password for a user. Without --password you are prompted twice on the terminal.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			user, err := env.Users.GetUserByID(ctx, args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to get user %s", args[0])
			}

			if password == "" {
				password, err = readPassword(cmd, "Enter new password: ")
				if err != nil {
					return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password: %v", err)
				}
				confirm, err := readPassword(cmd, "Confirm new password: ")
				if err != nil {
					return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to read password confirmation: %v", err)
				}
				if password != confirm {
					return contextutils.ErrorWithContextf("passwords do not match")
				}
			}
			if password == "" {
				return contextutils.ErrorWithContextf("password cannot be empty")
			}

			if err := env.Users.ResetPassword(ctx, user.ID, password); err != nil {
				logger.Error(ctx, "Failed to reset password", err, map[string]interface{}{"user_id": user.ID})
				return contextutils.WrapErrorf(err, "failed to reset password for %s", user.Username)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset for %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	return cmd
}

func deleteUserCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user",
		Long:  `Delete a user account. Reports the user submitted stay in place with no owner.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			user, err := env.Users.GetUserByID(ctx, args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to get user %s", args[0])
			}

			if !yes && !confirm(cmd, fmt.Sprintf("Delete %s <%s>? [y/N]: ", user.Username, user.Email)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
				return nil
			}

			if err := env.Users.DeleteUser(ctx, user.ID); err != nil {
				logger.Error(ctx, "Failed to delete user", err, map[string]interface{}{"user_id": user.ID})
				return contextutils.WrapErrorf(err, "failed to delete user %s", user.ID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", user.Username)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// confirm reads a y/yes answer from the command's input
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
