package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/mealbook/internal/auth"
	"github.com/example/mealbook/internal/domain/user"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		username, password, email, role string
		chatID                          int64
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a local user (username/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				nu := auth.NewUser{
					Username: username,
					Password: password,
					Email:    email,
					Role:     user.Role(role),
				}
				if cmd.Flags().Changed("telegram-chat-id") {
					nu.TelegramChatID = &chatID
				}
				store := auth.NewStore(a.users, a.cfg.CookieHashKey, a.cfg.CookieBlockKey, a.clock)
				u, err := store.CreateUser(ctx, nu)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %q id=%s role=%s\n", u.Username, u.ID, u.Role)
				return nil
			})
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password")
	c.Flags().StringVar(&email, "email", "", "email address for confirmations and reminders")
	c.Flags().StringVar(&role, "role", string(user.RoleUser), "USER or ADMIN")
	c.Flags().Int64Var(&chatID, "telegram-chat-id", 0, "telegram chat id for push messages")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				us, err := a.users.FindAll(ctx)
				if err != nil {
					return err
				}
				for _, u := range us {
					fmt.Fprintf(cmd.OutOrStdout(), "id=%s username=%q role=%s email=%q telegram=%t\n",
						u.ID, u.Username, u.Role, u.Email, u.TelegramChatID != nil)
				}
				return nil
			})
		},
	}
}
