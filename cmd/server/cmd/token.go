package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tes-agency/portal/internal/domain/users"
)

func newTokenCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a session token for an existing user",
		Long: `Mint a bearer session token for an existing user, for trying the API by
hand. SESSION_SECRET must match the running server's.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.Auth.SessionSecret == "" {
				return errors.New("SESSION_SECRET must be set; a generated secret would not match the server's")
			}
			return withApp(cmd.Context(), global, func(ctx context.Context, portal *app) error {
				user, err := portal.services.Users.Get(ctx, args[0])
				if errors.Is(err, users.ErrNotFound) {
					return fmt.Errorf("no user with id %s", args[0])
				}
				if err != nil {
					return err
				}
				token, err := portal.sessions.Generate(user.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, token)
				fmt.Fprintf(out, "\nTry it with:\n  curl -H 'Authorization: Bearer %s' http://localhost:%d/api/access-keys\n", token, cfg.Server.Port)
				return nil
			})
		},
	}
}
