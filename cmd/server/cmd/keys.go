package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/config"
	"github.com/tes-agency/portal/internal/domain/accesskeys"
	"github.com/tes-agency/portal/internal/notify"
)

// cliActor performs key operations requested from the command line, which
// already implies operator access to the host.
var cliActor = auth.Actor{UserID: "cli", Role: auth.RoleDirectorsOffice}

func newKeysCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage access keys directly in storage",
		Long: `Manage access keys without going through the HTTP API.

Useful for issuing the first directors_office key by hand or revoking a
leaked one. The commands open the configured storage backend, so they only
make sense for postgres and sqlite.`,
	}

	var role, username string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a new access key",
		Args:  cobra.NoArgs,
		Example: `  server keys create --role directors_office --username "Director"
  server keys create --role public_relations --username "Alice"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(ctx context.Context, portal *app) error {
				key, err := portal.services.AccessKeys.Issue(ctx, cliActor, role, username)
				switch {
				case errors.Is(err, accesskeys.ErrInvalidRole):
					return fmt.Errorf("invalid role %q (want one of public_relations, public_relations_lead, directors_office)", role)
				case err != nil:
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Access key: %s\n", key.Key)
				fmt.Fprintf(out, "ID:         %s\n", key.ID)
				fmt.Fprintf(out, "Role:       %s\n", key.Role)
				fmt.Fprintf(out, "Username:   %s\n", key.Username)
				return nil
			})
		},
	}
	create.Flags().StringVar(&role, "role", string(auth.RolePublicRelations), "role granted by the key")
	create.Flags().StringVar(&username, "username", "", "name of the person the key is for")
	_ = create.MarkFlagRequired("username")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every access key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(ctx context.Context, portal *app) error {
				keys, err := portal.services.AccessKeys.ListAccessKeys(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tKEY\tROLE\tUSERNAME\tUSED\tCREATED")
				for _, key := range keys {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
						key.ID, key.Key, key.Role, key.Username, key.Used, key.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Delete an access key and the account registered with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(ctx context.Context, portal *app) error {
				err := portal.services.AccessKeys.Revoke(ctx, cliActor, args[0])
				if errors.Is(err, accesskeys.ErrNotFound) {
					return fmt.Errorf("no access key with id %s", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

// withApp opens storage for a one-shot command. Notifications are not sent
// and logs go to stderr.
func withApp(ctx context.Context, global *globalOptions, fn func(context.Context, *app) error) error {
	cfg, err := global.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if _, err := cfg.EnsureSessionSecret(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	logger := cliLogger(cfg)
	portal, err := openApp(ctx, cfg, logger, notify.Nop{})
	if err != nil {
		return err
	}
	defer portal.Close()
	return fn(ctx, portal)
}

func cliLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
