package main

import (
	"github.com/spf13/cobra"

	"github.com/creatorhub/creatorhub/internal/config"
	"github.com/creatorhub/creatorhub/internal/httpapi"
)

// NewRootCmd creates the root command for the Creatorhub CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil, nil)
}

func newRootCmdWithDeps(serveDeps *ServeDeps, migrateDeps *MigrateDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creatorhub",
		Short: "Creatorhub - creator accounts and sessions",
		Long: `Creatorhub serves a JSON API for creator accounts: sign-up, password
sign-in, bearer sessions, profile updates and profile picture uploads
to S3-compatible storage, backed by PostgreSQL.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmdWithDeps(serveDeps))
	cmd.AddCommand(newMigrateCmdWithDeps(migrateDeps))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and API version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("creatorhub %s\n", formatVersion(version, commit, date))
			cmd.Printf("api %s\n", httpapi.APIVersion)
		},
	}
}

// loadConfig reads configuration from the command's parsed flags.
func loadConfig(cmd *cobra.Command, opts config.Options) (*config.Config, error) {
	return config.Load(cmd.Flags(), opts)
}
