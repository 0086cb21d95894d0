package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/girderhq/api/internal/config"
	"github.com/girderhq/api/internal/infra/postgres"
	"github.com/girderhq/api/pkg/logger"
)

var version string

var rootCmd = &cobra.Command{
	Use:   "girder-admin",
	Short: "Girder platform administration CLI",
	Long: `girder-admin manages the parts of a Girder deployment the API
deliberately does not expose: seeding the permission catalog and role
definitions, and bootstrapping the first tenant and admin user.

It connects straight to the database using the same environment
variables as the server (DB_HOST, DB_PORT, DB_USER, ...).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the CLI version from build flags.
func SetVersion(v string) {
	version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(bootstrapCmd)
}

// openDB loads configuration and connects to the database.
func openDB() (*postgres.DB, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: "text"})

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, log, nil
}
