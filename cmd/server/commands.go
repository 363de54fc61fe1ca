package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/config"
	"github.com/phrazzld/keeper-api/internal/platform/logger"
	"github.com/phrazzld/keeper-api/internal/platform/sqlstore"
	"github.com/phrazzld/keeper-api/internal/service/auth"
	"github.com/spf13/cobra"
)

// runtime carries what every subcommand needs once the root command has
// loaded configuration.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand(version string) *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "keeper",
		Short: "Transfer task scheduler that keeps bank accounts active",
		Long: `keeper generates schedules of small transfers between a user's accounts
and serves them over an authenticated JSON API.

Configuration is read from config.yaml in the working directory and from
KEEPER_* environment variables, e.g. KEEPER_DATABASE_URL.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			rt.cfg = cfg
			rt.logger = log
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(rt),
		newMigrateCommand(rt),
		newTokenCommand(rt),
	)
	return root
}

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(cmd.Context(), rt.cfg, rt.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return app.startHTTPServer(cmd.Context(), app.setupRouter())
		},
	}
}

func newMigrateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(sqlstore.MigrationCommands, "|") + ">",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: sqlstore.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.Database.Driver == config.DriverMemory {
				return fmt.Errorf("migrations need a SQL database, driver is %q", config.DriverMemory)
			}

			db, dialect, err := openDatabase(cmd.Context(), rt.cfg.Database)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					rt.logger.Error("failed to close database", slog.String("error", err.Error()))
				}
			}()

			if err := sqlstore.Migrate(cmd.Context(), db, dialect, args[0], rt.logger); err != nil {
				return err
			}

			version, err := sqlstore.CurrentVersion(cmd.Context(), db, dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
}

// newTokenCommand mints an access token for a user id. Users are provisioned
// outside this service, so there is no login endpoint.
func newTokenCommand(rt *runtime) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil || userID == uuid.Nil {
				return fmt.Errorf("invalid --user %q: must be a non-nil UUID", userFlag)
			}

			jwtService, err := auth.NewJWTService(rt.cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to initialize JWT service: %w", err)
			}
			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user id (UUID) the token is issued for")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
