package system

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/pkg/authorize"
	"github.com/bookspot/bookspot_backend/pkg/database"
)

func NewMigrateCommand() *cobra.Command {
	var skipPolicies bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed RBAC policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return migrate(cfg, skipPolicies)
		},
	}

	cmd.Flags().BoolVar(&skipPolicies, "skip-policies", false, "Only migrate the application schema")

	return cmd
}

func NewSeedPoliciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-policies",
		Short: "Write the default RBAC policies to the Casbin DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return seedPolicies(cmd.Context(), cfg)
		},
	}
}

// loadConfig reads the file named by the root --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}

// migrate brings the timeslot schema up to date, rewriting legacy rows, and
// then seeds the Casbin policies unless skipPolicies is set. The whole run
// is bounded by server.timeout_seconds.
func migrate(cfg *config.Config, skipPolicies bool) error {
	fmt.Println("Running migrations for the application DB.")
	db, err := database.NewGorm(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close(db)

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !skipPolicies {
		fmt.Println("Running migrations for the Casbin DB.")
		if err := seedPolicies(ctx, cfg); err != nil {
			return err
		}
	}

	fmt.Println("Migrations executed successfully.")
	return nil
}

// seedPolicies creates the casbin_rule table through the adapter and writes
// the default policy set.
func seedPolicies(ctx context.Context, cfg *config.Config) error {
	acfg := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(ctx, acfg.CasbinModelPath, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return fmt.Errorf("failed to create enforcer: %w", err)
	}
	defer cleanup(context.Background())

	auth, err := authorize.NewAuthorization(enforcer)
	if err != nil {
		return fmt.Errorf("failed to create authorization: %w", err)
	}

	slog.Info("Seeding Casbin policies...")
	if err := authorize.SeedDefaultPolicies(ctx, auth); err != nil {
		return fmt.Errorf("failed to seed policies: %w", err)
	}
	return nil
}
