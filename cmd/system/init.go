package system

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bookspot/bookspot_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	var withMigrate bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the Bookspot and Casbin databases",
		Long: `Create the application database, the Casbin database and any names
listed under server.databases when they do not exist yet.

With --migrate the timeslot schema and default policies are applied afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("Initializing databases: %s\n", strings.Join(database.TargetDatabases(cfg), ", "))
			created, err := database.InitializeDatabases(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize databases: %w", err)
			}
			if len(created) == 0 {
				fmt.Println("All databases already exist.")
			} else {
				fmt.Printf("Created: %s\n", strings.Join(created, ", "))
			}

			if !withMigrate {
				return nil
			}
			return migrate(cfg, false)
		},
	}

	cmd.Flags().BoolVar(&withMigrate, "migrate", false, "Run migrations and seed policies after creating the databases")

	return cmd
}
