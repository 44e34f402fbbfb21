package system

import "github.com/spf13/cobra"

// NewSystemCommand groups the commands operators run outside the request
// path: provisioning, schema and policy setup, key generation and docs.
func NewSystemCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Provisioning and maintenance commands",
	}

	cmd.AddCommand(
		NewInitCommand(),
		NewMigrateCommand(),
		NewSeedPoliciesCommand(),
		NewGenKeyCommand(),
		NewGenDocsCommand(),
	)

	return cmd
}
