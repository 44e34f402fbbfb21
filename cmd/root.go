package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/bookspot/bookspot_backend/cmd/http"
	sweepcmd "github.com/bookspot/bookspot_backend/cmd/sweep"
	systemcmd "github.com/bookspot/bookspot_backend/cmd/system"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// NewRootCommand assembles the bookspot CLI. The --config flag is read by each
// subcommand through cmd.Root().
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookspot",
		Short: "Bookspot appointment booking backend.",
		Long: `Bookspot lets service providers publish timeslots and lets their linked
clients book, cancel and complete appointments against them.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "config.yaml", "config file path")

	root.AddCommand(
		systemcmd.NewSystemCommand(),
		httpcmd.NewHTTPCommand(),
		sweepcmd.NewSweepCommand(),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
