package http

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookspot/bookspot_backend/config"
	"github.com/bookspot/bookspot_backend/internal/api/http"
	"github.com/bookspot/bookspot_backend/pkg/logs"
)

func NewHTTPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Booking API server commands",
		Long: `Run the Bookspot booking API: timeslots, bookings, provider-client links
and the authenticated user endpoints.`,
	}

	cmd.AddCommand(NewStartCommand())

	return cmd
}

func NewStartCommand() *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the booking API server",
		Long: `Start the booking API server. With booking.sweep_in_process set, the
completion sweep also runs inside this process; otherwise run "bookspot sweep".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return err
			}

			// Set up structured logger before fx starts so all logs use it.
			slog.SetDefault(logs.New(cfg))

			http.Start(cfg, shutdownTimeout)
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for graceful shutdown")

	return cmd
}
