// Package cli implements shipctl, the operator command line for the ShipBox API.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultAddr = "http://localhost:8080"

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:           "shipctl",
		Short:         "Operate a ShipBox API",
		Long:          "shipctl quotes rates, tracks parcels, retries failed shipments and manages the default carrier of a running ShipBox API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if env := os.Getenv("SHIPBOX_ADDR"); env != "" {
		addr = env
	}
	if addr == "" {
		addr = defaultAddr
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", addr, "ShipBox API base URL (env SHIPBOX_ADDR)")

	client := func() *apiClient { return newAPIClient(addr) }
	cmd.AddCommand(newQuoteCmd(client))
	cmd.AddCommand(newTrackCmd(client))
	cmd.AddCommand(newRetryCmd(client))
	cmd.AddCommand(newDefaultProviderCmd(client))
	cmd.AddCommand(newDashboardCmd(client))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	return newRootCmd().Execute()
}
