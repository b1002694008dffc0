package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type clientFunc func() *apiClient

func newQuoteCmd(client clientFunc) *cobra.Command {
	var (
		file     string
		provider string
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote shipping rates for a rate request file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			if !json.Valid(body) {
				return fmt.Errorf("%s is not valid JSON", file)
			}
			path := "/shipping/rates"
			if provider != "" {
				path += "?provider=" + url.QueryEscape(provider)
			}
			out, err := client().do(cmd.Context(), http.MethodPost, path, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON rate request")
	cmd.Flags().StringVar(&provider, "provider", "", "carrier (default: configured default provider)")
	return cmd
}

func newTrackCmd(client clientFunc) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "track <tracking-number>",
		Short: "Show the carrier's tracking for a number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("trackingNumber", args[0])
			if provider != "" {
				q.Set("provider", provider)
			}
			out, err := client().do(cmd.Context(), http.MethodGet, "/shipping/track?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "carrier (default: configured default provider)")
	return cmd
}

func newRetryCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <order-id>",
		Short: "Retry shipment creation for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/shipping/shipments/" + url.PathEscape(args[0]) + "/retry"
			out, err := client().do(cmd.Context(), http.MethodPost, path, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newDefaultProviderCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "default-provider",
		Short: "Show or change the default carrier",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the default carrier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := client().do(cmd.Context(), http.MethodGet, "/shipping/settings/default-provider", nil)
			if err != nil {
				return err
			}
			return printProvider(cmd, out)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider>",
		Short: "Change the default carrier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{"provider": strings.TrimSpace(args[0])})
			out, err := client().do(cmd.Context(), http.MethodPut, "/shipping/settings/default-provider", body)
			if err != nil {
				return err
			}
			return printProvider(cmd, out)
		},
	})
	return cmd
}

func printProvider(cmd *cobra.Command, raw []byte) error {
	var v struct {
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), v.Provider)
	return err
}

func newDashboardCmd(client clientFunc) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "List stored shipments with their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			out, err := client().do(cmd.Context(), http.MethodGet, "/shipping/dashboard?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			var res struct {
				Items []struct {
					OrderID         string `json:"orderId"`
					Provider        string `json:"provider"`
					TrackingNumber  string `json:"trackingNumber"`
					Status          string `json:"status"`
					ProgressPercent int    `json:"progressPercent"`
				} `json:"items"`
			}
			if err := json.Unmarshal(out, &res); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			w := cmd.OutOrStdout()
			for _, it := range res.Items {
				fmt.Fprintf(w, "%-24s %-9s %-20s %-17s %3d%%\n", it.OrderID, it.Provider, it.TrackingNumber, it.Status, it.ProgressPercent)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of shipments")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many shipments")
	return cmd
}
