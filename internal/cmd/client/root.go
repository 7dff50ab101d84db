package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/rzbill/multiflow/internal/device"
	"github.com/rzbill/multiflow/internal/inspect"
)

// NewRoot constructs a root command carrying the client commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "multiflow",
		Short:        "multiflow client commands",
		SilenceUsage: true,
	}
	root.AddCommand(NewStatusCommand(baseURL))
	root.AddCommand(NewHealthCommand(baseURL))
	return root
}

// NewStatusCommand returns `status`, which prints device counters from a
// running status endpoint.
func NewStatusCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show device counters from a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			minor, _ := cmd.Flags().GetInt("minor")
			output, _ := cmd.Flags().GetString("output")
			format, err := inspect.ParseFormat(output)
			if err != nil {
				return err
			}
			rows, err := fetchDevices(ctxOf(cmd), baseURL(), filter, minor)
			if err != nil {
				return err
			}
			return inspect.Render(cmd.OutOrStdout(), rows, format)
		},
	}
	cmd.Flags().String("filter", "", "CEL filter over device counters, e.g. 'unread > 0'")
	cmd.Flags().Int("minor", -1, "Show a single device")
	cmd.Flags().StringP("output", "o", "table", "Output: table|json|yaml")
	return cmd
}

// NewHealthCommand returns `health`, which exits non-zero unless the
// instance reports ok.
func NewHealthCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out struct {
				Status string `json:"status"`
			}
			if err := getJSON(ctxOf(cmd), baseURL()+"/v1/healthz", &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Status)
			return nil
		},
	}
}

func fetchDevices(ctx context.Context, base, filter string, minor int) ([]device.DeviceStats, error) {
	if minor >= 0 {
		var st device.DeviceStats
		if err := getJSON(ctx, fmt.Sprintf("%s/v1/devices/%d", base, minor), &st); err != nil {
			return nil, err
		}
		return []device.DeviceStats{st}, nil
	}
	u := base + "/v1/devices"
	if filter != "" {
		u += "?filter=" + url.QueryEscape(filter)
	}
	var data struct {
		Devices []device.DeviceStats `json:"devices"`
	}
	if err := getJSON(ctx, u, &data); err != nil {
		return nil, err
	}
	return data.Devices, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
