package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/multiflow/internal/device"
)

// Format selects how Render prints rows.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml; empty means table.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Render writes rows to w.
func Render(w io.Writer, rows []device.DeviceStats, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable, "":
		return renderTable(w, rows)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderTable(w io.Writer, rows []device.DeviceStats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MINOR\tENABLED\tHIGH_UNREAD\tLOW_UNREAD\tHIGH_WAITING\tLOW_WAITING\tAVAILABLE\tPENDING")
	for _, st := range rows {
		enabled := "no"
		if st.Enabled {
			enabled = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d/%d\t%d\n",
			st.Minor, enabled, st.HighUnread, st.LowUnread,
			st.HighWaiting, st.LowWaiting, st.Available, st.Max, st.PendingDeferred)
	}
	return tw.Flush()
}
