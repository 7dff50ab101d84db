// Package inspect filters and renders device status rows.
package inspect

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/multiflow/internal/device"
)

// Filter is a compiled CEL predicate over one device's stats. The zero value
// and the empty expression match everything.
//
// Variables: minor, enabled, high_unread, low_unread, unread, high_waiting,
// low_waiting, waiting, available, max, pending, used_pct.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles expr. The expression must evaluate to a bool.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("minor", cel.IntType),
		cel.Variable("enabled", cel.BoolType),
		cel.Variable("high_unread", cel.IntType),
		cel.Variable("low_unread", cel.IntType),
		cel.Variable("unread", cel.IntType),
		cel.Variable("high_waiting", cel.IntType),
		cel.Variable("low_waiting", cel.IntType),
		cel.Variable("waiting", cel.IntType),
		cel.Variable("available", cel.IntType),
		cel.Variable("max", cel.IntType),
		cel.Variable("pending", cel.IntType),
		cel.Variable("used_pct", cel.DoubleType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, fmt.Errorf("compile filter: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return Filter{}, fmt.Errorf("filter must return bool, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the filter against st. Evaluation errors do not match.
func (f Filter) Match(st device.DeviceStats) bool {
	if !f.enabled {
		return true
	}
	used := 0.0
	if st.Max > 0 {
		used = float64(st.Max-st.Available) * 100 / float64(st.Max)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"minor":        int64(st.Minor),
		"enabled":      st.Enabled,
		"high_unread":  st.HighUnread,
		"low_unread":   st.LowUnread,
		"unread":       st.HighUnread + st.LowUnread,
		"high_waiting": st.HighWaiting,
		"low_waiting":  st.LowWaiting,
		"waiting":      st.HighWaiting + st.LowWaiting,
		"available":    st.Available,
		"max":          st.Max,
		"pending":      st.PendingDeferred,
		"used_pct":     used,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// Apply returns the rows of stats that match.
func (f Filter) Apply(stats []device.DeviceStats) []device.DeviceStats {
	if !f.enabled {
		return stats
	}
	out := make([]device.DeviceStats, 0, len(stats))
	for _, st := range stats {
		if f.Match(st) {
			out = append(out, st)
		}
	}
	return out
}
