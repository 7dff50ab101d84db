package shell

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	serverrun "github.com/rzbill/multiflow/internal/cmd/server"
	cfgpkg "github.com/rzbill/multiflow/internal/config"
	"github.com/rzbill/multiflow/internal/inspect"
	"github.com/rzbill/multiflow/internal/runtime"
)

const defaultStatusAddr = "127.0.0.1:9100"

// NewShellCommand returns the interactive shell command.
func NewShellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive device shell",
		Long:  "Start an in-process device registry and drive it interactively (type help for commands).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterp(cmd, cmd.InOrStdin(), true, false)
		},
	}
	addRuntimeFlags(cmd)
	return cmd
}

// NewExecCommand returns the one-shot script command.
func NewExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <script|->",
		Short: "Run a shell script against a fresh device registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			keepGoing, _ := cmd.Flags().GetBool("keep-going")
			return runInterp(cmd, in, false, keepGoing)
		},
	}
	addRuntimeFlags(cmd)
	cmd.Flags().Bool("keep-going", false, "Report failing commands and continue")
	return cmd
}

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", os.Getenv("MULTIFLOW_CONFIG"), "Config file (json or yaml); defaults to the first of the standard locations")
	cmd.Flags().Int("devices", 0, "Number of devices (overrides config)")
	cmd.Flags().Int64("max-bytes", 0, "Capacity per device in bytes (overrides config)")
	cmd.Flags().Duration("hold", 0, "Keep the flow lock this long after each high priority write")
	cmd.Flags().String("status-addr", "", "Serve health, device status and /metrics on this address (implies metrics.enabled)")
	cmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	cmd.Flags().String("log-format", "", "Log format: text|json")
	cmd.Flags().StringP("output", "o", "table", "Status output: table|json|yaml")
}

// configFromFlags resolves file, then environment, then flags.
func configFromFlags(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = cfgpkg.DefaultConfigPath()
	}
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)

	if v, _ := cmd.Flags().GetInt("devices"); v > 0 {
		cfg.Devices = v
	}
	if v, _ := cmd.Flags().GetInt64("max-bytes"); v > 0 {
		cfg.MaxBytesPerDevice = v
	}
	if v, _ := cmd.Flags().GetDuration("hold"); v > 0 {
		cfg.HoldAfterWrite = cfgpkg.Duration(v)
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v, _ := cmd.Flags().GetString("status-addr"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}
	return cfg, cfg.Validate()
}

func runInterp(cmd *cobra.Command, in io.Reader, prompt, keepGoing bool) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}
	outFmt, _ := cmd.Flags().GetString("output")
	format, err := inspect.ParseFormat(outFmt)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	opts := serverrun.Options{Config: cfg, LogOutput: cmd.ErrOrStderr()}
	if cfg.Metrics.Enabled {
		opts.StatusAddr = cfg.Metrics.Addr
		if opts.StatusAddr == "" {
			opts.StatusAddr = defaultStatusAddr
		}
	}
	return serverrun.Run(ctx, opts, func(ctx context.Context, rt *runtime.Runtime) error {
		ip := NewInterp(rt.Registry(), out)
		ip.SetFormat(format)
		defer ip.Close()
		if prompt {
			fmt.Fprintf(out, "multiflow: %d devices, %d bytes each (type help)\n", cfg.Devices, cfg.MaxBytesPerDevice)
		}
		err := ip.Run(ctx, in, prompt, keepGoing)
		if prompt {
			fmt.Fprintln(out)
		}
		return err
	})
}
