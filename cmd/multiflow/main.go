package main

import (
	"os"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/multiflow/internal/cmd/client"
	"github.com/rzbill/multiflow/internal/cmd/shell"
	logpkg "github.com/rzbill/multiflow/pkg/log"
)

func main() {
	// MULTIFLOW_LOG_LEVEL applies to CLI output; shell and exec build their
	// own runtime logger from config.
	level, err := logpkg.ParseLevel(os.Getenv("MULTIFLOW_LOG_LEVEL"))
	if err != nil {
		level = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormat(logpkg.FormatText),
		logpkg.WithOutput(os.Stderr),
	)
	defer func() { _ = logger.Sync() }()

	rootCmd := &cobra.Command{
		Use:           "multiflow",
		Short:         "Multi-flow character stream devices",
		Long:          "multiflow runs an in-process set of two-flow stream devices and drives them from a shell or a script.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(shell.NewShellCommand())
	rootCmd.AddCommand(shell.NewExecCommand())
	rootCmd.AddCommand(clientcmd.NewStatusCommand(clientcmd.BaseURLFromEnv))
	rootCmd.AddCommand(clientcmd.NewHealthCommand(clientcmd.BaseURLFromEnv))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", logpkg.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
