// Command forgewatch feeds change events into an incremental build and test
// impact orchestrator and reports what it rebuilt and which tests to run.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wilbur182/forgewatch/internal/config"
	"github.com/wilbur182/forgewatch/internal/report"
	"github.com/wilbur182/forgewatch/internal/version"
)

var (
	configPath string
	debugFlag  bool
	plainFlag  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "forgewatch: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forgewatch",
		Short:         "Incremental build and test impact for change events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "forgewatch.json", "path to config file")
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&plainFlag, "plain", false, "disable colored output")

	root.AddCommand(newRunCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if debugFlag {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newReporter styles output only when w is a terminal.
func newReporter(w io.Writer) *report.Reporter {
	opts := report.Options{Plain: true}
	if f, ok := w.(*os.File); ok && !plainFlag && term.IsTerminal(int(f.Fd())) {
		opts.Plain = false
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			opts.Width = width
		}
	}
	return report.New(w, opts)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "forgewatch version %s\n", info.Version)
			if debugFlag && info.GoVersion != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "go %s\n", info.GoVersion)
			}
		},
	}
}
