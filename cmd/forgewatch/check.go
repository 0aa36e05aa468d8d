package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wilbur182/forgewatch/internal/config"
	"github.com/wilbur182/forgewatch/internal/orchestrator"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and run a full build of the project manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return check(cfg, cmd.OutOrStdout())
		},
	}
}

func check(cfg *config.Config, w io.Writer) error {
	for _, warn := range manifestWarnings(cfg) {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}

	o := newOrchestrator(cfg, orchestrator.Options{Logger: newLogger()})
	res := o.RecompileAll()

	rep := newReporter(w)
	rep.State(o.State())
	if !res.Success {
		return errBuildFailed
	}
	return nil
}

// manifestWarnings reports manifest entries that refer to unknown files.
func manifestWarnings(cfg *config.Config) []string {
	known := make(map[string]bool, len(cfg.Project.Tests))
	for _, t := range cfg.Project.Tests {
		known[t] = true
	}

	var out []string
	for file, imports := range cfg.Project.Files {
		for _, imp := range imports {
			if _, ok := cfg.Project.Files[imp]; !ok {
				out = append(out, fmt.Sprintf("%s imports unregistered file %s", file, imp))
			}
		}
	}
	for src, tests := range cfg.Project.Mappings {
		for _, t := range tests {
			if !known[t] {
				out = append(out, fmt.Sprintf("%s maps to unknown test %s", src, t))
			}
		}
	}
	sort.Strings(out)
	return out
}
