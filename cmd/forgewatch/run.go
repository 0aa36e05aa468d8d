package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilbur182/forgewatch/internal/build"
	"github.com/wilbur182/forgewatch/internal/orchestrator"
	"github.com/wilbur182/forgewatch/internal/testimpact"
	"github.com/wilbur182/forgewatch/internal/watch"
)

// errBuildFailed is returned by run with --fail-on-error when the last build failed.
var errBuildFailed = errors.New("last build failed")

type runOptions struct {
	eventsPath  string
	jsonOutput  bool
	failOnError bool
	simulate    []string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process JSON-lines change events until input ends",
		Long: `Reads change events, one JSON object per line, from stdin or --events:

  {"path":"src/A.src","kind":"modified","timestamp":"2026-01-02T03:04:05Z"}

Each event is matched against the configured rules, debounced, and routed to
the incremental build and/or test impact resolution. Pending events are
flushed when input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.eventsPath, "events", "e", "-", "events file (- for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the final state as JSON")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "exit non-zero if the last build failed")
	cmd.Flags().StringSliceVar(&opts.simulate, "simulate-errors", nil, "files whose compilation should fail")
	return cmd
}

func runWatch(ctx context.Context, opts runOptions, stdin io.Reader, stdout io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	in := stdin
	if opts.eventsPath != "" && opts.eventsPath != "-" {
		f, err := os.Open(opts.eventsPath)
		if err != nil {
			return fmt.Errorf("open events: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	orchOpts := orchestrator.Options{
		Logger:          logger,
		SimulatedErrors: failingSet(opts.simulate),
	}
	if !opts.jsonOutput {
		rep := newReporter(stdout)
		orchOpts.OnBuild = func(res build.Result) { rep.Build(res) }
		orchOpts.OnTestImpact = func(res testimpact.Result) { rep.TestImpact(res) }
	}
	o := newOrchestrator(cfg, orchOpts)

	logger.Info("forgewatch: starting",
		"root", cfg.Watch.RootDir,
		"rules", len(cfg.Watch.Rules),
		"files", len(cfg.Project.Files),
		"tests", len(cfg.Project.Tests))

	// The reader is not joined on cancel: a blocked read of stdin cannot be
	// interrupted.
	events := make(chan watch.Event)
	readErr := make(chan error, 1)
	go func() { readErr <- readEvents(ctx, in, events, time.Now) }()

	if err := o.Run(ctx, events); err != nil {
		return err
	}
	select {
	case err := <-readErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	st := o.State()
	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
	}
	if opts.failOnError && st.LastBuild != nil && !st.LastBuild.Success {
		return errBuildFailed
	}
	return nil
}
