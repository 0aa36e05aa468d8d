package main

import (
	"sort"

	"github.com/wilbur182/forgewatch/internal/config"
	"github.com/wilbur182/forgewatch/internal/orchestrator"
)

// newOrchestrator creates an orchestrator for cfg with its project manifest
// registered.
func newOrchestrator(cfg *config.Config, opts orchestrator.Options) *orchestrator.Orchestrator {
	opts.Build.MaxArtifacts = cfg.Build.MaxArtifacts
	opts.Build.RetryFailed = cfg.Build.RetryFailed
	opts.TestMarkers = cfg.Tests.Markers

	o := orchestrator.New(cfg.WatchManagerConfig(), opts)
	registerProject(o, cfg.Project)
	return o
}

// registerProject registers manifest files in sorted order so the graph is
// built the same way on every run.
func registerProject(o *orchestrator.Orchestrator, p config.ProjectConfig) {
	files := make([]string, 0, len(p.Files))
	for f := range p.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		o.RegisterFile(f, p.Files[f])
	}

	o.RegisterTestFiles(p.Tests)

	sources := make([]string, 0, len(p.Mappings))
	for s := range p.Mappings {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		o.MapTests(s, p.Mappings[s])
	}
}

// failingSet returns a SimulatedErrors func failing exactly the given files.
func failingSet(files []string) func([]string) []string {
	if len(files) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		set[f] = struct{}{}
	}
	return func([]string) []string {
		out := make([]string, 0, len(set))
		for f := range set {
			out = append(out, f)
		}
		sort.Strings(out)
		return out
	}
}
