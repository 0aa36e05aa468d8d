// Package build tracks file dependencies and decides which artifacts must be
// rebuilt after a change.
//
// The compiler itself is an external collaborator. Compile records a
// deterministic placeholder artifact for every dirty file so the rest of the
// system can reason about what was rebuilt.
package build

import (
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/wilbur182/forgewatch/internal/cache"
)

// DefaultMaxArtifacts bounds the artifact cache when Options leaves it unset.
const DefaultMaxArtifacts = 10000

// Artifact is the cached output of compiling one file.
type Artifact struct {
	File    string
	Output  string
	Digest  uint64
	BuiltAt time.Time
}

// Result describes one compile cycle.
//
// Success is true only when Errors is empty: a single failing file marks the
// whole cycle unsuccessful even though every other changed file was rebuilt.
// Callers needing per-file status compare RebuiltFiles with ChangedFiles.
type Result struct {
	ChangedFiles []string      `json:"changedFiles"`
	RebuiltFiles []string      `json:"rebuiltFiles"`
	Duration     time.Duration `json:"-"`
	Errors       []string      `json:"errors"`
	Success      bool          `json:"success"`
}

// DurationMs returns the cycle duration in milliseconds.
func (r Result) DurationMs() int64 { return r.Duration.Milliseconds() }

// Clone returns a copy of r that shares no slices with it.
func (r Result) Clone() Result {
	r.ChangedFiles = slices.Clone(r.ChangedFiles)
	r.RebuiltFiles = slices.Clone(r.RebuiltFiles)
	r.Errors = slices.Clone(r.Errors)
	return r
}

// MarshalJSON reports the duration as integer milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		DurationMs int64 `json:"durationMs"`
	}{plain(r), r.DurationMs()})
}

// Options configures an Engine.
type Options struct {
	// MaxArtifacts bounds the artifact cache. Zero uses DefaultMaxArtifacts;
	// a negative value disables eviction.
	MaxArtifacts int
	// RetryFailed re-marks files that errored as dirty after Compile.
	// By default every changed file leaves the dirty set, failed or not.
	RetryFailed bool
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Engine owns the dependency graph, the dirty set and the artifact cache.
// It is not safe for concurrent use.
type Engine struct {
	graph     *Graph
	dirty     map[string]struct{}
	artifacts *cache.Cache[Artifact]
	failed    []string

	retryFailed bool
	logger      *slog.Logger
	clock       func() time.Time
}

// NewEngine creates an Engine with an empty graph.
func NewEngine(opts Options) *Engine {
	maxArtifacts := opts.MaxArtifacts
	if maxArtifacts == 0 {
		maxArtifacts = DefaultMaxArtifacts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		graph:       NewGraph(),
		dirty:       make(map[string]struct{}),
		artifacts:   cache.New[Artifact](maxArtifacts),
		retryFailed: opts.RetryFailed,
		logger:      logger,
		clock:       clock,
	}
}

// Register inserts or overwrites the node for file.
func (e *Engine) Register(file string, imports []string) {
	e.graph.Register(file, imports)
}

// MarkDirty unions file and all of its transitive dependents into the dirty set.
func (e *Engine) MarkDirty(file string) {
	for _, f := range e.graph.Closure(file) {
		e.dirty[f] = struct{}{}
	}
}

// Compile rebuilds every dirty file except those listed in simulatedErrors,
// then clears the dirty set.
func (e *Engine) Compile(simulatedErrors ...string) Result {
	start := e.clock()

	failing := make(map[string]struct{}, len(simulatedErrors))
	for _, f := range simulatedErrors {
		failing[f] = struct{}{}
	}

	changed := sortedKeys(e.dirty)
	rebuilt := make([]string, 0, len(changed))
	var errs []string
	for _, f := range changed {
		if _, bad := failing[f]; bad {
			errs = append(errs, f)
			continue
		}
		e.store(f)
		rebuilt = append(rebuilt, f)
	}

	e.dirty = make(map[string]struct{})
	e.failed = errs
	if e.retryFailed {
		for _, f := range errs {
			e.dirty[f] = struct{}{}
		}
	}

	res := Result{
		ChangedFiles: changed,
		RebuiltFiles: rebuilt,
		Duration:     e.clock().Sub(start),
		Errors:       errs,
		Success:      len(errs) == 0,
	}
	if res.Success {
		e.logger.Debug("build: compiled", "changed", len(changed), "rebuilt", len(rebuilt))
	} else {
		e.logger.Warn("build: compile failed", "changed", len(changed), "errors", errs)
	}
	return res
}

// InvalidateAll drops every artifact and marks every registered file dirty.
func (e *Engine) InvalidateAll() {
	e.artifacts.Clear()
	for _, f := range e.graph.Files() {
		e.dirty[f] = struct{}{}
	}
}

// IsCompiled reports whether file has a cached artifact.
func (e *Engine) IsCompiled(file string) bool {
	return e.artifacts.Has(file)
}

// CachedOutput returns the cached placeholder output for file.
func (e *Engine) CachedOutput(file string) (string, bool) {
	a, ok := e.artifacts.Get(file)
	if !ok {
		return "", false
	}
	return a.Output, true
}

// Artifact returns the cached artifact for file.
func (e *Engine) Artifact(file string) (Artifact, bool) {
	return e.artifacts.Get(file)
}

// NodeFor returns the dependency node for file, if registered.
func (e *Engine) NodeFor(file string) (Node, bool) {
	return e.graph.Node(file)
}

// FileCount returns the number of registered files.
func (e *Engine) FileCount() int { return e.graph.Len() }

// DirtyCount returns the size of the dirty set.
func (e *Engine) DirtyCount() int { return len(e.dirty) }

// Dirty returns the dirty set, sorted.
func (e *Engine) Dirty() []string { return sortedKeys(e.dirty) }

// Failed returns the files that errored in the most recent Compile.
func (e *Engine) Failed() []string {
	return append([]string(nil), e.failed...)
}

// store caches the output for file. An artifact whose output digest is
// unchanged is kept as is, so BuiltAt records when the output last changed.
func (e *Engine) store(file string) {
	out := placeholderOutput(file)
	digest := xxhash.Sum64String(out)
	if e.artifacts.Fresh(file, digest) {
		e.logger.Debug("build: output unchanged", "file", file)
		return
	}
	e.artifacts.Set(file, Artifact{
		File:    file,
		Output:  out,
		Digest:  digest,
		BuiltAt: e.clock(),
	}, digest)
}

func placeholderOutput(file string) string {
	return "// compiled: " + file
}
