// Package testimpact decides which known test files cover a set of changed
// source files.
package testimpact

import (
	"path"
	"slices"
	"sort"
	"strings"
)

// DefaultMarkers are the stem suffixes that identify a test file, e.g.
// "A.test.src", "A.spec.src" or "a_test.go". The first marker is also the
// preferred one when inferring a test name from a source file.
var DefaultMarkers = []string{".test", ".spec", "_test"}

// Result is the outcome of one Refresh.
type Result struct {
	TriggeredBy  []string `json:"triggeredBy"`
	TestFiles    []string `json:"testFiles"`
	SkippedFiles []string `json:"skippedFiles"`
	TotalTests   int      `json:"totalTests"`
}

// Clone returns a copy of r that shares no slices with it.
func (r Result) Clone() Result {
	r.TriggeredBy = slices.Clone(r.TriggeredBy)
	r.TestFiles = slices.Clone(r.TestFiles)
	r.SkippedFiles = slices.Clone(r.SkippedFiles)
	return r
}

// Resolver maps source files to test files. It is not safe for concurrent use.
type Resolver struct {
	markers []string

	known    []string
	knownSet map[string]struct{}
	mapping  map[string][]string
}

// New creates a Resolver. With no markers, DefaultMarkers are used.
func New(markers ...string) *Resolver {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	return &Resolver{
		markers:  append([]string(nil), markers...),
		knownSet: make(map[string]struct{}),
		mapping:  make(map[string][]string),
	}
}

// AddTestFiles registers known test files, skipping duplicates.
func (r *Resolver) AddTestFiles(paths []string) {
	for _, p := range paths {
		if _, ok := r.knownSet[p]; ok {
			continue
		}
		r.knownSet[p] = struct{}{}
		r.known = append(r.known, p)
	}
}

// MapSourceToTests adds tests to the mapping for source. Calls are additive.
func (r *Resolver) MapSourceToTests(source string, tests []string) {
	r.mapping[source] = union(r.mapping[source], tests)
}

// Refresh computes the tests impacted by changed.
//
// A changed test file selects itself. A source with an explicit mapping
// selects the mapped tests. Otherwise the conventional test name for the
// source is selected, but only when it is a known test file.
func (r *Resolver) Refresh(changed []string) Result {
	var selected []string
	for _, file := range changed {
		switch {
		case r.IsTestFile(file):
			selected = union(selected, []string{file})
		case len(r.mapping[file]) > 0:
			selected = union(selected, r.mapping[file])
		default:
			for _, candidate := range r.inferred(file) {
				if _, ok := r.knownSet[candidate]; ok {
					selected = union(selected, []string{candidate})
				}
			}
		}
	}

	chosen := make(map[string]struct{}, len(selected))
	for _, f := range selected {
		chosen[f] = struct{}{}
	}
	skipped := make([]string, 0, len(r.known))
	for _, f := range r.known {
		if _, ok := chosen[f]; !ok {
			skipped = append(skipped, f)
		}
	}

	if selected == nil {
		selected = []string{}
	}
	return Result{
		TriggeredBy:  append([]string(nil), changed...),
		TestFiles:    selected,
		SkippedFiles: skipped,
		TotalTests:   len(selected),
	}
}

// IsTestFile reports whether file's stem ends with a test marker.
func (r *Resolver) IsTestFile(file string) bool {
	stem, _ := splitExt(file)
	for _, m := range r.markers {
		if strings.HasSuffix(stem, m) && len(stem) > len(m) {
			return true
		}
	}
	return false
}

// inferred returns the conventional test names for a source file, preferred first.
func (r *Resolver) inferred(file string) []string {
	stem, ext := splitExt(file)
	out := make([]string, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, stem+m+ext)
	}
	return out
}

// HasMappingFor reports whether source has an explicit mapping.
func (r *Resolver) HasMappingFor(source string) bool {
	return len(r.mapping[source]) > 0
}

// KnownTestFiles returns the registered test files in registration order.
func (r *Resolver) KnownTestFiles() []string {
	return append([]string(nil), r.known...)
}

// MappedSources returns the sources with explicit mappings, sorted.
func (r *Resolver) MappedSources() []string {
	out := make([]string, 0, len(r.mapping))
	for s := range r.mapping {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Reset forgets every known test file and mapping.
func (r *Resolver) Reset() {
	r.known = nil
	r.knownSet = make(map[string]struct{})
	r.mapping = make(map[string][]string)
}

func splitExt(file string) (stem, ext string) {
	ext = path.Ext(file)
	return strings.TrimSuffix(file, ext), ext
}

// union appends the elements of add missing from base, preserving order.
func union(base, add []string) []string {
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, s := range base {
		seen[s] = struct{}{}
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		base = append(base, s)
	}
	return base
}
