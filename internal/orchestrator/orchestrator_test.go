package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilbur182/forgewatch/internal/build"
	"github.com/wilbur182/forgewatch/internal/testimpact"
	"github.com/wilbur182/forgewatch/internal/watch"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOrchestrator(opts Options, rules ...watch.Rule) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return New(watch.Config{Rules: rules, RootDir: "/repo", Ignored: []string{"node_modules/"}}, opts)
}

func changed(path string, at time.Time) watch.Event {
	return watch.Event{Path: path, Kind: watch.KindModified, Timestamp: at}
}

func TestEndToEnd_BuildAndTestImpact(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "src/**/*.src", Mode: watch.ModeBoth, Debounce: 0})
	o.Start()
	o.RegisterFile("src/A.src", nil)
	o.RegisterTestFiles([]string{"src/A.test.src"})
	o.MapTests("src/A.src", []string{"src/A.test.src"})

	T := time.Now()
	o.HandleEvent(changed("src/A.src", T), T.Add(1000*time.Millisecond))

	st := o.State()
	require.NotNil(t, st.LastBuild)
	require.NotNil(t, st.LastTestImpact)
	assert.Contains(t, st.LastBuild.RebuiltFiles, "src/A.src")
	assert.Contains(t, st.LastTestImpact.TestFiles, "src/A.test.src")
	assert.Equal(t, StatusWatching, st.Status)
	assert.Equal(t, 1, st.WatchedFileCount)
	assert.Equal(t, 0, st.PendingCount)
}

func TestHandleEvent_RebuildsDependents(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**/*.src", Mode: watch.ModeBuild})
	o.RegisterFile("lib.src", nil)
	o.RegisterFile("mid.src", []string{"lib.src"})
	o.RegisterFile("app.src", []string{"mid.src"})
	o.RegisterFile("other.src", nil)
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("lib.src", now), now)

	st := o.State()
	require.NotNil(t, st.LastBuild)
	assert.Equal(t, []string{"app.src", "lib.src", "mid.src"}, st.LastBuild.RebuiltFiles)
	assert.Nil(t, st.LastTestImpact, "build-only rule must not run test impact")
}

func TestHandleEvent_RemovedRoutedLikeModified(t *testing.T) {
	run := func(kind watch.Kind) State {
		o := newOrchestrator(Options{}, watch.Rule{Glob: "src/**", Mode: watch.ModeBoth})
		o.RegisterFile("src/lib.src", nil)
		o.RegisterFile("src/app.src", []string{"src/lib.src"})
		o.RegisterTestFiles([]string{"src/lib.test.src"})
		o.Start()

		now := time.Now()
		o.HandleEvent(watch.Event{Path: "src/lib.src", Kind: kind, Timestamp: now}, now)
		return o.State()
	}

	removed := run(watch.KindRemoved)
	modified := run(watch.KindModified)

	require.NotNil(t, removed.LastBuild)
	require.NotNil(t, removed.LastTestImpact)
	assert.Equal(t, []string{"src/app.src", "src/lib.src"}, removed.LastBuild.RebuiltFiles)
	assert.Equal(t, modified.LastBuild.RebuiltFiles, removed.LastBuild.RebuiltFiles)
	assert.Equal(t, modified.LastTestImpact.TestFiles, removed.LastTestImpact.TestFiles)
	assert.Equal(t, 2, removed.WatchedFileCount, "a removed file stays registered")
	assert.Equal(t, StatusWatching, removed.Status)
}

func TestHandleEvent_TestOnlyRule(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "src/**", Mode: watch.ModeTest})
	o.RegisterFile("src/a.src", nil)
	o.RegisterTestFiles([]string{"src/a.test.src", "src/b.test.src"})
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("src/a.src", now), now)

	st := o.State()
	assert.Nil(t, st.LastBuild)
	require.NotNil(t, st.LastTestImpact)
	assert.Equal(t, []string{"src/a.test.src"}, st.LastTestImpact.TestFiles)
	assert.Equal(t, []string{"src/b.test.src"}, st.LastTestImpact.SkippedFiles)
}

func TestHandleEvent_IgnoredWhenIdle(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBoth})
	o.RegisterFile("a.src", nil)

	now := time.Now()
	o.HandleEvent(changed("a.src", now), now)

	st := o.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Nil(t, st.LastBuild)
	assert.Nil(t, st.LastTestImpact)
}

func TestHandleEvent_PendingDebounceNotFlushed(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBuild, Debounce: time.Second})
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("a.src", now), now)

	st := o.State()
	assert.Nil(t, st.LastBuild)
	assert.Equal(t, 1, st.PendingCount)

	o.FlushDue(now.Add(time.Second))
	st = o.State()
	require.NotNil(t, st.LastBuild)
	assert.Equal(t, 0, st.PendingCount)
}

func TestHandleEvent_UnmatchedAndIgnoredPaths(t *testing.T) {
	var builds int
	o := newOrchestrator(Options{OnBuild: func(build.Result) { builds++ }},
		watch.Rule{Glob: "src/*.src", Mode: watch.ModeBuild})
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("docs/a.md", now), now)
	o.HandleEvent(changed("src/node_modules/x.src", now), now)

	assert.Zero(t, builds)
	assert.Nil(t, o.State().LastBuild)
}

func TestBuildFailure_EntersAndLeavesErrorState(t *testing.T) {
	failing := map[string]bool{"bad.src": true}
	o := newOrchestrator(Options{
		SimulatedErrors: func(paths []string) []string {
			var out []string
			for _, p := range paths {
				if failing[p] {
					out = append(out, p)
				}
			}
			return out
		},
	}, watch.Rule{Glob: "*.src", Mode: watch.ModeBuild})
	o.RegisterFile("bad.src", nil)
	o.RegisterFile("good.src", nil)
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("bad.src", now), now)

	st := o.State()
	assert.Equal(t, StatusError, st.Status)
	require.NotNil(t, st.LastBuild)
	assert.False(t, st.LastBuild.Success)
	assert.Equal(t, []string{"bad.src"}, st.LastBuild.Errors)

	// events are still accepted in the error state
	o.HandleEvent(changed("good.src", now), now)
	st = o.State()
	assert.Equal(t, StatusWatching, st.Status)
	assert.True(t, st.LastBuild.Success)
	assert.Equal(t, []string{"good.src"}, st.LastBuild.ChangedFiles, "failed files are not retried by default")
}

func TestBuildFailure_RetryFailed(t *testing.T) {
	fail := true
	o := newOrchestrator(Options{
		Build: build.Options{RetryFailed: true},
		SimulatedErrors: func(paths []string) []string {
			if fail {
				return []string{"bad.src"}
			}
			return nil
		},
	}, watch.Rule{Glob: "*.src", Mode: watch.ModeBuild})
	o.RegisterFile("bad.src", nil)
	o.RegisterFile("good.src", nil)
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("bad.src", now), now)
	require.Equal(t, StatusError, o.State().Status)

	fail = false
	o.HandleEvent(changed("good.src", now), now)
	st := o.State()
	assert.Equal(t, StatusWatching, st.Status)
	assert.Equal(t, []string{"bad.src", "good.src"}, st.LastBuild.RebuiltFiles)
}

func TestStartStop(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBuild})
	assert.Equal(t, StatusIdle, o.State().Status)

	o.Start()
	assert.Equal(t, StatusWatching, o.State().Status)

	o.Stop()
	assert.Equal(t, StatusIdle, o.State().Status)
}

func TestRecompileAll(t *testing.T) {
	var got []build.Result
	o := newOrchestrator(Options{OnBuild: func(r build.Result) { got = append(got, r) }},
		watch.Rule{Glob: "**", Mode: watch.ModeBuild})
	o.RegisterFile("a.src", nil)
	o.RegisterFile("b.src", []string{"a.src"})

	res := o.RecompileAll()
	assert.True(t, res.Success)
	assert.Equal(t, []string{"a.src", "b.src"}, res.RebuiltFiles)
	assert.Equal(t, StatusIdle, o.State().Status, "recompiling while idle stays idle")
	require.Len(t, got, 1)

	o.Start()
	res = o.RecompileAll()
	assert.Equal(t, []string{"a.src", "b.src"}, res.RebuiltFiles)
	assert.Equal(t, StatusWatching, o.State().Status)
}

func TestState_IsSnapshot(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBuild})
	o.RegisterFile("a.src", nil)
	o.RecompileAll()

	st := o.State()
	st.LastBuild.Success = false
	assert.True(t, o.State().LastBuild.Success)
}

func TestState_SlicesAreNotShared(t *testing.T) {
	var fromCallback build.Result
	o := newOrchestrator(Options{OnBuild: func(r build.Result) { fromCallback = r }},
		watch.Rule{Glob: "**", Mode: watch.ModeBoth})
	o.RegisterFile("a.src", nil)
	o.RegisterTestFiles([]string{"a.test.src"})
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("a.src", now), now)

	st := o.State()
	require.NotNil(t, st.LastBuild)
	require.NotNil(t, st.LastTestImpact)
	st.LastBuild.ChangedFiles[0] = "edited"
	st.LastBuild.RebuiltFiles[0] = "edited"
	st.LastTestImpact.TestFiles[0] = "edited"
	st.LastTestImpact.TriggeredBy[0] = "edited"
	fromCallback.RebuiltFiles[0] = "edited"

	again := o.State()
	assert.Equal(t, []string{"a.src"}, again.LastBuild.ChangedFiles)
	assert.Equal(t, []string{"a.src"}, again.LastBuild.RebuiltFiles)
	assert.Equal(t, []string{"a.test.src"}, again.LastTestImpact.TestFiles)
	assert.Equal(t, []string{"a.src"}, again.LastTestImpact.TriggeredBy)
}

func TestState_JSON(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBoth})
	o.Start()
	o.RegisterFile("a.src", nil)
	now := time.Now()
	o.HandleEvent(changed("a.src", now), now)

	b, err := json.Marshal(o.State())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "watching", decoded["status"])
	assert.Contains(t, decoded, "lastBuild")
	assert.Contains(t, decoded, "lastTestImpact")
}

func TestCallbacks_OrderPerEntry(t *testing.T) {
	var order []string
	o := newOrchestrator(Options{
		OnBuild:      func(build.Result) { order = append(order, "build") },
		OnTestImpact: func(testimpact.Result) { order = append(order, "test") },
	}, watch.Rule{Glob: "**", Mode: watch.ModeBoth})
	o.RegisterFile("a.src", nil)
	o.Start()

	now := time.Now()
	o.HandleEvent(changed("a.src", now), now)
	assert.Equal(t, []string{"build", "test"}, order)
}

func TestRun_DebouncesAndDrainsOnClose(t *testing.T) {
	var (
		mu      sync.Mutex
		results []build.Result
	)
	o := newOrchestrator(Options{
		OnBuild: func(r build.Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
	}, watch.Rule{Glob: "*.src", Mode: watch.ModeBuild, Debounce: 20 * time.Millisecond})
	o.RegisterFile("a.src", nil)
	o.RegisterFile("b.src", nil)

	events := make(chan watch.Event)
	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), events) }()

	for i := 0; i < 3; i++ {
		events <- changed("a.src", time.Now())
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	}, 2*time.Second, 5*time.Millisecond)

	events <- changed("b.src", time.Now())
	close(events)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the event channel closed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	assert.Equal(t, []string{"a.src"}, results[0].RebuiltFiles)
	assert.Equal(t, []string{"b.src"}, results[1].RebuiltFiles)
	assert.Equal(t, StatusIdle, o.State().Status)
}

func TestRun_StopParksSchedulerUntilStart(t *testing.T) {
	var clockCalls, builds atomic.Int64
	clock := func() time.Time {
		clockCalls.Add(1)
		return time.Now()
	}
	o := newOrchestrator(Options{
		Clock:   clock,
		OnBuild: func(build.Result) { builds.Add(1) },
	}, watch.Rule{Glob: "*.src", Mode: watch.ModeBuild, Debounce: 100 * time.Millisecond})
	o.RegisterFile("a.src", nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan watch.Event)
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, events) }()
	defer func() {
		cancel()
		<-done
	}()

	events <- changed("a.src", time.Now())
	require.Eventually(t, func() bool { return o.State().PendingCount == 1 }, time.Second, time.Millisecond)
	o.Stop()

	// let the deadline pass, then measure an idle window
	time.Sleep(200 * time.Millisecond)
	before := clockCalls.Load()
	time.Sleep(100 * time.Millisecond)

	assert.LessOrEqual(t, clockCalls.Load()-before, int64(5), "scheduler must not spin while stopped")
	assert.Equal(t, 1, o.State().PendingCount)
	assert.Zero(t, builds.Load())

	o.Start()
	require.Eventually(t, func() bool { return builds.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, o.State().PendingCount)
}

func TestRun_StopsOnCancel(t *testing.T) {
	o := newOrchestrator(Options{}, watch.Rule{Glob: "**", Mode: watch.ModeBuild})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, make(chan watch.Event)) }()

	require.Eventually(t, func() bool { return o.State().Status == StatusWatching }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StatusIdle, o.State().Status)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "building", StatusBuilding.String())
	assert.Equal(t, "status(9)", Status(9).String())
}
