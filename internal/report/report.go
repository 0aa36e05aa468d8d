// Package report renders orchestrator state and build/test results for a
// terminal or a plain log stream.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/wilbur182/forgewatch/internal/build"
	"github.com/wilbur182/forgewatch/internal/orchestrator"
	"github.com/wilbur182/forgewatch/internal/testimpact"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// maxListed caps how many paths a single line lists before summarizing.
const maxListed = 8

// Reporter writes human-readable reports to w. It is safe for concurrent use;
// each report is written as one uninterrupted block.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	width  int
}

// Options configures a Reporter.
type Options struct {
	Plain   bool
	Width   int
	Palette *Palette
}

// New creates a Reporter writing to w.
func New(w io.Writer, opts Options) *Reporter {
	p := DefaultPalette
	if opts.Palette != nil {
		p = *opts.Palette
	}
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}
	return &Reporter{w: w, styles: NewStyles(p, opts.Plain), width: width}
}

// Build reports one build cycle.
func (r *Reporter) Build(res build.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.build(res)
}

// TestImpact reports the tests selected for a change batch.
func (r *Reporter) TestImpact(res testimpact.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testImpact(res)
}

// State reports a state snapshot followed by its most recent results.
func (r *Reporter) State(st orchestrator.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state(st)
}

func (r *Reporter) build(res build.Result) {
	status := r.styles.Success.Render("ok")
	if !res.Success {
		status = r.styles.Error.Render("FAIL")
	}
	r.printf("%s %s %s\n",
		r.styles.Label.Render(r.styles.Title.Render("build")),
		status,
		r.styles.Muted.Render(fmt.Sprintf("%d changed, %d rebuilt, %dms",
			len(res.ChangedFiles), len(res.RebuiltFiles), res.DurationMs())))

	if len(res.RebuiltFiles) > 0 {
		r.list("rebuilt", res.RebuiltFiles, r.styles.Muted)
	}
	if len(res.Errors) > 0 {
		r.list("errors", res.Errors, r.styles.Error)
	}
}

func (r *Reporter) testImpact(res testimpact.Result) {
	r.printf("%s %s %s\n",
		r.styles.Label.Render(r.styles.Title.Render("tests")),
		r.styles.Warning.Render(fmt.Sprintf("%d selected", res.TotalTests)),
		r.styles.Muted.Render(fmt.Sprintf("%d skipped", len(res.SkippedFiles))))

	if len(res.TestFiles) > 0 {
		r.list("run", res.TestFiles, r.styles.Muted)
	}
}

func (r *Reporter) state(st orchestrator.State) {
	status := st.Status.String()
	switch st.Status {
	case orchestrator.StatusError:
		status = r.styles.Error.Render(status)
	case orchestrator.StatusWatching:
		status = r.styles.Success.Render(status)
	default:
		status = r.styles.Warning.Render(status)
	}
	r.printf("%s %s %s\n",
		r.styles.Label.Render(r.styles.Title.Render("state")),
		status,
		r.styles.Muted.Render(fmt.Sprintf("%d files, %d pending", st.WatchedFileCount, st.PendingCount)))

	if st.LastBuild != nil {
		r.build(*st.LastBuild)
	}
	if st.LastTestImpact != nil {
		r.testImpact(*st.LastTestImpact)
	}
}

func (r *Reporter) list(label string, paths []string, style lipgloss.Style) {
	shown := paths
	more := 0
	if len(shown) > maxListed {
		more = len(shown) - maxListed
		shown = shown[:maxListed]
	}

	prefix := "  " + label + ": "
	avail := r.width - runewidth.StringWidth(prefix)
	for i, p := range shown {
		lead := prefix
		if i > 0 {
			lead = strings.Repeat(" ", runewidth.StringWidth(prefix))
		}
		r.printf("%s%s\n", lead, style.Render(TruncatePath(p, avail)))
	}
	if more > 0 {
		r.printf("%s\n", r.styles.Muted.Render(fmt.Sprintf("  ... and %d more", more)))
	}
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// TruncatePath shortens path to at most width display cells, keeping its tail.
func TruncatePath(path string, width int) string {
	if width <= 0 || runewidth.StringWidth(path) <= width {
		return path
	}
	const ellipsis = "…"
	if width <= 1 {
		return ellipsis
	}

	runes := []rune(path)
	kept := 0
	start := len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if kept+w > width-1 {
			break
		}
		kept += w
		start--
	}
	return ellipsis + string(runes[start:])
}
