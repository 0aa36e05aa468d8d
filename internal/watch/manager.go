// Package watch ingests raw change events, matches them against the
// configured rules, and coalesces bursts of edits into debounced entries.
//
// Debouncing is a sliding window per (rule, path): every new event for the
// same key pushes ScheduledAt forward by the rule's debounce. The Manager
// only records deadlines; a Scheduler (or a caller passing an explicit time
// to Flush) decides when they are due.
//
// A Manager is not safe for concurrent use. Its owner serializes access.
package watch

import (
	"strings"
	"time"

	"github.com/wilbur182/forgewatch/internal/glob"
)

type entryKey struct {
	rule int
	path string
}

// Manager owns the event log and the pending debounce table.
type Manager struct {
	rules   []Rule
	rootDir string
	ignored []string

	matcher *glob.Matcher
	clock   func() time.Time

	log     []Event
	entries map[entryKey]*Entry
	queue   deadlineQueue
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used by Receive.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithMatcher shares a pattern matcher instead of allocating one.
func WithMatcher(matcher *glob.Matcher) Option {
	return func(m *Manager) { m.matcher = matcher }
}

// NewManager creates a Manager for cfg.
func NewManager(cfg Config, opts ...Option) *Manager {
	rules := make([]Rule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if r.Debounce < 0 {
			r.Debounce = cfg.DefaultDebounce
		}
		rules[i] = r
	}

	ignored := make([]string, 0, len(cfg.Ignored))
	for _, s := range cfg.Ignored {
		if s != "" {
			ignored = append(ignored, s)
		}
	}

	m := &Manager{
		rules:   rules,
		rootDir: cfg.RootDir,
		ignored: ignored,
		clock:   time.Now,
		entries: make(map[entryKey]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.matcher == nil {
		m.matcher = glob.NewMatcher(glob.DefaultCacheSize)
	}
	return m
}

// Receive records ev at the current clock time. See ReceiveAt.
func (m *Manager) Receive(ev Event) []Rule {
	return m.ReceiveAt(ev, m.clock())
}

// ReceiveAt records ev and returns the rules whose glob matched its path.
// Paths containing an ignored substring are dropped before they reach the
// event log. For every matching rule the (rule, path) entry is created or
// extended, and its deadline becomes now + rule.Debounce.
func (m *Manager) ReceiveAt(ev Event, now time.Time) []Rule {
	if m.isIgnored(ev.Path) {
		return nil
	}
	m.log = append(m.log, ev)

	var matched []Rule
	for i, rule := range m.rules {
		if !m.matcher.Match(ev.Path, rule.Glob) {
			continue
		}
		matched = append(matched, rule)

		key := entryKey{rule: i, path: ev.Path}
		deadline := now.Add(rule.Debounce)
		if e, ok := m.entries[key]; ok {
			e.Events = append(e.Events, ev)
			e.ScheduledAt = deadline
			m.queue.fix(e)
			continue
		}
		e := &Entry{
			Rule:        rule,
			Events:      []Event{ev},
			ScheduledAt: deadline,
			ruleIndex:   i,
			path:        ev.Path,
		}
		m.entries[key] = e
		m.queue.push(e)
	}
	return matched
}

// Flush removes and returns every entry due at or before now, earliest first.
func (m *Manager) Flush(now time.Time) []*Entry {
	var ready []*Entry
	for {
		e := m.queue.peek()
		if e == nil || e.ScheduledAt.After(now) {
			break
		}
		m.queue.pop()
		delete(m.entries, entryKey{rule: e.ruleIndex, path: e.path})
		ready = append(ready, e)
	}
	return ready
}

// FlushAll removes and returns every pending entry regardless of deadline.
func (m *Manager) FlushAll() []*Entry {
	ready := make([]*Entry, 0, len(m.queue))
	for m.queue.Len() > 0 {
		e := m.queue.pop()
		delete(m.entries, entryKey{rule: e.ruleIndex, path: e.path})
		ready = append(ready, e)
	}
	return ready
}

// NextDeadline returns the earliest pending ScheduledAt.
func (m *Manager) NextDeadline() (time.Time, bool) {
	e := m.queue.peek()
	if e == nil {
		return time.Time{}, false
	}
	return e.ScheduledAt, true
}

// EventsForMode replays the event log, keeping events whose path matches a
// rule declared with mode or with ModeBoth.
func (m *Manager) EventsForMode(mode Mode) []Event {
	var out []Event
	for _, ev := range m.log {
		for _, rule := range m.rules {
			if rule.Mode != mode && rule.Mode != ModeBoth {
				continue
			}
			if m.matcher.Match(ev.Path, rule.Glob) {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}

// EventCount returns the number of logged (non-ignored) events.
func (m *Manager) EventCount() int { return len(m.log) }

// PendingCount returns the number of live debounce entries.
func (m *Manager) PendingCount() int { return len(m.entries) }

// RootDir returns the configured root directory.
func (m *Manager) RootDir() string { return m.rootDir }

// Rules returns a copy of the resolved rules.
func (m *Manager) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Reset clears the event log and every pending entry.
func (m *Manager) Reset() {
	m.log = nil
	m.entries = make(map[entryKey]*Entry)
	m.queue = nil
}

func (m *Manager) isIgnored(path string) bool {
	for _, s := range m.ignored {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}
