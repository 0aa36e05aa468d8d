package watch

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the kind of file change reported by the file-watching collaborator.
type Kind int

const (
	KindModified Kind = iota
	KindAdded
	KindRemoved
)

var kindNames = map[Kind]string{
	KindAdded:    "added",
	KindModified: "modified",
	KindRemoved:  "removed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("watch: unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("watch: unknown event kind %q", string(text))
}

// Mode selects which reaction a rule drives when its entries flush.
type Mode int

const (
	ModeBuild Mode = iota
	ModeTest
	ModeBoth
)

var modeNames = map[Mode]string{
	ModeBuild: "build",
	ModeTest:  "test",
	ModeBoth:  "both",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Builds reports whether flushed entries of this mode trigger a compile.
func (m Mode) Builds() bool { return m == ModeBuild || m == ModeBoth }

// Tests reports whether flushed entries of this mode trigger test impact.
func (m Mode) Tests() bool { return m == ModeTest || m == ModeBoth }

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("watch: unknown mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for mode, name := range modeNames {
		if name == s {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("watch: unknown mode %q", string(text))
}

// Event is a single raw change notification. Events are immutable once created.
type Event struct {
	Path      string    `json:"path"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// Rule routes paths matching Glob to the reactions selected by Mode after a
// quiet period of Debounce. A negative Debounce takes the config default.
type Rule struct {
	Glob     string
	Mode     Mode
	Debounce time.Duration
}

// Config is the static watch configuration supplied once per session.
type Config struct {
	Rules           []Rule
	RootDir         string
	Ignored         []string // substrings; any path containing one is dropped
	DefaultDebounce time.Duration
}

// Entry is a coalesced batch of events for one (rule, path) pair.
type Entry struct {
	Rule        Rule
	Events      []Event
	ScheduledAt time.Time

	ruleIndex int
	path      string
	heapIndex int
}

// Path returns the path the entry was keyed by.
func (e *Entry) Path() string { return e.path }

// Paths returns the distinct paths of the accumulated events, in arrival order.
func (e *Entry) Paths() []string {
	seen := make(map[string]struct{}, len(e.Events))
	paths := make([]string, 0, 1)
	for _, ev := range e.Events {
		if _, ok := seen[ev.Path]; ok {
			continue
		}
		seen[ev.Path] = struct{}{}
		paths = append(paths, ev.Path)
	}
	return paths
}
