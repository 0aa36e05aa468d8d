package orchestrator

import (
	"fmt"

	"github.com/wilbur182/forgewatch/internal/build"
	"github.com/wilbur182/forgewatch/internal/testimpact"
)

// Status is the orchestrator's lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusWatching
	StatusBuilding
	StatusTesting
	// StatusError is entered when a build cycle fails and left by the next
	// successful one.
	StatusError
)

var statusNames = [...]string{
	StatusIdle:     "idle",
	StatusWatching: "watching",
	StatusBuilding: "building",
	StatusTesting:  "testing",
	StatusError:    "error",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is a point-in-time snapshot. LastBuild and LastTestImpact hold only
// the most recent outcomes and are nil until the first one.
type State struct {
	Status           Status             `json:"status"`
	WatchedFileCount int                `json:"watchedFileCount"`
	PendingCount     int                `json:"pendingCount"`
	LastBuild        *build.Result      `json:"lastBuild,omitempty"`
	LastTestImpact   *testimpact.Result `json:"lastTestImpact,omitempty"`
}
