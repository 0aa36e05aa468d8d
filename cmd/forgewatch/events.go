package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/wilbur182/forgewatch/internal/watch"
)

const maxEventLine = 1 << 20

// readEvents decodes one JSON event per line from r and sends it on out.
// Blank lines are skipped; an event without a timestamp is stamped with now.
// out is closed when r is exhausted, on the first decode error, or when ctx
// is done.
func readEvents(ctx context.Context, r io.Reader, out chan<- watch.Event, now func() time.Time) error {
	defer close(out)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var ev watch.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return fmt.Errorf("events: line %d: %w", line, err)
		}
		if ev.Path == "" {
			return fmt.Errorf("events: line %d: missing path", line)
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now()
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}
