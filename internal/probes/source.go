// Package probes defines the Source contract that feeds raw observations
// into the event bus, plus a JSONL reference implementation for sources
// that emit one JSON-encoded event per line (a Unix socket, FIFO, or file).
package probes

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/vigil-edr/vigil/internal/bus"
	"github.com/vigil-edr/vigil/internal/events"
)

// maxLineSize bounds a single event line read from a JSONL stream.
const maxLineSize = 1024 * 1024

// Source is one long-running producer of events, read until ctx is
// cancelled or the underlying stream ends.
type Source interface {
	Run(ctx context.Context, out *bus.Bus[events.Event]) error
}

// JSONLSource reads newline-delimited JSON-encoded events from r and pushes
// them onto the bus. Send blocks when the bus is full: producers suspend
// rather than drop, so the read loop stalls until a consumer makes room.
type JSONLSource struct {
	Name   string
	Reader io.Reader
}

// NewJSONLSource creates a source that decodes one events.Event per line
// from r.
func NewJSONLSource(name string, r io.Reader) *JSONLSource {
	return &JSONLSource{Name: name, Reader: r}
}

// Run scans r line by line until ctx is cancelled or the stream reaches
// EOF, parsing and forwarding each line as an event.
func (s *JSONLSource) Run(ctx context.Context, out *bus.Bus[events.Event]) error {
	scanner := bufio.NewScanner(s.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	log.Info().Str("source", s.Name).Msg("probe connected, consuming events")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("%s: scanner error: %w", s.Name, err)
			}
			return nil
		}

		var ev events.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			log.Warn().Err(err).Str("source", s.Name).Msg("failed to parse event, skipping")
			continue
		}

		if ev.ID == "" {
			ev.ID = events.NewID("event")
		}

		if err := out.Send(ctx, ev); err != nil {
			return nil
		}
	}
}
