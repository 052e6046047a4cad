// Package telemetry persists events, threats, and response results to
// append-only JSONL logs and an in-memory key-value index, and exposes
// durable Prometheus counters for the pipeline's throughput.
package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/vigil-edr/vigil/internal/events"
	"github.com/vigil-edr/vigil/internal/response"
)

const maxRecentThreats = 1000

// Sink is the telemetry persistence layer: one
// append-only log file per day per stream, a KV index keyed by record id,
// and a bounded in-memory ring of recent threats for fast querying.
type Sink struct {
	dir           string
	retentionDays int

	mu            sync.Mutex
	kv            map[string]json.RawMessage
	recentThreats []events.Threat

	eventsCounter    prometheus.Counter
	threatsCounter   prometheus.Counter
	responsesCounter *prometheus.CounterVec
}

// New creates a sink rooted at dir, creating per-stream subdirectories as
// needed, then replays any pre-existing events/ and threats/ JSONL logs to
// rebuild the kv index and recent-threats ring. This is what lets a fresh
// process (e.g. the report CLI, run again after a restart) see everything a
// prior process already persisted. retentionDays bounds how far back Sweep
// keeps log files.
func New(dir string, retentionDays int) (*Sink, error) {
	for _, stream := range []string{"events", "threats", "responses"} {
		if err := os.MkdirAll(filepath.Join(dir, stream), 0o755); err != nil {
			return nil, fmt.Errorf("create %s stream directory: %w", stream, err)
		}
	}

	s := &Sink{
		dir:           dir,
		retentionDays: retentionDays,
		kv:            make(map[string]json.RawMessage),
		eventsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_events_persisted_total",
			Help: "Total events written to the telemetry sink.",
		}),
		threatsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vigil_threats_persisted_total",
			Help: "Total threats written to the telemetry sink.",
		}),
		responsesCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_responses_persisted_total",
			Help: "Total response results written to the telemetry sink, by action.",
		}, []string{"action"}),
	}

	if err := s.replayEvents(); err != nil {
		return nil, fmt.Errorf("replay event logs: %w", err)
	}
	if err := s.replayThreats(); err != nil {
		return nil, fmt.Errorf("replay threat logs: %w", err)
	}
	return s, nil
}

// replayEvents rebuilds the event half of kv from every events/*.jsonl file
// on disk, oldest first.
func (s *Sink) replayEvents() error {
	files, err := filepath.Glob(filepath.Join(s.dir, "events", "*.jsonl"))
	if err != nil {
		return fmt.Errorf("glob event logs: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		lines, err := readJSONLLines(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("failed to replay event log, skipping")
			continue
		}
		for _, line := range lines {
			var e events.Event
			if err := json.Unmarshal(line, &e); err != nil {
				continue
			}
			s.kv["event_"+e.ID] = json.RawMessage(line)
		}
	}
	return nil
}

// replayThreats rebuilds both the threat half of kv and the bounded
// recent-threats ring from every threats/*.jsonl file on disk, oldest first.
func (s *Sink) replayThreats() error {
	files, err := filepath.Glob(filepath.Join(s.dir, "threats", "*.jsonl"))
	if err != nil {
		return fmt.Errorf("glob threat logs: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		lines, err := readJSONLLines(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("failed to replay threat log, skipping")
			continue
		}
		for _, line := range lines {
			var t events.Threat
			if err := json.Unmarshal(line, &t); err != nil {
				continue
			}
			s.kv["threat_"+t.ID] = json.RawMessage(line)
			s.recentThreats = append(s.recentThreats, t)
		}
	}
	if len(s.recentThreats) > maxRecentThreats {
		s.recentThreats = s.recentThreats[len(s.recentThreats)-maxRecentThreats:]
	}
	return nil
}

// readJSONLLines reads path and splits it into its non-empty newline-
// delimited records.
func readJSONLLines(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Register registers the sink's counters with reg. Call once at startup.
func (s *Sink) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{s.eventsCounter, s.threatsCounter, s.responsesCounter} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register telemetry collector: %w", err)
		}
	}
	return nil
}

// LogEvent appends e to today's event log, indexes it in the KV store, and
// increments the events counter. Failures are logged and returned but are
// never fatal to the pipeline — callers should log-and-continue.
func (s *Sink) LogEvent(e events.Event) error {
	if err := s.appendJSONL("events", e); err != nil {
		log.Error().Err(err).Str("event_id", e.ID).Msg("failed to persist event")
		return err
	}
	s.mu.Lock()
	s.kv["event_"+e.ID] = mustMarshal(e)
	s.mu.Unlock()
	s.eventsCounter.Inc()
	return nil
}

// LogThreat appends t to today's threat log, indexes it, keeps it in the
// bounded recent-threats ring, and increments the threats counter.
func (s *Sink) LogThreat(t events.Threat) error {
	if err := s.appendJSONL("threats", t); err != nil {
		log.Error().Err(err).Str("threat_id", t.ID).Msg("failed to persist threat")
		return err
	}
	s.mu.Lock()
	s.kv["threat_"+t.ID] = mustMarshal(t)
	s.recentThreats = append(s.recentThreats, t)
	if len(s.recentThreats) > maxRecentThreats {
		s.recentThreats = s.recentThreats[len(s.recentThreats)-maxRecentThreats:]
	}
	s.mu.Unlock()
	s.threatsCounter.Inc()
	return nil
}

// LogResponse appends r (associated with threatID) to today's response
// log and increments the per-action responses counter.
func (s *Sink) LogResponse(threatID string, r response.Result) error {
	record := struct {
		ThreatID string `json:"threat_id"`
		response.Result
	}{ThreatID: threatID, Result: r}

	if err := s.appendJSONL("responses", record); err != nil {
		log.Error().Err(err).Str("threat_id", threatID).Str("action", string(r.Action)).Msg("failed to persist response")
		return err
	}
	s.responsesCounter.WithLabelValues(string(r.Action)).Inc()
	return nil
}

// GetEvent returns a previously logged event by id.
func (s *Sink) GetEvent(id string) (events.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.kv["event_"+id]
	if !ok {
		return events.Event{}, false
	}
	var e events.Event
	_ = json.Unmarshal(raw, &e)
	return e, true
}

// GetThreat returns a previously logged threat by id.
func (s *Sink) GetThreat(id string) (events.Threat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.kv["threat_"+id]
	if !ok {
		return events.Threat{}, false
	}
	var t events.Threat
	_ = json.Unmarshal(raw, &t)
	return t, true
}

// GetRecentThreats returns up to n of the most recently logged threats,
// newest last.
func (s *Sink) GetRecentThreats(n int) []events.Threat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.recentThreats) {
		n = len(s.recentThreats)
	}
	out := make([]events.Threat, n)
	copy(out, s.recentThreats[len(s.recentThreats)-n:])
	return out
}

// EventCount and ThreatCount report the number of distinct indexed records.
func (s *Sink) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.kv {
		if len(k) > 6 && k[:6] == "event_" {
			n++
		}
	}
	return n
}

// ThreatCount reports the number of distinct indexed threats.
func (s *Sink) ThreatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.kv {
		if len(k) > 7 && k[:7] == "threat_" {
			n++
		}
	}
	return n
}

// Sweep deletes log files older than retentionDays across all three
// streams. Non-fatal: individual removal failures are logged, not returned.
func (s *Sink) Sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	for _, stream := range []string{"events", "threats", "responses"} {
		files, err := filepath.Glob(filepath.Join(s.dir, stream, "*.jsonl"))
		if err != nil {
			log.Error().Err(err).Str("stream", stream).Msg("retention sweep glob failed")
			continue
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(f); err != nil {
					log.Warn().Err(err).Str("file", f).Msg("retention sweep: failed to remove old log")
				}
			}
		}
	}
}

// appendJSONL marshals v and appends it, newline-terminated, to the
// current day's log file for stream, flushing before returning.
func (s *Sink) appendJSONL(stream string, v any) error {
	path := filepath.Join(s.dir, stream, time.Now().Format("2006-01-02")+".jsonl")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s log: %w", stream, err)
	}
	defer f.Close()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", stream, err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
