// Package detection wires the IOC matcher, rule engine, threat scorer, and
// correlator into the single orchestrator that turns events into threats.
package detection

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vigil-edr/vigil/internal/correlator"
	"github.com/vigil-edr/vigil/internal/events"
	"github.com/vigil-edr/vigil/internal/ioc"
	"github.com/vigil-edr/vigil/internal/rules"
	"github.com/vigil-edr/vigil/internal/scoring"
)

// DefaultCorrelationWindow is the correlation horizon used when a caller
// has no configured override.
const DefaultCorrelationWindow = correlator.Window

// Engine wires the matcher, rule engine, scorer, and correlator. Driving the
// event-vs-tick select loop is the pipeline's job, since only it has the
// telemetry sink to interleave persistence with.
type Engine struct {
	Matcher     *ioc.Matcher
	Rules       *rules.Engine
	Scorer      *scoring.Scorer
	Correlator  *correlator.Correlator
	Threshold   float64
	newThreatID func() string
}

// New builds an engine with fresh matcher, rule, scorer, and correlator
// instances, the given detection threshold, and a correlator sliding window
// of correlationWindow.
func New(threshold float64, correlationWindow time.Duration) *Engine {
	m := ioc.New()
	r := rules.NewEngine()
	return &Engine{
		Matcher:     m,
		Rules:       r,
		Scorer:      scoring.New(m, r),
		Correlator:  correlator.New(correlationWindow),
		Threshold:   threshold,
		newThreatID: func() string { return events.NewID("threat") },
	}
}

// ProcessEvent runs a single event through the matcher, rule engine, and
// scorer, feeds it to the correlator, and returns a threat if the score
// clears the threshold. Malformed events are discarded, never panicked on.
func (e *Engine) ProcessEvent(ev events.Event) (events.Threat, bool) {
	if err := ev.ValidatePayload(); err != nil {
		log.Warn().Err(err).Str("event_id", ev.ID).Msg("discarding malformed event")
		return events.Threat{}, false
	}

	iocMatches := e.Matcher.Match(ev)
	ruleMatches := e.Rules.Check(ev)
	score := e.Scorer.ScoreEvent(ev, iocMatches, ruleMatches)

	e.Correlator.AddEvent(ev)

	if !scoring.ExceedsThreshold(score, e.Threshold) {
		return events.Threat{}, false
	}

	return events.Threat{
		ID:          e.newThreatID(),
		Timestamp:   ev.Timestamp,
		Kind:        classify(ev, ruleMatches),
		Severity:    scoring.ScoreToSeverity(score),
		Score:       score,
		Description: describe(ev, iocMatches, ruleMatches),
		Events:      []events.Event{ev},
		IOCMatches:  iocMatches,
		RuleMatches: ruleMatches,
	}, true
}

// CheckCorrelations drains the correlator's current pattern matches.
func (e *Engine) CheckCorrelations() []events.Threat {
	return e.Correlator.Correlate()
}

// classify determines a threat's kind: first matching
// rule-id substring wins, falling back to the event's kind.
func classify(ev events.Event, ruleMatches []string) events.ThreatKind {
	for _, id := range ruleMatches {
		switch {
		case strings.Contains(id, "ransomware"):
			return events.ThreatRansomware
		case strings.Contains(id, "rootkit"):
			return events.ThreatRootkit
		case strings.Contains(id, "privilege_escalation"):
			return events.ThreatPrivilegeEscalation
		case strings.Contains(id, "lateral_movement"):
			return events.ThreatLateralMovement
		case strings.Contains(id, "exfiltration"):
			return events.ThreatDataExfiltration
		}
	}

	switch ev.Kind {
	case events.KindProcessCreated, events.KindProcessTerminated, events.KindProcessModified:
		return events.ThreatSuspiciousProcess
	case events.KindNetworkConnection, events.KindNetworkDnsQuery, events.KindNetworkHttpRequest:
		return events.ThreatSuspiciousNetwork
	case events.KindRootkitDetected:
		return events.ThreatRootkit
	case events.KindMemoryInjection:
		return events.ThreatMalware
	default:
		return events.ThreatAnomalousBehavior
	}
}

func describe(ev events.Event, iocMatches, ruleMatches []string) string {
	parts := []string{fmt.Sprintf("Event: %s", ev.Kind)}
	if len(iocMatches) > 0 {
		parts = append(parts, fmt.Sprintf("IOC matches: %d", len(iocMatches)))
	}
	if len(ruleMatches) > 0 {
		parts = append(parts, fmt.Sprintf("Rule matches: %s", strings.Join(ruleMatches, ", ")))
	}
	return strings.Join(parts, " | ")
}
