// Package correlator maintains a sliding window of recent events and scans
// it for multi-event attack patterns that a single-event view cannot see.
package correlator

import (
	"fmt"
	"time"

	"github.com/vigil-edr/vigil/internal/events"
)

// Window is the default correlation horizon, used when a caller has no
// configured override.
const Window = 300 * time.Second

type entry struct {
	addedAt time.Time
	event   events.Event
}

// Correlator holds a time-ordered sliding window of events plus a per-pid
// index, and scans the window for the fixed pattern set defined below. The
// window is a slice: eviction re-slices past the stale front entries, append
// grows the back, both amortized O(1).
type Correlator struct {
	window  []entry
	horizon time.Duration
	byPID   map[int][]events.Event
	newID   func() string
	nowFunc func() time.Time
}

// New creates an empty correlator whose sliding window spans horizon.
// nowFunc defaults to time.Now and is overridden directly by tests for a
// deterministic clock.
func New(horizon time.Duration) *Correlator {
	return &Correlator{
		horizon: horizon,
		byPID:   make(map[int][]events.Event),
		newID:   func() string { return events.NewID("threat") },
		nowFunc: time.Now,
	}
}

// AddEvent evicts stale entries, appends e to the window, and indexes it by
// pid when one is present in its payload.
func (c *Correlator) AddEvent(e events.Event) {
	now := c.nowFunc()
	c.evictOlderThan(now)
	c.window = append(c.window, entry{addedAt: now, event: e})
	if pid, ok := e.PID(); ok {
		c.byPID[pid] = append(c.byPID[pid], e)
	}
}

func (c *Correlator) evictOlderThan(now time.Time) {
	cut := 0
	for cut < len(c.window) && now.Sub(c.window[cut].addedAt) > c.horizon {
		cut++
	}
	if cut > 0 {
		c.window = c.window[cut:]
	}
}

// Len returns the number of events currently held in the window.
func (c *Correlator) Len() int {
	return len(c.window)
}

func (c *Correlator) events() []events.Event {
	out := make([]events.Event, len(c.window))
	for i, en := range c.window {
		out[i] = en.event
	}
	return out
}

// Correlate evicts stale entries, scans the current window against the five
// fixed patterns and returns a threat for every pattern that holds. Patterns
// are independent: any subset, including all five, may fire in a single call.
func (c *Correlator) Correlate() []events.Threat {
	c.evictOlderThan(c.nowFunc())
	evts := c.events()
	var threats []events.Threat

	if t, ok := c.detectPrivilegeEscalationChain(evts); ok {
		threats = append(threats, t)
	}
	if t, ok := c.detectDataExfiltration(evts); ok {
		threats = append(threats, t)
	}
	if t, ok := c.detectLateralMovement(evts); ok {
		threats = append(threats, t)
	}
	if t, ok := c.detectRansomwareBehavior(evts); ok {
		threats = append(threats, t)
	}
	if t, ok := c.detectRootkitInstallation(evts); ok {
		threats = append(threats, t)
	}

	return threats
}

func (c *Correlator) newThreat(kind events.ThreatKind, severity events.Severity, score float64, description, pattern string, matched []events.Event) events.Threat {
	return events.Threat{
		ID:          c.newID(),
		Timestamp:   c.nowFunc(),
		Kind:        kind,
		Severity:    severity,
		Score:       score,
		Description: description,
		Events:      matched,
		IOCMatches:  nil,
		RuleMatches: []string{pattern},
	}
}

func kindIn(k events.Kind, set ...events.Kind) bool {
	for _, s := range set {
		if k == s {
			return true
		}
	}
	return false
}

func (c *Correlator) detectPrivilegeEscalationChain(evts []events.Event) (events.Threat, bool) {
	var chain []events.Event
	for _, e := range evts {
		if kindIn(e.Kind, events.KindUserElevation, events.KindProcessCreated, events.KindFileModified) {
			chain = append(chain, e)
		}
	}
	if len(chain) < 3 {
		return events.Threat{}, false
	}
	return c.newThreat(events.ThreatPrivilegeEscalation, events.SeverityHigh, 7.5,
		"Privilege escalation chain detected", "privilege_escalation_chain", chain), true
}

func (c *Correlator) detectDataExfiltration(evts []events.Event) (events.Threat, bool) {
	var fileEvents, netEvents []events.Event
	for _, e := range evts {
		switch e.Kind {
		case events.KindFileAccessed:
			fileEvents = append(fileEvents, e)
		case events.KindNetworkConnection:
			netEvents = append(netEvents, e)
		}
	}
	if len(fileEvents) == 0 || len(netEvents) == 0 {
		return events.Threat{}, false
	}
	combined := append(append([]events.Event{}, fileEvents...), netEvents...)
	return c.newThreat(events.ThreatDataExfiltration, events.SeverityHigh, 8.0,
		"Potential data exfiltration detected", "data_exfiltration", combined), true
}

func (c *Correlator) detectLateralMovement(evts []events.Event) (events.Threat, bool) {
	var relevant []events.Event
	for _, e := range evts {
		if kindIn(e.Kind, events.KindNetworkConnection, events.KindProcessCreated, events.KindUserLogin) {
			relevant = append(relevant, e)
		}
	}
	if len(relevant) < 3 {
		return events.Threat{}, false
	}
	return c.newThreat(events.ThreatLateralMovement, events.SeverityHigh, 7.0,
		"Lateral movement detected", "lateral_movement", relevant), true
}

func (c *Correlator) detectRansomwareBehavior(evts []events.Event) (events.Threat, bool) {
	var relevant []events.Event
	modCount, delCount := 0, 0
	for _, e := range evts {
		switch e.Kind {
		case events.KindFileModified:
			modCount++
			relevant = append(relevant, e)
		case events.KindFileDeleted:
			delCount++
			relevant = append(relevant, e)
		}
	}
	if modCount <= 10 && delCount <= 5 {
		return events.Threat{}, false
	}
	return c.newThreat(events.ThreatRansomware, events.SeverityCritical, 9.5,
		fmt.Sprintf("Ransomware behavior: %d files modified, %d deleted", modCount, delCount),
		"ransomware_behavior", relevant), true
}

func (c *Correlator) detectRootkitInstallation(evts []events.Event) (events.Threat, bool) {
	var relevant []events.Event
	for _, e := range evts {
		if kindIn(e.Kind, events.KindRootkitDetected, events.KindFileModified) {
			relevant = append(relevant, e)
		}
	}
	if len(relevant) == 0 {
		return events.Threat{}, false
	}
	return c.newThreat(events.ThreatRootkit, events.SeverityCritical, 9.0,
		"Rootkit installation detected", "rootkit_installation", relevant), true
}
