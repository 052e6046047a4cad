package detection

import (
	"testing"

	"github.com/vigil-edr/vigil/internal/events"
)

func criticalFileEvent() events.Event {
	return events.Event{
		ID:       "e1",
		Kind:     events.KindFileModified,
		Severity: events.SeverityCritical,
		Payload:  events.Payload{File: &events.File{Path: "/etc/shadow", Operation: "modify"}},
	}
}

func TestProcessEventEmitsThreatAboveThreshold(t *testing.T) {
	e := New(5.0, DefaultCorrelationWindow)
	threat, emitted := e.ProcessEvent(criticalFileEvent())
	if !emitted {
		t.Fatal("expected threat to be emitted for critical file modification")
	}
	if threat.Kind == "" {
		t.Error("expected a non-empty threat kind")
	}
	if threat.Score < 5.0 {
		t.Errorf("expected score >= threshold, got %v", threat.Score)
	}
	if len(threat.Events) != 1 || threat.Events[0].ID != "e1" {
		t.Errorf("expected embedded triggering event, got %v", threat.Events)
	}
}

func TestProcessEventBelowThresholdEmitsNothing(t *testing.T) {
	e := New(9.99, DefaultCorrelationWindow)
	ev := events.Event{ID: "e2", Kind: events.KindUserLogin, Severity: events.SeverityInfo,
		Payload: events.Payload{User: &events.User{Username: "alice", Action: "login"}}}
	_, emitted := e.ProcessEvent(ev)
	if emitted {
		t.Fatal("expected no threat below threshold")
	}
}

func TestProcessEventDiscardsMalformedEvent(t *testing.T) {
	e := New(0.0, DefaultCorrelationWindow)
	malformed := events.Event{ID: "bad", Kind: events.KindProcessCreated, Payload: events.Payload{File: &events.File{}}}
	_, emitted := e.ProcessEvent(malformed)
	if emitted {
		t.Fatal("expected malformed event to be discarded, not scored")
	}
}

func TestProcessEventFeedsCorrelator(t *testing.T) {
	e := New(100.0, DefaultCorrelationWindow)
	e.ProcessEvent(criticalFileEvent())
	if e.Correlator.Len() != 1 {
		t.Errorf("expected event added to correlator window, len=%d", e.Correlator.Len())
	}
}

func TestClassifyRuleSubstringWinsOverEventKind(t *testing.T) {
	ev := events.Event{Kind: events.KindUserLogin}
	got := classify(ev, []string{"privilege_escalation_chain"})
	if got != events.ThreatPrivilegeEscalation {
		t.Errorf("expected PrivilegeEscalation, got %v", got)
	}
}

func TestClassifyFallsBackToEventKind(t *testing.T) {
	cases := []struct {
		kind events.Kind
		want events.ThreatKind
	}{
		{events.KindProcessCreated, events.ThreatSuspiciousProcess},
		{events.KindNetworkConnection, events.ThreatSuspiciousNetwork},
		{events.KindRootkitDetected, events.ThreatRootkit},
		{events.KindMemoryInjection, events.ThreatMalware},
		{events.KindUserLogin, events.ThreatAnomalousBehavior},
	}
	for _, c := range cases {
		if got := classify(events.Event{Kind: c.kind}, nil); got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestCheckCorrelationsDrainsCorrelator(t *testing.T) {
	e := New(100.0, DefaultCorrelationWindow)
	e.Correlator.AddEvent(events.Event{Kind: events.KindRootkitDetected, Payload: events.Payload{Rootkit: &events.Rootkit{}}})
	threats := e.CheckCorrelations()
	found := false
	for _, th := range threats {
		if th.Kind == events.ThreatRootkit {
			found = true
		}
	}
	if !found {
		t.Fatal("expected rootkit_installation threat from correlator")
	}
}
