package response

import (
	"context"
	"testing"

	"github.com/vigil-edr/vigil/internal/events"
)

type fakeEnforcer struct {
	calls []Action
}

func (f *fakeEnforcer) Enforce(ctx context.Context, action Action, threat events.Threat) Result {
	f.calls = append(f.calls, action)
	return Result{Action: action, Success: true, Message: "ok"}
}

func procThreat(severity events.Severity, score float64) events.Threat {
	return events.Threat{
		ID:       "t1",
		Severity: severity,
		Score:    score,
		Events: []events.Event{
			{Payload: events.Payload{Process: &events.Process{PID: 1234}}},
		},
	}
}

func TestHandleThreatAlwaysAlerts(t *testing.T) {
	e := NewEngine(false, 7.0, &fakeEnforcer{})
	results := e.HandleThreat(context.Background(), procThreat(events.SeverityLow, 1.0))
	if len(results) != 1 || results[0].Action != ActionAlert {
		t.Fatalf("expected single Alert result, got %v", results)
	}
}

func TestHandleThreatCriticalKillsThenQuarantines(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(true, 7.0, fe)
	results := e.HandleThreat(context.Background(), procThreat(events.SeverityCritical, 9.0))

	if len(results) != 3 {
		t.Fatalf("expected Alert+Kill+Quarantine, got %v", results)
	}
	if results[1].Action != ActionKill || results[2].Action != ActionQuarantine {
		t.Fatalf("unexpected ladder order: %v", results)
	}
}

func TestHandleThreatHighBlocksThenQuarantines(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(true, 7.0, fe)
	results := e.HandleThreat(context.Background(), procThreat(events.SeverityHigh, 8.0))

	if len(fe.calls) != 2 || fe.calls[0] != ActionBlock || fe.calls[1] != ActionQuarantine {
		t.Fatalf("expected Block then Quarantine dispatched, got %v", fe.calls)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
}

func TestHandleThreatMediumBlocksOnly(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(true, 7.0, fe)
	e.HandleThreat(context.Background(), procThreat(events.SeverityMedium, 7.5))
	if len(fe.calls) != 1 || fe.calls[0] != ActionBlock {
		t.Fatalf("expected only Block dispatched, got %v", fe.calls)
	}
}

func TestHandleThreatBelowThresholdOnlyAlerts(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(true, 7.0, fe)
	results := e.HandleThreat(context.Background(), procThreat(events.SeverityCritical, 1.0))
	if len(results) != 1 {
		t.Fatalf("expected only the Alert below threshold, got %v", results)
	}
}

func TestHandleThreatAutoResponseDisabledOnlyAlerts(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(false, 7.0, fe)
	results := e.HandleThreat(context.Background(), procThreat(events.SeverityCritical, 9.9))
	if len(results) != 1 {
		t.Fatalf("expected only the Alert with auto-response disabled, got %v", results)
	}
}

func TestAlertFiresForensicsOnlyForHighAndCritical(t *testing.T) {
	var notified []string
	e := NewEngine(false, 7.0, &fakeEnforcer{})
	e.NotifyForensics = func(id string) { notified = append(notified, id) }

	e.HandleThreat(context.Background(), procThreat(events.SeverityLow, 1.0))
	if len(notified) != 0 {
		t.Fatalf("expected no forensics notification for Low severity, got %v", notified)
	}

	e.HandleThreat(context.Background(), procThreat(events.SeverityHigh, 1.0))
	if len(notified) != 1 {
		t.Fatalf("expected forensics notification for High severity, got %v", notified)
	}
}

func TestKillThreatProcessSkippedWhenNoProcessEvents(t *testing.T) {
	fe := &fakeEnforcer{}
	e := NewEngine(true, 7.0, fe)
	threat := events.Threat{Severity: events.SeverityCritical, Score: 9.0}
	results := e.HandleThreat(context.Background(), threat)

	if len(fe.calls) != 1 || fe.calls[0] != ActionQuarantine {
		t.Fatalf("expected only Quarantine dispatched when no process in events, got %v", fe.calls)
	}
	if len(results) != 2 {
		t.Fatalf("expected Alert+Quarantine, got %v", results)
	}
}
