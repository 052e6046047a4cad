package scoring

import (
	"testing"

	"github.com/vigil-edr/vigil/internal/events"
	"github.com/vigil-edr/vigil/internal/ioc"
	"github.com/vigil-edr/vigil/internal/rules"
)

func TestScoreToSeverityBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  events.Severity
	}{
		{1.999, events.SeverityInfo},
		{2.0, events.SeverityLow},
		{3.999, events.SeverityLow},
		{4.0, events.SeverityMedium},
		{5.999, events.SeverityMedium},
		{6.0, events.SeverityHigh},
		{7.999, events.SeverityHigh},
		{8.0, events.SeverityCritical},
		{10.0, events.SeverityCritical},
	}
	for _, c := range cases {
		if got := ScoreToSeverity(c.score); got != c.want {
			t.Errorf("ScoreToSeverity(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestScoreEventNoMatchesUsesBaseScore(t *testing.T) {
	s := New(ioc.New(), rules.NewEngine())
	e := events.Event{Severity: events.SeverityInfo}
	if got := s.ScoreEvent(e, nil, nil); got != 1.0 {
		t.Errorf("expected base score 1.0, got %v", got)
	}
}

func TestScoreEventClampsAtTen(t *testing.T) {
	s := New(ioc.New(), rules.NewEngine())
	e := events.Event{Severity: events.SeverityCritical}
	got := s.ScoreEvent(e, []string{"unknown_ioc_id"}, []string{"unknown_rule_id"})
	if got != maxScore {
		t.Errorf("expected clamp to %v, got %v", maxScore, got)
	}
}

func TestScoreEventUnknownIdsUseDefaults(t *testing.T) {
	s := New(ioc.New(), rules.NewEngine())
	e := events.Event{Severity: events.SeverityInfo}
	got := s.ScoreEvent(e, []string{"nonexistent"}, nil)
	want := clamp(baseScore(events.SeverityInfo) + defaultIOCScore)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScoreEventAppliesCorrelationBoostWhenBothPresent(t *testing.T) {
	s := New(ioc.New(), rules.NewEngine())
	e := events.Event{Severity: events.SeverityMedium}
	withBoth := s.ScoreEvent(e, []string{"nonexistent"}, []string{"nonexistent"})
	withIOCOnly := s.ScoreEvent(e, []string{"nonexistent"}, nil)
	if withBoth <= withIOCOnly {
		t.Errorf("expected correlation boost to raise score: both=%v iocOnly=%v", withBoth, withIOCOnly)
	}
}

func TestScoreThreatEmptyEventsIsZero(t *testing.T) {
	if got := ScoreThreat(nil, events.ThreatMalware); got != 0 {
		t.Errorf("expected 0 for empty event list, got %v", got)
	}
}

func TestScoreThreatRansomwareClampsAtTen(t *testing.T) {
	evts := []events.Event{
		{Severity: events.SeverityCritical},
		{Severity: events.SeverityCritical},
		{Severity: events.SeverityCritical},
	}
	got := ScoreThreat(evts, events.ThreatRansomware)
	if got != maxScore {
		t.Errorf("expected clamp to %v, got %v", maxScore, got)
	}
}

func TestScoreThreatUnknownKindUsesUnitMultiplier(t *testing.T) {
	evts := []events.Event{{Severity: events.SeverityLow}}
	got := ScoreThreat(evts, events.ThreatKind("Unrecognized"))
	if got != baseScore(events.SeverityLow) {
		t.Errorf("got %v, want %v", got, baseScore(events.SeverityLow))
	}
}

func TestExceedsThreshold(t *testing.T) {
	if !ExceedsThreshold(5.0, 5.0) {
		t.Error("expected equality to exceed threshold")
	}
	if ExceedsThreshold(4.999, 5.0) {
		t.Error("expected below-threshold score to not exceed")
	}
}
