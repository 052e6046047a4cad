// Package scoring implements the numeric fusion of severity, indicator
// hits, and rule hits into a threat score, and the score-to-severity
// mapping.
package scoring

import (
	"github.com/vigil-edr/vigil/internal/events"
	"github.com/vigil-edr/vigil/internal/ioc"
	"github.com/vigil-edr/vigil/internal/rules"
)

const (
	maxScore         = 10.0
	defaultIOCScore  = 2.0
	defaultRuleScore = 2.0
	correlationBoost = 1.5
)

// baseScores is the severity → base-score table.
var baseScores = map[events.Severity]float64{
	events.SeverityInfo:     1.0,
	events.SeverityLow:      2.5,
	events.SeverityMedium:   5.0,
	events.SeverityHigh:     7.5,
	events.SeverityCritical: 10.0,
}

func baseScore(s events.Severity) float64 {
	if v, ok := baseScores[s]; ok {
		return v
	}
	return 1.0
}

// threatKindMultipliers is the kind → multiplier table for ScoreThreat.
var threatKindMultipliers = map[events.ThreatKind]float64{
	events.ThreatRansomware:          2.0,
	events.ThreatRootkit:             1.8,
	events.ThreatDataExfiltration:    1.5,
	events.ThreatPrivilegeEscalation: 1.5,
	events.ThreatMalware:             1.3,
	events.ThreatLateralMovement:     1.2,
}

func kindMultiplier(k events.ThreatKind) float64 {
	if v, ok := threatKindMultipliers[k]; ok {
		return v
	}
	return 1.0
}

// Scorer fuses severities and match counts into a bounded [0,10] score.
type Scorer struct {
	matcher *ioc.Matcher
	rules   *rules.Engine
}

// New creates a Scorer backed by the given matcher and rule engine, used to
// resolve the severity of matched IOC/rule ids.
func New(matcher *ioc.Matcher, ruleEngine *rules.Engine) *Scorer {
	return &Scorer{matcher: matcher, rules: ruleEngine}
}

// ScoreEvent computes the score for a single event given its IOC and rule
// matches.
func (s *Scorer) ScoreEvent(e events.Event, iocMatches, ruleMatches []string) float64 {
	score := baseScore(e.Severity)

	for _, id := range iocMatches {
		if i, ok := s.matcher.Get(id); ok {
			score += baseScore(i.Severity)
		} else {
			score += defaultIOCScore
		}
	}

	for _, id := range ruleMatches {
		if r, ok := s.rules.Get(id); ok {
			score += baseScore(r.Severity)
		} else {
			score += defaultRuleScore
		}
	}

	if len(iocMatches) > 0 && len(ruleMatches) > 0 {
		score *= correlationBoost
	}

	return clamp(score)
}

// ScoreThreat computes a score for a multi-event correlated threat, per
// the score_threat formula.
func ScoreThreat(evts []events.Event, kind events.ThreatKind) float64 {
	if len(evts) == 0 {
		return 0
	}
	total := 0.0
	for _, e := range evts {
		total += baseScore(e.Severity)
	}
	total *= kindMultiplier(kind)
	return clamp(total / float64(len(evts)))
}

// ScoreToSeverity maps a score to its corresponding severity bucket.
func ScoreToSeverity(score float64) events.Severity {
	switch {
	case score < 2.0:
		return events.SeverityInfo
	case score < 4.0:
		return events.SeverityLow
	case score < 6.0:
		return events.SeverityMedium
	case score < 8.0:
		return events.SeverityHigh
	default:
		return events.SeverityCritical
	}
}

// ExceedsThreshold reports whether score meets or beats threshold.
func ExceedsThreshold(score, threshold float64) bool {
	return score >= threshold
}

func clamp(score float64) float64 {
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}
