// Package reporting builds and renders after-action reports over threats
// already persisted by the telemetry sink, for a given time range.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vigil-edr/vigil/internal/events"
)

// TimeRange bounds a report to threats observed within [From, To].
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Summary is the executive-summary section of a report.
type Summary struct {
	TotalThreats    int      `json:"total_threats"`
	CriticalThreats int      `json:"critical_threats"`
	HighThreats     int      `json:"high_threats"`
	MediumThreats   int      `json:"medium_threats"`
	LowThreats      int      `json:"low_threats"`
	TopThreatKinds  []string `json:"top_threat_kinds"`
	OverallRisk     string   `json:"overall_risk"`
}

// TimelineEvent is one chronological line item in the report's timeline.
type TimelineEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	Kind        events.ThreatKind `json:"kind"`
	Severity    events.Severity   `json:"severity"`
	Description string            `json:"description"`
}

// Statistics is the quantitative appendix of a report.
type Statistics struct {
	TotalThreats      int                       `json:"total_threats"`
	ThreatsByKind     map[events.ThreatKind]int `json:"threats_by_kind"`
	ThreatsBySeverity map[events.Severity]int   `json:"threats_by_severity"`
	AverageScore      float64                   `json:"average_score"`
}

// Report is a complete after-action report over a time range's threats.
type Report struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	GeneratedAt time.Time       `json:"generated_at"`
	Range       TimeRange       `json:"range"`
	Summary     Summary         `json:"summary"`
	Threats     []events.Threat `json:"threats"`
	Timeline    []TimelineEvent `json:"timeline"`
	Statistics  Statistics      `json:"statistics"`
}

// Build assembles a Report from threats observed within r, typically
// sourced from telemetry.Sink.GetRecentThreats.
func Build(id string, threats []events.Threat, r TimeRange) Report {
	var inRange []events.Threat
	for _, t := range threats {
		if !t.Timestamp.Before(r.From) && !t.Timestamp.After(r.To) {
			inRange = append(inRange, t)
		}
	}

	summary := Summary{TotalThreats: len(inRange)}
	byKind := map[events.ThreatKind]int{}
	bySeverity := map[events.Severity]int{}
	var totalScore float64

	for _, t := range inRange {
		byKind[t.Kind]++
		bySeverity[t.Severity]++
		totalScore += t.Score
		switch t.Severity {
		case events.SeverityCritical:
			summary.CriticalThreats++
		case events.SeverityHigh:
			summary.HighThreats++
		case events.SeverityMedium:
			summary.MediumThreats++
		case events.SeverityLow:
			summary.LowThreats++
		}
	}
	summary.TopThreatKinds = topKinds(byKind, 5)
	summary.OverallRisk = overallRisk(summary)

	timeline := make([]TimelineEvent, 0, len(inRange))
	for _, t := range inRange {
		timeline = append(timeline, TimelineEvent{
			Timestamp:   t.Timestamp,
			Kind:        t.Kind,
			Severity:    t.Severity,
			Description: t.Description,
		})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Timestamp.Before(timeline[j].Timestamp) })

	avgScore := 0.0
	if len(inRange) > 0 {
		avgScore = totalScore / float64(len(inRange))
	}

	return Report{
		ID:          id,
		Title:       "Threat Detection Report",
		GeneratedAt: time.Now(),
		Range:       r,
		Summary:     summary,
		Threats:     sortedBySeverity(inRange),
		Timeline:    timeline,
		Statistics: Statistics{
			TotalThreats:      len(inRange),
			ThreatsByKind:     byKind,
			ThreatsBySeverity: bySeverity,
			AverageScore:      avgScore,
		},
	}
}

func sortedBySeverity(threats []events.Threat) []events.Threat {
	out := make([]events.Threat, len(threats))
	copy(out, threats)
	sort.Slice(out, func(i, j int) bool { return out[j].Severity.Less(out[i].Severity) })
	return out
}

func topKinds(byKind map[events.ThreatKind]int, n int) []string {
	type kindCount struct {
		kind  events.ThreatKind
		count int
	}
	counts := make([]kindCount, 0, len(byKind))
	for k, c := range byKind {
		counts = append(counts, kindCount{k, c})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	if len(counts) > n {
		counts = counts[:n]
	}
	out := make([]string, len(counts))
	for i, kc := range counts {
		out[i] = fmt.Sprintf("%s (%d)", kc.kind, kc.count)
	}
	return out
}

func overallRisk(s Summary) string {
	switch {
	case s.CriticalThreats > 0:
		return "Critical"
	case s.HighThreats > 0:
		return "High"
	case s.MediumThreats > 0:
		return "Medium"
	case s.TotalThreats > 0:
		return "Low"
	default:
		return "None"
	}
}

// Generator writes a Report to disk in one or more formats.
type Generator struct {
	OutputPath string
	Formats    []string
}

// NewGenerator builds a generator writing to outputPath in the given
// formats ("markdown", "json").
func NewGenerator(outputPath string, formats ...string) *Generator {
	return &Generator{OutputPath: outputPath, Formats: formats}
}

// Generate renders report in every configured format.
func (g *Generator) Generate(report Report) error {
	for _, format := range g.Formats {
		switch format {
		case "markdown":
			if err := g.generateMarkdown(report); err != nil {
				return fmt.Errorf("generate markdown report: %w", err)
			}
		case "json":
			if err := g.generateJSON(report); err != nil {
				return fmt.Errorf("generate JSON report: %w", err)
			}
		default:
			return fmt.Errorf("unsupported report format: %s", format)
		}
	}
	return nil
}

func (g *Generator) generateMarkdown(report Report) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", report.Title))
	sb.WriteString(fmt.Sprintf("**Report ID:** %s\n\n", report.ID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Time Range:** %s to %s\n\n",
		report.Range.From.Format("2006-01-02 15:04:05"), report.Range.To.Format("2006-01-02 15:04:05")))
	sb.WriteString("---\n\n")

	sb.WriteString("## Executive Summary\n\n")
	sb.WriteString(fmt.Sprintf("**Overall Risk Level:** %s\n\n", report.Summary.OverallRisk))
	sb.WriteString(fmt.Sprintf("**Total Threats:** %d\n", report.Summary.TotalThreats))
	sb.WriteString(fmt.Sprintf("- Critical: %d\n", report.Summary.CriticalThreats))
	sb.WriteString(fmt.Sprintf("- High: %d\n", report.Summary.HighThreats))
	sb.WriteString(fmt.Sprintf("- Medium: %d\n", report.Summary.MediumThreats))
	sb.WriteString(fmt.Sprintf("- Low: %d\n\n", report.Summary.LowThreats))

	if len(report.Summary.TopThreatKinds) > 0 {
		sb.WriteString("**Top Threat Kinds:**\n")
		for i, kind := range report.Summary.TopThreatKinds {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, kind))
		}
		sb.WriteString("\n")
	}

	if len(report.Threats) > 0 {
		sb.WriteString("## Threats\n\n")
		for _, t := range report.Threats {
			sb.WriteString(fmt.Sprintf("### %s - %s\n\n", t.ID, t.Kind))
			sb.WriteString(fmt.Sprintf("**Severity:** %s | **Score:** %.2f\n\n", t.Severity, t.Score))
			sb.WriteString(fmt.Sprintf("**Time:** %s\n\n", t.Timestamp.Format("2006-01-02 15:04:05")))
			sb.WriteString(fmt.Sprintf("**Description:** %s\n\n", t.Description))
			if len(t.IOCMatches) > 0 {
				sb.WriteString(fmt.Sprintf("**IOC matches:** %s\n\n", strings.Join(t.IOCMatches, ", ")))
			}
			if len(t.RuleMatches) > 0 {
				sb.WriteString(fmt.Sprintf("**Rule matches:** %s\n\n", strings.Join(t.RuleMatches, ", ")))
			}
			sb.WriteString("---\n\n")
		}
	}

	if len(report.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, e := range report.Timeline {
			sb.WriteString(fmt.Sprintf("- **%s** [%s] %s: %s\n",
				e.Timestamp.Format("15:04:05"), strings.ToUpper(e.Severity.String()), e.Kind, e.Description))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Total Threats:** %d\n\n", report.Statistics.TotalThreats))
	sb.WriteString(fmt.Sprintf("**Average Score:** %.2f\n\n", report.Statistics.AverageScore))

	filename := fmt.Sprintf("report_%s_%s.md", report.ID, report.GeneratedAt.Format("20060102_150405"))
	return os.WriteFile(filepath.Join(g.OutputPath, filename), []byte(sb.String()), 0o644)
}

func (g *Generator) generateJSON(report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("report_%s_%s.json", report.ID, report.GeneratedAt.Format("20060102_150405"))
	return os.WriteFile(filepath.Join(g.OutputPath, filename), data, 0o644)
}
