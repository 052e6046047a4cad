package events

import "time"

// ThreatKind classifies the nature of a detected threat.
type ThreatKind string

const (
	ThreatMalware             ThreatKind = "Malware"
	ThreatRansomware          ThreatKind = "Ransomware"
	ThreatRootkit             ThreatKind = "Rootkit"
	ThreatPrivilegeEscalation ThreatKind = "PrivilegeEscalation"
	ThreatLateralMovement     ThreatKind = "LateralMovement"
	ThreatDataExfiltration    ThreatKind = "DataExfiltration"
	ThreatSuspiciousProcess   ThreatKind = "SuspiciousProcess"
	ThreatSuspiciousNetwork   ThreatKind = "SuspiciousNetwork"
	ThreatAnomalousBehavior   ThreatKind = "AnomalousBehavior"
)

// Threat asserts that one or more events cross the detection threshold. It
// always embeds the triggering event(s); it is immutable after emission.
type Threat struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Kind        ThreatKind `json:"kind"`
	Severity    Severity   `json:"severity"`
	Score       float64    `json:"score"`
	Description string     `json:"description"`
	Events      []Event    `json:"events"`
	IOCMatches  []string   `json:"ioc_matches"`
	RuleMatches []string   `json:"rule_matches"`
}
