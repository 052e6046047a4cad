// Package response implements the severity-indexed action ladder that
// turns a threat into a sequence of enforcement actions, and the
// pluggable enforcers that realize those actions on the host.
package response

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vigil-edr/vigil/internal/events"
)

// Action is a declaration of enforcement intent. Every action, Kill
// included, is realized by an Enforcer implementation.
type Action string

const (
	ActionAllow          Action = "Allow"
	ActionBlock          Action = "Block"
	ActionQuarantine     Action = "Quarantine"
	ActionAlert          Action = "Alert"
	ActionKill           Action = "Kill"
	ActionIsolateNetwork Action = "IsolateNetwork"
)

// Result records the outcome of dispatching a single action.
type Result struct {
	Action    Action    `json:"action"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Enforcer realizes a declared action against the host or a remote
// platform (firewall, EDR fleet manager, etc). The engine dispatches every
// action here; ShellEnforcer executes Kill by signalling the target pid.
type Enforcer interface {
	Enforce(ctx context.Context, action Action, threat events.Threat) Result
}

// Engine holds response policy and drives the action ladder.
type Engine struct {
	AutoResponseEnabled bool
	ThreatThreshold     float64
	Enforcer            Enforcer
	// NotifyForensics is the side-channel hook fired for High/Critical
	// threats; the forensic subsystem reads it asynchronously.
	NotifyForensics func(threatID string)
}

// NewEngine builds a response engine backed by enforcer.
func NewEngine(autoResponseEnabled bool, threatThreshold float64, enforcer Enforcer) *Engine {
	return &Engine{
		AutoResponseEnabled: autoResponseEnabled,
		ThreatThreshold:     threatThreshold,
		Enforcer:            enforcer,
	}
}

// HandleThreat always alerts, then walks the severity ladder when
// auto-response is enabled and the threat's score clears the threshold.
func (e *Engine) HandleThreat(ctx context.Context, threat events.Threat) []Result {
	var results []Result

	results = append(results, e.alert(threat))

	if e.AutoResponseEnabled && threat.Score >= e.ThreatThreshold {
		switch threat.Severity {
		case events.SeverityCritical:
			if r, ok := e.killThreatProcess(ctx, threat); ok {
				results = append(results, r)
			}
			results = append(results, e.dispatch(ctx, ActionQuarantine, threat))
		case events.SeverityHigh:
			results = append(results, e.dispatch(ctx, ActionBlock, threat))
			results = append(results, e.dispatch(ctx, ActionQuarantine, threat))
		case events.SeverityMedium:
			results = append(results, e.dispatch(ctx, ActionBlock, threat))
		}
	}

	return results
}

// alert is always executed and fires the forensic side-channel for
// High/Critical threats.
func (e *Engine) alert(threat events.Threat) Result {
	if (threat.Severity == events.SeverityHigh || threat.Severity == events.SeverityCritical) && e.NotifyForensics != nil {
		e.NotifyForensics(threat.ID)
	}
	return Result{
		Action:    ActionAlert,
		Success:   true,
		Message:   fmt.Sprintf("Alert: %s threat detected - Score: %.2f - %s", threat.Kind, threat.Score, threat.Description),
		Timestamp: time.Now(),
	}
}

func (e *Engine) dispatch(ctx context.Context, action Action, threat events.Threat) Result {
	if e.Enforcer == nil {
		return Result{Action: action, Success: false, Message: "no enforcer configured", Timestamp: time.Now()}
	}
	r := e.Enforcer.Enforce(ctx, action, threat)
	if !r.Success {
		log.Warn().Str("threat_id", threat.ID).Str("action", string(action)).Str("message", r.Message).Msg("response action failed")
	}
	return r
}

// killThreatProcess extracts the first pid found among the threat's
// embedded events' Process payloads and dispatches a Kill action for it.
func (e *Engine) killThreatProcess(ctx context.Context, threat events.Threat) (Result, bool) {
	for _, ev := range threat.Events {
		if ev.Payload.Process != nil {
			return e.dispatch(ctx, ActionKill, threat), true
		}
	}
	return Result{}, false
}

// ExecuteAction runs a single action manually, outside the auto ladder.
func (e *Engine) ExecuteAction(ctx context.Context, action Action, threat events.Threat) Result {
	switch action {
	case ActionAlert:
		return e.alert(threat)
	case ActionKill:
		if r, ok := e.killThreatProcess(ctx, threat); ok {
			return r
		}
		return Result{Action: ActionKill, Success: false, Message: "no process to kill", Timestamp: time.Now()}
	default:
		return e.dispatch(ctx, action, threat)
	}
}
