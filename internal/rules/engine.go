// Package rules implements the behavioral rule engine: a fixed set of
// hard-coded predicates over events, plus optional operator-supplied YAML
// overrides of the built-in rules' name, description and enabled flag.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vigil-edr/vigil/internal/events"
)

// Rule describes a single behavioral rule: its identity, severity, and
// whether it is currently active. The predicate itself is hard-coded by id
// in Engine.Check.
type Rule struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Severity    events.Severity `yaml:"-" json:"severity"`
	Enabled     bool            `yaml:"enabled" json:"enabled"`
}

// Engine holds the fixed rule set, keyed by id, plus any supplementary
// rules loaded from disk.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine pre-loaded with the ten built-in behavioral
// rules.
func NewEngine() *Engine {
	e := &Engine{}
	e.loadBuiltins()
	return e
}

// LoadSupplementary loads additional rule *metadata* (id, name, description,
// enabled) from YAML files in rulesPath; a rule's severity is not read from
// YAML and cannot be overridden. Custom predicates cannot
// be expressed declaratively in this engine, so supplementary rules only
// ever take effect if their id matches one of the built-in predicate ids
// below — this lets an operator re-describe or disable a built-in rule
// without shipping new Go code.
func (e *Engine) LoadSupplementary(rulesPath string) error {
	if rulesPath == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(rulesPath, "*.yaml"))
	if err != nil {
		return err
	}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read rule file %s: %w", file, err)
		}
		var overrides []Rule
		if err := yaml.Unmarshal(content, &overrides); err != nil {
			return fmt.Errorf("parse rule file %s: %w", file, err)
		}
		for _, o := range overrides {
			e.applyOverride(o)
		}
	}
	return nil
}

func (e *Engine) applyOverride(o Rule) {
	for i, r := range e.rules {
		if r.ID == o.ID {
			if o.Name != "" {
				e.rules[i].Name = o.Name
			}
			if o.Description != "" {
				e.rules[i].Description = o.Description
			}
			e.rules[i].Enabled = o.Enabled
			return
		}
	}
}

// Get returns a rule by id.
func (e *Engine) Get(id string) (Rule, bool) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Check returns every enabled rule id whose predicate holds for e.
func (e *Engine) Check(ev events.Event) []string {
	var matched []string
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if evaluate(r.ID, ev) {
			matched = append(matched, r.ID)
		}
	}
	return matched
}

// evaluate is the hard-coded predicate table for every built-in rule id.
func evaluate(id string, e events.Event) bool {
	switch id {
	case "suspicious_process_location":
		p := e.Payload.Process
		if p == nil {
			return false
		}
		return strings.Contains(p.Path, "/tmp/") ||
			strings.Contains(p.Path, "/dev/shm/") ||
			strings.HasPrefix(p.Path, "/var/tmp/")

	case "root_process_spawn":
		p := e.Payload.Process
		if p == nil || p.UID != 0 {
			return false
		}
		nameLower := strings.ToLower(p.Name)
		suspiciousNames := []string{"nc", "ncat", "bash", "sh", "python", "perl", "ruby"}
		isSuspiciousName := false
		for _, s := range suspiciousNames {
			if strings.Contains(nameLower, s) {
				isSuspiciousName = true
				break
			}
		}
		cmdline := strings.Join(p.Cmdline, " ")
		isSuspiciousLocation := strings.Contains(cmdline, "/tmp/") ||
			strings.Contains(cmdline, "/dev/shm/") ||
			strings.Contains(cmdline, "/var/tmp/")
		notInit := p.PPID == nil || *p.PPID != 1
		return (isSuspiciousName || isSuspiciousLocation) && notInit

	case "suspicious_cmdline":
		p := e.Payload.Process
		if p == nil {
			return false
		}
		cmdline := strings.Join(p.Cmdline, " ")
		return (strings.Contains(cmdline, "wget") && strings.Contains(cmdline, "http")) ||
			(strings.Contains(cmdline, "curl") && strings.Contains(cmdline, "bash")) ||
			strings.Contains(cmdline, "nc -") ||
			strings.Contains(cmdline, "/dev/tcp/")

	case "critical_file_modification":
		f := e.Payload.File
		if f == nil {
			return false
		}
		return strings.Contains(f.Path, "/etc/passwd") ||
			strings.Contains(f.Path, "/etc/shadow") ||
			strings.Contains(f.Path, "/etc/sudoers") ||
			strings.Contains(f.Path, ".ssh/authorized_keys")

	case "hidden_file_execution":
		f := e.Payload.File
		if f == nil {
			return false
		}
		base := filepath.Base(f.Path)
		return strings.HasPrefix(base, ".") && f.Operation == "execute"

	case "uncommon_port_connection":
		n := e.Payload.Network
		if n == nil {
			return false
		}
		switch n.DestPort {
		case 4444, 31337, 1337, 8888, 9999:
			return true
		default:
			return false
		}

	case "high_volume_transfer":
		n := e.Payload.Network
		if n == nil {
			return false
		}
		return n.BytesSent > 100_000_000

	case "privilege_escalation":
		u := e.Payload.User
		if u == nil {
			return false
		}
		return strings.Contains(u.Action, "sudo") || strings.Contains(u.Action, "su")

	case "remote_root_login":
		u := e.Payload.User
		if u == nil {
			return false
		}
		return u.UID == 0 && u.RemoteIP != nil && u.Action == "login"

	case "memory_injection":
		m := e.Payload.Memory
		if m == nil {
			return false
		}
		return strings.Contains(m.Operation, "inject") || strings.Contains(m.Permissions, "rwx")

	default:
		return false
	}
}

func (e *Engine) loadBuiltins() {
	e.rules = []Rule{
		{ID: "suspicious_process_location", Name: "Process Started from Suspicious Location",
			Description: "Detects processes starting from /tmp, /dev/shm, or /var/tmp", Severity: events.SeverityHigh, Enabled: true},
		{ID: "root_process_spawn", Name: "Suspicious Root Process",
			Description: "Detects suspicious processes running as root spawned by something other than init", Severity: events.SeverityHigh, Enabled: true},
		{ID: "suspicious_cmdline", Name: "Suspicious Command Line",
			Description: "Detects suspicious command patterns (reverse shells, downloads)", Severity: events.SeverityHigh, Enabled: true},
		{ID: "critical_file_modification", Name: "Critical System File Modified",
			Description: "Detects modifications to /etc/passwd, /etc/shadow, /etc/sudoers, or SSH keys", Severity: events.SeverityCritical, Enabled: true},
		{ID: "hidden_file_execution", Name: "Hidden File Execution",
			Description: "Detects execution of hidden files (names starting with .)", Severity: events.SeverityMedium, Enabled: true},
		{ID: "uncommon_port_connection", Name: "Connection to Uncommon Port",
			Description: "Detects connections to commonly abused ports", Severity: events.SeverityMedium, Enabled: true},
		{ID: "high_volume_transfer", Name: "High Volume Data Transfer",
			Description: "Detects large data transfers (potential exfiltration)", Severity: events.SeverityHigh, Enabled: true},
		{ID: "privilege_escalation", Name: "Privilege Escalation Attempt",
			Description: "Detects sudo or su usage", Severity: events.SeverityHigh, Enabled: true},
		{ID: "remote_root_login", Name: "Remote Root Login",
			Description: "Detects root login from a remote IP", Severity: events.SeverityCritical, Enabled: true},
		{ID: "memory_injection", Name: "Memory Injection Detected",
			Description: "Detects memory injection or RWX memory permissions", Severity: events.SeverityCritical, Enabled: true},
	}
}
