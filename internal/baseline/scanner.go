// Package baseline implements a one-shot host configuration compliance
// scan: a fixed set of built-in checks over sshd/sudoers/passwd/shadow and
// world-writable paths, plus custom checks loaded from YAML rule files,
// each emitting a Finding that is fed into the detection pipeline as a
// SuspiciousBehavior event.
package baseline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/vigil-edr/vigil/internal/events"
)

// Finding is a single baseline violation discovered on the host.
type Finding struct {
	RuleID      string          `json:"rule_id"`
	Severity    events.Severity `json:"severity"`
	Message     string          `json:"message"`
	Resource    string          `json:"resource"`
	Remediation string          `json:"remediation"`
}

// Rule is a custom, declaratively-checked baseline rule loaded from YAML.
type Rule struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Severity    string  `yaml:"severity"`
	Checks      []Check `yaml:"checks"`
	Remediation string  `yaml:"remediation"`
}

// Check is one condition within a custom rule: the file at Path must have
// its Operator relationship to Value hold, else the rule fires.
type Check struct {
	Path     string      `yaml:"path"`     // filesystem path being inspected
	Operator string      `yaml:"operator"` // exists|not_exists|mode_equals|mode_at_most|owned_by_uid
	Value    interface{} `yaml:"value"`
}

// Config controls which paths the scanner inspects.
type Config struct {
	SSHDConfigPath   string
	SudoersPath      string
	PasswdPath       string
	ShadowPath       string
	WorldWritableDir string
	RulesPath        string
}

// DefaultConfig returns the conventional Linux paths for each built-in
// check.
func DefaultConfig() Config {
	return Config{
		SSHDConfigPath:   "/etc/ssh/sshd_config",
		SudoersPath:      "/etc/sudoers",
		PasswdPath:       "/etc/passwd",
		ShadowPath:       "/etc/shadow",
		WorldWritableDir: "/etc",
	}
}

// Scanner holds the built-in check configuration plus any custom rules.
type Scanner struct {
	Config Config
	Rules  []Rule
}

// NewScanner builds a scanner over cfg, loading custom rules from
// cfg.RulesPath if set.
func NewScanner(cfg Config) (*Scanner, error) {
	s := &Scanner{Config: cfg}
	if cfg.RulesPath != "" {
		if err := s.loadRules(cfg.RulesPath); err != nil {
			return nil, fmt.Errorf("load baseline rules: %w", err)
		}
	}
	return s, nil
}

func (s *Scanner) loadRules(rulesPath string) error {
	files, err := filepath.Glob(filepath.Join(rulesPath, "*.yaml"))
	if err != nil {
		return err
	}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read rule file %s: %w", file, err)
		}
		var rules []Rule
		if err := yaml.Unmarshal(content, &rules); err != nil {
			return fmt.Errorf("parse rule file %s: %w", file, err)
		}
		s.Rules = append(s.Rules, rules...)
	}
	return nil
}

// ScanHost runs every built-in check plus all loaded custom rules and
// returns every finding. Checks that cannot run (missing file, permission
// denied) are skipped, not treated as findings.
func (s *Scanner) ScanHost() []Finding {
	var findings []Finding

	if f := s.checkSSHDRootLogin(); f != nil {
		findings = append(findings, *f)
	}
	if f := s.checkSSHDPasswordAuth(); f != nil {
		findings = append(findings, *f)
	}
	if f := s.checkWorldWritablePermissions(s.Config.SudoersPath, "SEC-BASE-003", "sudoers file is world-writable"); f != nil {
		findings = append(findings, *f)
	}
	if f := s.checkWorldWritablePermissions(s.Config.ShadowPath, "SEC-BASE-004", "shadow file is world-readable or writable"); f != nil {
		findings = append(findings, *f)
	}
	if f := s.checkWorldWritablePermissions(s.Config.PasswdPath, "SEC-BASE-006", "passwd file is world-writable"); f != nil {
		findings = append(findings, *f)
	}
	findings = append(findings, s.checkWorldWritableFiles()...)
	findings = append(findings, s.applyCustomRules()...)

	return findings
}

func (s *Scanner) checkSSHDRootLogin() *Finding {
	content, err := os.ReadFile(s.Config.SSHDConfigPath)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 2 && strings.EqualFold(fields[0], "PermitRootLogin") && !strings.EqualFold(fields[1], "no") {
			return &Finding{
				RuleID:      "SEC-BASE-001",
				Severity:    events.SeverityHigh,
				Message:     "sshd allows root login",
				Resource:    s.Config.SSHDConfigPath,
				Remediation: "Set 'PermitRootLogin no' in sshd_config",
			}
		}
	}
	return nil
}

func (s *Scanner) checkSSHDPasswordAuth() *Finding {
	content, err := os.ReadFile(s.Config.SSHDConfigPath)
	if err != nil {
		return nil
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 2 && strings.EqualFold(fields[0], "PasswordAuthentication") && strings.EqualFold(fields[1], "yes") {
			return &Finding{
				RuleID:      "SEC-BASE-002",
				Severity:    events.SeverityMedium,
				Message:     "sshd allows password authentication",
				Resource:    s.Config.SSHDConfigPath,
				Remediation: "Set 'PasswordAuthentication no' and rely on key-based auth",
			}
		}
	}
	return nil
}

// checkWorldWritablePermissions reports a finding if path is writable (or,
// for the shadow file, readable) by "other".
func (s *Scanner) checkWorldWritablePermissions(path, ruleID, message string) *Finding {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	mode := info.Mode().Perm()
	if mode&0o002 != 0 || (strings.Contains(path, "shadow") && mode&0o004 != 0) {
		return &Finding{
			RuleID:      ruleID,
			Severity:    events.SeverityCritical,
			Message:     message,
			Resource:    path,
			Remediation: fmt.Sprintf("chmod 0600 %s", path),
		}
	}
	return nil
}

// checkWorldWritableFiles walks Config.WorldWritableDir one level deep and
// flags any regular file writable by "other".
func (s *Scanner) checkWorldWritableFiles() []Finding {
	if s.Config.WorldWritableDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.Config.WorldWritableDir)
	if err != nil {
		return nil
	}

	var findings []Finding
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(s.Config.WorldWritableDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o002 != 0 {
			findings = append(findings, Finding{
				RuleID:      "SEC-BASE-005",
				Severity:    events.SeverityMedium,
				Message:     "world-writable file found in watched directory",
				Resource:    path,
				Remediation: fmt.Sprintf("chmod o-w %s", path),
			})
		}
	}
	return findings
}

func (s *Scanner) applyCustomRules() []Finding {
	var findings []Finding
	for _, rule := range s.Rules {
		if len(rule.Checks) == 0 {
			continue
		}
		allHold := true
		skipped := false
		var resource string
		for _, check := range rule.Checks {
			resource = check.Path
			if _, err := os.Stat(check.Path); err != nil && check.Operator != "exists" && check.Operator != "not_exists" {
				skipped = true
				break
			}
			if !evaluateCheck(check) {
				allHold = false
				break
			}
		}
		if !allHold && !skipped {
			findings = append(findings, Finding{
				RuleID:      rule.ID,
				Severity:    severityFromString(rule.Severity),
				Message:     rule.Description,
				Resource:    resource,
				Remediation: rule.Remediation,
			})
		}
	}
	return findings
}

func evaluateCheck(check Check) bool {
	info, err := os.Stat(check.Path)
	if err != nil {
		return check.Operator == "not_exists"
	}

	switch check.Operator {
	case "exists":
		return true
	case "not_exists":
		return false
	case "mode_at_most":
		want, ok := modeValue(check.Value)
		return ok && info.Mode().Perm() <= want
	case "mode_equals":
		want, ok := modeValue(check.Value)
		return ok && info.Mode().Perm() == want
	case "owned_by_uid":
		want, ok := intValue(check.Value)
		stat, statOK := info.Sys().(*syscall.Stat_t)
		return ok && statOK && int(stat.Uid) == want
	default:
		return false
	}
}

func modeValue(v interface{}) (os.FileMode, bool) {
	switch val := v.(type) {
	case string:
		parsed, err := strconv.ParseUint(val, 8, 32)
		if err != nil {
			return 0, false
		}
		return os.FileMode(parsed), true
	case int:
		return os.FileMode(val), true
	default:
		return 0, false
	}
}

func intValue(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func severityFromString(s string) events.Severity {
	switch strings.ToLower(s) {
	case "low":
		return events.SeverityLow
	case "medium":
		return events.SeverityMedium
	case "high":
		return events.SeverityHigh
	case "critical":
		return events.SeverityCritical
	default:
		return events.SeverityInfo
	}
}

// ToEvent converts a finding into a SuspiciousBehavior event for the
// detection pipeline, carrying the finding's resource path as a File
// payload.
func ToEvent(f Finding) events.Event {
	return events.Event{
		ID:       events.NewID("event"),
		Kind:     events.KindSuspiciousBehavior,
		Severity: f.Severity,
		Source:   "baseline",
		Payload: events.Payload{
			File: &events.File{
				Path:      f.Resource,
				Operation: "baseline_violation",
			},
		},
	}
}
