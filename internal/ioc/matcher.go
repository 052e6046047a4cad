// Package ioc implements membership testing of event attributes against
// indicator-of-compromise sets.
package ioc

import (
	"strings"

	"github.com/vigil-edr/vigil/internal/events"
)

// Type enumerates the kinds of indicator values the matcher understands.
type Type string

const (
	TypeFileHash    Type = "FileHash"
	TypeFilePath    Type = "FilePath"
	TypeIPAddress   Type = "IpAddress"
	TypeDomain      Type = "Domain"
	TypeURL         Type = "Url"
	TypeProcessName Type = "ProcessName"
	TypeRegistryKey Type = "RegistryKey"
	TypeMutex       Type = "Mutex"
)

// IOC is a single indicator of compromise.
type IOC struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Value       string          `json:"value"`
	Description string          `json:"description"`
	Severity    events.Severity `json:"severity"`
	Tags        []string        `json:"tags"`
}

// Matcher holds the full IOC set plus type-partitioned lists for fast
// matching.
type Matcher struct {
	byID       map[string]IOC
	hashIOCs   []IOC
	pathIOCs   []IOC
	ipIOCs     []IOC
	domainIOCs []IOC
	procIOCs   []IOC
}

// New creates a matcher pre-loaded with the built-in baseline indicators.
func New() *Matcher {
	m := &Matcher{byID: make(map[string]IOC)}
	m.loadBaseline()
	return m
}

// Add registers an IOC at runtime, partitioning it by type.
func (m *Matcher) Add(ioc IOC) {
	switch ioc.Type {
	case TypeFileHash:
		m.hashIOCs = append(m.hashIOCs, ioc)
	case TypeFilePath:
		m.pathIOCs = append(m.pathIOCs, ioc)
	case TypeIPAddress:
		m.ipIOCs = append(m.ipIOCs, ioc)
	case TypeDomain:
		m.domainIOCs = append(m.domainIOCs, ioc)
	case TypeProcessName:
		m.procIOCs = append(m.procIOCs, ioc)
	}
	m.byID[ioc.ID] = ioc
}

// Get looks up an IOC by id.
func (m *Matcher) Get(id string) (IOC, bool) {
	ioc, ok := m.byID[id]
	return ioc, ok
}

// Count returns the number of distinct loaded IOCs.
func (m *Matcher) Count() int {
	return len(m.byID)
}

// Match tests an event's attributes against the loaded IOCs and returns the
// full list of matched ids (may contain duplicates if distinct IOCs carry
// identical values). Matching is case-sensitive and side-effect free.
func (m *Matcher) Match(e events.Event) []string {
	var matches []string

	switch {
	case e.Payload.Process != nil:
		p := e.Payload.Process
		for _, ioc := range m.procIOCs {
			if strings.Contains(p.Name, ioc.Value) || strings.Contains(p.Path, ioc.Value) {
				matches = append(matches, ioc.ID)
			}
		}
		for _, ioc := range m.pathIOCs {
			if strings.Contains(p.Path, ioc.Value) {
				matches = append(matches, ioc.ID)
			}
		}
	case e.Payload.File != nil:
		f := e.Payload.File
		for _, ioc := range m.pathIOCs {
			if strings.Contains(f.Path, ioc.Value) {
				matches = append(matches, ioc.ID)
			}
		}
	case e.Payload.Network != nil:
		n := e.Payload.Network
		src := n.SourceIP.String()
		dst := n.DestIP.String()
		for _, ioc := range m.ipIOCs {
			if src == ioc.Value || dst == ioc.Value {
				matches = append(matches, ioc.ID)
			}
		}
	}

	return matches
}

// loadBaseline seeds a small set of illustrative built-in indicators.
func (m *Matcher) loadBaseline() {
	suspiciousProcesses := []struct{ name, desc string }{
		{"mimikatz", "Credential dumping tool"},
		{"nc.exe", "Netcat reverse shell"},
		{"psexec", "Remote execution tool"},
		{"whoami", "Reconnaissance command"},
		{"curl", "Potential data exfiltration"},
	}
	for _, sp := range suspiciousProcesses {
		m.Add(IOC{
			ID:          "proc_" + sp.name,
			Type:        TypeProcessName,
			Value:       sp.name,
			Description: sp.desc,
			Severity:    events.SeverityHigh,
			Tags:        []string{"process", "suspicious"},
		})
	}

	suspiciousPaths := []struct{ path, desc string }{
		{"/tmp/", "Temporary directory execution"},
		{"/dev/shm/", "Shared memory execution"},
		{".ssh/authorized_keys", "SSH key modification"},
		{"/etc/passwd", "Password file access"},
		{"/etc/shadow", "Shadow file access"},
	}
	for _, sp := range suspiciousPaths {
		m.Add(IOC{
			ID:          "path_" + strings.ReplaceAll(sp.path, "/", "_"),
			Type:        TypeFilePath,
			Value:       sp.path,
			Description: sp.desc,
			Severity:    events.SeverityMedium,
			Tags:        []string{"file", "suspicious"},
		})
	}

	maliciousIPs := []struct{ ip, desc string }{
		{"0.0.0.0", "Null route"},
		{"127.0.0.1", "Localhost suspicious connection"},
	}
	for _, mi := range maliciousIPs {
		m.Add(IOC{
			ID:          "ip_" + strings.ReplaceAll(mi.ip, ".", "_"),
			Type:        TypeIPAddress,
			Value:       mi.ip,
			Description: mi.desc,
			Severity:    events.SeverityLow,
			Tags:        []string{"network"},
		})
	}
}
