// Package events defines the event schema shared by every probe and the
// severity algebra used throughout the detection pipeline.
package events

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the family of OS-level occurrence an Event records.
type Kind string

const (
	KindProcessCreated     Kind = "ProcessCreated"
	KindProcessTerminated  Kind = "ProcessTerminated"
	KindProcessModified    Kind = "ProcessModified"
	KindFileCreated        Kind = "FileCreated"
	KindFileModified       Kind = "FileModified"
	KindFileDeleted        Kind = "FileDeleted"
	KindFileAccessed       Kind = "FileAccessed"
	KindNetworkConnection  Kind = "NetworkConnection"
	KindNetworkDnsQuery    Kind = "NetworkDnsQuery"
	KindNetworkHttpRequest Kind = "NetworkHttpRequest"
	KindMemoryInjection    Kind = "MemoryInjection"
	KindMemoryAllocation   Kind = "MemoryAllocation"
	KindUserLogin          Kind = "UserLogin"
	KindUserLogout         Kind = "UserLogout"
	KindUserElevation      Kind = "UserElevation"
	KindRootkitDetected    Kind = "RootkitDetected"
	KindSuspiciousBehavior Kind = "SuspiciousBehavior"
)

// Process carries the attributes of a process-family event.
type Process struct {
	PID     int      `json:"pid"`
	PPID    *int     `json:"ppid,omitempty"`
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Cmdline []string `json:"cmdline"`
	User    string   `json:"user"`
	UID     int      `json:"uid"`
}

// File carries the attributes of a file-family event.
type File struct {
	Path        string `json:"path"`
	Operation   string `json:"operation"` // create|modify|delete|attrib|move_to|move_from|execute
	ProcessPID  int    `json:"process_pid"`
	ProcessName string `json:"process_name"`
	User        string `json:"user"`
	Mode        *uint32 `json:"mode,omitempty"`
}

// Network carries the attributes of a network-family event.
type Network struct {
	Protocol      string  `json:"protocol"`
	SourceIP      net.IP  `json:"source_ip"`
	SourcePort    int     `json:"source_port"`
	DestIP        net.IP  `json:"dest_ip"`
	DestPort      int     `json:"dest_port"`
	ProcessPID    *int    `json:"process_pid,omitempty"`
	ProcessName   *string `json:"process_name,omitempty"`
	BytesSent     int64   `json:"bytes_sent"`
	BytesReceived int64   `json:"bytes_received"`
}

// Memory carries the attributes of a memory-family event.
type Memory struct {
	ProcessPID  int    `json:"process_pid"`
	ProcessName string `json:"process_name"`
	Operation   string `json:"operation"`
	Address     uint64 `json:"address"`
	Size        uint64 `json:"size"`
	Permissions string `json:"permissions"`
}

// User carries the attributes of a user-family event.
type User struct {
	Username string  `json:"username"`
	UID      int     `json:"uid"`
	Action   string  `json:"action"` // login|logout|privilege_escalation_<method>
	Terminal *string `json:"terminal,omitempty"`
	RemoteIP *net.IP `json:"remote_ip,omitempty"`
}

// Rootkit carries the attributes of a rootkit-detection event.
type Rootkit struct {
	DetectionKind    string  `json:"detection_kind"`
	Description      string  `json:"description"`
	AffectedPath     *string `json:"affected_path,omitempty"`
	AffectedProcess  *string `json:"affected_process,omitempty"`
}

// Payload is the tagged union of event attribute sets. Exactly one field is
// non-nil, matching the Event's Kind family.
type Payload struct {
	Process *Process `json:"process,omitempty"`
	File    *File    `json:"file,omitempty"`
	Network *Network `json:"network,omitempty"`
	Memory  *Memory  `json:"memory,omitempty"`
	User    *User    `json:"user,omitempty"`
	Rootkit *Rootkit `json:"rootkit,omitempty"`
}

// Event is an immutable, timestamped observation of one OS-level occurrence.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Payload   Payload   `json:"payload"`
}

// NewID returns a fresh process-unique identifier, matching the "fresh
// unique string" requirement.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String())
}

// PID returns the pid carried by whichever payload variant has one, and
// whether one was present. Used by the correlator's per-pid index.
func (e Event) PID() (int, bool) {
	switch {
	case e.Payload.Process != nil:
		return e.Payload.Process.PID, true
	case e.Payload.File != nil:
		return e.Payload.File.ProcessPID, true
	case e.Payload.Network != nil:
		if e.Payload.Network.ProcessPID != nil {
			return *e.Payload.Network.ProcessPID, true
		}
		return 0, false
	case e.Payload.Memory != nil:
		return e.Payload.Memory.ProcessPID, true
	default:
		return 0, false
	}
}

// ValidatePayload reports whether the event's payload variant matches its
// Kind family. SuspiciousBehavior is exempt: it is
// a catch-all kind that may carry whichever payload variant best describes
// the anomaly a probe observed.
func (e Event) ValidatePayload() error {
	if e.Kind == KindSuspiciousBehavior {
		return nil
	}
	family := kindFamily(e.Kind)
	present := e.presentPayload()
	if present != family {
		return fmt.Errorf("event %s: kind %s expects payload %q, got %q", e.ID, e.Kind, family, present)
	}
	return nil
}

func (e Event) presentPayload() string {
	switch {
	case e.Payload.Process != nil:
		return "process"
	case e.Payload.File != nil:
		return "file"
	case e.Payload.Network != nil:
		return "network"
	case e.Payload.Memory != nil:
		return "memory"
	case e.Payload.User != nil:
		return "user"
	case e.Payload.Rootkit != nil:
		return "rootkit"
	default:
		return "none"
	}
}

func kindFamily(k Kind) string {
	switch k {
	case KindProcessCreated, KindProcessTerminated, KindProcessModified:
		return "process"
	case KindFileCreated, KindFileModified, KindFileDeleted, KindFileAccessed:
		return "file"
	case KindNetworkConnection, KindNetworkDnsQuery, KindNetworkHttpRequest:
		return "network"
	case KindMemoryInjection, KindMemoryAllocation:
		return "memory"
	case KindUserLogin, KindUserLogout, KindUserElevation:
		return "user"
	case KindRootkitDetected:
		return "rootkit"
	case KindSuspiciousBehavior:
		return "none" // carries whichever payload the probe attached; not validated
	default:
		return "none"
	}
}
