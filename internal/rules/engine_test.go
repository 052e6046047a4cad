package rules

import (
	"net"
	"testing"

	"github.com/vigil-edr/vigil/internal/events"
)

func ptrInt(i int) *int { return &i }

func TestRootProcessSpawnRequiresNonInitParent(t *testing.T) {
	e := NewEngine()
	ev := events.Event{
		Kind: events.KindProcessCreated,
		Payload: events.Payload{
			Process: &events.Process{
				PID: 2000, PPID: ptrInt(1), Name: "bash",
				Path: "/tmp/x/bash", Cmdline: []string{"bash", "-i"}, UID: 0,
			},
		},
	}
	for _, id := range e.Check(ev) {
		if id == "root_process_spawn" {
			t.Fatal("root_process_spawn must not fire when ppid=1")
		}
	}
}

func TestRootProcessSpawnRequiresRootUID(t *testing.T) {
	e := NewEngine()
	ev := events.Event{
		Kind: events.KindProcessCreated,
		Payload: events.Payload{
			Process: &events.Process{
				PID: 2000, PPID: ptrInt(500), Name: "bash",
				Path: "/usr/bin/bash", Cmdline: []string{"bash"}, UID: 1000,
			},
		},
	}
	for _, id := range e.Check(ev) {
		if id == "root_process_spawn" {
			t.Fatal("root_process_spawn must not fire for non-root uid")
		}
	}
}

func TestScenario2SuspiciousShellFromTmp(t *testing.T) {
	e := NewEngine()
	ev := events.Event{
		Kind: events.KindProcessCreated,
		Payload: events.Payload{
			Process: &events.Process{
				PID: 2000, PPID: ptrInt(2), Name: "bash",
				Path: "/tmp/x/bash", Cmdline: []string{"bash", "-i"}, UID: 0,
			},
		},
	}
	matches := e.Check(ev)
	want := map[string]bool{"suspicious_process_location": false, "root_process_spawn": false}
	for _, id := range matches {
		if _, ok := want[id]; ok {
			want[id] = true
		}
	}
	for id, found := range want {
		if !found {
			t.Errorf("expected rule %s to fire, got matches=%v", id, matches)
		}
	}
}

func TestScenario3CriticalFileModification(t *testing.T) {
	e := NewEngine()
	ev := events.Event{
		Kind:    events.KindFileModified,
		Payload: events.Payload{File: &events.File{Path: "/etc/shadow", Operation: "modify", ProcessPID: 3000}},
	}
	matches := e.Check(ev)
	if len(matches) != 1 || matches[0] != "critical_file_modification" {
		t.Errorf("expected only critical_file_modification, got %v", matches)
	}
}

func TestHiddenFileExecution(t *testing.T) {
	e := NewEngine()
	ev := events.Event{
		Kind:    events.KindFileModified,
		Payload: events.Payload{File: &events.File{Path: "/home/user/.hidden", Operation: "execute"}},
	}
	found := false
	for _, id := range e.Check(ev) {
		if id == "hidden_file_execution" {
			found = true
		}
	}
	if !found {
		t.Error("expected hidden_file_execution to fire")
	}
}

func TestRemoteRootLogin(t *testing.T) {
	e := NewEngine()
	ip := net.ParseIP("203.0.113.5")
	ev := events.Event{
		Kind:    events.KindUserLogin,
		Payload: events.Payload{User: &events.User{Username: "root", UID: 0, Action: "login", RemoteIP: &ip}},
	}
	found := false
	for _, id := range e.Check(ev) {
		if id == "remote_root_login" {
			found = true
		}
	}
	if !found {
		t.Error("expected remote_root_login to fire")
	}
}

func TestDisabledRuleNeverMatches(t *testing.T) {
	e := NewEngine()
	for i := range e.rules {
		if e.rules[i].ID == "memory_injection" {
			e.rules[i].Enabled = false
		}
	}
	ev := events.Event{
		Kind: events.KindMemoryInjection,
		Payload: events.Payload{Memory: &events.Memory{Operation: "inject", Permissions: "rwx"}},
	}
	for _, id := range e.Check(ev) {
		if id == "memory_injection" {
			t.Fatal("disabled rule must not appear in matches")
		}
	}
}
