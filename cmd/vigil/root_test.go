package main

import (
	"errors"
	"testing"
)

func TestExitCodeForConfigError(t *testing.T) {
	if code := exitCodeForError(configError{errors.New("bad threshold")}); code != 1 {
		t.Errorf("expected exit code 1 for a config error, got %d", code)
	}
}

func TestExitCodeForRuntimeFatalError(t *testing.T) {
	if code := exitCodeForError(runtimeFatalError{errors.New("sink init failed")}); code != 2 {
		t.Errorf("expected exit code 2 for a runtime fatal error, got %d", code)
	}
}

func TestExitCodeDefaultsToOne(t *testing.T) {
	if code := exitCodeForError(errors.New("unclassified error")); code != 1 {
		t.Errorf("expected exit code 1 for an unclassified error, got %d", code)
	}
}
