package recorder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"state", &StateError{Op: "append", Phase: PhaseIdle}, "state"},
		{"decode", &DecodeError{Err: errors.New("bad")}, "decode"},
		{"io", &IOError{Op: "write", Path: "/tmp/x.wav", Err: os.ErrClosed}, "io"},
		{"wrapped io", fmt.Errorf("finalize: %w", &IOError{Op: "close", Err: os.ErrClosed}), "io"},
		{"other", errors.New("other error"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStateError_Message(t *testing.T) {
	err := &StateError{Op: "stop", Phase: PhaseFinalized}
	if !strings.Contains(err.Error(), "stop") || !strings.Contains(err.Error(), "finalized") {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestIOError_Unwrap(t *testing.T) {
	err := &IOError{Op: "create", Path: "/nope/call.wav", Err: os.ErrPermission}
	if !errors.Is(err, os.ErrPermission) {
		t.Error("Expected IOError to unwrap to its cause")
	}
	if IsDecodeError(err) || IsStateError(err) {
		t.Error("Expected IOError to be distinguishable from other kinds")
	}
}

func TestIOError_Message(t *testing.T) {
	path := "/p/call.wav"

	bare := &IOError{Op: "write", Path: path, Err: os.ErrClosed}
	if got, want := bare.Error(), "recorder: write /p/call.wav: file already closed"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	wrapped := &IOError{Op: "write", Path: path, Err: &fs.PathError{Op: "write", Path: path, Err: os.ErrClosed}}
	if got, want := wrapped.Error(), "recorder: write: write /p/call.wav: file already closed"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if strings.Count(wrapped.Error(), path) != 1 {
		t.Errorf("Expected path once in message, got %q", wrapped.Error())
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseIdle.String() != "idle" || PhaseStreaming.String() != "streaming" || PhaseFinalized.String() != "finalized" {
		t.Error("Unexpected phase names")
	}
	if Phase(9).String() != "phase(9)" {
		t.Errorf("Unexpected unknown phase name: %s", Phase(9).String())
	}
}
