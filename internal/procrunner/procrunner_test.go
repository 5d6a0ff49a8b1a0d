package procrunner

import (
	"testing"
	"time"
)

func TestRunner_Spawn_OnExitFires(t *testing.T) {
	r := New()

	proc, err := r.Spawn("exit 0")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := make(chan error, 1)
	proc.OnExit(func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected exit error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process exit callback")
	}
}

func TestRunner_Spawn_NonZeroExit(t *testing.T) {
	r := New()

	proc, err := r.Spawn("exit 7")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := make(chan error, 1)
	proc.OnExit(func(err error) { done <- err })

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected a non-nil exit error for exit code 7")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process exit callback")
	}
}

func TestRunner_Spawn_ProcessWithStdoutOutputExits(t *testing.T) {
	r := New()

	proc, err := r.Spawn("echo hello")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := make(chan error, 1)
	proc.OnExit(func(err error) { done <- err })

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process exit")
	}
}
