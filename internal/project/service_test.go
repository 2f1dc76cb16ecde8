package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T) (*Service, chan ChangeEvent) {
	t.Helper()
	s, err := NewService(WithDebounce(10 * time.Millisecond))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	events := make(chan ChangeEvent, 8)
	s.Subscribe(func(ev ChangeEvent) { events <- ev })
	return s, events
}

func waitEvent(t *testing.T, events chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
		return ChangeEvent{}
	}
}

func TestServiceDetectsToolchainChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.8.0")

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}
	if v := s.Version(dir); v != "leanprover/lean4:v4.8.0" {
		t.Fatalf("initial version = %q", v)
	}

	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	ev := waitEvent(t, events)
	if ev.Version != "leanprover/lean4:v4.9.0" {
		t.Errorf("event version = %q", ev.Version)
	}
	if ev.Root != dir {
		t.Errorf("event root = %q, want %q", ev.Root, dir)
	}
	if v := s.Version(dir); v != "leanprover/lean4:v4.9.0" {
		t.Errorf("cached version = %q", v)
	}
}

func TestServiceDetectsFileCreation(t *testing.T) {
	dir := t.TempDir()

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}
	if v := s.Version(dir); v != DefaultLeanVersion {
		t.Fatalf("initial version = %q, want default", v)
	}

	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	ev := waitEvent(t, events)
	if ev.Version != "leanprover/lean4:v4.9.0" {
		t.Errorf("event version = %q", ev.Version)
	}
}

func TestServiceRemovalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, ToolchainFile)); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events)
	if ev.Version != DefaultLeanVersion {
		t.Errorf("event version = %q, want default", ev.Version)
	}
}

func TestServiceIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}

	writeFile(t, filepath.Join(dir, "Basic.lean"), "def x := 1\n")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServiceNoEventWhenVersionUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}

	// Rewrite with identical content: mtime changes, version does not.
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestServiceUnwatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.8.0")

	s, events := newTestService(t)
	if err := s.WatchRoot(dir); err != nil {
		t.Fatalf("WatchRoot: %v", err)
	}
	s.UnwatchRoot(dir)

	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after unwatch: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
