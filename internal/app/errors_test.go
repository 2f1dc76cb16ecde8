package app

import (
	"errors"
	"testing"
)

func TestComponentError(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewComponentError("lsp", "start", inner)

	if got := err.Error(); got != "lsp: start: connection refused" {
		t.Errorf("Error = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is does not reach the wrapped error")
	}
}

func TestComponentErrorNoAction(t *testing.T) {
	err := NewComponentError("watcher", "", errors.New("boom"))
	if got := err.Error(); got != "watcher: boom" {
		t.Errorf("Error = %q", got)
	}
}

func TestErrorList(t *testing.T) {
	var list ErrorList
	if list.AsError() != nil {
		t.Error("empty list should be nil error")
	}

	list.Add(nil)
	if list.AsError() != nil {
		t.Error("nil adds should be ignored")
	}

	first := errors.New("first")
	list.Add(first)
	if got := list.AsError().Error(); got != "first" {
		t.Errorf("single error = %q", got)
	}

	list.Add(errors.New("second"))
	if got := list.AsError().Error(); got != "2 errors: first: first" {
		t.Errorf("combined = %q", got)
	}
	if !errors.Is(list.AsError(), first) {
		t.Error("errors.Is does not reach collected errors")
	}
}
