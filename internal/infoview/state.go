package infoview

import (
	"sync"

	"github.com/leantools/leanview/internal/lsp"
)

// State synchronizes the infoview with the cursor. Each cursor move
// begins a new request generation; only a resolution carrying the
// current generation is accepted, so responses arriving out of order
// can never paint a stale position's goals over a newer one.
type State struct {
	mu sync.Mutex

	path string
	pos  lsp.Position

	generation uint64
	pending    bool
	paused     bool

	view  *GoalView
	prev  *GoalView
	diags []lsp.Diagnostic
	err   error

	processing bool // cursor region still elaborating
}

// Snapshot is a consistent copy of the state for rendering.
type Snapshot struct {
	Path       string
	Pos        lsp.Position
	Pending    bool
	Paused     bool
	Processing bool
	View       *GoalView
	Prev       *GoalView
	Diags      []lsp.Diagnostic
	Err        error
}

// NewState creates an empty infoview state.
func NewState() *State {
	return &State{}
}

// BeginRequest records a new cursor position and returns the
// generation token the eventual resolution must present. While paused
// the cursor still moves but no new generation is issued.
func (s *State) BeginRequest(path string, pos lsp.Position) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.path = path
	s.pos = pos
	if s.paused {
		return 0, false
	}
	s.generation++
	s.pending = true
	return s.generation, true
}

// Resolve installs a resolved view for a generation. Stale
// generations are dropped and the method reports false.
func (s *State) Resolve(generation uint64, view *GoalView, diags []lsp.Diagnostic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}
	s.prev = s.view
	s.view = view
	s.diags = diags
	s.err = nil
	s.pending = false
	return true
}

// Fail records a request failure for a generation.
func (s *State) Fail(generation uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return false
	}
	s.err = err
	s.pending = false
	return true
}

// SetProcessing records whether the server is still elaborating the
// region around the cursor.
func (s *State) SetProcessing(processing bool) {
	s.mu.Lock()
	s.processing = processing
	s.mu.Unlock()
}

// TogglePaused flips auto-update and returns the new value. Resuming
// invalidates the current generation so the next cursor move wins.
func (s *State) TogglePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = !s.paused
	if !s.paused {
		s.generation++
		s.pending = false
	}
	return s.paused
}

// Paused reports whether auto-update is paused.
func (s *State) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Cursor returns the current cursor position.
func (s *State) Cursor() (string, lsp.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path, s.pos
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Path:       s.path,
		Pos:        s.pos,
		Pending:    s.pending,
		Paused:     s.paused,
		Processing: s.processing,
		View:       s.view,
		Prev:       s.prev,
		Diags:      s.diags,
		Err:        s.err,
	}
}

// RenderText renders the current state for display.
func (s *State) RenderText() string {
	snap := s.Snapshot()

	switch {
	case snap.Err != nil:
		return "Error: " + snap.Err.Error()
	case snap.View == nil && snap.Pending:
		return "Loading goals…"
	case snap.View == nil && len(snap.Diags) == 0:
		return "No goal information."
	}

	text := RenderDelta(snap.Prev, snap.View, snap.Diags)
	if snap.Processing {
		text = "Processing…\n\n" + text
	}
	return text
}
