package app

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/leantools/leanview/internal/event"
	"github.com/leantools/leanview/internal/infoview"
	"github.com/leantools/leanview/internal/lsp"
	"github.com/leantools/leanview/internal/project"
)

// Session runs the interactive panel for one file: the document
// viewport, the infoview beside it, and the key loop that drives goal
// requests from cursor movement.
type Session struct {
	app    *App
	screen tcell.Screen
	panel  *infoview.Panel
	client *lsp.Client
	path   string

	redraw chan struct{}
	subs   []*event.Subscription
}

// NewSession opens the file and prepares a session on the given
// screen. Tests pass a simulation screen; Run uses the terminal.
func NewSession(ctx context.Context, a *App, screen tcell.Screen, path string) (*Session, error) {
	client, content, err := a.OpenFile(ctx, path)
	if err != nil {
		return nil, err
	}

	s := &Session{
		app:    a,
		screen: screen,
		client: client,
		path:   path,
		redraw: make(chan struct{}, 1),
	}
	s.panel = infoview.NewPanel(screen, a.InfoProvider(), path, content)

	s.subs = append(s.subs,
		a.Bus().Subscribe(event.TopicGoalsUpdated, func(any) { s.requestRedraw() }),
		a.Bus().Subscribe(event.TopicFileProgress, s.onProgress),
		a.Bus().Subscribe(event.TopicDiagnostics, s.onDiagnostics),
		a.Bus().Subscribe(event.TopicVersionChanged, func(any) { s.requestRedraw() }),
	)
	return s, nil
}

// Run creates the terminal screen and runs the session until the user
// quits or the context is canceled.
func Run(ctx context.Context, a *App, path string) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return NewComponentError("panel", "create screen", err)
	}
	if err := screen.Init(); err != nil {
		return NewComponentError("panel", "init screen", err)
	}
	defer screen.Fini()

	s, err := NewSession(ctx, a, screen, path)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Loop(ctx)
}

// Loop processes terminal and bus events until quit.
func (s *Session) Loop(ctx context.Context) error {
	// Request goals for the initial cursor position before the first
	// paint so the panel never opens blank.
	s.app.MoveCursor(ctx, s.path, s.panel.CursorPosition())
	s.draw()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go s.screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.redraw:
			s.draw()
		case ev, ok := <-events:
			if !ok {
				return ErrQuit
			}
			if done, err := s.handleEvent(ctx, ev); done {
				return err
			}
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, ev tcell.Event) (bool, error) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		s.screen.Sync()
		s.draw()
	case *tcell.EventKey:
		switch s.panel.HandleKey(ev) {
		case infoview.ActionQuit:
			return true, ErrQuit
		case infoview.ActionMoved:
			s.app.MoveCursor(ctx, s.path, s.panel.CursorPosition())
			s.draw()
		case infoview.ActionTogglePause:
			paused := s.app.InfoProvider().TogglePaused()
			if !paused {
				// Resuming refreshes at the current cursor.
				s.app.MoveCursor(ctx, s.path, s.panel.CursorPosition())
			}
			s.draw()
		case infoview.ActionRestart:
			go func() {
				if err := s.app.Restart(ctx, s.path); err != nil {
					s.app.Logger().Error("restart: %v", err)
				}
				s.requestRedraw()
			}()
		}
	}
	return false, nil
}

// onProgress tracks whether the server is still elaborating the
// region around the cursor.
func (s *Session) onProgress(e any) {
	ev, ok := e.(ProgressEvent)
	if !ok || lsp.URIToFilePath(ev.URI) != s.path {
		return
	}

	_, pos := s.app.InfoProvider().Cursor()
	processing := false
	for _, info := range ev.Processing {
		if info.Range.Start.Line <= pos.Line && pos.Line <= info.Range.End.Line {
			processing = true
			break
		}
	}
	s.app.InfoProvider().SetProcessing(processing)
	s.requestRedraw()

	// Elaboration passing the cursor means the goals there may have
	// changed; refresh unless paused.
	if !processing && !s.app.InfoProvider().Paused() {
		s.app.MoveCursor(context.Background(), s.path, pos)
	}
}

// onDiagnostics refreshes the goal view when new diagnostics land on
// this file, so messages appear without cursor movement.
func (s *Session) onDiagnostics(e any) {
	ev, ok := e.(DiagnosticsEvent)
	if !ok || lsp.URIToFilePath(ev.URI) != s.path {
		return
	}
	if s.app.InfoProvider().Paused() {
		return
	}
	_, pos := s.app.InfoProvider().Cursor()
	s.app.MoveCursor(context.Background(), s.path, pos)
}

func (s *Session) requestRedraw() {
	select {
	case s.redraw <- struct{}{}:
	default:
	}
}

func (s *Session) draw() {
	pos := s.panel.CursorPosition()
	left := fmt.Sprintf("%s %d:%d", s.path, pos.Line+1, pos.Character)
	if s.app.InfoProvider().Paused() {
		left += " [paused]"
	}

	version := s.app.VersionService().Version(s.client.Root())
	if version == "" {
		version = project.DefaultLeanVersion
	}
	right := fmt.Sprintf("%s | %s", s.client.Status(), version)

	s.panel.SetStatus(left, right)
	s.panel.Draw()
}

// Close releases the session's bus subscriptions. The screen and the
// client outlive the session; Run finalizes the screen and App
// shutdown stops the clients.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
}
