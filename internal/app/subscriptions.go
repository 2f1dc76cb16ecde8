package app

import (
	"context"

	"github.com/leantools/leanview/internal/event"
	"github.com/leantools/leanview/internal/lsp"
	"github.com/leantools/leanview/internal/project"
)

// installSubscriptions wires the logging and accounting handlers. The
// panel's redraw subscriptions are wired separately by the session
// that owns the screen.
func (a *App) installSubscriptions() {
	a.subs = append(a.subs,
		a.bus.Subscribe(event.TopicClientEvent, a.onClientEvent),
		a.bus.Subscribe(event.TopicDiagnostics, a.onDiagnostics),
		a.bus.Subscribe(event.TopicVersionChanged, a.onVersionChanged),
	)
}

func (a *App) onClientEvent(e any) {
	ev, ok := e.(lsp.Event)
	if !ok {
		return
	}
	log := a.logger.WithComponent("lsp").WithField("root", ev.Root)
	switch ev.Type {
	case lsp.EventCrashed:
		a.metrics.ClientCrashes.Add(1)
		log.Warn("server crashed: %v", ev.Err)
	case lsp.EventRestarting:
		log.Info("restarting server (attempt %d)", ev.Attempt)
	case lsp.EventRecovered:
		a.metrics.ClientRestarts.Add(1)
		log.Info("server recovered")
	case lsp.EventFailed:
		log.Error("server gave up: %v", ev.Err)
	case lsp.EventStarted:
		log.Info("server started")
	case lsp.EventStopped:
		log.Debug("server stopped")
	case lsp.EventRestarted:
		log.Info("server restarted")
	}
}

func (a *App) onDiagnostics(e any) {
	ev, ok := e.(DiagnosticsEvent)
	if !ok {
		return
	}
	a.metrics.DiagnosticsEvents.Add(1)
	a.logger.WithComponent("lsp").Debug("diagnostics for %s: %d", ev.URI, len(ev.Diagnostics))
}

// onVersionChanged restarts the root's client so the new toolchain
// takes effect; open documents are re-sent to the fresh server.
func (a *App) onVersionChanged(e any) {
	ev, ok := e.(project.ChangeEvent)
	if !ok {
		return
	}
	a.metrics.VersionChanges.Add(1)
	log := a.logger.WithComponent("watcher").WithField("root", ev.Root)
	log.Info("toolchain changed to %s", ev.Version)

	if _, running := a.provider.Client(ev.Root); !running {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		a.metrics.ClientRestarts.Add(1)
		if err := a.provider.Restart(ctx, ev.Root); err != nil {
			log.Error("restart after toolchain change: %v", err)
		}
	}()
}
