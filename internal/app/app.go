// Package app wires the language client provider, the toolchain
// version watcher, and the infoview into one application.
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/leantools/leanview/internal/event"
	"github.com/leantools/leanview/internal/infoview"
	"github.com/leantools/leanview/internal/lsp"
	"github.com/leantools/leanview/internal/project"
)

// DefaultRequestTimeout bounds a single goal request.
const DefaultRequestTimeout = 10 * time.Second

// App owns the long-lived components: one language client per project
// root, the version-file watcher, the event bus, and the infoview
// state the panel renders from.
type App struct {
	logger   *Logger
	bus      *event.Bus
	provider *lsp.Provider
	versions *project.Service
	state    *infoview.State
	metrics  *Metrics

	timeout   time.Duration
	serverCfg *lsp.ServerConfig

	mu           sync.Mutex
	subs         []*event.Subscription
	shutdownErr  error
	shutdownOnce sync.Once
}

// Option configures the application.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(l *Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithServerConfig overrides auto-detection of the Lean server.
func WithServerConfig(cfg lsp.ServerConfig) Option {
	return func(a *App) { a.serverCfg = &cfg }
}

// WithRequestTimeout bounds individual goal requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *App) { a.timeout = d }
}

// New creates the application and wires its components together.
// Language servers start lazily, on the first file opened under each
// project root.
func New(opts ...Option) (*App, error) {
	a := &App{
		state:   infoview.NewState(),
		metrics: NewMetrics(),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(DefaultLoggerConfig())
	}

	a.bus = event.NewBus(event.WithPanicHandler(func(topic event.Topic, v any, stack []byte) {
		a.logger.Error("handler panic on %s: %v\n%s", topic, v, stack)
	}))

	versions, err := project.NewService()
	if err != nil {
		return nil, NewComponentError("watcher", "start", err)
	}
	a.versions = versions
	versions.Subscribe(func(ev project.ChangeEvent) {
		a.bus.Publish(event.TopicVersionChanged, ev)
	})

	providerOpts := []lsp.ProviderOption{
		lsp.WithRootFinder(project.FindRootDir),
		lsp.WithEventHandler(func(ev lsp.Event) {
			a.bus.Publish(event.TopicClientEvent, ev)
		}),
		lsp.WithDiagnosticsHandler(func(root string, uri lsp.DocumentURI, diags []lsp.Diagnostic) {
			a.bus.Publish(event.TopicDiagnostics, DiagnosticsEvent{Root: root, URI: uri, Diagnostics: diags})
		}),
		lsp.WithProgressHandler(func(root string, uri lsp.DocumentURI, processing []lsp.FileProgressProcessingInfo) {
			a.bus.Publish(event.TopicFileProgress, ProgressEvent{Root: root, URI: uri, Processing: processing})
		}),
	}
	if a.serverCfg != nil {
		providerOpts = append(providerOpts, lsp.WithServerConfig(*a.serverCfg))
	}
	a.provider = lsp.NewProvider(providerOpts...)

	a.installSubscriptions()
	return a, nil
}

// DiagnosticsEvent is published when a server reports diagnostics.
type DiagnosticsEvent struct {
	Root        string
	URI         lsp.DocumentURI
	Diagnostics []lsp.Diagnostic
}

// ProgressEvent is published when a server reports elaboration
// progress for a file.
type ProgressEvent struct {
	Root       string
	URI        lsp.DocumentURI
	Processing []lsp.FileProgressProcessingInfo
}

// ClientProvider returns the per-root language client provider.
func (a *App) ClientProvider() *lsp.Provider {
	return a.provider
}

// InfoProvider returns the infoview state.
func (a *App) InfoProvider() *infoview.State {
	return a.state
}

// VersionService returns the toolchain version watcher.
func (a *App) VersionService() *project.Service {
	return a.versions
}

// Bus returns the application event bus.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Metrics returns the application counters.
func (a *App) Metrics() *Metrics {
	return a.metrics
}

// Logger returns the application logger.
func (a *App) Logger() *Logger {
	return a.logger
}

// IsLeanFile reports whether a path names a Lean source file.
func IsLeanFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".lean")
}

// OpenFile opens a Lean source file: it resolves the project root,
// gets or starts that root's language client, opens the document, and
// begins watching the root's version files.
func (a *App) OpenFile(ctx context.Context, path string) (*lsp.Client, string, error) {
	if !IsLeanFile(path) {
		return nil, "", ErrNotLeanFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", err
	}

	client, err := a.provider.ClientForPath(ctx, abs)
	if err != nil {
		return nil, "", err
	}
	if err := client.OpenDocument(ctx, abs, string(content)); err != nil && err != lsp.ErrDocumentAlreadyOpen {
		return nil, "", err
	}

	if err := a.versions.WatchRoot(client.Root()); err != nil {
		// Version watching is advisory; the session works without it.
		a.logger.Warn("watch %s: %v", client.Root(), err)
	}

	return client, string(content), nil
}

// RequestGoals asks the file's server for the proof state at a
// position. The term goal and diagnostics ride along when available.
func (a *App) RequestGoals(ctx context.Context, path string, pos lsp.Position) (*infoview.GoalView, []lsp.Diagnostic, error) {
	a.metrics.GoalRequests.Add(1)

	client, err := a.provider.ClientForPath(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := client.PlainGoal(ctx, path, pos)
	if err != nil {
		return nil, nil, err
	}
	view := infoview.ProbePlainGoal(raw)

	if term, err := client.PlainTermGoal(ctx, path, pos); err == nil && term != nil {
		if view == nil {
			view = &infoview.GoalView{}
		}
		view.TermGoal = term
	}

	return view, client.DiagnosticsAt(path, pos), nil
}

// resolveGoals performs the goal request for one generation and
// installs the outcome. Stale generations are dropped by the state;
// the bus only hears about outcomes that stuck.
func (a *App) resolveGoals(ctx context.Context, generation uint64, path string, pos lsp.Position) {
	view, diags, err := a.RequestGoals(ctx, path, pos)
	if err != nil {
		if a.state.Fail(generation, err) {
			a.bus.Publish(event.TopicGoalsUpdated, generation)
		} else {
			a.metrics.StaleResponses.Add(1)
		}
		return
	}
	if a.state.Resolve(generation, view, diags) {
		a.bus.Publish(event.TopicGoalsUpdated, generation)
	} else {
		a.metrics.StaleResponses.Add(1)
	}
}

// MoveCursor records a cursor position and kicks off the goal request
// for it, unless the infoview is paused.
func (a *App) MoveCursor(ctx context.Context, path string, pos lsp.Position) {
	a.bus.Publish(event.TopicCursorMoved, pos)
	generation, ok := a.state.BeginRequest(path, pos)
	if !ok {
		return
	}
	go a.resolveGoals(ctx, generation, path, pos)
}

// Restart restarts the language client serving a path, preserving its
// open documents.
func (a *App) Restart(ctx context.Context, path string) error {
	root, err := a.provider.RootForPath(path)
	if err != nil {
		return err
	}
	a.metrics.ClientRestarts.Add(1)
	return a.provider.Restart(ctx, root)
}

// Shutdown stops all components. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		subs := a.subs
		a.subs = nil
		a.mu.Unlock()

		for _, sub := range subs {
			sub.Unsubscribe()
		}

		var errs ErrorList
		if err := a.versions.Close(); err != nil {
			errs.Add(NewComponentError("watcher", "close", err))
		}
		if err := a.provider.Shutdown(ctx); err != nil {
			errs.Add(NewComponentError("lsp", "shutdown", err))
		}
		a.shutdownErr = errs.AsError()
	})
	return a.shutdownErr
}
