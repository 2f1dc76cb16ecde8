package lsp

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"time"
)

// RestartPolicy governs crash recovery for managed clients.
type RestartPolicy struct {
	// MaxRestarts is the number of restart attempts before a root is
	// marked failed.
	MaxRestarts int

	// InitialBackoff is the delay before the first restart attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier scales the delay after each failed attempt.
	BackoffMultiplier float64

	// ResetWindow is the uptime after which the restart count resets.
	ResetWindow time.Duration
}

// DefaultRestartPolicy returns the default crash-recovery policy.
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MaxRestarts:       5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		ResetWindow:       5 * time.Minute,
	}
}

// backoffFor returns the delay before restart attempt n (1-based).
func (p RestartPolicy) backoffFor(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt-1)))
	if d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// EventType identifies a client lifecycle event.
type EventType int

const (
	// EventStarted fires when a client becomes ready for a root.
	EventStarted EventType = iota
	// EventStopped fires on deliberate shutdown.
	EventStopped
	// EventCrashed fires when the server process dies unexpectedly.
	EventCrashed
	// EventRestarting fires before each recovery attempt.
	EventRestarting
	// EventRecovered fires when a crashed client is ready again.
	EventRecovered
	// EventRestarted fires after an explicit Restart completes.
	EventRestarted
	// EventFailed fires when the restart budget is exhausted.
	EventFailed
)

// String returns a human-readable event name.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventCrashed:
		return "crashed"
	case EventRestarting:
		return "restarting"
	case EventRecovered:
		return "recovered"
	case EventRestarted:
		return "restarted"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a client lifecycle event.
type Event struct {
	Type    EventType
	Root    string
	Err     error
	Attempt int
}

// RootFinder maps a document path to its project root.
type RootFinder func(path string) (string, error)

// managedClient is a per-root handle with its recovery state.
type managedClient struct {
	root      string
	client    *Client
	restarts  int
	lastStart time.Time
	failed    bool
}

// Provider owns one Lean client per project root. It routes document
// paths to the client for their innermost enclosing root, starts
// clients on demand, restarts them on request (toolchain changes) and
// on crash with exponential backoff.
type Provider struct {
	mu      sync.RWMutex
	clients map[string]*managedClient

	config    ServerConfig
	configFor func(root string) ServerConfig
	finder    RootFinder
	policy    RestartPolicy

	eventCb    func(Event)
	diagCb     func(root string, uri DocumentURI, diagnostics []Diagnostic)
	progressCb func(root string, uri DocumentURI, processing []FileProgressProcessingInfo)

	// startFn launches a constructed client. Tests substitute a
	// pipe-backed server for the process spawn.
	startFn func(ctx context.Context, client *Client) error

	done      chan struct{}
	closeOnce sync.Once
}

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithServerConfig sets the base server configuration for all roots.
func WithServerConfig(config ServerConfig) ProviderOption {
	return func(p *Provider) {
		p.config = config
	}
}

// WithServerConfigFor derives a per-root server configuration,
// overriding the base config.
func WithServerConfigFor(fn func(root string) ServerConfig) ProviderOption {
	return func(p *Provider) {
		p.configFor = fn
	}
}

// WithRootFinder sets the document-path to project-root mapping.
func WithRootFinder(finder RootFinder) ProviderOption {
	return func(p *Provider) {
		p.finder = finder
	}
}

// WithRestartPolicy sets the crash-recovery policy.
func WithRestartPolicy(policy RestartPolicy) ProviderOption {
	return func(p *Provider) {
		p.policy = policy
	}
}

// WithEventHandler sets a callback for client lifecycle events.
func WithEventHandler(cb func(Event)) ProviderOption {
	return func(p *Provider) {
		p.eventCb = cb
	}
}

// WithDiagnosticsHandler forwards diagnostics from every client.
func WithDiagnosticsHandler(cb func(root string, uri DocumentURI, diagnostics []Diagnostic)) ProviderOption {
	return func(p *Provider) {
		p.diagCb = cb
	}
}

// WithProgressHandler forwards file-progress updates from every client.
func WithProgressHandler(cb func(root string, uri DocumentURI, processing []FileProgressProcessingInfo)) ProviderOption {
	return func(p *Provider) {
		p.progressCb = cb
	}
}

// NewProvider creates a provider. Without WithRootFinder, the
// directory containing each document acts as its root.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		clients: make(map[string]*managedClient),
		policy:  DefaultRestartPolicy(),
		finder: func(path string) (string, error) {
			return filepath.Dir(path), nil
		},
		startFn: func(ctx context.Context, client *Client) error {
			return client.Start(ctx)
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RootForPath resolves the project root for a document path.
func (p *Provider) RootForPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return p.finder(abs)
}

// ClientForPath returns the client owning the document's project root,
// starting one if needed. Lookups for paths under the same root return
// the same handle.
func (p *Provider) ClientForPath(ctx context.Context, path string) (*Client, error) {
	root, err := p.RootForPath(path)
	if err != nil {
		return nil, err
	}
	return p.clientForRoot(ctx, root)
}

// Client returns the running client for a root, if any.
func (p *Provider) Client(root string) (*Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mc, ok := p.clients[root]
	if !ok || mc.client == nil {
		return nil, false
	}
	return mc.client, true
}

// Roots returns the roots with a managed client, running or failed.
func (p *Provider) Roots() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	roots := make([]string, 0, len(p.clients))
	for root := range p.clients {
		roots = append(roots, root)
	}
	return roots
}

func (p *Provider) clientForRoot(ctx context.Context, root string) (*Client, error) {
	p.mu.RLock()
	mc, exists := p.clients[root]
	p.mu.RUnlock()

	if exists {
		if mc.failed {
			return nil, &ClientError{Root: root, Err: ErrClientFailed}
		}
		if mc.client != nil {
			return mc.client, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring the write lock.
	if mc, exists = p.clients[root]; exists {
		if mc.failed {
			return nil, &ClientError{Root: root, Err: ErrClientFailed}
		}
		if mc.client != nil {
			return mc.client, nil
		}
	}

	client := NewClient(p.serverConfig(root), root)
	p.wireCallbacks(root, client)

	if err := p.startFn(ctx, client); err != nil {
		return nil, &ClientError{Root: root, Err: err}
	}

	mc = &managedClient{root: root, client: client, lastStart: time.Now()}
	p.clients[root] = mc

	go p.watch(mc, client)
	p.emit(Event{Type: EventStarted, Root: root})
	return client, nil
}

func (p *Provider) serverConfig(root string) ServerConfig {
	if p.configFor != nil {
		return p.configFor(root)
	}
	return p.config
}

func (p *Provider) wireCallbacks(root string, client *Client) {
	if p.diagCb != nil {
		cb := p.diagCb
		client.OnDiagnostics(func(uri DocumentURI, diagnostics []Diagnostic) {
			cb(root, uri, diagnostics)
		})
	}
	if p.progressCb != nil {
		cb := p.progressCb
		client.OnFileProgress(func(uri DocumentURI, processing []FileProgressProcessingInfo) {
			cb(root, uri, processing)
		})
	}
}

func (p *Provider) emit(ev Event) {
	if p.eventCb != nil {
		p.eventCb(ev)
	}
}

// watch waits for the client process to exit and drives recovery.
func (p *Provider) watch(mc *managedClient, client *Client) {
	select {
	case <-p.done:
		return
	case <-client.ExitChannel():
	}

	// A deliberate shutdown or replacement is not a crash.
	if client.Status() == StatusStopped || client.Status() == StatusShuttingDown {
		return
	}
	p.mu.RLock()
	current := p.clients[mc.root] == mc && mc.client == client
	p.mu.RUnlock()
	if !current {
		return
	}

	p.emit(Event{Type: EventCrashed, Root: mc.root, Err: ErrClientCrashed})
	p.recover(mc, client)
}

// recover restarts a crashed client with backoff, re-opening the
// documents that were open before the crash.
func (p *Provider) recover(mc *managedClient, crashed *Client) {
	docs := crashed.OpenDocuments()
	crashed.Shutdown(context.Background())

	p.mu.Lock()
	if time.Since(mc.lastStart) > p.policy.ResetWindow {
		mc.restarts = 0
	}
	mc.client = nil
	p.mu.Unlock()

	for {
		p.mu.Lock()
		mc.restarts++
		attempt := mc.restarts
		p.mu.Unlock()

		if attempt > p.policy.MaxRestarts {
			p.mu.Lock()
			mc.failed = true
			p.mu.Unlock()
			p.emit(Event{Type: EventFailed, Root: mc.root, Err: ErrClientFailed, Attempt: attempt - 1})
			return
		}

		backoff := p.policy.backoffFor(attempt)
		p.emit(Event{Type: EventRestarting, Root: mc.root, Attempt: attempt})

		select {
		case <-p.done:
			return
		case <-time.After(backoff):
		}

		client := NewClient(p.serverConfig(mc.root), mc.root)
		p.wireCallbacks(mc.root, client)

		if err := p.startFn(context.Background(), client); err != nil {
			p.emit(Event{Type: EventCrashed, Root: mc.root, Err: err, Attempt: attempt})
			continue
		}

		reopenDocuments(client, docs)

		p.mu.Lock()
		mc.client = client
		mc.lastStart = time.Now()
		p.mu.Unlock()

		go p.watch(mc, client)
		p.emit(Event{Type: EventRecovered, Root: mc.root, Attempt: attempt})
		return
	}
}

// Restart deliberately replaces the client for a root, preserving its
// open documents. Used when the toolchain version file changes.
func (p *Provider) Restart(ctx context.Context, root string) error {
	p.mu.Lock()
	mc, exists := p.clients[root]
	var old *Client
	if exists {
		old = mc.client
		mc.client = nil
		mc.failed = false
		mc.restarts = 0
	} else {
		mc = &managedClient{root: root}
		p.clients[root] = mc
	}
	p.mu.Unlock()

	var docs []*Document
	if old != nil {
		docs = old.OpenDocuments()
		old.Shutdown(ctx)
	}

	client := NewClient(p.serverConfig(root), root)
	p.wireCallbacks(root, client)

	if err := p.startFn(ctx, client); err != nil {
		return &ClientError{Root: root, Err: err}
	}

	reopenDocuments(client, docs)

	p.mu.Lock()
	mc.client = client
	mc.lastStart = time.Now()
	p.mu.Unlock()

	go p.watch(mc, client)
	p.emit(Event{Type: EventRestarted, Root: root})
	return nil
}

// reopenDocuments replays didOpen for documents that were open on a
// previous client instance.
func reopenDocuments(client *Client, docs []*Document) {
	for _, doc := range docs {
		_ = client.OpenDocument(context.Background(), doc.Path, doc.Content)
	}
}

// Shutdown stops all clients and recovery loops.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.mu.Lock()
	clients := make([]*Client, 0, len(p.clients))
	for _, mc := range p.clients {
		if mc.client != nil {
			clients = append(clients, mc.client)
		}
	}
	p.clients = make(map[string]*managedClient)
	p.mu.Unlock()

	var errs []error
	for _, client := range clients {
		if err := client.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		p.emit(Event{Type: EventStopped, Root: client.Root()})
	}
	return errors.Join(errs...)
}
