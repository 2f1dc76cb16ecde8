package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// LanguageID is the LSP language identifier for Lean 4 sources.
const LanguageID = "lean4"

// ClientStatus indicates the lifecycle state of a client.
type ClientStatus int

const (
	StatusStopped ClientStatus = iota
	StatusStarting
	StatusInitializing
	StatusReady
	StatusShuttingDown
	StatusError
)

// String returns a human-readable status name.
func (s ClientStatus) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusShuttingDown:
		return "shutting down"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// ServerConfig defines how to start a Lean language server.
type ServerConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments.
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory; defaults to the project root.
	WorkDir string

	// InitializationOptions are sent during initialize.
	InitializationOptions any

	// Timeout bounds individual requests (default 30s).
	Timeout time.Duration
}

// DetectServer locates a Lean server on PATH. Lake-managed projects
// serve through `lake serve`; a bare toolchain falls back to
// `lean --server`.
func DetectServer() (ServerConfig, error) {
	if _, err := exec.LookPath("lake"); err == nil {
		return ServerConfig{Command: "lake", Args: []string{"serve", "--"}}, nil
	}
	if _, err := exec.LookPath("lean"); err == nil {
		return ServerConfig{Command: "lean", Args: []string{"--server"}}, nil
	}
	return ServerConfig{}, ErrNoServer
}

// Document is an open document tracked by a client.
type Document struct {
	URI     DocumentURI
	Path    string
	Version int
	Content string
}

// Client is a connection to a single Lean server process serving one
// project root.
type Client struct {
	mu sync.Mutex

	config ServerConfig
	root   string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	transport *Transport

	status     atomic.Int32
	serverInfo *ServerInfo
	lastError  error

	documentsMu sync.RWMutex
	documents   map[DocumentURI]*Document

	diagnosticsMu sync.RWMutex
	diagnostics   map[DocumentURI][]Diagnostic
	diagHandler   func(uri DocumentURI, diagnostics []Diagnostic)

	progressMu      sync.RWMutex
	progress        map[DocumentURI][]FileProgressProcessingInfo
	progressHandler func(uri DocumentURI, processing []FileProgressProcessingInfo)

	ctx    context.Context
	cancel context.CancelFunc
	exitCh chan error
}

// NewClient creates a client for the given project root; it is not
// started until Start is called.
func NewClient(config ServerConfig, root string) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	c := &Client{
		config:      config,
		root:        root,
		documents:   make(map[DocumentURI]*Document),
		diagnostics: make(map[DocumentURI][]Diagnostic),
		progress:    make(map[DocumentURI][]FileProgressProcessingInfo),
		exitCh:      make(chan error, 1),
	}
	c.status.Store(int32(StatusStopped))
	return c
}

// Root returns the project root this client serves.
func (c *Client) Root() string {
	return c.root
}

// Status returns the current lifecycle status.
func (c *Client) Status() ClientStatus {
	return ClientStatus(c.status.Load())
}

// ServerInfo returns the name/version the server reported, if any.
func (c *Client) ServerInfo() *ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// LastError returns the last lifecycle error.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ExitChannel receives the process exit error once the server stops.
func (c *Client) ExitChannel() <-chan error {
	return c.exitCh
}

// OnDiagnostics registers a handler for diagnostic updates.
func (c *Client) OnDiagnostics(handler func(uri DocumentURI, diagnostics []Diagnostic)) {
	c.diagnosticsMu.Lock()
	c.diagHandler = handler
	c.diagnosticsMu.Unlock()
}

// OnFileProgress registers a handler for $/lean/fileProgress updates.
func (c *Client) OnFileProgress(handler func(uri DocumentURI, processing []FileProgressProcessingInfo)) {
	c.progressMu.Lock()
	c.progressHandler = handler
	c.progressMu.Unlock()
}

// Start launches the server process and runs the initialize handshake.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Status() != StatusStopped {
		return ErrAlreadyStarted
	}
	c.status.Store(int32(StatusStarting))

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.startProcess(); err != nil {
		c.status.Store(int32(StatusError))
		c.lastError = err
		return err
	}

	c.transport = NewTransport(c.stdout, c.stdin, nil)
	c.registerNotificationHandlers()
	c.transport.Start(c.ctx)

	go c.monitorProcess()

	c.status.Store(int32(StatusInitializing))
	if err := c.initialize(c.ctx); err != nil {
		c.status.Store(int32(StatusError))
		c.lastError = err
		c.stopProcess()
		return fmt.Errorf("initialize: %w", err)
	}

	c.status.Store(int32(StatusReady))
	return nil
}

func (c *Client) startProcess() error {
	cmd := exec.CommandContext(c.ctx, c.config.Command, c.config.Args...)

	cmd.Env = os.Environ()
	for k, v := range c.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if c.config.WorkDir != "" {
		cmd.Dir = c.config.WorkDir
	} else {
		cmd.Dir = c.root
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return fmt.Errorf("start %s: %w", c.config.Command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.stderr = stderr

	// Drain stderr so the server cannot block on a full pipe.
	go func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()

	return nil
}

func (c *Client) monitorProcess() {
	if c.cmd == nil {
		return
	}
	err := c.cmd.Wait()
	select {
	case c.exitCh <- err:
	default:
	}
}

func (c *Client) stopProcess() {
	if c.transport != nil {
		c.transport.Close()
	}
	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdout != nil {
		c.stdout.Close()
	}
	if c.stderr != nil {
		c.stderr.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProcessID:             os.Getpid(),
		RootURI:               FilePathToURI(c.root),
		Capabilities:          DefaultClientCapabilities(),
		InitializationOptions: c.config.InitializationOptions,
		WorkspaceFolders: []WorkspaceFolder{
			{URI: FilePathToURI(c.root), Name: c.root},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result InitializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}
	c.serverInfo = result.ServerInfo

	if err := c.transport.Notify(ctx, "initialized", InitializedParams{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

func (c *Client) registerNotificationHandlers() {
	c.transport.OnNotification("textDocument/publishDiagnostics", func(method string, params json.RawMessage) {
		var p PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}

		c.diagnosticsMu.Lock()
		if len(p.Diagnostics) == 0 {
			delete(c.diagnostics, p.URI)
		} else {
			c.diagnostics[p.URI] = p.Diagnostics
		}
		handler := c.diagHandler
		c.diagnosticsMu.Unlock()

		if handler != nil {
			handler(p.URI, p.Diagnostics)
		}
	})

	c.transport.OnNotification(MethodFileProgress, func(method string, params json.RawMessage) {
		var p FileProgressParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}

		c.progressMu.Lock()
		if len(p.Processing) == 0 {
			delete(c.progress, p.TextDocument.URI)
		} else {
			c.progress[p.TextDocument.URI] = p.Processing
		}
		handler := c.progressHandler
		c.progressMu.Unlock()

		if handler != nil {
			handler(p.TextDocument.URI, p.Processing)
		}
	})

	// window/logMessage and $/lean/ileanInfo arrive constantly; there
	// is nothing to do with them here.
	c.transport.OnNotification("*", func(method string, params json.RawMessage) {})
}

// Shutdown gracefully stops the server.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.Status()
	if status == StatusStopped || status == StatusShuttingDown {
		return nil
	}
	c.status.Store(int32(StatusShuttingDown))

	if c.transport != nil && !c.transport.IsClosed() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = c.transport.Call(shutdownCtx, "shutdown", nil, nil)
		_ = c.transport.Notify(shutdownCtx, "exit", nil)
		cancel()
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.stopProcess()

	c.status.Store(int32(StatusStopped))
	return nil
}

// --- Document management ---

// OpenDocument sends didOpen for a document.
func (c *Client) OpenDocument(ctx context.Context, path, content string) error {
	if c.Status() != StatusReady {
		return ErrClientNotReady
	}
	uri := FilePathToURI(path)

	c.documentsMu.Lock()
	if _, exists := c.documents[uri]; exists {
		c.documentsMu.Unlock()
		return ErrDocumentAlreadyOpen
	}
	c.documents[uri] = &Document{URI: uri, Path: path, Version: 1, Content: content}
	c.documentsMu.Unlock()

	return c.transport.Notify(ctx, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: LanguageID,
			Version:    1,
			Text:       content,
		},
	})
}

// CloseDocument sends didClose and forgets the document.
func (c *Client) CloseDocument(ctx context.Context, path string) error {
	if c.Status() != StatusReady {
		return ErrClientNotReady
	}
	uri := FilePathToURI(path)

	c.documentsMu.Lock()
	if _, exists := c.documents[uri]; !exists {
		c.documentsMu.Unlock()
		return ErrDocumentNotOpen
	}
	delete(c.documents, uri)
	c.documentsMu.Unlock()

	c.diagnosticsMu.Lock()
	delete(c.diagnostics, uri)
	c.diagnosticsMu.Unlock()

	return c.transport.Notify(ctx, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// UpdateDocument sends a full-content didChange.
func (c *Client) UpdateDocument(ctx context.Context, path, content string) error {
	if c.Status() != StatusReady {
		return ErrClientNotReady
	}
	uri := FilePathToURI(path)

	c.documentsMu.Lock()
	doc, exists := c.documents[uri]
	if !exists {
		c.documentsMu.Unlock()
		return ErrDocumentNotOpen
	}
	doc.Version++
	doc.Content = content
	version := doc.Version
	c.documentsMu.Unlock()

	return c.transport.Notify(ctx, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: content}},
	})
}

// SaveDocument sends didSave.
func (c *Client) SaveDocument(ctx context.Context, path string) error {
	if c.Status() != StatusReady {
		return ErrClientNotReady
	}
	return c.transport.Notify(ctx, "textDocument/didSave", DidSaveTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
	})
}

// Document returns a copy of an open document.
func (c *Client) Document(path string) (*Document, bool) {
	uri := FilePathToURI(path)
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	doc, exists := c.documents[uri]
	if !exists {
		return nil, false
	}
	cp := *doc
	return &cp, true
}

// OpenDocuments returns copies of all open documents.
func (c *Client) OpenDocuments() []*Document {
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()

	docs := make([]*Document, 0, len(c.documents))
	for _, doc := range c.documents {
		cp := *doc
		docs = append(docs, &cp)
	}
	return docs
}

// IsDocumentOpen reports whether the document is open.
func (c *Client) IsDocumentOpen(path string) bool {
	uri := FilePathToURI(path)
	c.documentsMu.RLock()
	defer c.documentsMu.RUnlock()
	_, exists := c.documents[uri]
	return exists
}

// --- Diagnostics and progress ---

// Diagnostics returns the cached diagnostics for a document.
func (c *Client) Diagnostics(path string) []Diagnostic {
	uri := FilePathToURI(path)
	c.diagnosticsMu.RLock()
	defer c.diagnosticsMu.RUnlock()
	return c.diagnostics[uri]
}

// DiagnosticsAt returns the diagnostics whose range covers pos.
func (c *Client) DiagnosticsAt(path string, pos Position) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.Diagnostics(path) {
		if d.Range.Contains(pos) || d.Range.Start.Line == pos.Line {
			out = append(out, d)
		}
	}
	return out
}

// Processing returns the regions of the document still elaborating.
func (c *Client) Processing(path string) []FileProgressProcessingInfo {
	uri := FilePathToURI(path)
	c.progressMu.RLock()
	defer c.progressMu.RUnlock()
	return c.progress[uri]
}

// --- Lean extension requests ---

// PlainGoal issues $/lean/plainGoal at a position. The raw result is
// returned because its shape varies across server versions; a null
// result yields nil.
func (c *Client) PlainGoal(ctx context.Context, path string, pos Position) (json.RawMessage, error) {
	if c.Status() != StatusReady {
		return nil, ErrClientNotReady
	}
	if !c.IsDocumentOpen(path) {
		return nil, ErrDocumentNotOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var raw json.RawMessage
	err := c.transport.Call(ctx, MethodPlainGoal, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
		Position:     pos,
	}, &raw)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

// PlainTermGoal issues $/lean/plainTermGoal at a position; nil means
// the cursor is not inside a term.
func (c *Client) PlainTermGoal(ctx context.Context, path string, pos Position) (*PlainTermGoal, error) {
	if c.Status() != StatusReady {
		return nil, ErrClientNotReady
	}
	if !c.IsDocumentOpen(path) {
		return nil, ErrDocumentNotOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result *PlainTermGoal
	err := c.transport.Call(ctx, MethodPlainTermGoal, TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: FilePathToURI(path)},
		Position:     pos,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}
