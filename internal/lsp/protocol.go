package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// DocumentURI is an LSP file URI.
type DocumentURI string

// Position is an LSP position: 0-based line, UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is an LSP range, end exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos falls inside the range.
func (r Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier adds a version number.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem is the full document payload sent on didOpen.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentPositionParams is the common request payload for
// position-based queries, including the Lean plain goal requests.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// WorkspaceFolder names a workspace root.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// InitializeParams is the initialize request payload.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               DocumentURI        `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// ClientCapabilities declares what this client understands. The Lean
// server keys widget support off the lean extension block.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Window       map[string]any                 `json:"window,omitempty"`
	Workspace    map[string]any                 `json:"workspace,omitempty"`
}

// TextDocumentClientCapabilities is the textDocument capability block.
type TextDocumentClientCapabilities struct {
	PublishDiagnostics map[string]any `json:"publishDiagnostics,omitempty"`
	Synchronization    map[string]any `json:"synchronization,omitempty"`
}

// DefaultClientCapabilities returns the capabilities leanview announces.
func DefaultClientCapabilities() ClientCapabilities {
	return ClientCapabilities{
		TextDocument: TextDocumentClientCapabilities{
			PublishDiagnostics: map[string]any{"relatedInformation": true},
			Synchronization:    map[string]any{"didSave": true},
		},
		Window: map[string]any{"workDoneProgress": true},
	}
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// ServerInfo names the server, e.g. "Lean 4 Server".
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams is the (empty) initialized notification payload.
type InitializedParams struct{}

// DidOpenTextDocumentParams notifies the server of an opened document.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams notifies the server of a closed document.
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// TextDocumentContentChangeEvent is a single document change. A nil
// Range means full-content replacement.
type TextDocumentContentChangeEvent struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// DidChangeTextDocumentParams carries document changes.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidSaveTextDocumentParams notifies the server of a save.
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         string                 `json:"text,omitempty"`
}

// Diagnostic severities.
const (
	SeverityError   = 1
	SeverityWarning = 2
	SeverityInfo    = 3
	SeverityHint    = 4
)

// Diagnostic is an LSP diagnostic.
type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// PublishDiagnosticsParams carries diagnostics for one document.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Lean extension methods layered on top of LSP.
const (
	MethodPlainGoal     = "$/lean/plainGoal"
	MethodPlainTermGoal = "$/lean/plainTermGoal"
	MethodFileProgress  = "$/lean/fileProgress"
)

// PlainGoal is the $/lean/plainGoal result: goals at a cursor position
// as plain strings plus a pre-rendered markdown form.
type PlainGoal struct {
	Rendered string   `json:"rendered"`
	Goals    []string `json:"goals"`
}

// PlainTermGoal is the $/lean/plainTermGoal result: the type expected
// at the term surrounding the cursor.
type PlainTermGoal struct {
	Goal  string `json:"goal"`
	Range Range  `json:"range"`
}

// File progress processing kinds.
const (
	ProgressProcessing = 1
	ProgressFatalError = 2
)

// FileProgressProcessingInfo is one still-processing region.
type FileProgressProcessingInfo struct {
	Range Range `json:"range"`
	Kind  int   `json:"kind,omitempty"`
}

// FileProgressParams is the $/lean/fileProgress notification payload.
// An empty Processing list means the file is fully elaborated.
type FileProgressParams struct {
	TextDocument VersionedTextDocumentIdentifier `json:"textDocument"`
	Processing   []FileProgressProcessingInfo    `json:"processing"`
}

// FilePathToURI converts an absolute or relative file path to a file URI.
func FilePathToURI(path string) DocumentURI {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = filepath.ToSlash(abs)
	if runtime.GOOS == "windows" && !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := url.URL{Scheme: "file", Path: abs}
	return DocumentURI(u.String())
}

// URIToFilePath converts a file URI back to a native file path.
func URIToFilePath(uri DocumentURI) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	path := u.Path
	if runtime.GOOS == "windows" {
		path = strings.TrimPrefix(path, "/")
	}
	return filepath.FromSlash(path)
}
