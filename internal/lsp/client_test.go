package lsp

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

// newTestClient wires a Client to an in-process fake Lean server,
// bypassing process spawning. The handler receives every request and
// returns the result to reply with.
func newTestClient(t *testing.T, handle func(method string, msg map[string]any) any) *Client {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()
	srv := newFakeServer(t, serverIn, serverOut)

	go func() {
		for {
			msg, err := srv.read()
			if err != nil {
				return
			}
			method, _ := msg["method"].(string)
			if _, isRequest := msg["id"]; !isRequest {
				continue
			}
			srv.write(map[string]any{
				"jsonrpc": "2.0",
				"id":      msg["id"],
				"result":  handle(method, msg),
			})
		}
	}()

	c := NewClient(ServerConfig{Command: "lean", Timeout: 5 * time.Second}, t.TempDir())
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.transport = NewTransport(clientIn, clientOut, nil)
	c.registerNotificationHandlers()
	c.transport.Start(c.ctx)

	if err := c.initialize(c.ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	c.status.Store(int32(StatusReady))

	t.Cleanup(func() {
		c.cancel()
		c.transport.Close()
		serverOut.Close()
		serverIn.Close()
	})
	return c
}

func initializeResult(method string, msg map[string]any) any {
	if method == "initialize" {
		return map[string]any{
			"capabilities": map[string]any{},
			"serverInfo":   map[string]any{"name": "Lean 4 Server", "version": "4.9.0"},
		}
	}
	return nil
}

func TestClientInitializeHandshake(t *testing.T) {
	c := newTestClient(t, initializeResult)

	info := c.ServerInfo()
	if info == nil || info.Name != "Lean 4 Server" {
		t.Fatalf("ServerInfo = %+v, want Lean 4 Server", info)
	}
	if c.Status() != StatusReady {
		t.Errorf("status = %v, want ready", c.Status())
	}
}

func TestClientDocumentTracking(t *testing.T) {
	c := newTestClient(t, initializeResult)
	ctx := context.Background()

	if err := c.OpenDocument(ctx, "/p/Basic.lean", "def x := 1\n"); err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}
	if err := c.OpenDocument(ctx, "/p/Basic.lean", "def x := 1\n"); err != ErrDocumentAlreadyOpen {
		t.Errorf("second open error = %v, want ErrDocumentAlreadyOpen", err)
	}

	doc, ok := c.Document("/p/Basic.lean")
	if !ok || doc.Version != 1 {
		t.Fatalf("Document = %+v, %v", doc, ok)
	}

	if err := c.UpdateDocument(ctx, "/p/Basic.lean", "def x := 2\n"); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	doc, _ = c.Document("/p/Basic.lean")
	if doc.Version != 2 || doc.Content != "def x := 2\n" {
		t.Errorf("after change: version %d content %q", doc.Version, doc.Content)
	}

	if err := c.CloseDocument(ctx, "/p/Basic.lean"); err != nil {
		t.Fatalf("CloseDocument: %v", err)
	}
	if c.IsDocumentOpen("/p/Basic.lean") {
		t.Error("document still open after close")
	}
	if err := c.UpdateDocument(ctx, "/p/Basic.lean", "x"); err != ErrDocumentNotOpen {
		t.Errorf("change after close error = %v, want ErrDocumentNotOpen", err)
	}
}

func TestClientPlainGoal(t *testing.T) {
	c := newTestClient(t, func(method string, msg map[string]any) any {
		if method == MethodPlainGoal {
			return map[string]any{
				"rendered": "```lean\nn : Nat\n⊢ n = n\n```",
				"goals":    []string{"n : Nat\n⊢ n = n"},
			}
		}
		return initializeResult(method, msg)
	})
	ctx := context.Background()

	if err := c.OpenDocument(ctx, "/p/Basic.lean", "example (n : Nat) : n = n := rfl\n"); err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	raw, err := c.PlainGoal(ctx, "/p/Basic.lean", Position{Line: 0, Character: 20})
	if err != nil {
		t.Fatalf("PlainGoal: %v", err)
	}

	var goal PlainGoal
	if err := json.Unmarshal(raw, &goal); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(goal.Goals) != 1 || goal.Goals[0] != "n : Nat\n⊢ n = n" {
		t.Errorf("goals = %q", goal.Goals)
	}
}

func TestClientPlainGoalNull(t *testing.T) {
	c := newTestClient(t, initializeResult)
	ctx := context.Background()

	if err := c.OpenDocument(ctx, "/p/Basic.lean", "-- comment\n"); err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	raw, err := c.PlainGoal(ctx, "/p/Basic.lean", Position{})
	if err != nil {
		t.Fatalf("PlainGoal: %v", err)
	}
	if raw != nil {
		t.Errorf("raw = %q, want nil for null result", raw)
	}
}

func TestClientPlainGoalRequiresOpenDocument(t *testing.T) {
	c := newTestClient(t, initializeResult)

	_, err := c.PlainGoal(context.Background(), "/p/Unknown.lean", Position{})
	if err != ErrDocumentNotOpen {
		t.Errorf("error = %v, want ErrDocumentNotOpen", err)
	}
}

func TestClientPlainTermGoal(t *testing.T) {
	c := newTestClient(t, func(method string, msg map[string]any) any {
		if method == MethodPlainTermGoal {
			return map[string]any{
				"goal": "⊢ Nat",
				"range": map[string]any{
					"start": map[string]any{"line": 0, "character": 10},
					"end":   map[string]any{"line": 0, "character": 12},
				},
			}
		}
		return initializeResult(method, msg)
	})
	ctx := context.Background()

	if err := c.OpenDocument(ctx, "/p/Basic.lean", "def x := (42 : Nat)\n"); err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	tg, err := c.PlainTermGoal(ctx, "/p/Basic.lean", Position{Line: 0, Character: 11})
	if err != nil {
		t.Fatalf("PlainTermGoal: %v", err)
	}
	if tg == nil || tg.Goal != "⊢ Nat" {
		t.Fatalf("term goal = %+v", tg)
	}
	if tg.Range.Start.Character != 10 {
		t.Errorf("range start = %+v", tg.Range.Start)
	}
}

func TestClientDiagnosticsCaching(t *testing.T) {
	c := newTestClient(t, initializeResult)

	got := make(chan []Diagnostic, 1)
	c.OnDiagnostics(func(uri DocumentURI, diagnostics []Diagnostic) {
		got <- diagnostics
	})

	uri := FilePathToURI("/p/Basic.lean")
	params, _ := json.Marshal(PublishDiagnosticsParams{
		URI: uri,
		Diagnostics: []Diagnostic{{
			Range:    Range{Start: Position{Line: 3}, End: Position{Line: 3, Character: 7}},
			Severity: SeverityError,
			Message:  "unknown identifier 'fo'",
		}},
	})
	c.transport.handleNotification("textDocument/publishDiagnostics", params)

	select {
	case diags := <-got:
		if len(diags) != 1 || diags[0].Message != "unknown identifier 'fo'" {
			t.Fatalf("diags = %+v", diags)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("diagnostics handler not invoked")
	}

	cached := c.Diagnostics("/p/Basic.lean")
	if len(cached) != 1 {
		t.Fatalf("cached = %+v", cached)
	}

	at := c.DiagnosticsAt("/p/Basic.lean", Position{Line: 3, Character: 2})
	if len(at) != 1 {
		t.Errorf("DiagnosticsAt = %+v", at)
	}
	none := c.DiagnosticsAt("/p/Basic.lean", Position{Line: 9})
	if len(none) != 0 {
		t.Errorf("DiagnosticsAt(line 9) = %+v", none)
	}
}

func TestClientFileProgress(t *testing.T) {
	c := newTestClient(t, initializeResult)

	got := make(chan []FileProgressProcessingInfo, 1)
	c.OnFileProgress(func(uri DocumentURI, processing []FileProgressProcessingInfo) {
		got <- processing
	})

	uri := FilePathToURI("/p/Basic.lean")
	params, _ := json.Marshal(FileProgressParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                1,
		},
		Processing: []FileProgressProcessingInfo{
			{Range: Range{End: Position{Line: 40}}, Kind: ProgressProcessing},
		},
	})
	c.transport.handleNotification(MethodFileProgress, params)

	select {
	case processing := <-got:
		if len(processing) != 1 || processing[0].Kind != ProgressProcessing {
			t.Fatalf("processing = %+v", processing)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("progress handler not invoked")
	}

	if p := c.Processing("/p/Basic.lean"); len(p) != 1 {
		t.Errorf("Processing = %+v", p)
	}

	// An empty list clears the entry.
	params, _ = json.Marshal(FileProgressParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
	})
	c.transport.handleNotification(MethodFileProgress, params)
	<-got
	if p := c.Processing("/p/Basic.lean"); len(p) != 0 {
		t.Errorf("Processing after clear = %+v", p)
	}
}
