package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer reads framed messages from r and lets tests script replies
// on w. It mimics the server side of the wire.
type fakeServer struct {
	t      *testing.T
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
}

func newFakeServer(t *testing.T, r io.Reader, w io.Writer) *fakeServer {
	return &fakeServer{t: t, reader: bufio.NewReader(r), writer: w}
}

// read returns the next message body sent by the client.
func (s *fakeServer) read() (map[string]any, error) {
	contentLength := 0
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			contentLength, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, err
	}
	var msg map[string]any
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// write frames and sends a message to the client.
func (s *fakeServer) write(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.t.Fatalf("marshal: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n", len(data))
	s.writer.Write(data)
}

func newTestTransport(t *testing.T) (*Transport, *fakeServer) {
	t.Helper()
	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	tr := NewTransport(clientIn, clientOut, nil)
	tr.Start(context.Background())
	t.Cleanup(func() {
		tr.Close()
		serverOut.Close()
		serverIn.Close()
	})
	return tr, newFakeServer(t, serverIn, serverOut)
}

func TestTransportNotifyFraming(t *testing.T) {
	tr, srv := newTestTransport(t)

	type readResult struct {
		msg map[string]any
		err error
	}
	msgCh := make(chan readResult, 1)
	go func() {
		msg, err := srv.read()
		msgCh <- readResult{msg, err}
	}()

	if err := tr.Notify(context.Background(), "textDocument/didSave", map[string]string{"uri": "file:///x.lean"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	got := <-msgCh
	msg, err := got.msg, got.err
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want 2.0", msg["jsonrpc"])
	}
	if msg["method"] != "textDocument/didSave" {
		t.Errorf("method = %v", msg["method"])
	}
	if _, hasID := msg["id"]; hasID {
		t.Error("notification should not carry an id")
	}
}

func TestTransportCall(t *testing.T) {
	tr, srv := newTestTransport(t)

	go func() {
		msg, err := srv.read()
		if err != nil {
			return
		}
		srv.write(map[string]any{
			"jsonrpc": "2.0",
			"id":      msg["id"],
			"result":  map[string]any{"rendered": "⊢ True"},
		})
	}()

	var result struct {
		Rendered string `json:"rendered"`
	}
	if err := tr.Call(context.Background(), MethodPlainGoal, nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result.Rendered != "⊢ True" {
		t.Errorf("rendered = %q", result.Rendered)
	}
}

func TestTransportCallRPCError(t *testing.T) {
	tr, srv := newTestTransport(t)

	go func() {
		msg, err := srv.read()
		if err != nil {
			return
		}
		srv.write(map[string]any{
			"jsonrpc": "2.0",
			"id":      msg["id"],
			"error":   map[string]any{"code": CodeContentModified, "message": "content modified"},
		})
	}()

	err := tr.Call(context.Background(), MethodPlainGoal, nil, nil)
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("error = %v, want *RPCError", err)
	}
	if rpcErr.Code != CodeContentModified {
		t.Errorf("code = %d, want %d", rpcErr.Code, CodeContentModified)
	}
}

func TestTransportCallNullResult(t *testing.T) {
	tr, srv := newTestTransport(t)

	go func() {
		msg, err := srv.read()
		if err != nil {
			return
		}
		srv.write(map[string]any{"jsonrpc": "2.0", "id": msg["id"], "result": nil})
	}()

	var raw json.RawMessage
	if err := tr.Call(context.Background(), MethodPlainGoal, nil, &raw); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(raw) != 0 && string(raw) != "null" {
		t.Errorf("raw = %q, want empty or null", raw)
	}
}

func TestTransportCallContextCancel(t *testing.T) {
	tr, srv := newTestTransport(t)

	readDone := make(chan struct{})
	type readResult struct {
		msg map[string]any
		err error
	}
	cancelCh := make(chan readResult, 1)
	go func() {
		srv.read() // consume the request, never answer
		close(readDone)
		msg, err := srv.read()
		cancelCh <- readResult{msg, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tr.Call(ctx, MethodPlainGoal, nil, nil)
	if err != context.DeadlineExceeded {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}

	<-readDone
	// Cancellation should have sent $/cancelRequest.
	got := <-cancelCh
	msg, err := got.msg, got.err
	if err != nil {
		t.Fatalf("read cancel: %v", err)
	}
	if msg["method"] != "$/cancelRequest" {
		t.Errorf("method = %v, want $/cancelRequest", msg["method"])
	}
}

func TestTransportNotificationDispatch(t *testing.T) {
	tr, srv := newTestTransport(t)

	got := make(chan json.RawMessage, 1)
	tr.OnNotification(MethodFileProgress, func(method string, params json.RawMessage) {
		got <- params
	})

	srv.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  MethodFileProgress,
		"params": map[string]any{
			"textDocument": map[string]any{"uri": "file:///x.lean", "version": 1},
			"processing":   []any{},
		},
	})

	select {
	case params := <-got:
		var p FileProgressParams
		if err := json.Unmarshal(params, &p); err != nil {
			t.Fatalf("unmarshal params: %v", err)
		}
		if p.TextDocument.URI != "file:///x.lean" {
			t.Errorf("uri = %q", p.TextDocument.URI)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler not invoked")
	}
}

func TestTransportWildcardHandler(t *testing.T) {
	tr, srv := newTestTransport(t)

	got := make(chan string, 1)
	tr.OnNotification("*", func(method string, params json.RawMessage) {
		got <- method
	})

	srv.write(map[string]any{"jsonrpc": "2.0", "method": "window/logMessage", "params": map[string]any{}})

	select {
	case method := <-got:
		if method != "window/logMessage" {
			t.Errorf("method = %q", method)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wildcard handler not invoked")
	}
}

func TestTransportServerRequestAcknowledged(t *testing.T) {
	tr, srv := newTestTransport(t)
	_ = tr

	srv.write(map[string]any{
		"jsonrpc": "2.0",
		"id":      99,
		"method":  "client/registerCapability",
		"params":  map[string]any{},
	})

	msg, err := srv.read()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if id, ok := msg["id"].(float64); !ok || int(id) != 99 {
		t.Errorf("reply id = %v, want 99", msg["id"])
	}
	if _, hasResult := msg["result"]; !hasResult {
		t.Error("reply should carry a result field")
	}
}

func TestTransportCloseReleasesPending(t *testing.T) {
	tr, srv := newTestTransport(t)

	go func() {
		srv.read() // swallow the request
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Call(context.Background(), MethodPlainGoal, nil, nil)
	}()

	time.Sleep(20 * time.Millisecond)
	tr.Close()

	select {
	case err := <-errCh:
		if err != ErrShutdown {
			t.Errorf("error = %v, want ErrShutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not return after Close")
	}
}
