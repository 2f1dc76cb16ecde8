package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the client layer.
var (
	// ErrShutdown indicates the transport or client has been shut down.
	ErrShutdown = errors.New("lean client shut down")

	// ErrAlreadyStarted indicates the client is already running.
	ErrAlreadyStarted = errors.New("lean client already started")

	// ErrClientNotReady indicates the client is not ready to handle requests.
	ErrClientNotReady = errors.New("lean client not ready")

	// ErrClientFailed indicates the client exceeded its restart budget.
	ErrClientFailed = errors.New("lean client permanently failed")

	// ErrClientCrashed indicates the server process exited unexpectedly.
	ErrClientCrashed = errors.New("lean server crashed")

	// ErrDocumentNotOpen indicates the document has not been opened.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrDocumentAlreadyOpen indicates the document is already open.
	ErrDocumentAlreadyOpen = errors.New("document already open")

	// ErrNoServer indicates no Lean server executable could be located.
	ErrNoServer = errors.New("no lean server executable found")
)

// RPCError is a JSON-RPC error returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC and LSP error codes the client cares about.
const (
	CodeMethodNotFound   = -32601
	CodeInternalError    = -32603
	CodeRequestCancelled = -32800
	CodeContentModified  = -32801
)

// ClientError wraps an error with the project root it occurred in.
type ClientError struct {
	Root string
	Err  error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client %s: %v", e.Root, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}
