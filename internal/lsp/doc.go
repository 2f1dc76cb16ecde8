// Package lsp implements the client side of the Lean 4 language server
// protocol: a Content-Length framed JSON-RPC transport, a per-project
// client wrapping a lake/lean server subprocess, and a provider that
// routes documents to the client owning their project root.
//
// Beyond the LSP baseline the package speaks the Lean-specific
// extensions carried over $/lean/ methods: plainGoal, plainTermGoal,
// and fileProgress.
package lsp
