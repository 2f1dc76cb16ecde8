// Package project discovers Lean project roots and tracks their
// toolchain version configuration. The legacy leanpkg.toml and the
// newer lean-toolchain file both name the toolchain; a Service watches
// them and reports version changes so clients can be restarted.
package project
