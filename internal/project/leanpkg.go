package project

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultLeanVersion is assumed when no version file names a toolchain.
const DefaultLeanVersion = "leanprover/lean4:stable"

// Version file names, in lookup order. The newer lean-toolchain file
// takes precedence over the legacy leanpkg.toml.
const (
	ToolchainFile = "lean-toolchain"
	LeanpkgFile   = "leanpkg.toml"
)

// leanpkgManifest models the single key this tool reads from
// leanpkg.toml.
type leanpkgManifest struct {
	Package struct {
		LeanVersion string `toml:"lean_version"`
	} `toml:"package"`
}

// ReadLeanVersion returns the toolchain version configured for a root,
// falling back to DefaultLeanVersion when no file names one.
func ReadLeanVersion(root string) string {
	if v, ok := readToolchainFile(filepath.Join(root, ToolchainFile)); ok {
		return v
	}
	if v, ok := readLeanpkgFile(filepath.Join(root, LeanpkgFile)); ok {
		return v
	}
	return DefaultLeanVersion
}

// VersionFiles returns the version file paths for a root, existing or
// not; the Service watches all of them.
func VersionFiles(root string) []string {
	return []string{
		filepath.Join(root, ToolchainFile),
		filepath.Join(root, LeanpkgFile),
	}
}

// readToolchainFile reads a lean-toolchain file: the version string on
// a single line.
func readToolchainFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", false
	}
	return v, true
}

// readLeanpkgFile extracts lean_version from a leanpkg.toml. A file
// that fails strict TOML parsing still yields a version if a
// lean_version line can be scanned out, matching the tolerant reader
// editors historically shipped.
func readLeanpkgFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	var manifest leanpkgManifest
	if err := toml.Unmarshal(data, &manifest); err == nil {
		if v := strings.TrimSpace(manifest.Package.LeanVersion); v != "" {
			return v, true
		}
	}

	return scanLeanVersion(string(data))
}

// scanLeanVersion line-scans for `lean_version = "<value>"`.
func scanLeanVersion(content string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, rest, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "lean_version" {
			continue
		}
		v := strings.TrimSpace(rest)
		v = strings.Trim(v, `"'`)
		if v != "" {
			return v, true
		}
	}
	return "", false
}
