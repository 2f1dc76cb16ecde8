package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadLeanVersionToolchainFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.9.0\n")

	if got := ReadLeanVersion(dir); got != "leanprover/lean4:v4.9.0" {
		t.Errorf("version = %q", got)
	}
}

func TestReadLeanVersionLeanpkgToml(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, LeanpkgFile), `[package]
name = "demo"
version = "0.1"
lean_version = "leanprover/lean4:nightly-2024-01-01"
`)

	if got := ReadLeanVersion(dir); got != "leanprover/lean4:nightly-2024-01-01" {
		t.Errorf("version = %q", got)
	}
}

func TestReadLeanVersionToolchainWinsOverLeanpkg(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "leanprover/lean4:v4.10.0")
	writeFile(t, filepath.Join(dir, LeanpkgFile), `[package]
lean_version = "leanprover/lean4:v4.1.0"
`)

	if got := ReadLeanVersion(dir); got != "leanprover/lean4:v4.10.0" {
		t.Errorf("version = %q", got)
	}
}

func TestReadLeanVersionMalformedTomlFallsBackToScan(t *testing.T) {
	dir := t.TempDir()
	// Unclosed table header makes strict TOML parsing fail.
	writeFile(t, filepath.Join(dir, LeanpkgFile), `[package
lean_version = "leanprover/lean4:v4.2.0"
`)

	if got := ReadLeanVersion(dir); got != "leanprover/lean4:v4.2.0" {
		t.Errorf("version = %q", got)
	}
}

func TestReadLeanVersionDefaults(t *testing.T) {
	if got := ReadLeanVersion(t.TempDir()); got != DefaultLeanVersion {
		t.Errorf("missing files: version = %q, want default", got)
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, LeanpkgFile), `[package]
name = "noversion"
`)
	if got := ReadLeanVersion(dir); got != DefaultLeanVersion {
		t.Errorf("no lean_version key: version = %q, want default", got)
	}

	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, ToolchainFile), "  \n")
	if got := ReadLeanVersion(dir); got != DefaultLeanVersion {
		t.Errorf("blank toolchain file: version = %q, want default", got)
	}
}

func TestScanLeanVersion(t *testing.T) {
	cases := []struct {
		content string
		want    string
		ok      bool
	}{
		{`lean_version = "leanprover/lean4:v4.0.0"`, "leanprover/lean4:v4.0.0", true},
		{`lean_version='x'`, "x", true},
		{"  lean_version   =   \"spaced\"  ", "spaced", true},
		{`other_key = "v"`, "", false},
		{`lean_version = ""`, "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := scanLeanVersion(tc.content)
		if got != tc.want || ok != tc.ok {
			t.Errorf("scanLeanVersion(%q) = %q, %v; want %q, %v", tc.content, got, ok, tc.want, tc.ok)
		}
	}
}
