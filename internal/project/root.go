package project

import (
	"os"
	"path/filepath"
)

// RootKind identifies which marker established a project root.
type RootKind int

const (
	// KindLake is a Lake project (lakefile.lean or lakefile.toml).
	KindLake RootKind = iota
	// KindToolchain is a directory pinned by a lean-toolchain file.
	KindToolchain
	// KindLeanpkg is a legacy leanpkg project.
	KindLeanpkg
	// KindSingleFile is a bare .lean file outside any project; its
	// containing directory serves as the root.
	KindSingleFile
)

// String returns a human-readable kind name.
func (k RootKind) String() string {
	switch k {
	case KindLake:
		return "lake"
	case KindToolchain:
		return "toolchain"
	case KindLeanpkg:
		return "leanpkg"
	case KindSingleFile:
		return "single file"
	default:
		return "unknown"
	}
}

// Root is a resolved project root.
type Root struct {
	Dir  string
	Kind RootKind
}

// markers in priority order within a directory.
var markers = []struct {
	name string
	kind RootKind
}{
	{"lakefile.lean", KindLake},
	{"lakefile.toml", KindLake},
	{"lean-toolchain", KindToolchain},
	{"leanpkg.toml", KindLeanpkg},
}

// IsLean4Project reports whether dir contains any project marker.
func IsLean4Project(dir string) bool {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m.name)); err == nil {
			return true
		}
	}
	return false
}

// FindRoot resolves the project root for a document path by walking
// upward from its directory; the innermost marked directory wins. A
// file outside any project is its own single-file root.
func FindRoot(path string) (Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Root{}, err
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	for cur := dir; ; {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(cur, m.name)); err == nil {
				return Root{Dir: cur, Kind: m.kind}, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	return Root{Dir: dir, Kind: KindSingleFile}, nil
}

// FindRootDir is FindRoot reduced to the directory, shaped for use as
// an lsp.RootFinder.
func FindRootDir(path string) (string, error) {
	root, err := FindRoot(path)
	if err != nil {
		return "", err
	}
	return root.Dir, nil
}
