package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	securejoin "github.com/cyphar/filepath-securejoin"

	"upload-server-go/internal/logger"
)

var log = logger.WithComponent("WORKSPACE")

// StorageRoot is the canonical directory every upload must land under.
// It is established once at startup and never changes.
type StorageRoot struct {
	path string
}

// NewStorageRoot canonicalizes dir (absolute, symlink-free) and checks that
// it is an existing directory.
func NewStorageRoot(dir string) (StorageRoot, error) {
	if strings.TrimSpace(dir) == "" {
		return StorageRoot{}, errors.New("storage root is required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return StorageRoot{}, fmt.Errorf("resolve storage root %s: %w", dir, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return StorageRoot{}, fmt.Errorf("resolve storage root %s: %w", dir, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return StorageRoot{}, fmt.Errorf("stat storage root %s: %w", canonical, err)
	}
	if !info.IsDir() {
		return StorageRoot{}, fmt.Errorf("storage root %s is not a directory", canonical)
	}

	return StorageRoot{path: canonical}, nil
}

// Path returns the canonical root directory.
func (r StorageRoot) Path() string {
	return r.path
}

func (r StorageRoot) IsZero() bool {
	return r.path == ""
}

// ResolvedPath is an absolute, canonical path verified to lie inside a
// StorageRoot. Only Resolver.Resolve produces non-zero values.
type ResolvedPath struct {
	path string
	rel  string
}

func (p ResolvedPath) String() string {
	return p.path
}

// Rel returns the path relative to the storage root ("." for the root itself).
func (p ResolvedPath) Rel() string {
	return p.rel
}

func (p ResolvedPath) IsZero() bool {
	return p.path == ""
}

// Resolver turns client-supplied relative paths into verified paths under a
// fixed storage root.
type Resolver struct {
	root StorageRoot
}

func NewResolver(root StorageRoot) *Resolver {
	return &Resolver{root: root}
}

func (r *Resolver) Root() StorageRoot {
	return r.root
}

// Resolve joins userPath onto the storage root, canonicalizes the result and
// verifies containment. The final component, and any missing intermediate
// directories, need not exist.
func (r *Resolver) Resolve(userPath string) (ResolvedPath, error) {
	if r.root.IsZero() {
		return ResolvedPath{}, errors.New("resolver has no storage root")
	}

	if err := checkMalformed(userPath); err != nil {
		return ResolvedPath{}, err
	}

	joined := filepath.Join(r.root.path, userPath)
	if !isWithinBase(joined, r.root.path) {
		return ResolvedPath{}, escape("check_traversal", userPath)
	}

	canonical, err := canonicalize(joined)
	if err != nil {
		return ResolvedPath{}, malformed("canonicalize", userPath, err)
	}
	if !isWithinBase(canonical, r.root.path) {
		log.Warn("Symlink escape attempt: %s -> %s (root: %s)", joined, canonical, r.root.path)
		return ResolvedPath{}, escape("check_symlink", userPath)
	}

	rel, err := filepath.Rel(r.root.path, canonical)
	if err != nil {
		return ResolvedPath{}, malformed("relativize", userPath, err)
	}

	return ResolvedPath{path: canonical, rel: rel}, nil
}

// EnsureParent creates the missing directories above p. Directories are
// created through a scoped join, so a symlink swapped in after Resolve cannot
// redirect creation outside the root.
func (r *Resolver) EnsureParent(p ResolvedPath, perm os.FileMode) error {
	if p.IsZero() {
		return malformed("ensure_parent", "", errors.New("zero resolved path"))
	}
	if p.rel == "." {
		return nil
	}

	parent := filepath.Dir(p.path)
	relParent, err := filepath.Rel(r.root.path, parent)
	if err != nil {
		return malformed("ensure_parent", p.rel, err)
	}

	scoped, err := securejoin.SecureJoin(r.root.path, relParent)
	if err != nil {
		return malformed("ensure_parent", p.rel, err)
	}
	if scoped != parent {
		log.Warn("Parent moved during resolution: %s -> %s (root: %s)", parent, scoped, r.root.path)
		return escape("ensure_parent", p.rel)
	}

	if err := os.MkdirAll(scoped, perm); err != nil {
		return fmt.Errorf("create parent directories for %s: %w", p.rel, err)
	}
	return nil
}

func checkMalformed(userPath string) error {
	switch {
	case userPath == "":
		return malformed("check_empty", userPath, nil)
	case strings.ContainsRune(userPath, 0):
		return malformed("check_nul", userPath, nil)
	case filepath.IsAbs(userPath),
		filepath.VolumeName(userPath) != "",
		strings.HasPrefix(userPath, "/"),
		strings.HasPrefix(userPath, string(filepath.Separator)):
		return malformed("check_absolute", userPath, nil)
	}
	return nil
}

// canonicalize resolves symlinks in the longest existing prefix of p and
// re-appends the components that do not exist yet.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !isMissing(err) {
		return "", err
	}

	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	realParent, err := canonicalize(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(realParent, filepath.Base(p)), nil
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
