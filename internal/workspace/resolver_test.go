package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRoot(t *testing.T) (*Resolver, string) {
	t.Helper()

	tmp := t.TempDir()
	dataDir := filepath.Join(tmp, "data")
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "notes"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes", "todo.txt"), []byte("old"), 0644))

	// Sibling that shares the root's string prefix.
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "dataEvil"), 0755))

	root, err := NewStorageRoot(dataDir)
	require.NoError(t, err)
	return NewResolver(root), root.Path()
}

func TestResolver_Resolve(t *testing.T) {
	resolver, rootPath := setupRoot(t)

	tests := []struct {
		name     string
		userPath string
		want     string // relative to root
	}{
		{name: "existing file", userPath: "notes/todo.txt", want: "notes/todo.txt"},
		{name: "new file", userPath: "notes/new.txt", want: "notes/new.txt"},
		{name: "collapsed dot-dot inside root", userPath: "a/b/../../a/file.txt", want: "a/file.txt"},
		{name: "dot resolves to root", userPath: ".", want: "."},
		{name: "missing intermediate directory", userPath: "missing/dir/file.txt", want: "missing/dir/file.txt"},
		{name: "dots inside a name", userPath: "notes/..hidden..", want: "notes/..hidden.."},
		{name: "trailing slash", userPath: "notes/", want: "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(tt.userPath)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(rootPath, filepath.FromSlash(tt.want)), got.String())
			assert.Equal(t, filepath.FromSlash(tt.want), got.Rel())
		})
	}
}

func TestResolver_RejectsEscapes(t *testing.T) {
	resolver, _ := setupRoot(t)

	for _, userPath := range []string{
		"..",
		"../../etc/passwd",
		"notes/../../secret.txt",
		"a/b/../../../dataEvil/x",
		"../dataEvil/file.txt",
	} {
		t.Run(userPath, func(t *testing.T) {
			_, err := resolver.Resolve(userPath)
			require.Error(t, err)
			assert.True(t, IsEscape(err), "expected escape, got %v", err)
			assert.True(t, IsPathError(err))
		})
	}
}

func TestResolver_RejectsMalformed(t *testing.T) {
	resolver, _ := setupRoot(t)

	for name, userPath := range map[string]string{
		"empty":    "",
		"absolute": "/etc/passwd",
		"nul byte": "notes/todo.txt\x00.png",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := resolver.Resolve(userPath)
			require.Error(t, err)
			assert.True(t, IsMalformed(err), "expected malformed, got %v", err)
			assert.False(t, IsEscape(err))
		})
	}
}

func TestResolver_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	resolver, rootPath := setupRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "target.txt"), []byte("outside"), 0644))

	require.NoError(t, os.Symlink(outside, filepath.Join(rootPath, "escape-dir")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.txt"), filepath.Join(rootPath, "escape-file")))
	require.NoError(t, os.Symlink(filepath.Join(rootPath, "notes"), filepath.Join(rootPath, "notes-link")))
	require.NoError(t, os.Symlink("../notes/todo.txt", filepath.Join(rootPath, "a", "todo-link")))

	t.Run("directory symlink escaping root", func(t *testing.T) {
		_, err := resolver.Resolve("escape-dir/new.txt")
		assert.True(t, IsEscape(err), "got %v", err)
	})

	t.Run("file symlink escaping root", func(t *testing.T) {
		_, err := resolver.Resolve("escape-file")
		assert.True(t, IsEscape(err), "got %v", err)
	})

	t.Run("directory symlink inside root", func(t *testing.T) {
		got, err := resolver.Resolve("notes-link/new.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(rootPath, "notes", "new.txt"), got.String())
	})

	t.Run("relative file symlink inside root", func(t *testing.T) {
		got, err := resolver.Resolve("a/todo-link")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(rootPath, "notes", "todo.txt"), got.String())
	})

	t.Run("symlink loop", func(t *testing.T) {
		require.NoError(t, os.Symlink("loop-b", filepath.Join(rootPath, "loop-a")))
		require.NoError(t, os.Symlink("loop-a", filepath.Join(rootPath, "loop-b")))

		_, err := resolver.Resolve("loop-a/file.txt")
		assert.True(t, IsMalformed(err), "got %v", err)
	})
}

func TestResolver_EnsureParent(t *testing.T) {
	resolver, rootPath := setupRoot(t)

	p, err := resolver.Resolve("deep/er/file.txt")
	require.NoError(t, err)
	require.NoError(t, resolver.EnsureParent(p, 0755))

	info, err := os.Stat(filepath.Join(rootPath, "deep", "er"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	root, err := resolver.Resolve(".")
	require.NoError(t, err)
	assert.NoError(t, resolver.EnsureParent(root, 0755))
}

func TestResolver_EnsureParentDetectsSwappedSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	resolver, rootPath := setupRoot(t)
	outside := t.TempDir()

	p, err := resolver.Resolve("later/file.txt")
	require.NoError(t, err)

	// Directory appears as an escaping symlink between resolution and creation.
	require.NoError(t, os.Symlink(outside, filepath.Join(rootPath, "later")))

	err = resolver.EnsureParent(p, 0755)
	assert.True(t, IsEscape(err), "got %v", err)
}

func TestNewStorageRoot(t *testing.T) {
	_, err := NewStorageRoot("")
	assert.Error(t, err)

	_, err = NewStorageRoot(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = NewStorageRoot(file)
	assert.Error(t, err)

	dir := t.TempDir()
	root, err := NewStorageRoot(filepath.Join(dir, ".", "."))
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root.Path()))
	assert.False(t, root.IsZero())
}
