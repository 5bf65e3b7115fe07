package files

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"upload-server-go/internal/workspace"
)

// DefaultFileMode is applied to newly created files.
const DefaultFileMode os.FileMode = 0o644

const tempSuffix = ".upload-tmp"

// Writer replaces files atomically: readers observe either the previous
// content or the new content, never a mix.
type Writer struct {
	perm os.FileMode

	// beforeRename runs after the temp file is flushed and closed.
	// Tests use it to simulate an interruption.
	beforeRename func(tmpPath string) error
}

// NewWriter returns a Writer that creates new files with perm.
func NewWriter(perm os.FileMode) *Writer {
	if perm == 0 {
		perm = DefaultFileMode
	}
	return &Writer{perm: perm.Perm()}
}

// Write stores contents at path. The parent directory must already exist.
func (w *Writer) Write(path workspace.ResolvedPath, contents []byte) error {
	if path.IsZero() {
		return &WriteError{Op: "write", Path: "", Kind: ErrIOFailure, Err: errors.New("unresolved path")}
	}

	target := path.String()
	dir := filepath.Dir(target)

	mode, err := w.targetMode(target, dir)
	if err != nil {
		return err
	}

	parent, err := os.OpenRoot(dir)
	if err != nil {
		return classify("open_parent", target, err)
	}
	defer parent.Close()

	tmp, tmpName, err := createTemp(parent, filepath.Base(target))
	if err != nil {
		return classify("create_temp", target, err)
	}
	tmpPath := filepath.Join(dir, tmpName)

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = parent.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(contents); err != nil {
		return classify("write_temp", target, err)
	}
	if err := tmp.Sync(); err != nil {
		return classify("sync_temp", target, err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return classify("chmod_temp", target, err)
	}
	if err := tmp.Close(); err != nil {
		return classify("close_temp", target, err)
	}

	if w.beforeRename != nil {
		if err := w.beforeRename(tmpPath); err != nil {
			return classify("rename", target, err)
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
			return &WriteError{Op: "rename", Path: target, Kind: ErrTargetIsDirectory, Err: err}
		}
		return classify("rename", target, err)
	}
	committed = true

	if err := syncDir(dir); err != nil {
		filesLog.Debug("parent directory sync failed | dir=%s err=%v", dir, err)
	}
	return nil
}

// createTemp opens a fresh hidden file next to base. Creation goes through
// parent so a symlink swapped in below the verified directory is not followed.
func createTemp(parent *os.Root, base string) (*os.File, string, error) {
	for range 10 {
		name := "." + base + "." + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + tempSuffix
		f, err := parent.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, name, err
	}
	return nil, "", &os.PathError{Op: "createtemp", Path: base, Err: os.ErrExist}
}

// targetMode validates the parent and target and returns the mode the new
// file should carry.
func (w *Writer) targetMode(target, dir string) (os.FileMode, error) {
	parent, err := os.Stat(dir)
	if err != nil {
		return 0, classify("stat_parent", target, err)
	}
	if !parent.IsDir() {
		return 0, &WriteError{Op: "stat_parent", Path: target, Kind: ErrMissingParent, Err: errors.New("parent is not a directory")}
	}

	info, err := os.Lstat(target)
	switch {
	case err == nil && info.IsDir():
		return 0, &WriteError{Op: "stat_target", Path: target, Kind: ErrTargetIsDirectory}
	case err == nil && info.Mode().IsRegular():
		return info.Mode().Perm(), nil
	case err == nil:
		return w.perm, nil
	case errors.Is(err, os.ErrNotExist):
		return w.perm, nil
	default:
		return 0, classify("stat_target", target, err)
	}
}
