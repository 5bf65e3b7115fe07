//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package files

import (
	"errors"
	"syscall"
)

func isNoSpace(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

func isReadOnlyFS(err error) bool {
	return errors.Is(err, syscall.EROFS)
}

// Directory handles cannot be fsynced here; the rename is durable on its own.
func syncDir(string) error {
	return nil
}
