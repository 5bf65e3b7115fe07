package workspace

import (
	"path/filepath"
	"strings"
)

// isWithinBase reports whether path is base or a descendant of it. Both must
// already be absolute and canonical. Comparison is per path component, so a
// sibling such as "/data-evil" is never inside "/data". Components are
// compared exactly, including on case-insensitive volumes.
func isWithinBase(path, base string) bool {
	pathVol, pathParts := splitComponents(path)
	baseVol, baseParts := splitComponents(base)

	if pathVol != baseVol {
		return false
	}
	if len(pathParts) < len(baseParts) {
		return false
	}
	for i, part := range baseParts {
		if pathParts[i] != part {
			return false
		}
	}
	return true
}

func splitComponents(p string) (string, []string) {
	p = filepath.Clean(p)
	vol := filepath.VolumeName(p)
	rest := strings.Trim(p[len(vol):], string(filepath.Separator))
	if rest == "" {
		return vol, nil
	}
	return vol, strings.Split(rest, string(filepath.Separator))
}
