package workspace

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWithinBase(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path literals")
	}

	tests := []struct {
		name string
		path string
		base string
		want bool
	}{
		{name: "equal", path: "/data", base: "/data", want: true},
		{name: "child", path: "/data/notes/todo.txt", base: "/data", want: true},
		{name: "sibling sharing string prefix", path: "/dataEvil/x", base: "/data", want: false},
		{name: "sibling with dash", path: "/data-evil", base: "/data", want: false},
		{name: "parent", path: "/", base: "/data", want: false},
		{name: "filesystem root as base", path: "/etc/passwd", base: "/", want: true},
		{name: "trailing separator on base", path: "/data/a", base: "/data/", want: true},
		{name: "unclean path", path: "/data/a/../../etc", base: "/data", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isWithinBase(filepath.FromSlash(tt.path), filepath.FromSlash(tt.base)))
		})
	}
}
