package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithComponent_UsesLatestInit(t *testing.T) {
	log := WithComponent("FILES")

	var buf bytes.Buffer
	Init(Config{Output: &buf, MinLevel: DEBUG, JSON: true})
	t.Cleanup(func() { Init(Config{Output: &bytes.Buffer{}, MinLevel: ERROR}) })

	log.WithField("path", "notes/todo.txt").Info("Uploaded %d bytes", 8)

	out := buf.String()
	assert.Contains(t, out, "FILES")
	assert.Contains(t, out, "Uploaded 8 bytes")
	assert.Contains(t, out, "notes/todo.txt")
}

func TestLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf, MinLevel: WARN})
	t.Cleanup(func() { Init(Config{Output: &bytes.Buffer{}, MinLevel: ERROR}) })

	log := WithComponent("TEST")
	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("visible warn")
	log.ErrorWithStack("visible error", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "boom")
	assert.False(t, log.Enabled(INFO))
	assert.True(t, log.Enabled(ERROR))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" Debug ")
	assert.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}
