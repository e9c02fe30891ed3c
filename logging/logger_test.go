package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("TEST", "", &buf)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.SetLevel(WARN)
	l.Info("hidden %d", 3)
	l.Error("shown %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[TEST] [INFO] shown 2")
	assert.Contains(t, out, "[TEST] [ERROR] shown 4")
}

func TestLogger_Colour(t *testing.T) {
	var buf bytes.Buffer
	New("SESSION", ColorCyan, &buf).Warn("careful")

	assert.Contains(t, buf.String(), ColorCyan+"[SESSION]"+ColorReset+" [WARN] careful")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("Warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestNilAndDiscard(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("nothing") })
	assert.NotPanics(t, func() { Discard().Error("nothing") })
}
