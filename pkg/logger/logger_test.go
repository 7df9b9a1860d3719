package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(opts Options, f func(log *slog.Logger)) string {
	var buf bytes.Buffer
	f(NewLogger(&buf, opts))
	return buf.String()
}

func TestLevelFiltering(t *testing.T) {
	out := capture(Options{Level: slog.LevelWarn, NoColor: true}, func(log *slog.Logger) {
		log.Debug("hidden")
		log.Info("also hidden")
		log.Warn("visible")
	})
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  visible")
}

func TestAttrsAndGroups(t *testing.T) {
	out := capture(Options{NoColor: true}, func(log *slog.Logger) {
		log.With("component", "store").WithGroup("req").Info("patched", "id", "r1")
	})
	assert.Contains(t, out, "component=store")
	assert.Contains(t, out, "req.id=r1")
}

func TestErrorLevelColored(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	out := capture(Options{}, func(log *slog.Logger) {
		log.Error("boom")
	})
	assert.Contains(t, out, colorRed)
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, "\n"), colorReset))
}

func TestHighlightKeywords(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	out := capture(Options{}, func(log *slog.Logger) {
		log.Info("records persisted", "count", 3)
	})
	assert.Contains(t, out, colorGreen)

	out = capture(Options{}, func(log *slog.Logger) {
		log.Info("plain message")
	})
	assert.NotContains(t, out, colorGreen)
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := capture(Options{}, func(log *slog.Logger) {
		log.Error("boom")
	})
	assert.NotContains(t, out, colorRed)
}
