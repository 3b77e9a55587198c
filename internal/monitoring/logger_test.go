package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not reach the previous logger")
}

func TestLogfDefault(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}

func TestSetZapLogger(t *testing.T) {
	origLogger, origLogf := logger, Logf
	defer func() { logger, Logf = origLogger, origLogf }()

	core, logs := observer.New(zap.InfoLevel)
	SetZapLogger(zap.New(core))

	Logf("read %s failed", "r1")
	Logger().Warn("skipped", zap.String("read", "r2"))

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "read r1 failed", entries[0].Message)
		assert.Equal(t, "r2", entries[1].ContextMap()["read"])
	}

	SetZapLogger(nil)
	assert.NotPanics(t, func() { Logf("quiet") })
}
