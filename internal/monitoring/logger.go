// Package monitoring holds the process-wide diagnostic loggers.
//
// Logf is the printf-style facade used throughout nanocall; Logger returns
// the structured zap logger behind it for call sites that attach fields
// such as the read identifier. Both write to stderr so that basecalls on
// stdout stay clean.
package monitoring

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger = newDefault()

	// Logf is the package-level diagnostic logger. It defaults to the zap
	// logger at info level but may be replaced by SetLogger.
	Logf func(format string, v ...interface{}) = logger.Sugar().Infof
)

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Logger returns the structured logger.
func Logger() *zap.Logger {
	return logger
}

// SetZapLogger replaces the structured logger and points Logf at it.
// Passing nil installs a no-op logger.
func SetZapLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	Logf = l.Sugar().Infof
}

// SetVerbose switches the default logger to debug level.
func SetVerbose(verbose bool) {
	if !verbose {
		return
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if l, err := cfg.Build(); err == nil {
		SetZapLogger(l)
	}
}
