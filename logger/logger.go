// Package logger builds the zap logger used by the command line tools.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing debug and info entries to stdout and warn,
// error and fatal entries to stderr.  Debug entries are only written when
// debug is true
func New(debug bool) *zap.Logger {
	return NewWithWriters(debug, os.Stdout, os.Stderr)
}

// NewWithWriters is New with the output streams supplied by the caller
func NewWithWriters(debug bool, stdout, stderr io.Writer) *zap.Logger {

	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	stdoutSyncer := zapcore.Lock(zapcore.AddSync(stdout))
	stderrSyncer := zapcore.Lock(zapcore.AddSync(stderr))

	encCfg := zap.NewProductionEncoderConfig()
	outLevel := zapcore.LevelEnabler(infoLevel)

	if debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
		outLevel = debugInfoLevel
	}

	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), stdoutSyncer, outLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), stderrSyncer, warnErrorFatalLevel),
	)

	return zap.New(core)
}
