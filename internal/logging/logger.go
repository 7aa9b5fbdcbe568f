package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V. Higher is chattier.
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// Dir and File locate the log file inside a project's state directory.
const (
	Dir  = "logs"
	File = "modgraph.log"
)

// Options configures New.
type Options struct {
	// Level is one of "info", "verbose", "debug", "trace" or a zap level name.
	Level string
	// Format is "json" or "console".
	Format string
	// File, when set, receives a copy of every entry so failures can be
	// inspected after the daemon exits.
	File string
	// Output defaults to stderr.
	Output io.Writer
}

// Logger bundles the logr front-end with the resources behind it.
type Logger struct {
	logr.Logger
	zap   *uberzap.Logger
	level uberzap.AtomicLevel
	file  *os.File
}

// New builds a zap-backed logr.Logger.
func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	atomic := uberzap.NewAtomicLevelAt(lvl)
	encoderCfg := uberzap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.AddSync(out), atomic)}
	logger := &Logger{level: atomic}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		logger.file = f
		fileEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), atomic))
	}
	logger.zap = uberzap.New(zapcore.NewTee(cores...), uberzap.AddCaller())
	logger.Logger = zapr.NewLogger(logger.zap)
	return logger, nil
}

// SetLevel adjusts verbosity of every logger derived from l.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Close flushes buffered entries and releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	if l.zap != nil {
		_ = l.zap.Sync()
	}
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a level name onto a zap level. logr verbosity N is zap
// level -N, so "debug" enables V(DEBUG) and everything below it.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info", "default":
		return zapcore.Level(-DEFAULT), nil
	case "verbose":
		return zapcore.Level(-VERBOSE), nil
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "trace":
		return zapcore.Level(-TRACE), nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging: unknown level %q", name)
	}
	return lvl, nil
}

// NewTestLogger creates a new Zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	cfg := uberzap.NewDevelopmentConfig()
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(-TRACE))
	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zl)
}
