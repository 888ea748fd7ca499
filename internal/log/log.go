// Package log is a thin leveled-logging wrapper around zap, rotated through
// lumberjack when a file path is configured. It mirrors the small
// package-level call surface (Infof, Warnf, Errorf, Debugf, Fatal) used
// throughout this codebase so callers never touch zap directly.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	logger  = newDefault()
	sugared = logger.Sugar()
)

// Config controls where and how verbosely the default logger writes.
type Config struct {
	Level      string // debug, info, warn, error
	Path       string // empty writes to stderr
	MaxSize    int    // megabytes, lumberjack default unit
	MaxAge     int    // days
	MaxBackups int
	Compress   bool
}

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return l
}

// Init reconfigures the package-level logger from a Config. Call once
// during startup, before any other goroutine logs.
func Init(c Config) error {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.Set(c.Level); err != nil {
			return err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if c.Path == "" {
		sink = zapcore.AddSync(os.Stderr)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    orDefault(c.MaxSize, 100),
			MaxAge:     orDefault(c.MaxAge, 7),
			MaxBackups: orDefault(c.MaxBackups, 3),
			Compress:   c.Compress,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	logger = l
	sugared = l.Sugar()
	mu.Unlock()
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// With returns a child logger annotated with the given key/value pairs.
// Useful for per-connection or per-request scoping.
func With(args ...any) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugared.With(args...)
}

func Debugf(template string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Debugf(template, args...)
}

func Infof(template string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Infof(template, args...)
}

func Warnf(template string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Warnf(template, args...)
}

func Errorf(template string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Errorf(template, args...)
}

// Fatal logs at error level and exits the process with status 1.
func Fatal(args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Error(args...)
	_ = Sync()
	os.Exit(1)
}

func Fatalf(template string, args ...any) {
	mu.RLock()
	s := sugared
	mu.RUnlock()
	s.Errorf(template, args...)
	_ = Sync()
	os.Exit(1)
}

// Sync flushes any buffered log entries. Best-effort: stderr/stdout
// syncing commonly errors on Linux and that error is not actionable.
func Sync() error {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return l.Sync()
}
