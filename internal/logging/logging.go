// Package logging provides per-category file logging for foampilot.
// Logs are written to <workspace>/.foampilot/logs/ with one file per
// category per day. When the package is not initialized, or debug mode
// is off, every logger is a no-op; the TUI owns the terminal and nothing
// may print to it.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a log stream.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, config, wiring
	CategorySession Category = "session" // run lifecycle, state transitions
	CategoryAPI     Category = "api"     // reasoning service and bridge calls
	CategoryPoll    Category = "poll"    // polling ticks and snapshots
	CategoryStore   Category = "store"   // history and attachment stores
)

var (
	mu      sync.RWMutex
	loggers = make(map[Category]*zap.SugaredLogger)
	logsDir string
	debug   bool
	level   zapcore.Level = zapcore.InfoLevel
)

// Initialize sets the logs directory and enables logging. Safe to skip
// entirely; all loggers stay no-ops until it is called.
func Initialize(workspace string, debugMode bool) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	mu.Lock()
	defer mu.Unlock()

	debug = debugMode
	if debug {
		level = zapcore.DebugLevel
	}
	logsDir = filepath.Join(workspace, ".foampilot", "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	return nil
}

// Get returns the logger for a category, creating its file on first use.
// Returns a no-op logger before Initialize or on file errors.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	dir := logsDir
	mu.RUnlock()

	if dir == "" {
		return zap.NewNop().Sugar()
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] could not open %s: %v\n", path, err)
		l := zap.NewNop().Sugar()
		loggers[category] = l
		return l
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(file),
		level,
	)
	l := zap.New(core).Sugar().With("cat", string(category))
	loggers[category] = l
	return l
}

// Sync flushes all open loggers. Call at shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
}

// Convenience wrappers, one pair per category.

func Boot(format string, args ...interface{})         { Get(CategoryBoot).Infof(format, args...) }
func BootDebug(format string, args ...interface{})    { Get(CategoryBoot).Debugf(format, args...) }
func Session(format string, args ...interface{})      { Get(CategorySession).Infof(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debugf(format, args...) }
func API(format string, args ...interface{})          { Get(CategoryAPI).Infof(format, args...) }
func APIDebug(format string, args ...interface{})     { Get(CategoryAPI).Debugf(format, args...) }
func APIError(format string, args ...interface{})     { Get(CategoryAPI).Errorf(format, args...) }
func Poll(format string, args ...interface{})         { Get(CategoryPoll).Infof(format, args...) }
func PollDebug(format string, args ...interface{})    { Get(CategoryPoll).Debugf(format, args...) }
func Store(format string, args ...interface{})        { Get(CategoryStore).Infof(format, args...) }
func StoreDebug(format string, args ...interface{})   { Get(CategoryStore).Debugf(format, args...) }
