// Package logging provides structured JSON logging for MACF hook
// processes and CLI commands, via log/slog.
//
// Every hook invocation is a short-lived process, so Init writes to a
// per-process-lifetime file handle under {agent_home}/.maceff/logs and
// Close flushes it before the process exits. Hook handlers must defer
// Close immediately after Init to guarantee the buffered writer is
// flushed even on early return.
package logging

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maceff/macf/internal/validation"
)

// LogLevelEnvVar controls log verbosity.
const LogLevelEnvVar = "MACF_LOG_LEVEL"

// LogsDir is the directory (relative to agent home) where log files live.
const LogsDir = ".maceff/logs"

var (
	mu           sync.RWMutex
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
	sessionID    string
)

// Init opens (or creates) the per-session log file under agentHome/LogsDir
// and installs a package-level JSON logger. Falls back to stderr if the
// directory or file cannot be created — logging failures must never abort
// a hook handler.
func Init(agentHome, session string) error {
	if session != "" {
		if err := validation.ValidateSessionID(session); err != nil {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()

	flushLocked()

	level := parseLogLevel(os.Getenv(LogLevelEnvVar))

	logsPath := filepath.Join(agentHome, LogsDir)
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	name := session
	if name == "" {
		name = "unknown"
	}
	logFilePath := filepath.Join(logsPath, name+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	sessionID = session
	return nil
}

// Close flushes and closes the current log file. Safe to call multiple
// times and safe to call without a prior Init.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	flushLocked()
	sessionID = ""
}

func flushLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	if sid := SessionIDFromContext(ctx); sid != "" {
		allAttrs = append(allAttrs, slog.String("session_id", sid))
	}
	if c := ComponentFromContext(ctx); c != "" {
		allAttrs = append(allAttrs, slog.String("component", c))
	}
	if h := HookEventFromContext(ctx); h != "" {
		allAttrs = append(allAttrs, slog.String("hook_event", h))
	}
	if cyc := CycleFromContext(ctx); cyc != 0 {
		allAttrs = append(allAttrs, slog.Int("cycle", cyc))
	}
	allAttrs = append(allAttrs, attrs...)

	l.Log(ctx, level, msg, allAttrs...)
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelInfo, msg, attrs...) }

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelWarn, msg, attrs...) }

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

// LogDuration logs duration_ms since start, for use with defer at the top
// of a hook handler to track the latency budget of §4.E.
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	durationMs := time.Since(start).Milliseconds()
	allAttrs := append([]any{slog.Int64("duration_ms", durationMs)}, attrs...)
	log(ctx, level, msg, allAttrs...)
}
