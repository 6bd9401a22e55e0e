package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/maceff/macf/internal/macferr"
)

// EnvLogPath overrides the default event log location, for tests.
const EnvLogPath = "MACF_EVENTS_LOG_PATH"

// DefaultLogRelPath is the event log path relative to agent home.
const DefaultLogRelPath = ".maceff/agent_events_log.jsonl"

// LockRetries and LockRetryDelay bound the writer's advisory-lock
// acquisition per spec §4.C: "default 5 x 50ms".
const (
	LockRetries   = 5
	LockRetryDelay = 50 * time.Millisecond
)

// Path resolves the event log file path: MACF_EVENTS_LOG_PATH wins, else
// {agentHome}/.maceff/agent_events_log.jsonl.
func Path(agentHome string) string {
	if v := os.Getenv(EnvLogPath); v != "" {
		return v
	}
	return filepath.Join(agentHome, DefaultLogRelPath)
}

// Writer appends Events to a single JSONL file under an OS-level advisory
// exclusive lock, one open-lock-write-unlock-close cycle per Append call.
// Writer holds no file handle between calls: hook processes are
// short-lived and concurrent, so every append is self-contained.
type Writer struct {
	path string
}

// NewWriter returns a Writer targeting path. The file and its parent
// directory are created lazily on first Append.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append serializes event, acquires the exclusive advisory lock (bounded
// retry: LockRetries attempts, LockRetryDelay apart), writes exactly one
// line plus a trailing newline, flushes, and releases the lock. Never
// partially commits: the line is built in memory before any write syscall
// touches the file.
func (w *Writer) Append(event Event) error {
	line, err := event.Marshal()
	if err != nil {
		return &macferr.MalformedInput{Reason: fmt.Sprintf("eventlog: marshal event %q: %v", event.EventName, err)}
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return &macferr.IOErr{Op: "mkdir", Err: err}
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return &macferr.IOErr{Op: "open", Err: err}
	}
	defer f.Close()

	if err := lockExclusive(f); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck

	if _, err := f.Write(line); err != nil {
		return &macferr.IOErr{Op: "write", Err: err}
	}
	if err := f.Sync(); err != nil {
		return &macferr.IOErr{Op: "sync", Err: err}
	}
	return nil
}

// lockExclusive attempts a non-blocking exclusive flock, retrying
// LockRetries times LockRetryDelay apart (Flock itself has no native
// timeout, so the bounded-retry loop is the timeout mechanism, per spec
// §4.C and grounded on rcourtman-Pulse's withLockedFile pattern — adapted
// from an unbounded blocking LOCK_EX there to a bounded non-blocking retry
// here, since MACF must return IOErr rather than hang a hook process past
// its latency budget).
func lockExclusive(f *os.File) error {
	var lastErr error
	for i := 0; i < LockRetries; i++ {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < LockRetries-1 {
			time.Sleep(LockRetryDelay)
		}
	}
	return &macferr.IOErr{Op: "flock", Err: fmt.Errorf("exclusive lock not acquired after %d attempts: %w", LockRetries, lastErr)}
}
