package search

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/maceff/macf/internal/macferr"
)

// EnvSocketPath overrides the default search service socket path.
const EnvSocketPath = "MACF_SEARCH_SOCKET_PATH"

// SocketRelPath and PIDRelPath are the default on-disk layout (spec §6).
const (
	SocketRelPath = ".maceff/search.sock"
	PIDRelPath    = ".maceff/search.pid"
)

// SocketPath resolves the socket path: env var wins, else agentHome-relative
// default.
func SocketPath(agentHome string) string {
	if v := os.Getenv(EnvSocketPath); v != "" {
		return v
	}
	return filepath.Join(agentHome, SocketRelPath)
}

// PIDPath mirrors SocketPath for the PID file, kept alongside the socket.
func PIDPath(agentHome string) string {
	return filepath.Join(agentHome, PIDRelPath)
}

// Daemon is the long-lived Search Service process: a unix-socket listener
// serving length-prefixed JSON requests against an in-memory Retriever,
// grounded on rcourtman-Pulse's net.Listen("unix", ...) + chmod pattern
// (cmd/pulse-sensor-proxy/main.go) and its unix.Flock-guarded lock-file
// single-instance enforcement (cmd/pulse-sensor-proxy/config_cmd.go).
type Daemon struct {
	socketPath string
	pidPath    string
	retriever  Retriever

	mu       sync.Mutex
	listener net.Listener
	pidFile  *os.File
}

// NewDaemon constructs a Daemon serving retriever over socketPath, with a
// PID file at pidPath for single-instance enforcement and status checks.
func NewDaemon(socketPath, pidPath string, retriever Retriever) *Daemon {
	return &Daemon{socketPath: socketPath, pidPath: pidPath, retriever: retriever}
}

// Start acquires the single-instance PID-file lock, binds the socket, and
// serves connections until ctx is canceled. Removes the socket and PID
// file on clean shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(d.socketPath), 0o750); err != nil {
		return &macferr.IOErr{Op: "mkdir", Err: err}
	}

	pf, err := os.OpenFile(d.pidPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return &macferr.IOErr{Op: "open pidfile", Err: err}
	}
	if err := unix.Flock(int(pf.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		pf.Close()
		return &macferr.IOErr{Op: "flock pidfile", Err: fmt.Errorf("another search service instance holds the lock: %w", err)}
	}
	if err := pf.Truncate(0); err == nil {
		pf.Seek(0, 0)
		fmt.Fprintf(pf, "%d\n", os.Getpid())
		pf.Sync()
	}

	_ = os.Remove(d.socketPath)
	ln, err := net.Listen("unix", d.socketPath)
	if err != nil {
		unix.Flock(int(pf.Fd()), unix.LOCK_UN) //nolint:errcheck
		pf.Close()
		return &macferr.IOErr{Op: "listen", Err: err}
	}
	_ = os.Chmod(d.socketPath, 0o600)

	d.mu.Lock()
	d.listener = ln
	d.pidFile = pf
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil // listener closed by Stop
		}
		go d.handleConn(conn)
	}
}

// Stop closes the listener and PID file, removing both the socket and PID
// file from disk.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener != nil {
		d.listener.Close()
		d.listener = nil
	}
	if d.pidFile != nil {
		unix.Flock(int(d.pidFile.Fd()), unix.LOCK_UN) //nolint:errcheck
		d.pidFile.Close()
		d.pidFile = nil
	}
	os.Remove(d.socketPath)
	os.Remove(d.pidPath)
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	var req Request
	if err := ReadFrame(r, &req); err != nil {
		return
	}

	start := time.Now()
	if err := ValidateRequest(req); err != nil {
		_ = WriteFrame(conn, NewErrorEnvelope(ErrInvalidQuery, err.Error()))
		return
	}

	hits, err := d.retriever.Search(req.Query, req.Limit)
	if err != nil {
		_ = WriteFrame(conn, NewErrorEnvelope(ErrInternal, err.Error()))
		return
	}

	_ = WriteFrame(conn, Response{
		Results:   hits,
		Retriever: d.retriever.Name(),
		TookMs:    time.Since(start).Milliseconds(),
	})
}

// Status reports whether a daemon appears to be running: the PID file
// exists, names a live process, and the socket is connectable.
type Status struct {
	Running bool
	PID     int
}

// CheckStatus implements spec §4.H's "status[--json]: check PID liveness +
// socket connectivity".
func CheckStatus(pidPath, socketPath string) Status {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return Status{}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return Status{}
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return Status{}
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return Status{}
	}

	conn, err := net.DialTimeout("unix", socketPath, 50*time.Millisecond)
	if err != nil {
		return Status{PID: pid}
	}
	conn.Close()
	return Status{Running: true, PID: pid}
}

// StopRunning signals a live daemon (by PID file) to terminate and waits
// briefly for the socket to disappear.
func StopRunning(pidPath, socketPath string) error {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return nil // nothing running
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return &macferr.MalformedInput{Reason: "search: malformed pid file"}
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return nil // already gone
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &macferr.Timeout{Op: "search service stop", BudgetMS: 2000}
}
