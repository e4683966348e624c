package session

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/net/netutil"
	"golang.org/x/term"
)

// maxControlConns bounds how many simultaneous control connections the
// holder's socket accepts at once, so a runaway client can't exhaust
// the holder's file descriptors.
const maxControlConns = 8

// maxOutputBuffer caps how much unread PTY output the holder retains
// in memory between reads.
const maxOutputBuffer = 8 << 20 // 8 MiB

const execTimeout = 30 * time.Second

// Holder owns a single PTY-backed shell and the control socket other
// CLI invocations use to interact with it. It is meant to run as its
// own detached process (cmd/deltaholder), never inside the CLI that
// created the session — closing a PTY master from the creating CLI
// would SIGHUP the child.
type Holder struct {
	SessionID  string
	SocketPath string

	ptmx *os.File
	cmd  *exec.Cmd

	mu         sync.Mutex
	out        bytes.Buffer
	execCursor int // bytes of `out` already consumed by a completed exec
	exitCode   int // shell's own exit code, valid once done is closed

	listener net.Listener
	done     chan struct{}
}

// StartHolder spawns the shell under a PTY and begins listening on
// socketPath. The caller is expected to have already validated and
// reserved socketPath (short-prefix /tmp directory, per spec.md §6).
func StartHolder(sessionID, shell, cwd string, cols, rows uint16, socketPath string) (*Holder, error) {
	if err := validateSocketPath(socketPath); err != nil {
		return nil, err
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	cmd.Env = os.Environ()

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}

	// The pty's termios is shared between master and slave, so putting
	// the master fd into raw mode turns off the slave's line
	// discipline too: no input echo, no canonical line editing. exec
	// writes a full command line at once and scans the buffer for its
	// own marker, so it must see only the shell's output, never its own
	// input echoed back.
	if _, err := term.MakeRaw(int(ptmx.Fd())); err != nil {
		ptmx.Close()
		return nil, fmt.Errorf("set pty raw mode: %w", err)
	}

	_ = os.Remove(socketPath)
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		ptmx.Close()
		return nil, fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	_ = os.Chmod(socketPath, 0600)

	h := &Holder{
		SessionID:  sessionID,
		SocketPath: socketPath,
		ptmx:       ptmx,
		cmd:        cmd,
		listener:   netutil.LimitListener(lis, maxControlConns),
		done:       make(chan struct{}),
	}

	go h.pumpOutput()
	go func() {
		_ = cmd.Wait()
		h.mu.Lock()
		if cmd.ProcessState != nil {
			h.exitCode = cmd.ProcessState.ExitCode()
		}
		h.mu.Unlock()
		close(h.done)
	}()

	return h, nil
}

// pumpOutput continuously drains the PTY master into the in-memory
// buffer that exec/read draw from.
func (h *Holder) pumpOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			h.mu.Lock()
			h.out.Write(buf[:n])
			if h.out.Len() > maxOutputBuffer {
				trimmed := h.out.Len() - maxOutputBuffer
				h.out.Next(trimmed)
				if h.execCursor > trimmed {
					h.execCursor -= trimmed
				} else {
					h.execCursor = 0
				}
			}
			h.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// Serve accepts control connections until the listener is closed.
// Each connection carries exactly one request/response exchange,
// matching the CLI's per-invocation connect-dispatch-disconnect usage.
func (h *Holder) Serve() error {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			select {
			case <-h.done:
				return nil
			default:
			}
			return err
		}
		go h.handleConn(conn)
	}
}

func (h *Holder) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !scanner.Scan() {
		return
	}

	var req Request
	resp := Response{OK: true}
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		resp = Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)}
	} else {
		resp = h.dispatch(req)
	}

	data, err := encode(resp)
	if err != nil {
		return
	}
	_, _ = conn.Write(data)
}

func (h *Holder) dispatch(req Request) Response {
	switch req.Op {
	case OpPing:
		return Response{OK: true, Alive: true, PID: h.cmd.Process.Pid}

	case OpStatus:
		alive := h.isAlive()
		return Response{OK: true, Alive: alive, PID: h.cmd.Process.Pid}

	case OpWrite:
		if _, err := h.ptmx.Write([]byte(req.Data)); err != nil {
			return Response{OK: false, Error: err.Error()}
		}
		return Response{OK: true}

	case OpRead:
		return Response{OK: true, Data: h.drainOutput(req.MaxBytes)}

	case OpExec:
		return h.exec(req.Command)

	case OpEnd:
		h.Close()
		return Response{OK: true}

	default:
		return Response{OK: false, Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (h *Holder) isAlive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *Holder) drainOutput(maxBytes int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := h.out.Bytes()
	if maxBytes > 0 && len(data) > maxBytes {
		data = data[:maxBytes]
	}
	out := string(data)
	h.out.Next(len(data))
	if h.execCursor > len(data) {
		h.execCursor -= len(data)
	} else {
		h.execCursor = 0
	}
	return out
}

// exec runs command to completion in the session's shell: it writes
// the command followed by a uniquely-marked exit-code echo, then polls
// the output buffer for that marker, returning everything produced in
// between as the command's output.
func (h *Holder) exec(command string) Response {
	marker := randomMarker()
	start := time.Now()

	// command runs inside a subshell so that a command which terminates
	// the shell on its own (`exit N`, `kill -9 $$`) only ends the
	// subshell: the parent shell survives to run the trailing printf and
	// report the subshell's real exit status via $?.
	line := fmt.Sprintf("(%s); printf '\\n%s:%%d\\n' $?\n", command, marker)
	if _, err := h.ptmx.Write([]byte(line)); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("write command: %v", err)}
	}

	deadline := time.Now().Add(execTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-h.done:
			// The subshell wrapping above handles a command that merely
			// exits itself; reaching here means the shell process died
			// (killed, crashed) before the marker could be written. There
			// is no marker to find, so surface whatever output exists and
			// the shell's own exit status instead of waiting out the full
			// exec timeout.
			h.mu.Lock()
			content := h.out.String()[h.execCursor:]
			h.execCursor = h.out.Len()
			code := h.exitCode
			h.mu.Unlock()
			return Response{OK: false, Error: "shell exited before command completed", Stdout: content, ExitCode: code}
		default:
		}

		h.mu.Lock()
		content := h.out.String()[h.execCursor:]
		idx := strings.Index(content, marker+":")
		if idx >= 0 {
			rest := content[idx+len(marker)+1:]
			nl := strings.IndexByte(rest, '\n')
			var exitCode int
			var consumedThrough int
			if nl >= 0 {
				exitCode, _ = strconv.Atoi(strings.TrimSpace(rest[:nl]))
				consumedThrough = h.execCursor + idx + len(marker) + 1 + nl + 1
			} else {
				exitCode, _ = strconv.Atoi(strings.TrimSpace(rest))
				consumedThrough = h.out.Len()
			}
			stdout := content[:idx]
			h.execCursor = consumedThrough
			h.mu.Unlock()
			return Response{
				OK:         true,
				Stdout:     stdout,
				ExitCode:   exitCode,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
		h.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	return Response{OK: false, Error: fmt.Sprintf("exec timed out after %s", execTimeout)}
}

func randomMarker() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "deltamark-" + hex.EncodeToString(b)
}

// Close tears down the holder: closes the listener and the PTY, which
// sends the child SIGHUP as a side effect of the master closing.
func (h *Holder) Close() {
	_ = h.listener.Close()
	_ = h.ptmx.Close()
	_ = os.Remove(h.SocketPath)
}
