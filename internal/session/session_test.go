package session

import (
	"strings"
	"testing"
	"time"
)

func TestValidateSocketPathRejectsTooLong(t *testing.T) {
	long := "/tmp/" + strings.Repeat("x", 200) + ".sock"
	if err := validateSocketPath(long); err == nil {
		t.Fatalf("expected error for over-long socket path")
	}
}

func TestValidateSocketPathAcceptsShort(t *testing.T) {
	short := SocketPath("ab12cd34")
	if err := validateSocketPath(short); err != nil {
		t.Fatalf("expected short socket path to validate: %v", err)
	}
	if len(short) > maxSocketPathLen {
		t.Fatalf("SocketPath produced an over-long path: %d bytes", len(short))
	}
}

func TestHolderExecRoundTrip(t *testing.T) {
	sessionID := NewSessionID()
	sockPath := SocketPath(sessionID)

	h, err := StartHolder(sessionID, "/bin/sh", t.TempDir(), 80, 24, sockPath)
	if err != nil {
		t.Fatalf("start holder: %v", err)
	}
	defer h.Close()
	go h.Serve()

	if !waitForPing(sockPath, 3*time.Second) {
		t.Fatalf("holder never became reachable")
	}

	resp, err := Exec(sockPath, "echo hello-session")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(resp.Stdout, "hello-session") {
		t.Fatalf("unexpected exec stdout: %q", resp.Stdout)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", resp.ExitCode)
	}
}

func TestHolderExecCapturesNonzeroExit(t *testing.T) {
	sessionID := NewSessionID()
	sockPath := SocketPath(sessionID)

	h, err := StartHolder(sessionID, "/bin/sh", t.TempDir(), 80, 24, sockPath)
	if err != nil {
		t.Fatalf("start holder: %v", err)
	}
	defer h.Close()
	go h.Serve()

	if !waitForPing(sockPath, 3*time.Second) {
		t.Fatalf("holder never became reachable")
	}

	resp, err := Exec(sockPath, "exit 7")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if resp.ExitCode != 7 {
		t.Fatalf("expected exit 7, got %d", resp.ExitCode)
	}
}

func TestHolderPingAndStatus(t *testing.T) {
	sessionID := NewSessionID()
	sockPath := SocketPath(sessionID)

	h, err := StartHolder(sessionID, "/bin/sh", t.TempDir(), 80, 24, sockPath)
	if err != nil {
		t.Fatalf("start holder: %v", err)
	}
	defer h.Close()
	go h.Serve()

	if !waitForPing(sockPath, 3*time.Second) {
		t.Fatalf("holder never became reachable")
	}
	if !Ping(sockPath) {
		t.Fatalf("expected ping to succeed against a live holder")
	}
	resp, err := Call(sockPath, Request{Op: OpStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !resp.OK || !resp.Alive {
		t.Fatalf("expected status to report a live shell, got %+v", resp)
	}
}

func TestHolderEndShutsDownSocket(t *testing.T) {
	sessionID := NewSessionID()
	sockPath := SocketPath(sessionID)

	h, err := StartHolder(sessionID, "/bin/sh", t.TempDir(), 80, 24, sockPath)
	if err != nil {
		t.Fatalf("start holder: %v", err)
	}
	go h.Serve()

	if !waitForPing(sockPath, 3*time.Second) {
		t.Fatalf("holder never became reachable")
	}
	if err := End(sockPath); err != nil {
		t.Fatalf("end: %v", err)
	}
	if Ping(sockPath) {
		t.Fatalf("expected holder to be unreachable after End")
	}
}

func TestManagerListEmptyWorkspace(t *testing.T) {
	m := &Manager{WorkDir: t.TempDir()}
	metas, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("expected no sessions, got %d", len(metas))
	}
}
