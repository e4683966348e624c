package main

import (
	"testing"
	"time"

	"github.com/deltaengine/delta/internal/session"
)

func TestRunServesUntilSessionEnds(t *testing.T) {
	sessionID := session.NewSessionID()
	sockPath := session.SocketPath(sessionID)

	done := make(chan error, 1)
	go func() {
		done <- run(sessionID, "/bin/sh", t.TempDir(), 80, 24, sockPath)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for !session.Ping(sockPath) {
		if time.Now().After(deadline) {
			t.Fatal("holder never became reachable")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := session.End(sockPath); err != nil {
		t.Fatalf("end: %v", err)
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after session end")
	}
}
