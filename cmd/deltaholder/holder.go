package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/deltaengine/delta/internal/session"
)

// run starts the PTY-backed holder and serves its control socket until
// the process is asked to end, either over the socket (session end)
// or by SIGTERM from whatever process supervisor owns it.
func run(sessionID, shell, cwd string, cols, rows uint16, socketPath string) error {
	h, err := session.StartHolder(sessionID, shell, cwd, cols, rows, socketPath)
	if err != nil {
		return err
	}
	defer h.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)

	errc := make(chan error, 1)
	go func() { errc <- h.Serve() }()

	select {
	case err := <-errc:
		return err
	case <-sig:
		h.Close()
		return nil
	}
}
