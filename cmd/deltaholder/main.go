// Package main is deltaholder, the detached daemon session.Manager.Start
// spawns to back one persistent interactive session (C8): it owns a
// PTY-backed shell and serves control requests on a UNIX-domain socket
// until told to end. Grounded on the teacher's own two-binary split
// (cmd/agent is the CLI, a separate daemon owns long-lived state the
// CLI itself must not hold across invocations) and on the
// other_examples/ PTY-holder reference's flag surface, adapted to the
// flags internal/session/manager.go's Start already contracts for.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	var (
		sessionID = flag.String("session-id", "", "session id")
		socket    = flag.String("socket", "", "control socket path")
		shell     = flag.String("shell", "", "shell to run")
		cwd       = flag.String("cwd", "", "working directory")
		cols      = flag.Uint("cols", 80, "terminal width")
		rows      = flag.Uint("rows", 24, "terminal height")
	)
	flag.Parse()

	if *sessionID == "" || *socket == "" || *shell == "" {
		fmt.Fprintln(os.Stderr, "deltaholder: -session-id, -socket, and -shell are required")
		os.Exit(1)
	}

	if err := run(*sessionID, *shell, *cwd, uint16(*cols), uint16(*rows), *socket); err != nil {
		fmt.Fprintln(os.Stderr, "deltaholder:", err)
		os.Exit(1)
	}
}
