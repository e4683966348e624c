package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/runctx"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	var cli CLI
	parser := kong.Must(&cli,
		kong.Name("delta"),
		kong.Description("Delta Engine: a journal-backed Think-Act-Observe agent runtime."),
		kongVars(),
	)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := kctx.Run(ctx)
	os.Exit(exitCode(runErr))
}

// exitCode maps the command's returned error onto spec.md §6's exit
// codes: 0 success, 1 generic failure, 101 waiting-for-input, 130
// interrupted by signal.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errkind.Is(err, errkind.InteractionPending):
		return 101
	case errkind.Is(err, errkind.Signal):
		fmt.Fprintln(os.Stderr, "delta: interrupted")
		return 130
	default:
		fmt.Fprintln(os.Stderr, "delta:", err)
		return 1
	}
}

// outcomeErr turns an engine.Outcome's terminal status into the error
// exitCode dispatches on, so run.go's Run method can just return
// outcomeErr(outcome.Status, outcome.Reason) alongside any hard error
// Execute itself returned.
func outcomeErr(status runctx.Status, reason string) error {
	switch status {
	case runctx.StatusCompleted:
		return nil
	case runctx.StatusWaitingForInput:
		return errkind.New(errkind.InteractionPending, "answer the pending request, then rerun with --resume",
			fmt.Errorf("run is waiting for human input"))
	case runctx.StatusInterrupted:
		return errkind.New(errkind.Signal, "rerun with --resume to continue", fmt.Errorf("run interrupted: %s", reason))
	default:
		return fmt.Errorf("run failed: %s", reason)
	}
}
