// Package hooks runs the lifecycle hook commands around LLM calls and
// tool executions (C6). Grounded on internal/supervision/supervisor.go's
// external-command-with-timeout drift check, generalized from the
// four-phase checkpoint vocabulary to the engine's five lifecycle
// points, and on other_examples' process-group spawn pattern
// (Setpgid + SIGKILL to the negative pid) for cancellation hygiene.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/deltaengine/delta/internal/journal"
)

// Point is the closed set of lifecycle points a hook may be attached to.
type Point string

const (
	PreLLMRequest  Point = "pre_llm_request"
	PostLLMResponse Point = "post_llm_response"
	PreToolExec    Point = "pre_tool_exec"
	PostToolExec   Point = "post_tool_exec"
	OnError        Point = "on_error"
)

// OnFailure controls whether a nonzero hook exit aborts the loop.
type OnFailure string

const (
	OnFailureWarn  OnFailure = "warn"
	OnFailureAbort OnFailure = "abort"
)

const (
	defaultTimeoutMs  = 5000
	killGrace         = 1 * time.Second
	maxStdoutCaptured = 4096 // matches the journal's HOOK_EXECUTED truncation rule
)

// Definition is one configured hook.
type Definition struct {
	Name      string    `json:"name"`
	Point     Point     `json:"point"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	TimeoutMs int64     `json:"timeout_ms,omitempty"`
	OnFailure OnFailure `json:"on_failure,omitempty"`
}

// Runner executes the hooks configured for each lifecycle point.
type Runner struct {
	WorkDir string
	// ByPoint maps each lifecycle point to its configured hooks, run in
	// declared order.
	ByPoint map[Point][]Definition
}

// Outcome is the result of running one hook.
type Outcome struct {
	Event   journal.HookExecutedPayload
	Aborted bool // true when the hook failed and its policy is abort
}

// Run executes every hook configured for point, in order, feeding each
// one payload (JSON-encoded) on stdin. It stops at the first hook
// whose OnFailure policy is abort and which actually failed.
func (r *Runner) Run(ctx context.Context, point Point, payload interface{}) ([]Outcome, error) {
	defs := r.ByPoint[point]
	if len(defs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("hooks: marshal %s payload: %w", point, err)
	}

	outcomes := make([]Outcome, 0, len(defs))
	for _, def := range defs {
		outcome := r.runOne(ctx, def, body)
		outcomes = append(outcomes, outcome)
		if outcome.Aborted {
			return outcomes, nil
		}
	}
	return outcomes, nil
}

func (r *Runner) runOne(ctx context.Context, def Definition, stdin []byte) Outcome {
	timeoutMs := def.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond

	cmd := exec.Command(def.Command, def.Args...)
	cmd.Dir = r.WorkDir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{Event: journal.HookExecutedPayload{
			Name: def.Name, Point: string(def.Point), Error: err.Error(),
		}, Aborted: def.OnFailure == OnFailureAbort}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		waitErr  error
		timedOut bool
	)
	select {
	case waitErr = <-done:
	case <-timer.C:
		timedOut = true
		killProcessGroup(cmd.Process.Pid, syscall.SIGTERM)
		select {
		case waitErr = <-done:
		case <-time.After(killGrace):
			killProcessGroup(cmd.Process.Pid, syscall.SIGKILL)
			waitErr = <-done
		}
	case <-ctx.Done():
		killProcessGroup(cmd.Process.Pid, syscall.SIGKILL)
		waitErr = <-done
	}

	duration := time.Since(start)
	out := stdout.String()
	truncated := false
	if len(out) > maxStdoutCaptured {
		out = out[:maxStdoutCaptured]
		truncated = true
	}

	exitCode := 0
	errMsg := ""
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			errMsg = waitErr.Error()
		}
	}
	if timedOut {
		errMsg = fmt.Sprintf("hook %q timed out after %s", def.Name, timeout)
	}

	event := journal.HookExecutedPayload{
		Name:       def.Name,
		Point:      string(def.Point),
		DurationMs: duration.Milliseconds(),
		ExitCode:   exitCode,
		TimedOut:   timedOut,
		Stdout:     out,
		Truncated:  truncated,
		Error:      errMsg,
	}

	failed := timedOut || exitCode != 0
	aborted := failed && def.OnFailure == OnFailureAbort
	return Outcome{Event: event, Aborted: aborted}
}

// killProcessGroup signals the whole process group so a hook that
// spawned children of its own doesn't leak them past the hook's own
// lifetime.
func killProcessGroup(pid int, sig syscall.Signal) {
	_ = syscall.Kill(-pid, sig)
}
