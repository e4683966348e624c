package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/journal"
)

// DefaultMaxOutputBytes bounds stdout/stderr capture when a
// definition doesn't declare its own limit.
const DefaultMaxOutputBytes = 1 << 20 // 1 MiB

// Executor runs tool invocations against a declared Set, auditing
// every call under the run's I/O directory before the ACTION_RESULT
// is allowed to reach the journal.
type Executor struct {
	Tools     Set
	WorkDir   string
	AgentHome string
	AuditDir  string // run's invocations directory (runctx.InvocationsDir)

	mu      sync.Mutex
	counter uint64
}

// invocationRecord is the audit artifact persisted before the journal
// sees the ACTION_RESULT: argv, stdin, captured output, exit status,
// and wall-clock duration. Failure to write this file is fatal; a
// nonzero child exit status is not.
type invocationRecord struct {
	CallID     string   `json:"call_id"`
	Tool       string   `json:"tool"`
	Argv       []string `json:"argv"`
	Stdin      string   `json:"stdin,omitempty"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	ExitCode   int      `json:"exit_code"`
	DurationMs int64    `json:"duration_ms"`
	Truncated  bool     `json:"truncated,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Invoke resolves toolName, binds rawArguments, runs the child, audits
// the full invocation record, and returns the ACTION_RESULT payload.
// The caller is responsible for appending the returned payload to the
// journal only after Invoke returns without error from the audit step
// (Invoke itself guarantees the audit write happens first).
func (e *Executor) Invoke(ctx context.Context, callID, toolName string, rawArguments json.RawMessage) (journal.ActionResultPayload, error) {
	def, err := e.Tools.Resolve(toolName)
	if err != nil {
		return journal.ActionResultPayload{}, errkind.Wrap(errkind.ToolInvocation, err)
	}

	argsMap, err := decodeArguments(rawArguments)
	if err != nil {
		return journal.ActionResultPayload{}, errkind.Wrap(errkind.ToolInvocation, err)
	}

	argv, stdin, err := def.bind(argsMap)
	if err != nil {
		return journal.ActionResultPayload{}, errkind.Wrap(errkind.ToolInvocation, err)
	}

	maxOutput := def.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if def.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(def.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, def.Command, argv...)
	cmd.Dir = e.WorkDir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"CWD=" + e.WorkDir,
		"AGENT_HOME=" + e.AgentHome,
	}
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	stdout := &boundedBuffer{limit: maxOutput}
	stderr := &boundedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	result := journal.ActionResultPayload{
		CallID:     callID,
		ExitCode:   cmd.ProcessState.ExitCode(),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
		Truncated:  stdout.truncated || stderr.truncated,
	}
	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			result.Error = fmt.Sprintf("tool %q timed out", toolName)
			if result.ExitCode == 0 {
				result.ExitCode = -1
			}
		} else if cmd.ProcessState == nil {
			result.Error = runErr.Error()
			result.ExitCode = -1
		}
		// A non-timeout nonzero exit is a normal outcome, already
		// captured in ExitCode/Stderr; no Error field needed for it.
	}

	record := invocationRecord{
		CallID:     callID,
		Tool:       toolName,
		Argv:       append([]string{def.Command}, argv...),
		Stdin:      string(stdin),
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		ExitCode:   result.ExitCode,
		DurationMs: result.DurationMs,
		Truncated:  result.Truncated,
		Error:      result.Error,
	}
	if err := e.audit(record); err != nil {
		return journal.ActionResultPayload{}, errkind.Wrap(errkind.ToolInvocation, fmt.Errorf("audit write failed, result discarded: %w", err))
	}

	return result, nil
}

// audit persists the invocation record under AuditDir keyed by an
// increasing integer, using scoped file acquisition so the handle is
// released on every exit path.
func (e *Executor) audit(record invocationRecord) error {
	e.mu.Lock()
	e.counter++
	seq := e.counter
	e.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal invocation record: %w", err)
	}

	path := filepath.Join(e.AuditDir, fmt.Sprintf("%06d.json", seq))
	return writeFileScoped(path, data)
}

func writeFileScoped(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = f.Write(data)
	return err
}

// boundedBuffer caps how much of a stream is retained in memory,
// recording that a truncation happened rather than growing without
// bound, per the tool executor's capture policy.
type boundedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
	written   int64
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	atomic.AddInt64(&b.written, int64(n))
	if b.buf.Len() >= b.limit {
		b.truncated = true
		return n, nil
	}
	remaining := b.limit - b.buf.Len()
	if len(p) > remaining {
		b.truncated = true
		p = p[:remaining]
	}
	b.buf.Write(p)
	return n, nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }
