// Package context assembles the context layer sent to the LLM at the
// start of every iteration (C4): static files, computed (generator)
// files, direct includes, and a bounded journal tail, concatenated in
// declared order. Grounded on the teacher's internal/config's layered
// source model (profiles overlaying defaults) generalized here to
// content sources instead of config values, and on
// internal/executor/tools.go's command-with-timeout execution shape
// for the computed-file generators.
package context

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/deltaengine/delta/internal/conversation"
	"github.com/deltaengine/delta/internal/errkind"
)

// OnFailure is the policy applied when a computed-file generator fails
// or times out.
type OnFailure string

const (
	OnFailureSkip  OnFailure = "skip"
	OnFailureFatal OnFailure = "fatal"
)

const defaultGeneratorTimeout = 10 * time.Second

// StaticSource is a fixed file relative to the agent directory. A
// missing static source is fatal unless Optional is set.
type StaticSource struct {
	Path     string `toml:"path"`
	Optional bool   `toml:"optional"`
}

// ComputedSource runs an external command and captures its stdout as
// context content. It is how memory-folding is implemented: the
// generator reads the journal itself and emits a summary.
type ComputedSource struct {
	Name      string
	Command   string
	Args      []string
	OutputPath string // where stdout is also persisted, relative to the workspace dir
	Timeout   time.Duration
	OnFailure OnFailure
	MaxTokens int // 0 means unbounded
}

// DirectSource is an arbitrary workspace file included verbatim when
// present.
type DirectSource struct {
	Path      string `toml:"path"`
	IfExists  bool   `toml:"if_exists"` // when true, a missing file is silently skipped
	MaxTokens int    `toml:"max_tokens"`
}

// Sources is the composer's declared input set, in the order their
// content is concatenated.
type Sources struct {
	AgentDir     string
	WorkDir      string
	AgentHome    string
	Static       []StaticSource
	Computed     []ComputedSource
	Direct       []DirectSource
	TailMessages []conversation.Message // already bounded to the last N iterations by the caller
}

// Warning describes a non-fatal composition failure that must surface
// as a SYSTEM_MESSAGE event rather than abort the run.
type Warning struct {
	Source string
	Err    error
}

func (w Warning) String() string {
	return fmt.Sprintf("context source %q failed: %v", w.Source, w.Err)
}

// Result is the composer's deterministic output.
type Result struct {
	Text     string
	Warnings []Warning
}

// Compose assembles the context layer. Static-source failures are
// returned as an error (fatal, per spec); computed/direct failures are
// collected as Warnings and otherwise skipped, per the declared
// on-failure policy.
func Compose(ctx context.Context, src Sources) (Result, error) {
	var buf bytes.Buffer
	var warnings []Warning

	for _, s := range src.Static {
		data, err := os.ReadFile(filepath.Join(src.AgentDir, s.Path))
		if err != nil {
			if s.Optional {
				warnings = append(warnings, Warning{Source: s.Path, Err: err})
				continue
			}
			return Result{}, errkind.New(errkind.Composition,
				fmt.Sprintf("static context source %q is required and could not be read", s.Path), err)
		}
		writeSection(&buf, s.Path, string(data))
	}

	for _, c := range src.Computed {
		out, err := runGenerator(ctx, src, c)
		if err != nil {
			warnings = append(warnings, Warning{Source: c.Name, Err: err})
			if c.OnFailure == OnFailureFatal {
				return Result{}, errkind.New(errkind.Composition,
					fmt.Sprintf("computed context source %q failed and its policy is fatal", c.Name), err)
			}
			continue
		}
		if c.MaxTokens > 0 {
			out = truncateToTokenBudget(out, c.MaxTokens)
		}
		if c.OutputPath != "" {
			outPath := filepath.Join(src.WorkDir, c.OutputPath)
			if err := os.MkdirAll(filepath.Dir(outPath), 0755); err == nil {
				_ = os.WriteFile(outPath, []byte(out), 0644)
			}
		}
		writeSection(&buf, c.Name, out)
	}

	for _, d := range src.Direct {
		data, err := os.ReadFile(filepath.Join(src.WorkDir, d.Path))
		if err != nil {
			if d.IfExists {
				continue
			}
			warnings = append(warnings, Warning{Source: d.Path, Err: err})
			continue
		}
		text := string(data)
		if d.MaxTokens > 0 {
			text = truncateToTokenBudget(text, d.MaxTokens)
		}
		writeSection(&buf, d.Path, text)
	}

	for _, m := range src.TailMessages {
		fmt.Fprintf(&buf, "[%s] %s\n", m.Role, m.Text)
	}

	return Result{Text: buf.String(), Warnings: warnings}, nil
}

func writeSection(buf *bytes.Buffer, name, body string) {
	fmt.Fprintf(buf, "--- %s ---\n%s\n", name, body)
}

func runGenerator(ctx context.Context, src Sources, c ComputedSource) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultGeneratorTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Command, c.Args...)
	cmd.Dir = src.WorkDir
	cmd.Env = append(os.Environ(), "CWD="+src.WorkDir, "AGENT_HOME="+src.AgentHome)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("generator %q timed out after %s", c.Name, timeout)
		}
		return "", fmt.Errorf("generator %q failed: %w (stderr: %s)", c.Name, err, stderr.String())
	}
	return stdout.String(), nil
}

// truncateToTokenBudget enforces a declared max_tokens bound by
// truncating at a derived byte budget (a conservative 4 bytes per
// token), matching the byte-budget enforcement spec.md calls for.
func truncateToTokenBudget(text string, maxTokens int) string {
	budget := maxTokens * 4
	if len(text) <= budget {
		return text
	}
	return text[:budget] + "\n[truncated]"
}
