// Package main is the delta CLI: a kong-based entrypoint wiring
// internal/config, internal/runctx, internal/engine, internal/session,
// and internal/replay into the run/session/replay surface. Grounded on
// the teacher's cmd/agent/cli.go (kong command-struct shapes and tag
// conventions), generalized from its workflow/package vocabulary to
// the engine's run/session/replay surface; unlike the teacher, where
// cli.go's CLI struct is defined and unit-tested but never reaches
// kong.Parse from main(), here it is the CLI's only entrypoint.
package main

import "github.com/alecthomas/kong"

// CLI is the root command set.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Execute an agent run to completion or a suspension point"`
	Session SessionCmd `cmd:"" help:"Manage persistent interactive shell sessions"`
	Replay  ReplayCmd  `cmd:"" help:"Replay a run's journal for forensic inspection"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd executes an agent run.
type RunCmd struct {
	Agent       string `short:"a" required:"" help:"Path to the agent directory (containing agent.toml)"`
	Task        string `help:"Task text for a fresh run; ignored on --resume"`
	WorkDir     string `short:"w" default:"." help:"Workspace directory"`
	Interactive bool   `short:"i" help:"Use synchronous ask_human, reading from the controlling terminal"`
	Yes         bool   `short:"y" help:"Assume yes for any tool confirmation prompts"`
	Resume      bool   `help:"Resume the workspace's most recent run instead of starting a new one"`
}

// SessionCmd groups the session lifecycle subcommands.
type SessionCmd struct {
	Start   SessionStartCmd   `cmd:"" help:"Start a persistent interactive session"`
	Exec    SessionExecCmd    `cmd:"" help:"Execute one command in a session and return its output"`
	Status  SessionStatusCmd  `cmd:"" help:"Report whether a session's holder is alive"`
	List    SessionListCmd    `cmd:"" help:"List all sessions known to the workspace"`
	End     SessionEndCmd     `cmd:"" help:"Terminate a session and remove its metadata"`
	Cleanup SessionCleanupCmd `cmd:"" help:"Remove sessions whose holder is gone or unresponsive"`
}

// SessionStartCmd spawns a new detached session holder.
type SessionStartCmd struct {
	WorkDir string `short:"w" default:"." help:"Workspace directory"`
	Shell   string `help:"Shell to run (defaults to $SHELL)"`
	Cwd     string `help:"Working directory for the shell (defaults to the workspace)"`
	Cols    uint16 `default:"80" help:"Terminal width"`
	Rows    uint16 `default:"24" help:"Terminal height"`
}

// SessionExecCmd runs one command against an existing session.
type SessionExecCmd struct {
	WorkDir   string `short:"w" default:"." help:"Workspace directory"`
	SessionID string `arg:"" help:"Session id"`
	Command   string `arg:"" help:"Command line to execute"`
}

// SessionStatusCmd reports liveness for one session.
type SessionStatusCmd struct {
	WorkDir   string `short:"w" default:"." help:"Workspace directory"`
	SessionID string `arg:"" help:"Session id"`
}

// SessionListCmd lists every session in the workspace.
type SessionListCmd struct {
	WorkDir string `short:"w" default:"." help:"Workspace directory"`
}

// SessionEndCmd shuts down a session's holder.
type SessionEndCmd struct {
	WorkDir   string `short:"w" default:"." help:"Workspace directory"`
	SessionID string `arg:"" help:"Session id"`
}

// SessionCleanupCmd sweeps dead sessions from the workspace.
type SessionCleanupCmd struct {
	WorkDir string `short:"w" default:"." help:"Workspace directory"`
}

// ReplayCmd renders or pages a run's journal.
type ReplayCmd struct {
	WorkDir string `short:"w" default:"." help:"Workspace directory"`
	RunID   string `arg:"" optional:"" help:"Run id to replay (defaults to the workspace's most recent run)"`
	Follow  bool   `short:"f" help:"Watch the journal and live-update as new events are appended"`
	NoPager bool   `help:"Print the rendered timeline instead of opening the interactive pager"`
}

// VersionCmd prints build metadata.
type VersionCmd struct{}

// kongVars supplies kong's ${version} placeholder for --help output.
func kongVars() kong.Vars {
	return kong.Vars{"version": version}
}
