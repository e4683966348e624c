package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func parse(t *testing.T, args ...string) *CLI {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatal(err)
	}
	return &cli
}

func TestRunCmdParsesRequiredAgentFlag(t *testing.T) {
	cli := parse(t, "run", "--agent", "agents/demo", "--task", "greet the user")
	if cli.Run.Agent != "agents/demo" {
		t.Errorf("expected agent path %q, got %q", "agents/demo", cli.Run.Agent)
	}
	if cli.Run.Task != "greet the user" {
		t.Errorf("expected task text, got %q", cli.Run.Task)
	}
	if cli.Run.Resume {
		t.Error("expected --resume to default false")
	}
}

func TestRunCmdResumeAndInteractiveFlags(t *testing.T) {
	cli := parse(t, "run", "-a", "agents/demo", "--resume", "-i")
	if !cli.Run.Resume {
		t.Error("expected --resume to be set")
	}
	if !cli.Run.Interactive {
		t.Error("expected -i to set Interactive")
	}
}

func TestSessionStartDefaultsColsRows(t *testing.T) {
	cli := parse(t, "session", "start")
	if cli.Session.Start.Cols != 80 || cli.Session.Start.Rows != 24 {
		t.Errorf("expected default 80x24, got %dx%d", cli.Session.Start.Cols, cli.Session.Start.Rows)
	}
}

func TestSessionExecRequiresSessionIDAndCommand(t *testing.T) {
	cli := parse(t, "session", "exec", "abc123", "ls -la")
	if cli.Session.Exec.SessionID != "abc123" {
		t.Errorf("expected session id %q, got %q", "abc123", cli.Session.Exec.SessionID)
	}
	if cli.Session.Exec.Command != "ls -la" {
		t.Errorf("expected command %q, got %q", "ls -la", cli.Session.Exec.Command)
	}
}

func TestReplayRunIDIsOptional(t *testing.T) {
	cli := parse(t, "replay")
	if cli.Replay.RunID != "" {
		t.Errorf("expected empty run id, got %q", cli.Replay.RunID)
	}
	cli = parse(t, "replay", "20260101T000000-abcdef", "--follow")
	if cli.Replay.RunID != "20260101T000000-abcdef" {
		t.Errorf("expected explicit run id to parse, got %q", cli.Replay.RunID)
	}
	if !cli.Replay.Follow {
		t.Error("expected --follow to be set")
	}
}
