package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/deltaengine/delta/internal/session"
)

// Run starts a new detached session holder and prints its id.
func (c *SessionStartCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	cwd := c.Cwd
	if cwd == "" {
		cwd = workDir
	}
	mgr := &session.Manager{WorkDir: workDir}
	meta, err := mgr.Start(c.Shell, cwd, c.Cols, c.Rows)
	if err != nil {
		return err
	}
	fmt.Println(meta.SessionID)
	return nil
}

// Run sends one command to a session's holder and prints its output.
func (c *SessionExecCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	mgr := &session.Manager{WorkDir: workDir}
	meta, err := mgr.Load(c.SessionID)
	if err != nil {
		return err
	}
	resp, err := session.Exec(meta.SocketPath, c.Command)
	if err != nil {
		return err
	}
	fmt.Print(resp.Stdout)
	fmt.Fprint(os.Stderr, resp.Stderr)
	if resp.ExitCode != 0 {
		return fmt.Errorf("command exited %d", resp.ExitCode)
	}
	return nil
}

// Run reports whether a session's holder is alive and responsive.
func (c *SessionStatusCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	mgr := &session.Manager{WorkDir: workDir}
	alive, err := mgr.Status(c.SessionID)
	if err != nil {
		return err
	}
	if alive {
		fmt.Println("alive")
		return nil
	}
	fmt.Println("dead")
	return nil
}

// Run lists every session known to the workspace.
func (c *SessionListCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	mgr := &session.Manager{WorkDir: workDir}
	metas, err := mgr.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPID\tCWD\tCREATED")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", m.SessionID, m.HolderPID, m.CWD, m.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// Run terminates a session's holder and removes its metadata.
func (c *SessionEndCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	mgr := &session.Manager{WorkDir: workDir}
	return mgr.End(c.SessionID)
}

// Run removes sessions whose holder is gone or unresponsive.
func (c *SessionCleanupCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}
	mgr := &session.Manager{WorkDir: workDir}
	removed, err := mgr.Cleanup()
	if err != nil {
		return err
	}
	for _, id := range removed {
		fmt.Println(id)
	}
	return nil
}
