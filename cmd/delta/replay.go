package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/deltaengine/delta/internal/replay"
	"github.com/deltaengine/delta/internal/runctx"
)

// Run renders a run's journal, either as a one-shot printout, an
// interactive pager, or a live-following pager over an in-progress run.
func (c *ReplayCmd) Run(_ context.Context) error {
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return err
	}

	runID := c.RunID
	if runID == "" {
		run, err := runctx.Resume(workDir, nil)
		if err != nil {
			return err
		}
		runID = run.RunID
		run.Close()
	}

	render := func() (string, error) {
		meta, events, err := replay.Load(workDir, runID)
		if err != nil {
			return "", err
		}
		return replay.Render(meta, events), nil
	}

	if c.NoPager {
		out, err := render()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	title := fmt.Sprintf("delta replay — %s", runID)
	if c.Follow {
		run, err := runctx.Open(workDir, runID)
		if err != nil {
			return err
		}
		journalPath := run.Journal.Path()
		run.Close()
		return replay.RunLivePager(title, journalPath, render)
	}

	content, err := render()
	if err != nil {
		return err
	}
	return replay.RunPager(title, content)
}
