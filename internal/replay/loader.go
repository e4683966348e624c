package replay

import (
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/runctx"
)

// Load opens the run's journal read-only (via runctx) and returns its
// metadata and ordered events, ready for Render or an interactive pager.
func Load(workDir, runID string) (runctx.Metadata, []journal.Event, error) {
	run, err := runctx.Open(workDir, runID)
	if err != nil {
		return runctx.Metadata{}, nil, err
	}
	defer run.Close()

	events, err := run.Journal.ReadTolerant()
	return run.Meta, events, err
}
