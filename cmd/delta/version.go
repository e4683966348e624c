package main

import (
	"context"
	"fmt"
)

// Run prints build metadata set via ldflags at release time.
func (c *VersionCmd) Run(_ context.Context) error {
	fmt.Printf("delta %s (commit %s, built %s)\n", version, commit, buildTime)
	return nil
}
