package main

import (
	"os"

	"github.com/deltaengine/delta/internal/runctx"
	"github.com/deltaengine/delta/internal/toolexec"
)

// toolExecutorFor builds the tool executor bound to one run's
// invocations directory, mirroring the teacher's pattern of
// constructing short-lived collaborators per command invocation
// rather than holding them at package scope.
func toolExecutorFor(tools toolexec.Set, workDir, agentHome, runID string) *toolexec.Executor {
	return &toolexec.Executor{
		Tools:     tools,
		WorkDir:   workDir,
		AgentHome: agentHome,
		AuditDir:  runctx.InvocationsDir(workDir, runID),
	}
}

// apiKeyFromEnv reads the named environment variable, returning an
// empty key (rather than erroring) when unset so local gateways that
// don't require authentication still work.
func apiKeyFromEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
