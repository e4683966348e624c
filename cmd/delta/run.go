package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/deltaengine/delta/internal/config"
	"github.com/deltaengine/delta/internal/engine"
	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/llmclient"
	"github.com/deltaengine/delta/internal/logging"
	"github.com/deltaengine/delta/internal/runctx"
)

// Run wires one agent.toml into a fresh or resumed engine run and
// drives it to completion, a suspension point, or a fatal error.
func (c *RunCmd) Run(ctx context.Context) error {
	agentDir, err := filepath.Abs(c.Agent)
	if err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("resolve agent path: %w", err))
	}
	workDir, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("resolve workspace path: %w", err))
	}

	if err := config.LoadEnv(agentDir); err != nil {
		return err
	}
	def, err := config.LoadFile(filepath.Join(agentDir, "agent.toml"))
	if err != nil {
		return err
	}

	tools, err := def.Tools()
	if err != nil {
		return err
	}
	hookRunner, err := def.HookRunner(workDir)
	if err != nil {
		return err
	}

	var run *runctx.Run
	if c.Resume {
		run, err = runctx.Resume(workDir, logging.Discard())
	} else {
		run, err = runctx.Create(workDir, agentDir)
	}
	if err != nil {
		return err
	}
	defer run.Close()

	log, err := logging.OpenFile(runctx.EngineLogPath(workDir, run.RunID))
	if err != nil {
		return err
	}
	defer log.Close()

	executor := toolExecutorFor(tools, workDir, agentDir, run.RunID)

	llm := apiClientFor(def)

	eng := engine.New(run, executor, hookRunner, llm, def.ContextSources(), log)
	eng.MaxIterations = def.Engine.MaxIterations
	eng.JournalTailSize = def.Engine.JournalTailSize
	eng.AgentDir = agentDir
	eng.AgentHome = agentDir
	eng.Interactive = c.Interactive

	outcome, err := eng.Execute(ctx, c.Task)
	if err != nil {
		return err
	}
	return outcomeErr(outcome.Status, outcome.Reason)
}

// apiClientFor builds the engine's LLM transport from the agent's
// declared provider settings, resolving the API key from the named
// environment variable (populated by config.LoadEnv's .env load or
// already present in the process environment).
func apiClientFor(def *config.AgentDefinition) llmclient.Client {
	return llmclient.NewHTTPClient(apiKeyFromEnv(def.LLM.APIKeyEnv), def.LLM.Model, def.LLM.MaxTokens, def.LLM.BaseURL)
}
