// Package config loads the engine's own TOML settings and an agent's
// tool/hook/profile definitions. Grounded on the teacher's own
// internal/config/config.go (its layered, defaulted TOML struct and
// `toml.DecodeFile` loader), generalized from its provider/skills/
// security surface to the engine's agent definition contract
// (spec.md §6): tools, hooks, context sources, and capability-scoped
// LLM profiles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/deltaengine/delta/internal/context"
	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/hooks"
	"github.com/deltaengine/delta/internal/toolexec"
)

// LLMConfig is the main model's connection settings.
type LLMConfig struct {
	Provider   string `toml:"provider"`
	Model      string `toml:"model"`
	APIKeyEnv  string `toml:"api_key_env"`
	BaseURL    string `toml:"base_url"`
	MaxTokens  int    `toml:"max_tokens"`
}

// Profile is a capability-scoped LLM configuration: a named alternate to
// the main LLM. Profiles are parsed into AgentDefinition.Profiles, but no
// other package reads them; every LLM call uses the [llm] settings.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	BaseURL   string `toml:"base_url"`
	MaxTokens int    `toml:"max_tokens"`
}

// EngineConfig is the engine's own operational settings (iteration
// cap, journal tail length) independent of any one agent.
type EngineConfig struct {
	MaxIterations   int `toml:"max_iterations"`
	JournalTailSize int `toml:"journal_tail_size"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

// AgentDefinition is the parsed agent.toml: the tools, hooks, and
// context sources an agent declares, plus its LLM and profile set.
type AgentDefinition struct {
	Engine    EngineConfig         `toml:"engine"`
	LLM       LLMConfig            `toml:"llm"`
	Profiles  map[string]Profile   `toml:"profiles"`
	Telemetry TelemetryConfig      `toml:"telemetry"`

	StaticContext   []context.StaticSource     `toml:"static_context"`
	ComputedContext []computedContextEntry     `toml:"computed_context"`
	DirectContext   []context.DirectSource     `toml:"direct_context"`

	ToolDefs []toolDefinitionEntry `toml:"tool"`
	HookDefs []hookDefinitionEntry `toml:"hook"`
}

// computedContextEntry is the TOML shape of a context.ComputedSource;
// TOML has no native duration type, so TimeoutMs is a plain integer.
type computedContextEntry struct {
	Name       string `toml:"name"`
	Command    string `toml:"command"`
	Args       []string `toml:"args"`
	OutputPath string `toml:"output_path"`
	TimeoutMs  int64  `toml:"timeout_ms"`
	OnFailure  string `toml:"on_failure"` // "skip" or "fatal"
	MaxTokens  int    `toml:"max_tokens"`
}

type toolDefinitionEntry struct {
	Name           string `toml:"name"`
	Command        string `toml:"command"`
	BaseArgs       []string `toml:"base_args"`
	TimeoutMs      int64  `toml:"timeout_ms"`
	MaxOutputBytes int    `toml:"max_output_bytes"`
	Parameters     []struct {
		Name     string `toml:"name"`
		Kind     string `toml:"kind"` // "argument", "option", "stdin"
		Flag     string `toml:"flag"`
		Required bool   `toml:"required"`
	} `toml:"parameter"`
}

type hookDefinitionEntry struct {
	Name      string   `toml:"name"`
	Point     string   `toml:"point"`
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	TimeoutMs int64    `toml:"timeout_ms"`
	OnFailure string   `toml:"on_failure"` // "warn" or "abort"
}

// New returns an AgentDefinition with the engine's own defaults
// (matching the teacher's New()/Default() pair).
func New() *AgentDefinition {
	return &AgentDefinition{
		Engine: EngineConfig{
			MaxIterations:   30,
			JournalTailSize: 5,
		},
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
	}
}

// LoadFile parses an agent.toml at path over the default settings.
func LoadFile(path string) (*AgentDefinition, error) {
	def := New()
	if _, err := toml.DecodeFile(path, def); err != nil {
		return nil, errkind.New(errkind.Configuration, fmt.Sprintf("parse agent definition %q", path), err)
	}
	return def, nil
}

// LoadEnv loads process-local credentials from a .env file alongside
// the agent definition, if present; a missing .env is not an error.
func LoadEnv(agentDir string) error {
	path := filepath.Join(agentDir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("load .env: %w", err))
	}
	return nil
}

// Tools converts the TOML tool entries into a toolexec.Set, rejecting
// any declared parameter of an unrecognized kind.
func (d *AgentDefinition) Tools() (toolexec.Set, error) {
	set := make(toolexec.Set, len(d.ToolDefs))
	for _, t := range d.ToolDefs {
		def := toolexec.Definition{
			Name:           t.Name,
			Command:        t.Command,
			BaseArgs:       t.BaseArgs,
			TimeoutMs:      t.TimeoutMs,
			MaxOutputBytes: t.MaxOutputBytes,
		}
		for _, p := range t.Parameters {
			kind := toolexec.ParamKind(p.Kind)
			switch kind {
			case toolexec.ParamArgument, toolexec.ParamOption, toolexec.ParamStdin:
			default:
				return nil, errkind.New(errkind.Configuration,
					fmt.Sprintf("tool %q declares parameter %q with unknown kind %q", t.Name, p.Name, p.Kind), nil)
			}
			def.Parameters = append(def.Parameters, toolexec.Param{
				Name: p.Name, Kind: kind, Flag: p.Flag, Required: p.Required,
			})
		}
		set[t.Name] = def
	}
	return set, nil
}

// HookRunner converts the TOML hook entries into a hooks.Runner bound
// to workDir.
func (d *AgentDefinition) HookRunner(workDir string) (*hooks.Runner, error) {
	byPoint := make(map[hooks.Point][]hooks.Definition)
	for _, h := range d.HookDefs {
		point := hooks.Point(h.Point)
		switch point {
		case hooks.PreLLMRequest, hooks.PostLLMResponse, hooks.PreToolExec, hooks.PostToolExec, hooks.OnError:
		default:
			return nil, errkind.New(errkind.Configuration,
				fmt.Sprintf("hook %q declares unknown lifecycle point %q", h.Name, h.Point), nil)
		}
		onFailure := hooks.OnFailureWarn
		if h.OnFailure == string(hooks.OnFailureAbort) {
			onFailure = hooks.OnFailureAbort
		}
		byPoint[point] = append(byPoint[point], hooks.Definition{
			Name: h.Name, Point: point, Command: h.Command, Args: h.Args,
			TimeoutMs: h.TimeoutMs, OnFailure: onFailure,
		})
	}
	return &hooks.Runner{WorkDir: workDir, ByPoint: byPoint}, nil
}

// ContextSources converts the TOML context entries into
// context.Sources, leaving AgentDir/WorkDir/AgentHome/TailMessages for
// the caller to fill in per run.
func (d *AgentDefinition) ContextSources() context.Sources {
	var computed []context.ComputedSource
	for _, c := range d.ComputedContext {
		onFailure := context.OnFailureSkip
		if c.OnFailure == string(context.OnFailureFatal) {
			onFailure = context.OnFailureFatal
		}
		computed = append(computed, context.ComputedSource{
			Name: c.Name, Command: c.Command, Args: c.Args,
			OutputPath: c.OutputPath,
			Timeout:    msToDuration(c.TimeoutMs),
			OnFailure:  onFailure,
			MaxTokens:  c.MaxTokens,
		})
	}
	return context.Sources{
		Static:   d.StaticContext,
		Computed: computed,
		Direct:   d.DirectContext,
	}
}

func msToDuration(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
