// Package toolexec resolves and runs tool definitions against a child
// process (C5). Grounded on the teacher's internal/executor/tools.go
// (timeout application, security-verification-then-execute ordering)
// and lowkaihon-cli-coding-agent's tools/bash.go (bounded-buffer output
// capture with a truncation marker, deadline-vs-exit-error
// disambiguation).
package toolexec

import (
	"encoding/json"
	"fmt"
)

// ParamKind is the closed set of ways a declared parameter is bound
// into the child process's argv or stdin.
type ParamKind string

const (
	ParamArgument ParamKind = "argument"
	ParamOption   ParamKind = "option"
	ParamStdin    ParamKind = "stdin"
)

// Param is one declared parameter of a tool definition. Order matters
// for Argument and Option kinds: they are bound into argv in
// declaration order.
type Param struct {
	Name     string    `json:"name"`
	Kind     ParamKind `json:"kind"`
	Flag     string    `json:"flag,omitempty"` // required for ParamOption, e.g. "--path"
	Required bool      `json:"required"`
}

// Definition is a tool's static shape: the command to run and its
// declared parameters. Every parameter value is a string; Invoke
// rejects a non-string argument value.
type Definition struct {
	Name       string  `json:"name"`
	Command    string  `json:"command"`
	BaseArgs   []string `json:"base_args,omitempty"`
	Parameters []Param `json:"parameters"`
	TimeoutMs  int64   `json:"timeout_ms,omitempty"` // 0 means no timeout
	MaxOutputBytes int `json:"max_output_bytes,omitempty"` // 0 means use DefaultMaxOutputBytes
}

// stdinParam returns the tool's at-most-one stdin parameter, if any.
func (d Definition) stdinParam() (Param, bool) {
	for _, p := range d.Parameters {
		if p.Kind == ParamStdin {
			return p, true
		}
	}
	return Param{}, false
}

// bind resolves argsMap against the declared parameters, building the
// effective argv (after BaseArgs) and the stdin byte stream. It
// rejects the call if a required parameter is missing or an unknown
// key is present in argsMap.
func (d Definition) bind(argsMap map[string]string) (argv []string, stdin []byte, err error) {
	seen := make(map[string]bool, len(d.Parameters))
	for _, p := range d.Parameters {
		seen[p.Name] = true
	}
	for key := range argsMap {
		if !seen[key] {
			return nil, nil, fmt.Errorf("unknown parameter %q for tool %q", key, d.Name)
		}
	}

	argv = append(argv, d.BaseArgs...)
	for _, p := range d.Parameters {
		value, present := argsMap[p.Name]
		if !present {
			if p.Required {
				return nil, nil, fmt.Errorf("missing required parameter %q for tool %q", p.Name, d.Name)
			}
			continue
		}
		switch p.Kind {
		case ParamArgument:
			argv = append(argv, value)
		case ParamOption:
			argv = append(argv, p.Flag, value)
		case ParamStdin:
			stdin = []byte(value)
		default:
			return nil, nil, fmt.Errorf("tool %q declares parameter %q with unknown kind %q", d.Name, p.Name, p.Kind)
		}
	}
	return argv, stdin, nil
}

// Set resolves tool names to definitions, as loaded from the agent's
// configuration.
type Set map[string]Definition

// Resolve looks up a tool by name.
func (s Set) Resolve(name string) (Definition, error) {
	def, ok := s[name]
	if !ok {
		return Definition{}, fmt.Errorf("no tool registered with name %q", name)
	}
	return def, nil
}

// decodeArguments parses the raw JSON object carried by an
// ACTION_REQUEST into the string-valued argsMap toolexec binds
// against. Non-string values are rejected here, mirroring the
// configuration loader's string-only acceptance.
func decodeArguments(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string value", k)
		}
		out[k] = s
	}
	return out, nil
}
