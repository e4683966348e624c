// Package askhuman implements the ask_human built-in tool (C7): a
// synchronous mode that reads one line from the controlling terminal
// (masked for sensitive/password input) and an asynchronous mode that
// suspends the run across process invocations via request/response
// files under the run's .delta/runs/<run_id>/interaction directory. Grounded on the teacher's own
// terminal-prompt handling in internal/setup/setup.go (masked
// credential entry over golang.org/x/term) and on
// internal/session/session.go's atomic-write convention for the
// request/response handoff files.
package askhuman

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/journal"
)

// InputType is the closed set of answer shapes ask_human accepts.
type InputType string

const (
	InputText         InputType = "text"
	InputPassword     InputType = "password"
	InputConfirmation InputType = "confirmation"
)

// Request is the ask_human tool's argument set.
type Request struct {
	Prompt    string    `json:"prompt"`
	InputType InputType `json:"input_type,omitempty"`
	Sensitive bool      `json:"sensitive,omitempty"`
}

func (r Request) masked() bool {
	return r.Sensitive || r.InputType == InputPassword
}

// AskSync reads one line of input from the given terminal file
// (masking the echo when the request calls for it) and returns the
// answer as an ACTION_RESULT payload. The loop continues immediately
// in this mode — there is no suspension across invocations.
func AskSync(in *os.File, out io.Writer, callID string, req Request) (journal.ActionResultPayload, error) {
	fmt.Fprintf(out, "%s ", req.Prompt)

	var answer string
	if req.masked() && term.IsTerminal(int(in.Fd())) {
		data, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return journal.ActionResultPayload{}, errkind.Wrap(errkind.InteractionPending, fmt.Errorf("read masked input: %w", err))
		}
		answer = string(data)
	} else {
		reader := bufio.NewReader(in)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return journal.ActionResultPayload{}, errkind.Wrap(errkind.InteractionPending, fmt.Errorf("read input: %w", err))
		}
		answer = strings.TrimRight(line, "\r\n")
	}

	return journal.ActionResultPayload{
		CallID:   callID,
		ExitCode: 0,
		Stdout:   answer,
	}, nil
}

// PendingRequest is the on-disk shape of request.json.
type PendingRequest struct {
	CallID    string    `json:"call_id"`
	Prompt    string    `json:"prompt"`
	InputType InputType `json:"input_type,omitempty"`
	Sensitive bool      `json:"sensitive,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestPath and ResponsePath are the two well-known files under a
// run's interaction directory.
func RequestPath(interactionDir string) string  { return filepath.Join(interactionDir, "request.json") }
func ResponsePath(interactionDir string) string { return filepath.Join(interactionDir, "response.txt") }

// RequestAsync writes the pending interaction request to disk. The
// caller is responsible for setting the run's status to
// waiting-for-input and appending INTERACTION_REQUESTED to the
// journal (runctx/engine own that sequencing); this function only
// owns the file artifact.
func RequestAsync(interactionDir string, callID string, req Request) error {
	if err := os.MkdirAll(interactionDir, 0755); err != nil {
		return errkind.Wrap(errkind.InteractionPending, fmt.Errorf("create interaction dir: %w", err))
	}
	record := PendingRequest{
		CallID:    callID,
		Prompt:    req.Prompt,
		InputType: req.InputType,
		Sensitive: req.Sensitive,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal interaction request: %w", err)
	}
	path := RequestPath(interactionDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errkind.Wrap(errkind.InteractionPending, fmt.Errorf("write request: %w", err))
	}
	return os.Rename(tmp, path)
}

// Pending reports whether an interaction request is outstanding, and
// if so, the request it describes.
func Pending(interactionDir string) (bool, PendingRequest, error) {
	data, err := os.ReadFile(RequestPath(interactionDir))
	if os.IsNotExist(err) {
		return false, PendingRequest{}, nil
	}
	if err != nil {
		return false, PendingRequest{}, err
	}
	var req PendingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return false, PendingRequest{}, fmt.Errorf("parse pending interaction request: %w", err)
	}
	return true, req, nil
}

// ResponseReady reports whether the user has written an answer yet.
func ResponseReady(interactionDir string) bool {
	_, err := os.Stat(ResponsePath(interactionDir))
	return err == nil
}

// ResolveAsync reads response.txt, builds the ACTION_RESULT payload,
// and removes both interaction files. The caller still owns appending
// INTERACTION_RESOLVED/ACTION_RESULT to the journal and restoring the
// run's status to running — this function only resolves the file
// artifacts into an in-memory answer.
func ResolveAsync(interactionDir string, callID string) (answer string, err error) {
	data, err := os.ReadFile(ResponsePath(interactionDir))
	if err != nil {
		return "", errkind.Wrap(errkind.InteractionPending, fmt.Errorf("read response: %w", err))
	}
	answer = strings.TrimRight(string(data), "\r\n")

	if err := os.Remove(RequestPath(interactionDir)); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove request file: %w", err)
	}
	if err := os.Remove(ResponsePath(interactionDir)); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove response file: %w", err)
	}
	return answer, nil
}
