// Package runctx resolves the active workspace and allocates or opens
// a run, mirroring the teacher's workspace-rooted layout conventions
// (internal/config.StorageConfig, cmd/agent/main.go's run resolution)
// but generalized to the engine's own run/metadata/LATEST model.
package runctx

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/deltaengine/delta/internal/errkind"
	"github.com/deltaengine/delta/internal/journal"
	"github.com/deltaengine/delta/internal/logging"
)

// Status is the closed set of run lifecycle states.
type Status string

const (
	StatusRunning         Status = "running"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusWaitingForInput Status = "waiting-for-input"
	StatusInterrupted     Status = "interrupted"
)

const deltaDir = ".delta"

// Metadata is the run's persisted metadata.json.
type Metadata struct {
	RunID     string    `json:"run_id"`
	AgentPath string    `json:"agent_path"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run is an opened run: its journal, metadata, and the directory paths
// for I/O audit and interaction files.
type Run struct {
	WorkDir string
	RunID   string
	Dir     string // .delta/runs/<run_id>
	Journal *journal.Journal
	Meta    Metadata

	metaPath string
}

// IODir, ToolExecutionsDir, InvocationsDir, InteractionDir,
// ContextArtifactsDir, SessionsDir, and EngineLogPath return fixed
// sub-paths of the workspace layout (spec.md §6).

func IODir(workDir, runID string) string {
	return filepath.Join(runsDir(workDir), runID, "io")
}

func ToolExecutionsDir(workDir, runID string) string {
	return filepath.Join(IODir(workDir, runID), "tool_executions")
}

func InvocationsDir(workDir, runID string) string {
	return filepath.Join(IODir(workDir, runID), "invocations")
}

func InteractionDir(workDir, runID string) string {
	return filepath.Join(runsDir(workDir), runID, "interaction")
}

func ContextArtifactsDir(workDir string) string {
	return filepath.Join(controlDir(workDir), "context_artifacts")
}

func SessionsDir(workDir string) string {
	return filepath.Join(workDir, ".sessions")
}

func EngineLogPath(workDir, runID string) string {
	return filepath.Join(runsDir(workDir), runID, "engine.log")
}

func controlDir(workDir string) string { return filepath.Join(workDir, deltaDir) }
func runsDir(workDir string) string    { return filepath.Join(controlDir(workDir), "runs") }
func latestPath(workDir string) string { return filepath.Join(controlDir(workDir), "LATEST") }

// NewRunID generates a monotonically sortable run identifier: a
// second-precision UTC timestamp prefix (sortable lexicographically)
// plus 6 hex characters of randomness to avoid collisions within the
// same second.
func NewRunID() string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	return time.Now().UTC().Format("20060102T150405") + "-" + hex.EncodeToString(b)
}

// Create allocates a new run in workDir for the given agent path.
func Create(workDir, agentPath string) (*Run, error) {
	runID := NewRunID()
	dir := filepath.Join(runsDir(workDir), runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errkind.Wrap(errkind.Configuration, fmt.Errorf("create run dir: %w", err))
	}
	for _, sub := range []string{"io/invocations", "io/tool_executions"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, errkind.Wrap(errkind.Configuration, fmt.Errorf("create %s: %w", sub, err))
		}
	}
	if err := os.MkdirAll(ContextArtifactsDir(workDir), 0755); err != nil {
		return nil, errkind.Wrap(errkind.Configuration, fmt.Errorf("create context artifacts dir: %w", err))
	}

	jr, err := journal.Open(dir)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := Metadata{
		RunID:     runID,
		AgentPath: agentPath,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	metaPath := filepath.Join(dir, "metadata.json")
	if err := writeMetadata(metaPath, meta); err != nil {
		jr.Close()
		return nil, err
	}

	if err := writeLatest(workDir, runID); err != nil {
		jr.Close()
		return nil, err
	}

	return &Run{WorkDir: workDir, RunID: runID, Dir: dir, Journal: jr, Meta: meta, metaPath: metaPath}, nil
}

// Resume opens the run named by LATEST. If LATEST is missing but
// runs/ is non-empty, it falls back to the lexicographically greatest
// run_id (run IDs are timestamp-prefixed and therefore sortable) per
// SPEC_FULL.md §D, logging the fallback rather than failing.
func Resume(workDir string, log *logging.Logger) (*Run, error) {
	runID, err := readLatest(workDir)
	if err != nil {
		fallback, ferr := latestByEnumeration(workDir)
		if ferr != nil {
			return nil, errkind.New(errkind.Configuration,
				"no run to resume; start a new run first", fmt.Errorf("resolve LATEST: %w", err))
		}
		if log != nil {
			log.Warn("LATEST pointer missing; falling back to most-recent run directory", "run_id", fallback)
		}
		runID = fallback
	}
	return Open(workDir, runID)
}

// Open opens an existing run by id, validating its journal.
func Open(workDir, runID string) (*Run, error) {
	dir := filepath.Join(runsDir(workDir), runID)
	if _, err := os.Stat(dir); err != nil {
		return nil, errkind.New(errkind.Configuration, "run directory does not exist",
			fmt.Errorf("stat run dir: %w", err))
	}

	jr, err := journal.Open(dir)
	if err != nil {
		return nil, err
	}
	if _, err := jr.ReadAllOrdered(); err != nil {
		jr.Close()
		return nil, errkind.Wrap(errkind.JournalCorruption, err)
	}

	metaPath := filepath.Join(dir, "metadata.json")
	meta, err := readMetadata(metaPath)
	if err != nil {
		jr.Close()
		return nil, err
	}

	return &Run{WorkDir: workDir, RunID: runID, Dir: dir, Journal: jr, Meta: meta, metaPath: metaPath}, nil
}

// SetStatus updates and persists the run's status.
func (r *Run) SetStatus(status Status) error {
	r.Meta.Status = status
	r.Meta.UpdatedAt = time.Now().UTC()
	return writeMetadata(r.metaPath, r.Meta)
}

// Close releases the run's journal handle.
func (r *Run) Close() error {
	return r.Journal.Close()
}

func writeMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("write metadata: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("rename metadata into place: %w", err))
	}
	return nil
}

func readMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, errkind.New(errkind.Configuration, "run metadata is missing or unreadable",
			fmt.Errorf("read metadata: %w", err))
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, errkind.Wrap(errkind.Configuration, fmt.Errorf("parse metadata: %w", err))
	}
	return meta, nil
}

// writeLatest writes the LATEST pointer atomically: it is written only
// after the run directory already exists (called after Create's
// MkdirAll above), and the write-then-rename sequence means readers
// never observe a LATEST naming a nonexistent directory.
func writeLatest(workDir, runID string) error {
	path := latestPath(workDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(runID), 0644); err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("write LATEST: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errkind.Wrap(errkind.Configuration, fmt.Errorf("rename LATEST into place: %w", err))
	}
	return nil
}

func readLatest(workDir string) (string, error) {
	data, err := os.ReadFile(latestPath(workDir))
	if err != nil {
		return "", err
	}
	runID := strings.TrimSpace(string(data))
	if runID == "" {
		return "", fmt.Errorf("LATEST is empty")
	}
	return runID, nil
}

func latestByEnumeration(workDir string) (string, error) {
	entries, err := os.ReadDir(runsDir(workDir))
	if err != nil {
		return "", fmt.Errorf("enumerate runs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no runs exist")
	}
	sort.Strings(ids)
	return ids[len(ids)-1], nil
}
