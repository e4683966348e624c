package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/deltaengine/delta/internal/errkind"
)

// FileName is the fixed basename every journal must carry. Format
// validation checks this exactly, so renames by external tools are
// caught rather than silently accepted.
const FileName = "journal.jsonl"

// Journal is an append-only, line-delimited event log backed by a
// single file. All appends acquire an in-process lock; the journal is
// never written by more than one engine loop against the same
// workspace (spec.md §5), but the lock also protects lastSeq bookkeeping
// within this process.
type Journal struct {
	path string

	mu      sync.Mutex
	f       *os.File
	lastSeq uint64
}

// Open opens (creating if absent) the journal at dir/journal.jsonl. It
// runs format validation against any pre-existing content before
// accepting appends.
func Open(dir string) (*Journal, error) {
	path := filepath.Join(dir, FileName)

	if _, err := os.Stat(path); err == nil {
		if err := validateFormat(path); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errkind.Wrap(errkind.JournalCorruption, fmt.Errorf("open journal: %w", err))
	}

	j := &Journal{path: path, f: f}

	last, err := j.computeLastSeq()
	if err != nil {
		f.Close()
		return nil, err
	}
	j.lastSeq = last

	return j, nil
}

// Close releases the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

// Path returns the absolute path to the journal file.
func (j *Journal) Path() string { return j.path }

// computeLastSeq reads tolerantly: a corrupt line does not block
// opening as long as some well-formed events remain.
func (j *Journal) computeLastSeq() (uint64, error) {
	events, err := j.readAllOrderedLocked(true)
	if err != nil && len(events) == 0 {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}

// LastSeq returns the highest seq currently in the journal, or 0 if empty.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSeq
}

// Append writes one event to the journal, assigning it the next seq.
// The event is appended with a single Write syscall's worth of bytes:
// the whole line is built in memory first.
func (j *Journal) Append(typ Type, payload json.RawMessage) (Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ev := Event{
		Seq:     j.lastSeq + 1,
		Type:    typ,
		Payload: payload,
	}
	ev.Timestamp = nowFunc()

	line, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.f.Write(line); err != nil {
		return Event{}, errkind.Wrap(errkind.JournalCorruption, fmt.Errorf("append event: %w", err))
	}
	if err := j.f.Sync(); err != nil {
		return Event{}, errkind.Wrap(errkind.JournalCorruption, fmt.Errorf("sync journal: %w", err))
	}

	j.lastSeq = ev.Seq
	return ev, nil
}

// ReadAllOrdered parses every line, sorts by seq, and verifies
// contiguity starting at 1. A parse error on one line is returned with
// its line number; callers that want the well-formed prefix anyway
// should use ReadTolerant.
func (j *Journal) ReadAllOrdered() ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAllOrderedLocked(false)
}

// ReadTolerant behaves like ReadAllOrdered but returns the well-formed
// prefix alongside the first parse error encountered, instead of
// failing outright. Callers choose whether to treat the error as fatal.
func (j *Journal) ReadTolerant() ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAllOrderedLocked(true)
}

func (j *Journal) readAllOrderedLocked(tolerant bool) ([]Event, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var events []Event
	var firstErr error

	scanner := bufio.NewScanner(data2reader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			wrapped := fmt.Errorf("journal line %d: %w", lineNo, err)
			if !tolerant {
				return nil, wrapped
			}
			if firstErr == nil {
				firstErr = wrapped
			}
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}

	sort.Slice(events, func(a, b int) bool { return events[a].Seq < events[b].Seq })

	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			gapErr := errkind.New(errkind.JournalCorruption,
				"journal seq values must be contiguous from 1; the file may have been edited externally",
				fmt.Errorf("expected seq %d, found %d at position %d", i+1, ev.Seq, i))
			if !tolerant {
				return nil, gapErr
			}
			if firstErr == nil {
				firstErr = gapErr
			}
			break
		}
	}

	if tolerant {
		return events, firstErr
	}
	return events, nil
}

func data2reader(data []byte) *bytes.Reader { return bytes.NewReader(data) }

// validateFormat runs the three fatal checks against an existing
// journal file before any append is attempted.
func validateFormat(path string) error {
	if filepath.Base(path) != FileName {
		return errkind.New(errkind.JournalCorruption,
			"the journal may have been renamed by an external tool; restore it to journal.jsonl",
			fmt.Errorf("unexpected journal basename %q", filepath.Base(path)))
	}

	f, err := os.Open(path)
	if err != nil {
		return errkind.Wrap(errkind.JournalCorruption, fmt.Errorf("open journal for validation: %w", err))
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		// Empty or unreadable file: nothing to validate yet.
		return nil
	}
	head := buf[:n]

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return errkind.New(errkind.JournalCorruption,
			"the journal looks like a JSON array; some editors reformat .jsonl files this way. Restore the line-delimited form.",
			fmt.Errorf("journal starts with '['"))
	}

	// Only the first record is checked for pretty-printing. Once a
	// journal has two or more compact records, "}\n{" at the boundary
	// between them is exactly what valid line-delimited JSON looks
	// like, so scanning the whole 512-byte head would flag every
	// multi-record journal as corrupt. firstRecordSpan isolates the
	// first top-level object; a newline inside it followed by
	// indentation or a brace means that record itself was reformatted.
	if span := firstRecordSpan(head); bytes.Contains(span, []byte("\n  ")) || bytes.Contains(span, []byte("\n{")) {
		return errkind.New(errkind.JournalCorruption,
			"the journal looks pretty-printed; an external tool may have reformatted it. Restore the compact line-delimited form.",
			fmt.Errorf("journal contains multi-line record framing"))
	}

	return nil
}

// firstRecordSpan returns the prefix of head spanning the first
// top-level JSON object, tracking brace depth and skipping over
// quoted strings (so a '{' or '}' inside a payload string doesn't
// unbalance the count). If the object's closing brace isn't found
// within head, the whole of head is returned, matching the prior
// conservative behavior when the first record is larger than the
// validation read.
func firstRecordSpan(head []byte) []byte {
	depth := 0
	started := false
	inString := false
	escaped := false
	for i, b := range head {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			depth++
			started = true
		case '}':
			depth--
			if started && depth == 0 {
				return head[:i+1]
			}
		}
	}
	return head
}

// nowFunc is a seam for deterministic tests.
var nowFunc = defaultNow
