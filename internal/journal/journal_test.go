package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deltaengine/delta/internal/errkind"
)

func TestAppendThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	ev, err := j.Append(UserMessage, Marshal(map[string]string{"text": "hello"}))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", ev.Seq)
	}

	events, err := j.ReadAllOrdered()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 1 || events[0].Type != UserMessage {
		t.Fatalf("unexpected events: %+v", events)
	}
	var payload map[string]string
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["text"] != "hello" {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestSeqIsContiguous(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	for i := 0; i < 5; i++ {
		if _, err := j.Append(SystemMessage, Marshal(map[string]int{"i": i})); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	events, err := j.ReadAllOrdered()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
}

func TestReopenResumesLastSeq(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := j.Append(RunStart, Marshal(struct{}{})); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := j.Append(UserMessage, Marshal(struct{}{})); err != nil {
		t.Fatalf("append: %v", err)
	}
	j.Close()

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	if j2.LastSeq() != 2 {
		t.Fatalf("expected last seq 2, got %d", j2.LastSeq())
	}
	ev, err := j2.Append(SystemMessage, Marshal(struct{}{}))
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if ev.Seq != 3 {
		t.Fatalf("expected seq 3, got %d", ev.Seq)
	}
}

func TestJSONArrayReformatIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("[\n{\"seq\":1}\n]"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Open(dir)
	if err == nil {
		t.Fatalf("expected error opening array-reformatted journal")
	}
	if !errkind.Is(err, errkind.JournalCorruption) {
		t.Fatalf("expected JournalCorruption, got %v", err)
	}
	if !strings.Contains(err.Error(), "array") {
		t.Fatalf("expected error to mention array format, got %q", err.Error())
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read back: %v", readErr)
	}
	if string(data) != "[\n{\"seq\":1}\n]" {
		t.Fatalf("file was modified despite rejection")
	}
}

func TestPrettyPrintedJournalIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	pretty := "{\n  \"seq\": 1,\n  \"type\": \"RUN_START\"\n}\n"
	if err := os.WriteFile(path, []byte(pretty), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Open(dir)
	if err == nil {
		t.Fatalf("expected error opening pretty-printed journal")
	}
	if !errkind.Is(err, errkind.JournalCorruption) {
		t.Fatalf("expected JournalCorruption, got %v", err)
	}
}

func TestRenamedJournalIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(path, []byte(`{"seq":1,"type":"RUN_START","payload":{}}`+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err := validateFormat(path)
	if err == nil {
		t.Fatalf("expected error for renamed journal")
	}
	if !errkind.Is(err, errkind.JournalCorruption) {
		t.Fatalf("expected JournalCorruption, got %v", err)
	}
}

func TestCorruptLineToleratesPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := `{"seq":1,"timestamp":"2026-01-01T00:00:00Z","type":"RUN_START","payload":{}}` + "\n" +
		"not json\n" +
		`{"seq":2,"timestamp":"2026-01-01T00:00:01Z","type":"USER_MESSAGE","payload":{}}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Open computes lastSeq tolerantly so a corrupt line doesn't block opening.
	j, err := Open(dir)
	if err != nil {
		t.Fatalf("open should tolerate corrupt lines for lastSeq bookkeeping: %v", err)
	}
	defer j.Close()

	events, err := j.ReadTolerant()
	if err == nil {
		t.Fatalf("expected a reported parse error")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 well-formed events despite corruption, got %d", len(events))
	}

	if _, err := j.ReadAllOrdered(); err == nil {
		t.Fatalf("strict ReadAllOrdered should fail on corrupt line")
	}
}
