package askhuman

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRequestAsyncWritesRequestFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "interaction")
	if err := RequestAsync(dir, "c1", Request{Prompt: "key?", InputType: InputText}); err != nil {
		t.Fatalf("request async: %v", err)
	}

	pending, req, err := Pending(dir)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if !pending {
		t.Fatalf("expected a pending interaction request")
	}
	if req.CallID != "c1" || req.Prompt != "key?" {
		t.Fatalf("unexpected pending request: %+v", req)
	}
}

func TestPendingFalseWhenNoRequest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "interaction")
	pending, _, err := Pending(dir)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending {
		t.Fatalf("expected no pending interaction request")
	}
}

func TestResponseReadyReflectsFilePresence(t *testing.T) {
	dir := t.TempDir()
	if ResponseReady(dir) {
		t.Fatalf("expected response not ready before it's written")
	}
	if err := os.WriteFile(ResponsePath(dir), []byte("abc\n"), 0644); err != nil {
		t.Fatalf("write response: %v", err)
	}
	if !ResponseReady(dir) {
		t.Fatalf("expected response ready after write")
	}
}

func TestResolveAsyncReadsAnswerAndCleansUpFiles(t *testing.T) {
	dir := t.TempDir()
	if err := RequestAsync(dir, "c1", Request{Prompt: "key?"}); err != nil {
		t.Fatalf("request async: %v", err)
	}
	if err := os.WriteFile(ResponsePath(dir), []byte("abc\n"), 0644); err != nil {
		t.Fatalf("write response: %v", err)
	}

	answer, err := ResolveAsync(dir, "c1")
	if err != nil {
		t.Fatalf("resolve async: %v", err)
	}
	if answer != "abc" {
		t.Fatalf("expected answer %q, got %q", "abc", answer)
	}

	if _, err := os.Stat(RequestPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("expected request.json to be removed")
	}
	if _, err := os.Stat(ResponsePath(dir)); !os.IsNotExist(err) {
		t.Fatalf("expected response.txt to be removed")
	}
}

func TestResolveAsyncFailsWithoutResponse(t *testing.T) {
	dir := t.TempDir()
	if _, err := ResolveAsync(dir, "c1"); err == nil {
		t.Fatalf("expected error resolving without a response file")
	}
}
