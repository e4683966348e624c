package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompleteReturnsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Fatalf("unexpected model: %q", req.Model)
		}
		resp := chatResponse{Choices: []chatChoice{
			{Message: Message{Role: RoleAssistant, Content: "hello"}, FinishReason: "stop"},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewHTTPClient("key", "test-model", 100, srv.URL)
	reply, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Text != "hello" {
		t.Fatalf("unexpected reply text: %q", reply.Text)
	}
}

func TestCompleteReturnsAuthErrorWithoutRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient("bad-key", "test-model", 100, srv.URL)
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatalf("expected an error for 401 response")
	}
	if calls != 1 {
		t.Fatalf("expected no retry on auth error, got %d calls", calls)
	}
}

func TestCompleteRetriesOn500(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := chatResponse{Choices: []chatChoice{{Message: Message{Role: RoleAssistant, Content: "ok"}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewHTTPClient("key", "test-model", 100, srv.URL)
	reply, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply.Text != "ok" {
		t.Fatalf("unexpected reply after retry: %q", reply.Text)
	}
	if calls < 2 {
		t.Fatalf("expected at least one retry, got %d calls", calls)
	}
}

func TestCompleteNoChoicesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	client := NewHTTPClient("key", "test-model", 100, srv.URL)
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
