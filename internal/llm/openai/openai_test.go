package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/efebarandurmaz/chatproxy/internal/llm"
)

func okServer(t *testing.T, captured *map[string]any, headers *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if headers != nil {
			*headers = r.Header.Clone()
		}
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"gpt-4o-mini","choices":[{"message":{"content":"pong"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_Defaults(t *testing.T) {
	c := New("key", "gpt-4o-mini", "")
	if c.baseURL != defaultBaseURL {
		t.Errorf("expected default baseURL %q, got %q", defaultBaseURL, c.baseURL)
	}
	if c.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", c.Name())
	}
}

func TestComplete_ParsesResponse(t *testing.T) {
	srv := okServer(t, nil, nil)

	resp, err := New("key", "gpt-4o-mini", srv.URL).Complete(context.Background(), &llm.Prompt{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "pong" || resp.StopReason != "stop" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.InputTokens != 3 || resp.OutputTokens != 1 {
		t.Errorf("unexpected usage: %+v", resp)
	}
}

func TestComplete_BodyAndHeaders(t *testing.T) {
	var body map[string]any
	var headers http.Header
	srv := okServer(t, &body, &headers)

	temp := 0.2
	_, err := New("sk-test", "gpt-4o-mini", srv.URL+"/").Complete(context.Background(), &llm.Prompt{
		SystemPrompt: "be brief",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
	}, &llm.RequestOptions{Model: "gpt-4o", Temperature: &temp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if headers.Get("Authorization") != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", headers.Get("Authorization"))
	}
	if body["model"] != "gpt-4o" {
		t.Errorf("expected per-request model override, got %v", body["model"])
	}
	if body["temperature"] != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", body["temperature"])
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens should be omitted when unset")
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user messages, got %v", body["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("expected system message first, got %v", first)
	}
}

func TestComplete_NoAPIKeyOmitsAuth(t *testing.T) {
	var headers http.Header
	srv := okServer(t, nil, &headers)

	if _, err := New("", "llama3", srv.URL).Complete(context.Background(), &llm.Prompt{}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers.Get("Authorization") != "" {
		t.Errorf("expected no Authorization header, got %q", headers.Get("Authorization"))
	}
}

func TestComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New("key", "m", srv.URL).Complete(context.Background(), &llm.Prompt{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	resp, err := New("key", "m", srv.URL).Complete(context.Background(), &llm.Prompt{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "" || resp.Model != "m" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
