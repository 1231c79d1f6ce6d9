package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Debugf(format string, args ...any) {
	l.lines = append(l.lines, "DEBUG "+fmt.Sprintf(format, args...))
}

func (l *captureLogger) Errorf(format string, args ...any) {
	l.lines = append(l.lines, "ERROR "+fmt.Sprintf(format, args...))
}

func TestOllamaClientSendsConversationAndOptions(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"[SUMMARY]\nok"},"done":true}`))
	}))
	defer server.Close()

	topP := 0.8
	logger := &captureLogger{}
	client := NewOllamaClient(server.URL+"/", Options{Model: "m1", NumCtx: 2048, Temperature: 0.2, TopP: &topP}, WithLogger(logger))
	conv := NewConversation(SystemPrompt).Append(RoleUser, "hi")
	answer, err := client.Chat(context.Background(), conv)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if answer != "[SUMMARY]\nok" {
		t.Fatalf("answer = %q", answer)
	}
	if got.Model != "m1" || got.Stream {
		t.Fatalf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem || got.Messages[1].Content != "hi" {
		t.Fatalf("messages = %+v", got.Messages)
	}
	if got.Options["num_ctx"] != float64(2048) || got.Options["temperature"] != 0.2 || got.Options["top_p"] != 0.8 {
		t.Fatalf("options = %+v", got.Options)
	}
	if len(logger.lines) != 1 || !strings.HasPrefix(logger.lines[0], "DEBUG chat m1 answered") {
		t.Fatalf("log lines = %v", logger.lines)
	}
}

func TestOllamaClientOmitsUnsetTopP(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"x"}}`))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, Options{Model: "m"})
	if _, err := client.Chat(context.Background(), NewConversation("sys")); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, ok := got.Options["top_p"]; ok {
		t.Fatalf("top_p should be omitted: %+v", got.Options)
	}
	if _, ok := got.Options["num_ctx"]; ok {
		t.Fatalf("num_ctx should be omitted when zero: %+v", got.Options)
	}
}

func TestOllamaClientReportsBackendErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer server.Close()

	logger := &captureLogger{}
	client := NewOllamaClient(server.URL, Options{Model: "nope"}, WithLogger(logger))
	_, err := client.Chat(context.Background(), NewConversation("sys"))
	if err == nil || !strings.Contains(err.Error(), "model 'nope' not found") {
		t.Fatalf("err = %v", err)
	}
	if len(logger.lines) != 1 || !strings.HasPrefix(logger.lines[0], "ERROR chat nope at "+server.URL+" failed") {
		t.Fatalf("log lines = %v", logger.lines)
	}
}

func TestOllamaClientRejectsEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  "},"done":true}`))
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, Options{Model: "m"}).Chat(context.Background(), NewConversation("sys"))
	if !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("err = %v, want ErrEmptyAnswer", err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":                         "http://localhost:11434",
		"gpu:11434":                "http://gpu:11434",
		"http://host:11434/":       "http://host:11434",
		"https://host/ollama/api/": "https://host/ollama",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConversationAppendDoesNotMutate(t *testing.T) {
	base := NewConversation("sys")
	withUser := base.Append(RoleUser, "q")
	withBoth := withUser.Append(RoleAssistant, "a")
	_ = withUser.Append(RoleUser, "other branch")
	if base.Len() != 1 || withUser.Len() != 2 || withBoth.Len() != 3 {
		t.Fatalf("lens = %d %d %d", base.Len(), withUser.Len(), withBoth.Len())
	}
	last, _ := withBoth.Last()
	if last.Role != RoleAssistant || last.Content != "a" {
		t.Fatalf("last = %+v", last)
	}
	if msgs := withBoth.Messages(); msgs[0].Role != RoleSystem {
		t.Fatalf("first turn must be the system prompt: %+v", msgs[0])
	}
}

func TestBuildUserPromptIncludesContextAndQuestion(t *testing.T) {
	prompt := BuildUserPrompt("# FILE: /a.py\nx = 1\n", "  why?  ")
	for _, want := range []string{"TRUNCATED", "# FILE: /a.py", "User question:\nwhy?", "required format"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
