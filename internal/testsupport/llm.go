package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// ChatRequest is the subset of a chat completion request tests inspect.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// System returns the first system message.
func (r ChatRequest) System() string {
	for _, m := range r.Messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

// User returns the last user message.
func (r ChatRequest) User() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatReply is returned by a ChatHandler. A non-zero Status other than 200
// is written as an error response.
type ChatReply struct {
	Status  int
	Content string
}

// ChatHandler answers one chat completion request.
type ChatHandler func(req ChatRequest) ChatReply

// ChatServer is an OpenAI-compatible chat completions stub.
type ChatServer struct {
	*httptest.Server
	calls atomic.Int64
}

// BaseURL is the value to configure as an LLM base URL.
func (s *ChatServer) BaseURL() string {
	return s.URL + "/v1"
}

// Calls reports how many completion requests were served.
func (s *ChatServer) Calls() int {
	return int(s.calls.Load())
}

// NewChatServer starts a chat completions stub and registers cleanup.
func NewChatServer(t testing.TB, handler ChatHandler) *ChatServer {
	t.Helper()

	srv := &ChatServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		srv.calls.Add(1)
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply := handler(req)
		w.Header().Set("Content-Type", "application/json")
		if reply.Status != 0 && reply.Status != http.StatusOK {
			w.WriteHeader(reply.Status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": reply.Content, "type": "test_error"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply.Content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}
