package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/llm"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOllamaProvider(server.URL, "test-model")
}

func TestNewOllamaProvider(t *testing.T) {
	provider := NewOllamaProvider("http://localhost:11434", "test-model")

	if provider == nil {
		t.Fatal("NewOllamaProvider should not return nil")
	}
	if provider.Name() != "ollama-test-model" {
		t.Errorf("Expected name 'ollama-test-model', got '%s'", provider.Name())
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  llm.GenerateRequest
		want string
	}{
		{
			name: "single user message",
			req: llm.GenerateRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "こんにちは"}},
			},
			want: "User: こんにちは",
		},
		{
			name: "system prompt separated by blank line",
			req: llm.GenerateRequest{
				SystemPrompt: "You are a helpful assistant",
				Messages:     []llm.Message{{Role: llm.RoleUser, Content: "テスト"}},
			},
			want: "System: You are a helpful assistant\n\nUser: テスト",
		},
		{
			name: "multi-turn conversation keeps order",
			req: llm.GenerateRequest{
				Messages: []llm.Message{
					{Role: llm.RoleUser, Content: "こんにちは"},
					{Role: llm.RoleAssistant, Content: "こんにちは！"},
					{Role: llm.RoleUser, Content: "元気ですか？"},
				},
			},
			want: "User: こんにちは\nAssistant: こんにちは！\nUser: 元気ですか？",
		},
		{
			name: "system role message in history",
			req: llm.GenerateRequest{
				Messages: []llm.Message{
					{Role: llm.RoleSystem, Content: "context note"},
					{Role: llm.RoleUser, Content: "question"},
				},
			},
			want: "System: context note\nUser: question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildPrompt(tt.req); got != tt.want {
				t.Errorf("buildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOllamaProviderGenerate_Success(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path '/api/generate', got '%s'", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST method, got '%s'", r.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{
			Response:        "こんにちは！何かお手伝いできますか？",
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       25,
		})
	})

	resp, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "こんにちは"}},
		MaxTokens:   100,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Content != "こんにちは！何かお手伝いできますか？" {
		t.Errorf("Expected response content, got '%s'", resp.Content)
	}
	if resp.TokensUsed != 35 {
		t.Errorf("Expected 35 tokens (prompt+eval), got %d", resp.TokensUsed)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got '%s'", resp.FinishReason)
	}
}

func TestOllamaProviderGenerate_RequestShape(t *testing.T) {
	var got generateRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	})

	_, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "テスト"}},
		SystemPrompt: "You are a helpful assistant",
		MaxTokens:    100,
		Temperature:  0.7,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if got.Model != "test-model" {
		t.Errorf("Expected model 'test-model', got '%s'", got.Model)
	}
	if got.Stream {
		t.Error("Streaming should be disabled")
	}
	if got.Options.NumPredict != 100 {
		t.Errorf("Expected num_predict 100, got %d", got.Options.NumPredict)
	}
	if got.Options.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", got.Options.Temperature)
	}
	if !strings.HasPrefix(got.Prompt, "System: You are a helpful assistant") {
		t.Errorf("Prompt should start with the system prompt, got '%s'", got.Prompt)
	}
}

func TestOllamaProviderGenerate_ServerError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal server error"))
	})

	_, err := provider.Generate(context.Background(), llm.GenerateRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "テスト"}},
	})
	if err == nil {
		t.Fatal("Expected error when server returns 500")
	}
	if !strings.Contains(err.Error(), "status=500") {
		t.Errorf("Error should carry the status, got: %v", err)
	}
}

func TestOllamaProviderGenerate_Timeout(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		// レスポンスを返さずクライアント側のタイムアウトを待つ
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := provider.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "テスト"}},
	})
	if err == nil {
		t.Error("Expected timeout error")
	}
}
