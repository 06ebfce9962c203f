package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/llm"
)

// ローカル実行のOllamaは応答が遅いことがあるため長めに取る
const requestTimeout = 120 * time.Second

// generateRequest は /api/generate のリクエストボディ
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// generateResponse は非ストリームの /api/generate レスポンス
type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// OllamaProvider はOllama APIプロバイダーの実装
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider は新しいOllamaProviderを作成
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Generate はLLM生成を実行
func (p *OllamaProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.model,
		Prompt: buildPrompt(req),
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return llm.GenerateResponse{}, fmt.Errorf("ollama API error: status=%d, body=%s", resp.StatusCode, string(detail))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return llm.GenerateResponse{
		Content:      result.Response,
		TokensUsed:   result.PromptEvalCount + result.EvalCount,
		FinishReason: "stop",
	}, nil
}

// Name はプロバイダー名を返す
func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("ollama-%s", p.model)
}

// buildPrompt は会話履歴を System:/User:/Assistant: 形式の1本のプロンプトにする。
// システムプロンプトがあるときは空行を挟んで先頭に置く
func buildPrompt(req llm.GenerateRequest) string {
	var b strings.Builder

	if req.SystemPrompt != "" {
		b.WriteString("System: ")
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n")
	}

	for _, msg := range req.Messages {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case llm.RoleAssistant:
			b.WriteString("Assistant: ")
		case llm.RoleSystem:
			b.WriteString("System: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(msg.Content)
	}

	return b.String()
}
