package deepseek

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/Nyukimin/personaclaw/internal/domain/llm"
)

const defaultBaseURL = "https://api.deepseek.com/v1/"

// DeepSeekProvider はDeepSeek APIプロバイダーの実装。
// APIはOpenAI互換のため、SDKをベースURL差し替えで使う
type DeepSeekProvider struct {
	client openai.Client
	model  string
}

// NewDeepSeekProvider は新しいDeepSeekProviderを作成
// optsにはSDKの追加オプションを渡せる（テスト時のWithBaseURL等）
func NewDeepSeekProvider(apiKey, model string, opts ...option.RequestOption) *DeepSeekProvider {
	options := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(defaultBaseURL),
	}, opts...)
	return &DeepSeekProvider{
		client: openai.NewClient(options...),
		model:  model,
	}
}

// Generate はLLM生成を実行
func (p *DeepSeekProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: p.convertMessages(req),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("deepseek API error: %w", err)
	}

	var content string
	var finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return llm.GenerateResponse{
		Content:      content,
		TokensUsed:   int(resp.Usage.TotalTokens),
		FinishReason: finishReason,
	}, nil
}

// Name はプロバイダー名を返す
func (p *DeepSeekProvider) Name() string {
	return fmt.Sprintf("deepseek-%s", p.model)
}

// convertMessages はドメインメッセージをChat Completionsフォーマットに変換
func (p *DeepSeekProvider) convertMessages(req llm.GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)

	// システムプロンプトを最初に追加
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	return messages
}
