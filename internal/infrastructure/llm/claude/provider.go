package claude

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Nyukimin/personaclaw/internal/domain/llm"
)

const defaultMaxTokens = 1024

// ClaudeProvider はAnthropic Messages APIプロバイダーの実装
type ClaudeProvider struct {
	client anthropic.Client
	model  string
}

// NewClaudeProvider は新しいClaudeProviderを作成
// optsにはSDKの追加オプションを渡せる（テスト時のWithBaseURL等）
func NewClaudeProvider(apiKey, model string, opts ...option.RequestOption) *ClaudeProvider {
	options := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeProvider{
		client: anthropic.NewClient(options...),
		model:  model,
	}
}

// Generate はLLM生成を実行
func (p *ClaudeProvider) Generate(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	// max_tokensは必須パラメータ
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  p.convertMessages(req.Messages),
	}

	// システムプロンプトはトップレベルで渡す
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	// Temperature（0.0-1.0の範囲）
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("claude API error: %w", err)
	}

	// テキストブロックを連結
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}

	return llm.GenerateResponse{
		Content:      b.String(),
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}, nil
}

// Name はプロバイダー名を返す
func (p *ClaudeProvider) Name() string {
	return fmt.Sprintf("claude-%s", p.model)
}

// convertMessages はドメインメッセージをMessages APIフォーマットに変換
func (p *ClaudeProvider) convertMessages(messages []llm.Message) []anthropic.MessageParam {
	converted := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		// systemロールはトップレベルのsystemで渡すためスキップ
		switch msg.Role {
		case llm.RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case llm.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return converted
}
