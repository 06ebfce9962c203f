package llm

import "context"

// メッセージロール
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message は会話履歴の1発言
type Message struct {
	Role    string // Role*定数のいずれか
	Content string
}

// NewUserMessage はユーザーロールのメッセージを作成
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage はアシスタントロールのメッセージを作成
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// GenerateRequest はLLM生成リクエスト。
// SystemPromptはMessagesとは別に渡し、各プロバイダーが自分の流儀で組み込む
type GenerateRequest struct {
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// GenerateResponse はLLM生成レスポンス。
// TokensUsedはプロバイダーが使用量を報告する場合のみ設定される
type GenerateResponse struct {
	Content      string
	TokensUsed   int
	FinishReason string
}

// LLMProvider は各LLMバックエンドの抽象。
// Generateはブロッキング呼び出しで、ctxのキャンセル・タイムアウトに従う
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	Name() string
}
