package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nyukimin/personaclaw/internal/domain/llm"
	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// 分類プロンプト。ファイル操作への言及はcoderに寄せる
const classifierPrompt = `Based on the user's message, classify their intent into one of the following categories:
- 'therapist': For messages about feelings, emotions, or personal problems.
- 'logical': For messages asking for facts, information, or objective analysis.
- 'planner': For messages asking 'how to', for a plan, or for steps to achieve a goal.
- 'coder': For messages containing code, error messages, programming help, or file operations (read, write, show, display, open files).
- 'brainstormer': For messages asking for creative ideas, names, or brainstorming help.
- 'debater': For messages that ask for pros and cons, arguments, or explore a controversial topic.
- 'teacher': For messages asking for a simple explanation of a complex topic.

IMPORTANT: If the message mentions specific files (like .py, .md, .txt, .json files) or asks to read/write/show/display/open files, classify as 'coder'.

Respond with the category name only, on a single line.`

// classifierLabels は応答を走査する順。複数のペルソナ名が混在した
// 応答では先頭のものを採用する
var classifierLabels = []routing.Route{
	routing.RouteBrainstormer,
	routing.RouteTherapist,
	routing.RoutePlanner,
	routing.RouteDebater,
	routing.RouteTeacher,
	routing.RouteLogical,
	routing.RouteCoder,
}

// LLMClassifier はLLMにペルソナ分類を問い合わせる分類器。
// ルール辞書にマッチしないメッセージのフォールバックとして使う
type LLMClassifier struct {
	provider llm.LLMProvider
}

// NewLLMClassifier は新しいLLMClassifierを作成
func NewLLMClassifier(provider llm.LLMProvider) *LLMClassifier {
	return &LLMClassifier{provider: provider}
}

// Classify はメッセージをペルソナに分類する。
// 応答にペルソナ名が見つからない場合はlogicalに低信頼度でフォールバック
func (c *LLMClassifier) Classify(ctx context.Context, t task.Task) (routing.Decision, error) {
	req := llm.GenerateRequest{
		SystemPrompt: classifierPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("User message: \"%s\"", t.UserMessage())},
		},
		MaxTokens:   100,
		Temperature: 0.3, // 低温度で分類を安定させる
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return routing.Decision{}, fmt.Errorf("LLM classification failed: %w", err)
	}

	route, matched := parseLabel(resp.Content)
	confidence := 0.7
	if !matched {
		confidence = 0.4
	}
	reason := fmt.Sprintf("LLM classified as %s", route)

	return routing.NewDecision(route, confidence, reason), nil
}

// parseLabel は応答テキストからペルソナ名を探す。
// 見つからなければlogicalとmatched=falseを返す
func parseLabel(response string) (routing.Route, bool) {
	lower := strings.ToLower(strings.TrimSpace(response))
	for _, route := range classifierLabels {
		if strings.Contains(lower, route.String()) {
			return route, true
		}
	}
	return routing.RouteLogical, false
}
