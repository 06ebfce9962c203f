package agent

import (
	"context"
	"strings"

	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// Router はタスクを担当ペルソナへ振り分けるエンティティ
type Router struct {
	classifier      Classifier
	ruleDictionary  RuleDictionary
	extractFilename func(string) string // メッセージからファイル名を検出
}

// NewRouter は新しいRouterを作成
func NewRouter(
	classifier Classifier,
	ruleDictionary RuleDictionary,
	extractFilename func(string) string,
) *Router {
	return &Router{
		classifier:      classifier,
		ruleDictionary:  ruleDictionary,
		extractFilename: extractFilename,
	}
}

// DecideRoute はルーティング決定（4段階優先順位）
func (r *Router) DecideRoute(ctx context.Context, t task.Task) (routing.Decision, error) {
	// 優先度1: 明示的なペルソナ指定
	if t.HasForcedRoute() && t.ForcedRoute().IsValid() {
		return routing.NewDecision(t.ForcedRoute(), 1.0, "Explicit persona command"), nil
	}

	// 優先度2: ファイル名検出（ファイル操作はcoder固定）
	if r.extractFilename != nil {
		if filename := r.extractFilename(t.UserMessage()); filename != "" {
			return routing.NewDecision(routing.RouteCoder, 0.9, "Filename mention: "+filename), nil
		}
	}

	// 優先度3: ルール辞書
	if route, confidence, matched := r.ruleDictionary.Match(t); matched {
		return routing.NewDecision(route, confidence, "Rule dictionary match"), nil
	}

	// 優先度4: 分類器（LLM）
	decision, err := r.classifier.Classify(ctx, t)
	if err != nil {
		// 安全側フォールバック
		return routing.NewDecision(routing.RouteLogical, 0.4, "Classifier failed, fallback to logical"), nil
	}

	return decision, nil
}

// ParsePersonaCommand は "/ペルソナ名 本文" 形式の明示指定を解析
// 残りの本文と、解析に成功したかを返す
func ParsePersonaCommand(message string) (routing.Route, string, bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	route, ok := routing.ParseRoute(name)
	if !ok {
		return "", "", false
	}

	return route, strings.TrimSpace(rest), true
}
