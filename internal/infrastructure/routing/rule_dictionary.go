package routing

import (
	"strings"

	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// ルールマッチ時の信頼度
const ruleConfidence = 0.85

// personaRules は照合順のキーワード表。複数のルールにまたがる
// メッセージでは先に並ぶルールが勝つ
var personaRules = []struct {
	route    routing.Route
	keywords []string
}{
	{routing.RouteCoder, []string{
		"refactor", "debug", "stack trace", "compile error",
		"unit test", "write a function", "fix this code", "code review",
	}},
	{routing.RouteTherapist, []string{
		"i feel", "feeling", "stressed", "anxious",
		"overwhelmed", "lonely", "burned out",
	}},
	{routing.RoutePlanner, []string{
		"make a plan", "step-by-step plan", "roadmap",
		"action plan", "organize my", "schedule for",
	}},
	{routing.RouteBrainstormer, []string{
		"brainstorm", "give me ideas", "name for", "creative ideas", "come up with",
	}},
	{routing.RouteDebater, []string{
		"pros and cons", "for and against", "devil's advocate", "argue", "debate",
	}},
	{routing.RouteTeacher, []string{
		"explain like", "in simple terms", "eli5", "teach me", "break it down for me",
	}},
}

// RuleDictionary はキーワードベースのルール辞書実装。
// キーワードは小文字で保持し、メッセージ側を小文字化して照合する
type RuleDictionary struct{}

// NewRuleDictionary は新しいRuleDictionaryを作成
func NewRuleDictionary() *RuleDictionary {
	return &RuleDictionary{}
}

// Match はタスクメッセージをルールと照合する。
// 最初にキーワードがヒットしたルールのルートを返す
func (d *RuleDictionary) Match(t task.Task) (routing.Route, float64, bool) {
	message := strings.ToLower(t.UserMessage())

	for _, r := range personaRules {
		for _, keyword := range r.keywords {
			if strings.Contains(message, keyword) {
				return r.route, ruleConfidence, true
			}
		}
	}

	return "", 0, false
}
