package agent

import (
	"context"

	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// Classifier はLLMによるタスク分類のインターフェース。
// ルール辞書でルートが決まらなかったタスクだけが渡される
type Classifier interface {
	Classify(ctx context.Context, t task.Task) (routing.Decision, error)
}

// RuleDictionary はキーワードルールによる高速分類のインターフェース
type RuleDictionary interface {
	// Match はルートと確信度を返す。どのルールにも当たらなければ ok が偽
	Match(t task.Task) (route routing.Route, confidence float64, ok bool)
}
