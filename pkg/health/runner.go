// Package health は起動時・定期実行のヘルスチェックを提供する
package health

import (
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

// CheckFunc は単一チェックの実行関数。成否と診断メッセージを返す
type CheckFunc func() (bool, string)

// Check は名前付きチェック
type Check struct {
	Name string
	Fn   CheckFunc
}

// Runner は登録順にチェックを実行し、結果をログに出す
type Runner struct {
	checks []Check
}

// NewRunner は空のRunnerを作成
func NewRunner() *Runner {
	return &Runner{}
}

// Register はチェックを追加する
func (r *Runner) Register(name string, fn CheckFunc) {
	r.checks = append(r.checks, Check{Name: name, Fn: fn})
}

// RunAll は全チェックを実行して結果を返す。
// 失敗しても後続のチェックは実行する
func (r *Runner) RunAll() bool {
	allOK := true
	for _, check := range r.checks {
		ok, msg := check.Fn()
		fields := map[string]interface{}{
			"check":   check.Name,
			"ok":      ok,
			"message": msg,
		}
		if ok {
			logger.InfoCF("health", "check passed", fields)
		} else {
			logger.WarnCF("health", "check failed", fields)
			allOK = false
		}
	}
	return allOK
}

// Count は登録済みチェック数を返す
func (r *Runner) Count() int {
	return len(r.checks)
}
