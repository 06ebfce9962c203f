package patch

// CommandResult は単一コマンドの適用結果
type CommandResult struct {
	Command PatchCommand // 適用したコマンド
	Success bool
	Output  string // ファイルシステムツールが返したテキスト
}

// PatchExecutionResult はパッチ適用全体の結果を集計する値オブジェクト
type PatchExecutionResult struct {
	ExecutedCmds int
	FailedCmds   int
	Results      []CommandResult
	Summary      string
}

// NewPatchExecutionResult は空の適用結果を作成
func NewPatchExecutionResult() *PatchExecutionResult {
	return &PatchExecutionResult{Results: make([]CommandResult, 0)}
}

// AddResult はコマンド結果を追加して集計を更新する
func (r *PatchExecutionResult) AddResult(result CommandResult) {
	r.Results = append(r.Results, result)
	r.ExecutedCmds++
	if !result.Success {
		r.FailedCmds++
	}
}

// Applied は成功したコマンド数を返す
func (r *PatchExecutionResult) Applied() int {
	return r.ExecutedCmds - r.FailedCmds
}

// HasFailures は失敗したコマンドがあるかを返す
func (r *PatchExecutionResult) HasFailures() bool {
	return r.FailedCmds > 0
}

// WithSummary はサマリ文字列を設定する
func (r *PatchExecutionResult) WithSummary(summary string) *PatchExecutionResult {
	r.Summary = summary
	return r
}
