package task

import (
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/routing"
)

// Status はタスクの処理状態を表す
type Status string

const (
	StatusPending   Status = "pending"   // 応答生成前
	StatusCompleted Status = "completed" // 応答生成済み
	StatusFailed    Status = "failed"    // 応答生成に失敗
)

// ToolResult は1ツールカテゴリの実行結果
type ToolResult struct {
	Name   string // ツールカテゴリ名（web_search / file_system）
	Output string // サーバーが返したテキスト
}

// Task はユーザーからの1ターンを表す値オブジェクト
type Task struct {
	jobID       JobID
	userMessage string
	channel     string
	chatID      string
	forcedRoute routing.Route // 明示的なルート指定（オプション）
	route       routing.Route // 決定されたルート
	toolResults []ToolResult  // プロンプトに注入するツール結果（実行順）
	response    string        // ペルソナの応答
	status      Status
	createdAt   time.Time
	completedAt *time.Time
}

// NewTask は新しいTaskを作成
func NewTask(jobID JobID, userMessage, channel, chatID string) Task {
	return Task{
		jobID:       jobID,
		userMessage: userMessage,
		channel:     channel,
		chatID:      chatID,
		status:      StatusPending,
		createdAt:   time.Now(),
	}
}

// ReconstructTask は永続化データからTaskを復元
func ReconstructTask(jobID JobID, userMessage, channel, chatID string, createdAt time.Time) Task {
	return Task{
		jobID:       jobID,
		userMessage: userMessage,
		channel:     channel,
		chatID:      chatID,
		status:      StatusPending,
		createdAt:   createdAt,
	}
}

// JobID はジョブIDを返す
func (t Task) JobID() JobID {
	return t.jobID
}

// UserMessage はユーザーメッセージを返す
func (t Task) UserMessage() string {
	return t.userMessage
}

// Channel はチャネルを返す
func (t Task) Channel() string {
	return t.channel
}

// ChatID はチャットIDを返す
func (t Task) ChatID() string {
	return t.chatID
}

// ForcedRoute は強制ルートを返す
func (t Task) ForcedRoute() routing.Route {
	return t.forcedRoute
}

// Route は決定されたルートを返す
func (t Task) Route() routing.Route {
	return t.route
}

// ToolResults はツール実行結果を実行順で返す
func (t Task) ToolResults() []ToolResult {
	results := make([]ToolResult, len(t.toolResults))
	copy(results, t.toolResults)
	return results
}

// Response はペルソナの応答を返す
func (t Task) Response() string {
	return t.response
}

// Status は処理状態を返す
func (t Task) Status() Status {
	return t.status
}

// CreatedAt は作成時刻を返す
func (t Task) CreatedAt() time.Time {
	return t.createdAt
}

// CompletedAt は完了時刻を返す（未完了ならnil）
func (t Task) CompletedAt() *time.Time {
	return t.completedAt
}

// WithForcedRoute は強制ルートを設定した新しいTaskを返す
func (t Task) WithForcedRoute(route routing.Route) Task {
	t.forcedRoute = route
	return t
}

// WithRoute はルートを設定した新しいTaskを返す
func (t Task) WithRoute(route routing.Route) Task {
	t.route = route
	return t
}

// WithToolResults はツール実行結果を設定した新しいTaskを返す
func (t Task) WithToolResults(results []ToolResult) Task {
	t.toolResults = make([]ToolResult, len(results))
	copy(t.toolResults, results)
	return t
}

// WithCompletion は応答を記録し完了状態にした新しいTaskを返す
func (t Task) WithCompletion(response string, at time.Time) Task {
	t.response = response
	t.status = StatusCompleted
	t.completedAt = &at
	return t
}

// WithFailure は失敗理由を記録し失敗状態にした新しいTaskを返す
func (t Task) WithFailure(reason string, at time.Time) Task {
	t.response = reason
	t.status = StatusFailed
	t.completedAt = &at
	return t
}

// HasForcedRoute は強制ルートが設定されているかを判定
func (t Task) HasForcedRoute() bool {
	return t.forcedRoute != ""
}

// IsCompleted は完了済みかを判定
func (t Task) IsCompleted() bool {
	return t.status == StatusCompleted
}
