package session

import (
	"errors"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/patch"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// ErrSessionNotFound はセッションが見つからない場合のエラー
var ErrSessionNotFound = errors.New("session not found")

// PendingProposal はユーザー確認待ちのファイル変更提案
type PendingProposal struct {
	commands  []patch.PatchCommand
	createdAt time.Time
}

// NewPendingProposal は新しい提案を作成
func NewPendingProposal(commands []patch.PatchCommand) *PendingProposal {
	cp := make([]patch.PatchCommand, len(commands))
	copy(cp, commands)
	return &PendingProposal{
		commands:  cp,
		createdAt: time.Now(),
	}
}

// ReconstructPendingProposal は永続化層から復元する際に使用
func ReconstructPendingProposal(commands []patch.PatchCommand, createdAt time.Time) *PendingProposal {
	cp := make([]patch.PatchCommand, len(commands))
	copy(cp, commands)
	return &PendingProposal{
		commands:  cp,
		createdAt: createdAt,
	}
}

// Commands は提案に含まれるファイル変更を返す
func (p *PendingProposal) Commands() []patch.PatchCommand {
	cp := make([]patch.PatchCommand, len(p.commands))
	copy(cp, p.commands)
	return cp
}

// Count は提案に含まれるファイル変更の件数を返す
func (p *PendingProposal) Count() int {
	return len(p.commands)
}

// CreatedAt は提案の作成時刻を返す
func (p *PendingProposal) CreatedAt() time.Time {
	return p.createdAt
}

// Session はユーザーセッションを表すエンティティ
// 日次カットオーバーで切り替わり、会話履歴と確認待ち提案を保持
type Session struct {
	id        string           // セッションID（日付ベース: "20260301-console-local"）
	channel   string           // チャネル（console等）
	chatID    string           // チャットID（ユーザー識別子）
	history   []task.Task      // 会話履歴
	pending   *PendingProposal // 確認待ちのファイル変更提案
	createdAt time.Time        // セッション作成時刻
	updatedAt time.Time        // 最終更新時刻
}

// NewSession は新しいセッションを作成
func NewSession(id, channel, chatID string) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		channel:   channel,
		chatID:    chatID,
		history:   make([]task.Task, 0),
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructSession は永続化層から復元する際に使用（タイムスタンプを保持）
func ReconstructSession(id, channel, chatID string, history []task.Task, pending *PendingProposal, createdAt, updatedAt time.Time) *Session {
	if history == nil {
		history = make([]task.Task, 0)
	}
	return &Session{
		id:        id,
		channel:   channel,
		chatID:    chatID,
		history:   history,
		pending:   pending,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID はセッションIDを返す
func (s *Session) ID() string {
	return s.id
}

// Channel はチャネルを返す
func (s *Session) Channel() string {
	return s.channel
}

// ChatID はチャットIDを返す
func (s *Session) ChatID() string {
	return s.chatID
}

// CreatedAt は作成時刻を返す
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt は最終更新時刻を返す
func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}

// AddTask はタスクを履歴に追加
func (s *Session) AddTask(t task.Task) {
	s.history = append(s.history, t)
	s.updatedAt = time.Now()
}

// GetHistory は会話履歴を返す
func (s *Session) GetHistory() []task.Task {
	return s.history
}

// GetRecentHistory は最近N件の履歴を返す
func (s *Session) GetRecentHistory(n int) []task.Task {
	if len(s.history) <= n {
		return s.history
	}
	return s.history[len(s.history)-n:]
}

// SetPendingProposal は確認待ち提案を設定（既存の提案は置き換え）
func (s *Session) SetPendingProposal(p *PendingProposal) {
	s.pending = p
	s.updatedAt = time.Now()
}

// PendingProposal は確認待ちの提案を返す（なければnil）
func (s *Session) PendingProposal() *PendingProposal {
	return s.pending
}

// ClearPendingProposal は確認待ち提案を破棄
func (s *Session) ClearPendingProposal() {
	s.pending = nil
	s.updatedAt = time.Now()
}

// HasPendingProposal は確認待ち提案があるかを判定
func (s *Session) HasPendingProposal() bool {
	return s.pending != nil
}

// HistoryCount は履歴の件数を返す
func (s *Session) HistoryCount() int {
	return len(s.history)
}
