package session

import "context"

// SessionRepository はセッション永続化の抽象化。
// Load は存在しないIDに対して ErrSessionNotFound を返す
type SessionRepository interface {
	// Save はセッション全体（履歴・保留中の提案を含む）を保存する
	Save(ctx context.Context, session *Session) error

	// Load はIDでセッションを取得する
	Load(ctx context.Context, id string) (*Session, error)

	// Delete はセッションを削除する。存在しない場合もエラーにしない
	Delete(ctx context.Context, id string) error

	// Exists はセッションが保存済みかを返す
	Exists(ctx context.Context, id string) (bool, error)
}
