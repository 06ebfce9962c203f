package mcp

import "fmt"

// ErrorKind はツール呼び出し失敗の分類
type ErrorKind string

const (
	// KindNone は成功
	KindNone ErrorKind = ""
	// KindNotInitialized はクライアント未初期化（サーバー未接続を含む）
	KindNotInitialized ErrorKind = "not_initialized"
	// KindSendFailed はリクエスト送信失敗（パイプ切断など）
	KindSendFailed ErrorKind = "send_failed"
	// KindNoResponse は応答なし（タイムアウト・EOF・不正なJSON行）
	KindNoResponse ErrorKind = "no_response"
	// KindToolError はサーバーが返した JSON-RPC エラー
	KindToolError ErrorKind = "tool_error"
	// KindUnexpected は解釈不能なレスポンス形式
	KindUnexpected ErrorKind = "unexpected"
	// KindTransport は再起動失敗などのトランスポート異常
	KindTransport ErrorKind = "transport"
)

// CallResult はツール呼び出しの結果を表す値オブジェクト。
// 成功テキストか、分類と表示文字列を持つ失敗のどちらか一方になる。
type CallResult struct {
	ok      bool
	text    string
	kind    ErrorKind
	display string
}

// Ok は成功結果を作成
func Ok(text string) CallResult {
	return CallResult{ok: true, text: text}
}

// Errorf は分類付きの失敗結果を作成。表示文字列はそのまま利用者に見せられる
func Errorf(kind ErrorKind, format string, args ...interface{}) CallResult {
	return CallResult{kind: kind, display: fmt.Sprintf(format, args...)}
}

// OK は成功かどうかを返す
func (r CallResult) OK() bool {
	return r.ok
}

// Text は成功時のテキストを返す（失敗時は空文字列）
func (r CallResult) Text() string {
	return r.text
}

// Kind は失敗分類を返す（成功時は KindNone）
func (r CallResult) Kind() ErrorKind {
	return r.kind
}

// Display は利用者に表示する文字列を返す。成功時はテキスト、失敗時は診断文字列
func (r CallResult) Display() string {
	if r.ok {
		return r.text
	}
	return r.display
}

// ChannelFault は通信経路の異常（再起動で回復しうる失敗）かどうかを返す。
// サーバーが応答したうえでのエラー（KindToolError など）は含まない
func (r CallResult) ChannelFault() bool {
	switch r.kind {
	case KindNotInitialized, KindSendFailed, KindNoResponse, KindTransport:
		return true
	}
	return false
}
