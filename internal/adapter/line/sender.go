package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	pushEndpoint  = "https://api.line.me/v2/bot/message/push"
	replyEndpoint = "https://api.line.me/v2/bot/message/reply"

	senderTimeout = 30 * time.Second
)

// textMessage はLINEのtextメッセージオブジェクト
type textMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	QuoteToken string `json:"quoteToken,omitempty"`
}

func newTextMessage(text, quoteToken string) textMessage {
	return textMessage{Type: "text", Text: text, QuoteToken: quoteToken}
}

// pushRequest はPush APIのリクエストボディ
type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// replyRequest はReply APIのリクエストボディ
type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// MessageSender はLINE Messaging APIの送信クライアント。
// プッシュ送信とリプライトークンによる返信を扱う
type MessageSender struct {
	accessToken string
	pushURL     string // テストで差し替える
	replyURL    string
	httpClient  *http.Client
}

// NewMessageSender は新しいMessageSenderを作成
func NewMessageSender(accessToken string) *MessageSender {
	return &MessageSender{
		accessToken: accessToken,
		pushURL:     pushEndpoint,
		replyURL:    replyEndpoint,
		httpClient:  &http.Client{Timeout: senderTimeout},
	}
}

// SendPushMessage はユーザーへメッセージをプッシュ送信する
func (s *MessageSender) SendPushMessage(ctx context.Context, userID, message string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}

	return s.post(ctx, s.pushURL, pushRequest{
		To:       userID,
		Messages: []textMessage{newTextMessage(message, "")},
	})
}

// SendReplyMessage はリプライトークンで返信する
func (s *MessageSender) SendReplyMessage(ctx context.Context, replyToken, message string) error {
	return s.reply(ctx, replyToken, message, "")
}

// SendReplyMessageWithQuote は元メッセージを引用して返信する
func (s *MessageSender) SendReplyMessageWithQuote(ctx context.Context, replyToken, message, quoteToken string) error {
	return s.reply(ctx, replyToken, message, quoteToken)
}

func (s *MessageSender) reply(ctx context.Context, replyToken, message, quoteToken string) error {
	if replyToken == "" {
		return fmt.Errorf("replyToken cannot be empty")
	}
	if message == "" {
		return fmt.Errorf("message cannot be empty")
	}

	return s.post(ctx, s.replyURL, replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{newTextMessage(message, quoteToken)},
	})
}

// post はLINE APIへ認証付きでJSONをPOSTする
func (s *MessageSender) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LINE API error (status %d): %s", resp.StatusCode, string(detail))
	}

	return nil
}
