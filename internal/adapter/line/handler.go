// Package line はLINE Messaging APIのWebhookアダプターを提供する
package line

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nyukimin/personaclaw/internal/application/orchestrator"
	"github.com/Nyukimin/personaclaw/internal/domain/agent"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

// Orchestrator はメッセージ処理のインターフェース
type Orchestrator interface {
	ProcessMessage(ctx context.Context, req orchestrator.ProcessMessageRequest) (orchestrator.ProcessMessageResponse, error)
}

// ReplySender はLINEへの返信送信のインターフェース
type ReplySender interface {
	SendReplyMessage(ctx context.Context, replyToken, message string) error
	SendReplyMessageWithQuote(ctx context.Context, replyToken, message, quoteToken string) error
}

// Handler はLINE webhookハンドラー
type Handler struct {
	orchestrator  Orchestrator
	sender        ReplySender
	channelSecret string
	botUserID     string
}

// NewHandler は新しいHandlerを作成。
// channelSecretが空のときは署名検証をスキップする（テスト用）
func NewHandler(orch Orchestrator, sender ReplySender, channelSecret, botUserID string) *Handler {
	return &Handler{
		orchestrator:  orch,
		sender:        sender,
		channelSecret: channelSecret,
		botUserID:     botUserID,
	}
}

// ServeHTTP はHTTPリクエストを処理
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// ルーティング
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		h.handleHealth(w, r)
		return
	}

	if r.URL.Path == "/webhook" && r.Method == http.MethodPost {
		h.handleWebhook(w, r)
		return
	}

	http.NotFound(w, r)
}

// handleHealth はヘルスチェック
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// handleWebhook はLINE webhookを処理。
// イベント単位の失敗はログに残して次へ進み、応答は常に200を返す
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if h.channelSecret != "" {
		if !verifySignature(body, r.Header.Get("X-Line-Signature"), h.channelSecret) {
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		h.handleEvent(r.Context(), event)
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent は1イベントを処理する
func (h *Handler) handleEvent(ctx context.Context, event WebhookEvent) {
	// テキストメッセージのみ処理
	if event.Type != "message" || event.Message.Type != "text" {
		return
	}

	// グループ・ルームではボット宛のメンションのみ反応する
	if !isBotMention(event.Source.Type, event.Message.Mentionees(), h.botUserID) {
		return
	}

	req := orchestrator.ProcessMessageRequest{
		SessionID:   h.generateSessionID(event.Source.UserID),
		Channel:     "line",
		ChatID:      event.Source.UserID,
		UserMessage: event.Message.Text,
	}

	if route, rest, ok := agent.ParsePersonaCommand(event.Message.Text); ok {
		if rest == "" {
			h.reply(ctx, event, fmt.Sprintf("Usage: /%s <message>", route))
			return
		}
		req.ForcedRoute = route
		req.UserMessage = rest
	}

	resp, err := h.orchestrator.ProcessMessage(ctx, req)
	if err != nil {
		logger.ErrorCF("line", "message processing failed", map[string]interface{}{
			"user_id": event.Source.UserID,
			"error":   err.Error(),
		})
		return
	}

	logger.InfoCF("line", "message processed", map[string]interface{}{
		"user_id":    event.Source.UserID,
		"route":      string(resp.Route),
		"confidence": resp.Confidence,
	})

	h.reply(ctx, event, resp.Response)
}

// reply は返信を送る。送信失敗は記録するだけで呼び出し元には伝播しない
func (h *Handler) reply(ctx context.Context, event WebhookEvent, message string) {
	if h.sender == nil || event.ReplyToken == "" || message == "" {
		return
	}

	var err error
	if quoteToken := event.Message.QuoteToken; quoteToken != "" {
		err = h.sender.SendReplyMessageWithQuote(ctx, event.ReplyToken, message, quoteToken)
	} else {
		err = h.sender.SendReplyMessage(ctx, event.ReplyToken, message)
	}
	if err != nil {
		logger.WarnCF("line", "reply failed", map[string]interface{}{
			"user_id": event.Source.UserID,
			"error":   err.Error(),
		})
	}
}

// generateSessionID はセッションIDを生成
// フォーマット: YYYYMMDD-line-{userID}
func (h *Handler) generateSessionID(userID string) string {
	datePrefix := time.Now().Format("20060102")
	return fmt.Sprintf("%s-line-%s", datePrefix, userID)
}

// isBotMention checks if the bot should react to the event source.
// Direct user chats always pass; group/room chats require a bot mention.
func isBotMention(sourceType string, mentionees []Mentionee, botUserID string) bool {
	if sourceType == "user" {
		return true
	}

	for _, mention := range mentionees {
		if botUserID != "" && mention.UserID == botUserID {
			return true
		}
	}

	return false
}

// WebhookPayload はLINE webhookペイロード
type WebhookPayload struct {
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent はLINE webhookイベント
type WebhookEvent struct {
	Type       string       `json:"type"`
	Message    EventMessage `json:"message"`
	Source     EventSource  `json:"source"`
	ReplyToken string       `json:"replyToken"`
	Timestamp  int64        `json:"timestamp"`
}

// EventMessage はイベントメッセージ
type EventMessage struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	ID         string   `json:"id"`
	QuoteToken string   `json:"quoteToken"`
	Mention    *Mention `json:"mention"`
}

// Mentionees はメンション一覧を返す。メンションなしは空
func (m EventMessage) Mentionees() []Mentionee {
	if m.Mention == nil {
		return nil
	}
	return m.Mention.Mentionees
}

// Mention はメッセージ内のメンション情報
type Mention struct {
	Mentionees []Mentionee `json:"mentionees"`
}

// Mentionee はメンション対象
type Mentionee struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	UserID string `json:"userId"`
	Type   string `json:"type"`
}

// EventSource はイベントソース
type EventSource struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
	RoomID  string `json:"roomId"`
}
