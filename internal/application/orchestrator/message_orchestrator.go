package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/agent"
	"github.com/Nyukimin/personaclaw/internal/domain/llm"
	"github.com/Nyukimin/personaclaw/internal/domain/patch"
	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/session"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

const (
	defaultHistoryWindow = 10   // 生成プロンプトに含める直近タスク数
	generateMaxTokens    = 2048 // 応答生成の最大トークン数
	generateTemperature  = 0.7
	toolOutputLimit      = 1000 // プロンプトに注入するツール結果の上限文字数
)

// ProcessMessageRequest はメッセージ処理リクエスト
type ProcessMessageRequest struct {
	SessionID   string
	Channel     string
	ChatID      string
	UserMessage string
	ForcedRoute routing.Route // /コマンドによるペルソナ指定（オプション）
}

// ProcessMessageResponse はメッセージ処理レスポンス
type ProcessMessageResponse struct {
	Response   string
	Route      routing.Route
	Confidence float64
	JobID      string
	ToolsUsed  []string
}

// SessionRepository はセッション永続化のインターフェース
type SessionRepository interface {
	Save(ctx context.Context, sess *session.Session) error
	Load(ctx context.Context, id string) (*session.Session, error)
}

// Router はペルソナへのルーティング決定を担当
type Router interface {
	DecideRoute(ctx context.Context, t task.Task) (routing.Decision, error)
}

// ToolDispatcher はペルソナに許可されたツールの実行を担当
type ToolDispatcher interface {
	Execute(ctx context.Context, personaName, message string) []task.ToolResult
	WriteFile(ctx context.Context, path, content string) string
}

// MessageOrchestrator はメッセージ処理を統括
type MessageOrchestrator struct {
	sessionRepo   SessionRepository
	router        Router
	dispatcher    ToolDispatcher
	provider      llm.LLMProvider
	historyWindow int
}

// NewMessageOrchestrator は新しいMessageOrchestratorを作成。
// historyWindowが0以下のときは既定値を使う
func NewMessageOrchestrator(
	sessionRepo SessionRepository,
	router Router,
	dispatcher ToolDispatcher,
	provider llm.LLMProvider,
	historyWindow int,
) *MessageOrchestrator {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &MessageOrchestrator{
		sessionRepo:   sessionRepo,
		router:        router,
		dispatcher:    dispatcher,
		provider:      provider,
		historyWindow: historyWindow,
	}
}

// ProcessMessage はメッセージを処理
func (o *MessageOrchestrator) ProcessMessage(ctx context.Context, req ProcessMessageRequest) (ProcessMessageResponse, error) {
	// 1. セッションをロードまたは作成
	sess, err := o.loadOrCreateSession(ctx, req.SessionID, req.Channel, req.ChatID)
	if err != nil {
		return ProcessMessageResponse{}, fmt.Errorf("failed to load or create session: %w", err)
	}

	// 2. 保留中のファイル変更提案への返答を先に処理
	if sess.HasPendingProposal() {
		resp, handled, err := o.handleProposalReply(ctx, sess, req)
		if handled || err != nil {
			return resp, err
		}
	}

	// 3. タスクを作成
	jobID := task.NewJobID()
	t := task.NewTask(jobID, req.UserMessage, req.Channel, req.ChatID)
	if req.ForcedRoute != "" {
		t = t.WithForcedRoute(req.ForcedRoute)
	}

	// 4. ルーティング決定
	decision, err := o.router.DecideRoute(ctx, t)
	if err != nil {
		return ProcessMessageResponse{}, fmt.Errorf("routing decision failed: %w", err)
	}
	t = t.WithRoute(decision.Route)

	logger.InfoCF("orchestrator", "route decided", map[string]interface{}{
		"job_id":     jobID.String(),
		"route":      decision.Route.String(),
		"confidence": decision.Confidence,
		"reason":     decision.Reason,
	})

	// 5. ツール実行
	toolResults := o.dispatcher.Execute(ctx, decision.Route.String(), req.UserMessage)
	if len(toolResults) > 0 {
		t = t.WithToolResults(toolResults)
	}

	// 6. 応答生成
	response, err := o.generate(ctx, sess, t, decision.Route)
	if err != nil {
		t = t.WithFailure(fmt.Sprintf("generation failed: %v", err), time.Now())
		sess.AddTask(t)
		if saveErr := o.sessionRepo.Save(ctx, sess); saveErr != nil {
			logger.ErrorCF("orchestrator", "failed to save session after generation error", map[string]interface{}{
				"session_id": sess.ID(),
				"error":      saveErr.Error(),
			})
		}
		return ProcessMessageResponse{}, fmt.Errorf("generation failed: %w", err)
	}

	// 7. coderの応答からファイル変更提案を抽出
	if decision.Route.IsCoderRoute() && patch.HasPatch(response) {
		commands := patch.ParsePatch(response)
		if len(commands) > 0 {
			sess.SetPendingProposal(session.NewPendingProposal(commands))
			response += fmt.Sprintf("\n\n💾 This response proposes %d file change(s). Reply 'y' to apply or 'n' to discard.", len(commands))
		}
	}

	t = t.WithCompletion(response, time.Now())

	// 8. タスクを履歴に追加して保存
	sess.AddTask(t)
	if err := o.sessionRepo.Save(ctx, sess); err != nil {
		return ProcessMessageResponse{}, fmt.Errorf("failed to save session: %w", err)
	}

	toolsUsed := make([]string, 0, len(toolResults))
	for _, result := range toolResults {
		toolsUsed = append(toolsUsed, result.Name)
	}

	return ProcessMessageResponse{
		Response:   response,
		Route:      decision.Route,
		Confidence: decision.Confidence,
		JobID:      jobID.String(),
		ToolsUsed:  toolsUsed,
	}, nil
}

// loadOrCreateSession はセッションをロードまたは作成
func (o *MessageOrchestrator) loadOrCreateSession(ctx context.Context, id, channel, chatID string) (*session.Session, error) {
	sess, err := o.sessionRepo.Load(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// 新規セッション作成
			return session.NewSession(id, channel, chatID), nil
		}
		return nil, err
	}
	return sess, nil
}

// handleProposalReply は保留中の提案への返答を処理する。
// y/yes/applyで適用、n/noで破棄。それ以外は提案を静かに破棄して通常処理を続ける
func (o *MessageOrchestrator) handleProposalReply(ctx context.Context, sess *session.Session, req ProcessMessageRequest) (ProcessMessageResponse, bool, error) {
	switch strings.ToLower(strings.TrimSpace(req.UserMessage)) {
	case "y", "yes", "apply":
		return o.applyProposal(ctx, sess, req)

	case "n", "no":
		sess.ClearPendingProposal()
		if err := o.sessionRepo.Save(ctx, sess); err != nil {
			return ProcessMessageResponse{}, true, fmt.Errorf("failed to save session: %w", err)
		}
		return ProcessMessageResponse{
			Response: "Proposal discarded.",
			Route:    routing.RouteCoder,
		}, true, nil

	default:
		// 別の話題に移ったとみなす
		sess.ClearPendingProposal()
		return ProcessMessageResponse{}, false, nil
	}
}

// applyProposal は保留中の提案をファイルシステムツール経由で適用する
func (o *MessageOrchestrator) applyProposal(ctx context.Context, sess *session.Session, req ProcessMessageRequest) (ProcessMessageResponse, bool, error) {
	result := patch.NewPatchExecutionResult()

	for _, cmd := range sess.PendingProposal().Commands() {
		output := o.dispatcher.WriteFile(ctx, cmd.Target(), cmd.Content())
		success := strings.HasPrefix(output, "Successfully")
		result.AddResult(patch.CommandResult{Command: cmd, Success: success, Output: output})

		logger.InfoCF("orchestrator", "patch command applied", map[string]interface{}{
			"target":  cmd.Target(),
			"success": success,
		})
	}

	result.WithSummary(fmt.Sprintf("Applied %d of %d file change(s).", result.Applied(), result.ExecutedCmds))

	var b strings.Builder
	b.WriteString(result.Summary)
	for _, res := range result.Results {
		mark := "✅"
		if !res.Success {
			mark = "❌"
		}
		fmt.Fprintf(&b, "\n%s %s: %s", mark, res.Command.Target(), res.Output)
	}
	response := b.String()

	// 適用結果を1ターンとして履歴に残す
	jobID := task.NewJobID()
	t := task.NewTask(jobID, req.UserMessage, req.Channel, req.ChatID).
		WithRoute(routing.RouteCoder).
		WithCompletion(response, time.Now())

	sess.ClearPendingProposal()
	sess.AddTask(t)
	if err := o.sessionRepo.Save(ctx, sess); err != nil {
		return ProcessMessageResponse{}, true, fmt.Errorf("failed to save session: %w", err)
	}

	return ProcessMessageResponse{
		Response:   response,
		Route:      routing.RouteCoder,
		Confidence: 1.0,
		JobID:      jobID.String(),
	}, true, nil
}

// generate はペルソナのシステムプロンプトと直近履歴で応答を生成する
func (o *MessageOrchestrator) generate(ctx context.Context, sess *session.Session, t task.Task, route routing.Route) (string, error) {
	persona, ok := agent.LookupPersona(route.String())
	if !ok {
		return "", fmt.Errorf("unknown persona: %s", route)
	}

	systemPrompt := persona.SystemPrompt
	if results := t.ToolResults(); len(results) > 0 {
		var b strings.Builder
		b.WriteString("\n\nTool Results:\n")
		for _, result := range results {
			fmt.Fprintf(&b, "- %s: %s\n", result.Name, truncate(result.Output, toolOutputLimit))
		}
		systemPrompt += b.String()
	}

	resp, err := o.provider.Generate(ctx, llm.GenerateRequest{
		Messages:     o.buildMessages(sess, t),
		SystemPrompt: systemPrompt,
		MaxTokens:    generateMaxTokens,
		Temperature:  generateTemperature,
	})
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}

// buildMessages は直近の完了済みタスクと今回のメッセージから会話履歴を組み立てる
func (o *MessageOrchestrator) buildMessages(sess *session.Session, t task.Task) []llm.Message {
	recent := sess.GetRecentHistory(o.historyWindow)
	messages := make([]llm.Message, 0, len(recent)*2+1)

	for _, prev := range recent {
		if !prev.IsCompleted() {
			continue
		}
		messages = append(messages, llm.NewUserMessage(prev.UserMessage()))
		messages = append(messages, llm.NewAssistantMessage(prev.Response()))
	}

	return append(messages, llm.NewUserMessage(t.UserMessage()))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
