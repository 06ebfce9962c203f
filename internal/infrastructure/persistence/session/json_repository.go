package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/patch"
	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/session"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

// JSONSessionRepository はJSONファイルベースのSessionRepository実装
type JSONSessionRepository struct {
	baseDir string
}

var _ session.SessionRepository = (*JSONSessionRepository)(nil)

// NewJSONSessionRepository は新しいJSONSessionRepositoryを作成
func NewJSONSessionRepository(baseDir string) *JSONSessionRepository {
	return &JSONSessionRepository{
		baseDir: baseDir,
	}
}

// sessionDTO はJSONシリアライズ用のDTO
type sessionDTO struct {
	ID        string       `json:"id"`
	Channel   string       `json:"channel"`
	ChatID    string       `json:"chat_id"`
	History   []taskDTO    `json:"history"`
	Pending   *proposalDTO `json:"pending_proposal,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// taskDTO はJSONシリアライズ用のDTO
type taskDTO struct {
	JobID       string          `json:"job_id"`
	UserMessage string          `json:"user_message"`
	Channel     string          `json:"channel"`
	ChatID      string          `json:"chat_id"`
	ForcedRoute string          `json:"forced_route,omitempty"`
	Route       string          `json:"route,omitempty"`
	ToolResults []toolResultDTO `json:"tool_results,omitempty"`
	Response    string          `json:"response,omitempty"`
	Status      string          `json:"status,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// toolResultDTO はツール実行結果のシリアライズ用DTO
type toolResultDTO struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// proposalDTO は保留中のファイル変更提案のシリアライズ用DTO
type proposalDTO struct {
	Commands  []commandDTO `json:"commands"`
	CreatedAt time.Time    `json:"created_at"`
}

// commandDTO はパッチコマンドのシリアライズ用DTO
type commandDTO struct {
	Target   string `json:"target"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Save はセッションを保存
func (r *JSONSessionRepository) Save(ctx context.Context, sess *session.Session) error {
	dto := r.toDTO(sess)

	data, err := json.MarshalIndent(dto, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	filePath := r.getFilePath(sess.ID())
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load はセッションをロード
func (r *JSONSessionRepository) Load(ctx context.Context, id string) (*session.Session, error) {
	filePath := r.getFilePath(id)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session not found: %s: %w", id, session.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var dto sessionDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return r.fromDTO(&dto), nil
}

// Exists はセッションが存在するか確認
func (r *JSONSessionRepository) Exists(ctx context.Context, id string) (bool, error) {
	filePath := r.getFilePath(id)
	_, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete はセッションを削除
func (r *JSONSessionRepository) Delete(ctx context.Context, id string) error {
	filePath := r.getFilePath(id)
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil // 既に存在しない場合はエラーとしない
		}
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// getFilePath はセッションIDからファイルパスを生成
func (r *JSONSessionRepository) getFilePath(id string) string {
	return filepath.Join(r.baseDir, id+".json")
}

// toDTO はSessionをDTOに変換
func (r *JSONSessionRepository) toDTO(sess *session.Session) *sessionDTO {
	history := make([]taskDTO, 0, sess.HistoryCount())
	for _, t := range sess.GetHistory() {
		history = append(history, r.taskToDTO(t))
	}

	dto := &sessionDTO{
		ID:        sess.ID(),
		Channel:   sess.Channel(),
		ChatID:    sess.ChatID(),
		History:   history,
		CreatedAt: sess.CreatedAt(),
		UpdatedAt: sess.UpdatedAt(),
	}

	if pending := sess.PendingProposal(); pending != nil {
		commands := make([]commandDTO, 0, pending.Count())
		for _, cmd := range pending.Commands() {
			commands = append(commands, commandDTO{
				Target:   cmd.Target(),
				Content:  cmd.Content(),
				Language: cmd.Language(),
			})
		}
		dto.Pending = &proposalDTO{
			Commands:  commands,
			CreatedAt: pending.CreatedAt(),
		}
	}

	return dto
}

// taskToDTO はTaskをDTOに変換
func (r *JSONSessionRepository) taskToDTO(t task.Task) taskDTO {
	dto := taskDTO{
		JobID:       t.JobID().String(),
		UserMessage: t.UserMessage(),
		Channel:     t.Channel(),
		ChatID:      t.ChatID(),
		ForcedRoute: string(t.ForcedRoute()),
		Route:       string(t.Route()),
		Response:    t.Response(),
		Status:      string(t.Status()),
		CreatedAt:   t.CreatedAt(),
		CompletedAt: t.CompletedAt(),
	}

	for _, result := range t.ToolResults() {
		dto.ToolResults = append(dto.ToolResults, toolResultDTO{
			Name:   result.Name,
			Output: result.Output,
		})
	}

	return dto
}

// fromDTO はDTOからSessionを生成
func (r *JSONSessionRepository) fromDTO(dto *sessionDTO) *session.Session {
	history := make([]task.Task, 0, len(dto.History))
	for _, td := range dto.History {
		history = append(history, r.taskFromDTO(td))
	}

	var pending *session.PendingProposal
	if dto.Pending != nil {
		commands := make([]patch.PatchCommand, 0, len(dto.Pending.Commands))
		for _, cd := range dto.Pending.Commands {
			commands = append(commands, patch.NewPatchCommand(cd.Target, cd.Content, cd.Language))
		}
		pending = session.ReconstructPendingProposal(commands, dto.Pending.CreatedAt)
	}

	return session.ReconstructSession(dto.ID, dto.Channel, dto.ChatID, history, pending, dto.CreatedAt, dto.UpdatedAt)
}

// taskFromDTO はDTOからTaskを復元
func (r *JSONSessionRepository) taskFromDTO(dto taskDTO) task.Task {
	jobID := task.JobIDFromString(dto.JobID)
	t := task.ReconstructTask(jobID, dto.UserMessage, dto.Channel, dto.ChatID, dto.CreatedAt)

	if dto.ForcedRoute != "" {
		t = t.WithForcedRoute(routing.Route(dto.ForcedRoute))
	}
	if dto.Route != "" {
		t = t.WithRoute(routing.Route(dto.Route))
	}

	if len(dto.ToolResults) > 0 {
		results := make([]task.ToolResult, 0, len(dto.ToolResults))
		for _, rd := range dto.ToolResults {
			results = append(results, task.ToolResult{Name: rd.Name, Output: rd.Output})
		}
		t = t.WithToolResults(results)
	}

	completedAt := dto.CreatedAt
	if dto.CompletedAt != nil {
		completedAt = *dto.CompletedAt
	}

	switch task.Status(dto.Status) {
	case task.StatusCompleted:
		t = t.WithCompletion(dto.Response, completedAt)
	case task.StatusFailed:
		t = t.WithFailure(dto.Response, completedAt)
	}

	return t
}
