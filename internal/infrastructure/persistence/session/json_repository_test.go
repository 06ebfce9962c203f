package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Nyukimin/personaclaw/internal/domain/patch"
	"github.com/Nyukimin/personaclaw/internal/domain/routing"
	"github.com/Nyukimin/personaclaw/internal/domain/session"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
)

func newTestRepo(t *testing.T) (*JSONSessionRepository, string) {
	t.Helper()
	dir := t.TempDir()
	return NewJSONSessionRepository(dir), dir
}

// saveAndReload persists the session and loads it back, failing the test on either error.
func saveAndReload(t *testing.T, repo *JSONSessionRepository, sess *session.Session) *session.Session {
	t.Helper()
	if err := repo.Save(context.Background(), sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := repo.Load(context.Background(), sess.ID())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return loaded
}

func TestNewJSONSessionRepository(t *testing.T) {
	repo, _ := newTestRepo(t)
	if repo == nil {
		t.Fatal("NewJSONSessionRepository should not return nil")
	}
}

func TestJSONSessionRepository_SaveAndLoad(t *testing.T) {
	repo, _ := newTestRepo(t)

	sess := session.NewSession("20260301-console-local", "console", "local")
	sess.AddTask(task.NewTask(task.NewJobID(), "テストメッセージ", "console", "local"))

	loaded := saveAndReload(t, repo, sess)

	if loaded.ID() != sess.ID() {
		t.Errorf("ID = %q, want %q", loaded.ID(), sess.ID())
	}
	if loaded.Channel() != sess.Channel() {
		t.Errorf("Channel = %q, want %q", loaded.Channel(), sess.Channel())
	}
	if loaded.ChatID() != sess.ChatID() {
		t.Errorf("ChatID = %q, want %q", loaded.ChatID(), sess.ChatID())
	}
	if loaded.HistoryCount() != 1 {
		t.Errorf("HistoryCount = %d, want 1", loaded.HistoryCount())
	}
	if !loaded.UpdatedAt().Equal(sess.UpdatedAt()) {
		t.Errorf("UpdatedAt = %v, want %v to survive reload", loaded.UpdatedAt(), sess.UpdatedAt())
	}
}

func TestJSONSessionRepository_CompletedTaskRoundtrip(t *testing.T) {
	repo, _ := newTestRepo(t)

	completedAt := time.Now().Add(2 * time.Second)
	sess := session.NewSession("test-session", "console", "local")
	sess.AddTask(task.NewTask(task.NewJobID(), "fix main.go", "console", "local").
		WithRoute(routing.RouteCoder).
		WithToolResults([]task.ToolResult{
			{Name: "file_system", Output: "File: main.go\nSize: 42 characters"},
		}).
		WithCompletion("Here is the fix.", completedAt))

	got := saveAndReload(t, repo, sess).GetHistory()[0]

	if got.Route() != routing.RouteCoder {
		t.Errorf("Route = %q, want coder", got.Route())
	}
	if got.Status() != task.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status())
	}
	if got.Response() != "Here is the fix." {
		t.Errorf("Response = %q, want it to survive reload", got.Response())
	}
	if got.CompletedAt() == nil || !got.CompletedAt().Equal(completedAt) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt(), completedAt)
	}

	results := got.ToolResults()
	if len(results) != 1 {
		t.Fatalf("len(ToolResults) = %d, want 1", len(results))
	}
	if results[0].Name != "file_system" {
		t.Errorf("tool result name = %q, want 'file_system'", results[0].Name)
	}
}

func TestJSONSessionRepository_FailedTaskRoundtrip(t *testing.T) {
	repo, _ := newTestRepo(t)

	sess := session.NewSession("test-session", "console", "local")
	sess.AddTask(task.NewTask(task.NewJobID(), "hello", "console", "local").
		WithRoute(routing.RouteLogical).
		WithFailure("generation failed: provider unreachable", time.Now()))

	got := saveAndReload(t, repo, sess).GetHistory()[0]

	if got.Status() != task.StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status())
	}
	if got.Response() != "generation failed: provider unreachable" {
		t.Errorf("Response = %q, want the failure reason to survive reload", got.Response())
	}
}

func TestJSONSessionRepository_PendingProposalRoundtrip(t *testing.T) {
	repo, _ := newTestRepo(t)

	sess := session.NewSession("test-session", "console", "local")
	sess.SetPendingProposal(session.NewPendingProposal([]patch.PatchCommand{
		patch.NewPatchCommand("hello.py", "print('hello')\n", "python"),
		patch.NewPatchCommand("README.md", "# Hello\n", "markdown"),
	}))

	loaded := saveAndReload(t, repo, sess)

	if !loaded.HasPendingProposal() {
		t.Fatal("pending proposal should survive reload")
	}

	commands := loaded.PendingProposal().Commands()
	if len(commands) != 2 {
		t.Fatalf("len(Commands) = %d, want 2", len(commands))
	}
	if commands[0].Target() != "hello.py" {
		t.Errorf("Target = %q, want 'hello.py'", commands[0].Target())
	}
	if commands[0].Content() != "print('hello')\n" {
		t.Errorf("Content = %q, want it to survive reload", commands[0].Content())
	}
	if commands[1].Language() != "markdown" {
		t.Errorf("Language = %q, want 'markdown'", commands[1].Language())
	}
}

func TestJSONSessionRepository_NoPendingProposalOmitted(t *testing.T) {
	repo, dir := newTestRepo(t)

	sess := session.NewSession("test-session", "console", "local")
	loaded := saveAndReload(t, repo, sess)

	data, err := os.ReadFile(filepath.Join(dir, "test-session.json"))
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	// 提案がないセッションではpending_proposalキー自体を省略する
	if strings.Contains(string(data), "\"pending_proposal\"") {
		t.Error("pending_proposal should be omitted when no proposal is pending")
	}
	if loaded.HasPendingProposal() {
		t.Error("loaded session should not have a pending proposal")
	}
}

func TestJSONSessionRepository_LoadNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.Load(context.Background(), "nonexistent")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Load error = %v, want ErrSessionNotFound", err)
	}
}

func TestJSONSessionRepository_Exists(t *testing.T) {
	repo, _ := newTestRepo(t)
	saveAndReload(t, repo, session.NewSession("test-session", "console", "local"))

	tests := []struct {
		sessionID string
		want      bool
	}{
		{"test-session", true},
		{"nonexistent", false},
	}
	for _, tt := range tests {
		exists, err := repo.Exists(context.Background(), tt.sessionID)
		if err != nil {
			t.Fatalf("Exists(%q) failed: %v", tt.sessionID, err)
		}
		if exists != tt.want {
			t.Errorf("Exists(%q) = %v, want %v", tt.sessionID, exists, tt.want)
		}
	}
}

func TestJSONSessionRepository_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	saveAndReload(t, repo, session.NewSession("test-session", "console", "local"))

	if err := repo.Delete(context.Background(), "test-session"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if exists, _ := repo.Exists(context.Background(), "test-session"); exists {
		t.Error("session should not exist after deletion")
	}

	// 無いセッションの削除はエラーにしない
	if err := repo.Delete(context.Background(), "test-session"); err != nil {
		t.Errorf("Delete of missing session should be a no-op, got: %v", err)
	}
}

func TestJSONSessionRepository_FileStructure(t *testing.T) {
	repo, dir := newTestRepo(t)
	saveAndReload(t, repo, session.NewSession("20260301-console-local", "console", "local"))

	// セッションIDがそのままファイル名になる
	data, err := os.ReadFile(filepath.Join(dir, "20260301-console-local.json"))
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	if len(data) == 0 {
		t.Error("session file should not be empty")
	}
}

func TestJSONSessionRepository_MultipleHistoryItems(t *testing.T) {
	repo, _ := newTestRepo(t)

	sess := session.NewSession("test-session", "console", "local")
	for i := 0; i < 5; i++ {
		sess.AddTask(task.NewTask(task.NewJobID(), fmt.Sprintf("Message %d", i), "console", "local"))
	}

	loaded := saveAndReload(t, repo, sess)

	if loaded.HistoryCount() != 5 {
		t.Errorf("HistoryCount = %d, want 5", loaded.HistoryCount())
	}
	if got := loaded.GetHistory()[0].UserMessage(); got != "Message 0" {
		t.Errorf("first message = %q, want 'Message 0'", got)
	}
}
