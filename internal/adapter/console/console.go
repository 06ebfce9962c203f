// Package console は対話型コンソールアダプターを提供する。
// readline ベースの入力ループ、/ペルソナ指定、/cron コマンドを扱う
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/Nyukimin/personaclaw/internal/application/orchestrator"
	"github.com/Nyukimin/personaclaw/internal/domain/agent"
	"github.com/Nyukimin/personaclaw/pkg/cron"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

// Orchestrator はメッセージ処理のインターフェース
type Orchestrator interface {
	ProcessMessage(ctx context.Context, req orchestrator.ProcessMessageRequest) (orchestrator.ProcessMessageResponse, error)
}

// Scheduler は /cron コマンドが操作するジョブスケジューラ
type Scheduler interface {
	AddJob(name string, schedule cron.CronSchedule, message string, deliver bool, channel, kind string) (cron.CronJob, error)
	RemoveJob(id string) (bool, error)
	ListJobs() []cron.CronJob
}

const cronUsage = "Usage: /cron add <interval-ms|cron-expr> <message> | /cron list | /cron remove <id>"

// Console は対話型コンソールアダプター
type Console struct {
	orchestrator Orchestrator
	scheduler    Scheduler
	user         string
	out          io.Writer
	sessionID    string
}

// NewConsole は新しいConsoleを作成。user はセッションの識別子
func NewConsole(orch Orchestrator, scheduler Scheduler, user string) *Console {
	if user == "" {
		user = "local"
	}
	return &Console{
		orchestrator: orch,
		scheduler:    scheduler,
		user:         user,
		out:          os.Stdout,
		sessionID:    generateSessionID(user),
	}
}

// generateSessionID はセッションIDを生成
// フォーマット: YYYYMMDD-console-{user}
func generateSessionID(user string) string {
	datePrefix := time.Now().Format("20060102")
	return fmt.Sprintf("%s-console-%s", datePrefix, user)
}

// Run は標準入力からの対話ループを開始する。EOF か終了コマンドで戻る
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "You: ",
		HistoryFile:     filepath.Join(os.TempDir(), "personaclaw_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		output, quit := c.handleLine(ctx, line)
		if output != "" {
			fmt.Fprintln(c.out, output)
		}
		if quit {
			break
		}
	}

	return nil
}

// handleLine は1行の入力を処理して、表示する文字列と終了フラグを返す
func (c *Console) handleLine(ctx context.Context, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	if strings.ToLower(trimmed) == "q" {
		return "Assistant: Goodbye!", true
	}

	if strings.HasPrefix(trimmed, "/cron") {
		return c.handleCron(trimmed), false
	}

	req := orchestrator.ProcessMessageRequest{
		SessionID:   c.sessionID,
		Channel:     "console",
		ChatID:      c.user,
		UserMessage: trimmed,
	}

	if route, rest, ok := agent.ParsePersonaCommand(trimmed); ok {
		if rest == "" {
			return fmt.Sprintf("Usage: /%s <message>", route), false
		}
		req.ForcedRoute = route
		req.UserMessage = rest
	}

	resp, err := c.orchestrator.ProcessMessage(ctx, req)
	if err != nil {
		logger.ErrorCF("console", "message processing failed", map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Sprintf("Error: %v", err), false
	}

	return "\nAssistant: " + resp.Response + "\n", false
}

// handleCron は /cron サブコマンドを処理する
func (c *Console) handleCron(input string) string {
	if c.scheduler == nil {
		return "Cron scheduling is not available."
	}

	fields := strings.Fields(input)
	if len(fields) < 2 {
		return cronUsage
	}

	switch fields[1] {
	case "add":
		return c.cronAdd(fields[2:])
	case "list":
		return c.cronList()
	case "remove":
		if len(fields) != 3 {
			return "Usage: /cron remove <id>"
		}
		return c.cronRemove(fields[2])
	default:
		return cronUsage
	}
}

// cronAdd は間隔（ミリ秒）または5フィールドのcron式でジョブを登録する
func (c *Console) cronAdd(args []string) string {
	var schedule cron.CronSchedule
	var message string

	switch {
	case len(args) >= 2 && isInteger(args[0]):
		ms, _ := strconv.ParseInt(args[0], 10, 64)
		schedule = cron.CronSchedule{Kind: cron.ScheduleKindEvery, EveryMS: &ms}
		message = strings.Join(args[1:], " ")

	case len(args) >= 6:
		schedule = cron.CronSchedule{Kind: cron.ScheduleKindCron, Expr: strings.Join(args[:5], " ")}
		message = strings.Join(args[5:], " ")

	default:
		return "Usage: /cron add <interval-ms|cron-expr> <message>"
	}

	job, err := c.scheduler.AddJob("console", schedule, message, true, "console", "message")
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	next := "unknown"
	if job.NextRun != nil {
		next = job.NextRun.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprintf("Added cron job %s (next run: %s)", job.ID, next)
}

func (c *Console) cronList() string {
	jobs := c.scheduler.ListJobs()
	if len(jobs) == 0 {
		return "No cron jobs."
	}

	var b strings.Builder
	b.WriteString("Cron jobs:")
	for _, job := range jobs {
		fmt.Fprintf(&b, "\n  %s  %s  %q", job.ID, describeSchedule(job.Schedule), job.Message)
	}
	return b.String()
}

func (c *Console) cronRemove(id string) string {
	removed, err := c.scheduler.RemoveJob(id)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if !removed {
		return fmt.Sprintf("No cron job with id %s", id)
	}
	return fmt.Sprintf("Removed cron job %s", id)
}

func describeSchedule(s cron.CronSchedule) string {
	if s.Kind == cron.ScheduleKindEvery && s.EveryMS != nil {
		return fmt.Sprintf("every %dms", *s.EveryMS)
	}
	return s.Expr
}

func isInteger(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// DeliverCron は発火したcronジョブをコンソールに届ける。
// Deliver が真のジョブはメッセージを通常の発話として処理する
func (c *Console) DeliverCron(job cron.CronJob) {
	fmt.Fprintf(c.out, "\n⏰ [cron %s] %s\n", job.ID, job.Message)

	if !job.Deliver {
		return
	}

	resp, err := c.orchestrator.ProcessMessage(context.Background(), orchestrator.ProcessMessageRequest{
		SessionID:   c.sessionID,
		Channel:     "console",
		ChatID:      c.user,
		UserMessage: job.Message,
	})
	if err != nil {
		logger.ErrorCF("console", "cron message processing failed", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
		return
	}

	fmt.Fprintln(c.out, "\nAssistant: "+resp.Response+"\n")
}
