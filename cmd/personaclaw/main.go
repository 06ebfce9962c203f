package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Nyukimin/personaclaw/internal/adapter/config"
	"github.com/Nyukimin/personaclaw/internal/adapter/console"
	"github.com/Nyukimin/personaclaw/internal/adapter/line"
	"github.com/Nyukimin/personaclaw/internal/application/orchestrator"
	"github.com/Nyukimin/personaclaw/internal/domain/agent"
	"github.com/Nyukimin/personaclaw/internal/domain/llm"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/llm/claude"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/llm/deepseek"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/llm/ollama"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/llm/openai"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/mcp"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/persistence/session"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/routing"
	"github.com/Nyukimin/personaclaw/internal/infrastructure/tools"
	"github.com/Nyukimin/personaclaw/pkg/cron"
	"github.com/Nyukimin/personaclaw/pkg/health"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

const checkTimeout = 5 * time.Second

func main() {
	// 設定ファイルパス
	configPath := getConfigPath()

	// 設定読み込み
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(cfg.Log.Level)
	log.Printf("Loaded config from: %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 依存関係構築
	deps, err := buildDependencies(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build dependencies: %v", err)
	}
	defer deps.Close()

	// 起動時ヘルスチェック。失敗しても対話は開始する
	if !deps.runner.RunAll() {
		log.Println("Some health checks failed, continuing anyway")
	}

	log.Printf("PersonaClaw ready (provider: %s)", cfg.LLM.Provider)

	if err := deps.console.Run(ctx); err != nil {
		log.Fatalf("Console failed: %v", err)
	}
}

// Dependencies はアプリケーション依存関係
type Dependencies struct {
	console   *console.Console
	scheduler *cron.CronService
	manager   *mcp.Manager
	runner    *health.Runner
}

// Close は常駐コンポーネントを停止する
func (d *Dependencies) Close() {
	d.scheduler.Stop()
	d.manager.Close()
}

// buildDependencies は依存関係を構築
func buildDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	// 1. LLM Provider
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("LLM provider ready: %s", cfg.LLM.Provider)

	// 2. Tool Servers (MCP)
	servers := make([]mcp.ServerConfig, 0, len(cfg.Tools.Servers))
	for _, s := range cfg.Tools.Servers {
		servers = append(servers, mcp.ServerConfig{Name: s.Name, Command: s.Command, Args: s.Args})
	}
	manager := mcp.NewManager(servers, mcp.DefaultOptions())
	manager.InitializeServers(ctx)

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	resolver := tools.NewResolver(manager, root)
	dispatcher := tools.NewDispatcher(manager, resolver)

	// 3. Routing Components
	classifier := routing.NewLLMClassifier(provider)
	ruleDictionary := routing.NewRuleDictionary()
	router := agent.NewRouter(classifier, ruleDictionary, tools.ExtractFilename)

	// 4. Session Repository
	if err := os.MkdirAll(cfg.Session.StorageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	sessionRepo := session.NewJSONSessionRepository(cfg.Session.StorageDir)

	// 5. Application Orchestrator
	orch := orchestrator.NewMessageOrchestrator(
		sessionRepo,
		router,
		dispatcher,
		provider,
		cfg.Session.HistoryWindow,
	)

	// 6. Health Checks
	runner := health.NewRunner()
	if cfg.LLM.Provider == "ollama" {
		runner.Register("ollama", health.OllamaCheck(cfg.Ollama.BaseURL, checkTimeout))
		runner.Register("ollama-models", health.OllamaModelsCheck(cfg.Ollama.BaseURL, checkTimeout,
			[]health.ModelRequirement{{Name: cfg.Ollama.Model}}))
	}
	for _, s := range cfg.Tools.Servers {
		runner.Register(s.Name, health.ToolServerCheck(manager, s.Name, checkTimeout))
	}

	// 7. Cron Scheduler + Console Adapter
	// ハンドラはコンソールとLINE送信の生成後に参照されるため、変数経由で後から束縛する
	var cons *console.Console
	var lineSender *line.MessageSender
	scheduler := cron.NewCronService(cfg.Cron.StorePath, func(job cron.CronJob) {
		switch {
		case job.Kind == "health":
			runner.RunAll()
		case job.Channel == "line":
			pushLineJob(lineSender, cfg.Line.OwnerID, job)
		default:
			if cons != nil {
				cons.DeliverCron(job)
			}
		}
	})
	if err := scheduler.Load(); err != nil {
		return nil, fmt.Errorf("failed to load cron store: %w", err)
	}
	if cfg.Health.Schedule != "" {
		if err := ensureHealthJob(scheduler, cfg.Health.Schedule); err != nil {
			return nil, fmt.Errorf("failed to register health job: %w", err)
		}
	}

	cons = console.NewConsole(orch, scheduler, os.Getenv("USER"))

	// 8. LINE Adapter（資格情報があるときだけ起動）
	if cfg.Line.Enabled() {
		lineSender = line.NewMessageSender(cfg.Line.AccessToken)
		lineHandler := line.NewHandler(orch, lineSender, cfg.Line.ChannelSecret, cfg.Line.BotUserID)

		go func() {
			log.Printf("Starting LINE webhook server on %s", cfg.Line.Addr)
			if err := http.ListenAndServe(cfg.Line.Addr, lineHandler); err != nil {
				log.Printf("LINE webhook server stopped: %v", err)
			}
		}()
	}

	scheduler.Start(ctx)

	log.Println("Dependency injection complete")

	return &Dependencies{
		console:   cons,
		scheduler: scheduler,
		manager:   manager,
		runner:    runner,
	}, nil
}

// buildProvider は設定からLLMプロバイダーを作成
func buildProvider(cfg *config.Config) (llm.LLMProvider, error) {
	switch cfg.LLM.Provider {
	case "ollama":
		return ollama.NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	case "claude":
		return claude.NewClaudeProvider(cfg.Claude.APIKey, cfg.Claude.Model), nil
	case "openai":
		return openai.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	case "deepseek":
		return deepseek.NewDeepSeekProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// pushLineJob は定期ジョブのメッセージをLINEへプッシュする
func pushLineJob(sender *line.MessageSender, ownerID string, job cron.CronJob) {
	if sender == nil || ownerID == "" {
		log.Printf("LINE cron job %s skipped: adapter not configured", job.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sender.SendPushMessage(ctx, ownerID, job.Message); err != nil {
		log.Printf("Failed to push LINE cron job %s: %v", job.ID, err)
	}
}

// ensureHealthJob は定期ヘルスチェックのジョブをストアに用意する。
// スケジュールが変わっていたら古いジョブを差し替える
func ensureHealthJob(scheduler *cron.CronService, schedule string) error {
	for _, job := range scheduler.ListJobs() {
		if job.Kind != "health" {
			continue
		}
		if job.Schedule.Kind == cron.ScheduleKindCron && job.Schedule.Expr == schedule {
			return nil
		}
		if _, err := scheduler.RemoveJob(job.ID); err != nil {
			return err
		}
	}

	_, err := scheduler.AddJob(
		"health",
		cron.CronSchedule{Kind: cron.ScheduleKindCron, Expr: schedule},
		"scheduled health check",
		false,
		"console",
		"health",
	)
	return err
}

// getConfigPath は設定ファイルパスを取得
func getConfigPath() string {
	if path := os.Getenv("PERSONACLAW_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}
