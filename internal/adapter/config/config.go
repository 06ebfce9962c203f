package config

import (
	"fmt"
	"os"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	Claude   ClaudeConfig   `yaml:"claude"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	DeepSeek DeepSeekConfig `yaml:"deepseek"`
	Tools    ToolsConfig    `yaml:"tools"`
	Session  SessionConfig  `yaml:"session"`
	Health   HealthConfig   `yaml:"health"`
	Cron     CronConfig     `yaml:"cron"`
	Line     LineConfig     `yaml:"line"`
	Log      LogConfig      `yaml:"log"`
}

// LLMConfig は使用するプロバイダーの選択
type LLMConfig struct {
	Provider string `yaml:"provider" env:"PERSONACLAW_LLM_PROVIDER"`
}

// OllamaConfig はOllama設定
type OllamaConfig struct {
	BaseURL string `yaml:"base_url" env:"OLLAMA_BASE_URL"`
	Model   string `yaml:"model" env:"PERSONACLAW_OLLAMA_MODEL"`
}

// ClaudeConfig はClaude API設定
type ClaudeConfig struct {
	APIKey string `yaml:"api_key" env:"ANTHROPIC_API_KEY"` // 環境変数から読み込み推奨
	Model  string `yaml:"model"`
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY"` // 環境変数から読み込み推奨
	Model  string `yaml:"model"`
}

// DeepSeekConfig はDeepSeek API設定
type DeepSeekConfig struct {
	APIKey string `yaml:"api_key" env:"DEEPSEEK_API_KEY"` // 環境変数から読み込み推奨
	Model  string `yaml:"model"`
}

// ToolsConfig はツールサーバー設定
type ToolsConfig struct {
	Servers []ToolServerConfig `yaml:"servers"`
}

// ToolServerConfig は1ツールサーバーの起動設定
type ToolServerConfig struct {
	Name        string   `yaml:"name"`
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Description string   `yaml:"description"`
}

// SessionConfig はセッション設定
type SessionConfig struct {
	StorageDir    string `yaml:"storage_dir" env:"PERSONACLAW_SESSION_DIR"`
	HistoryWindow int    `yaml:"history_window"`
}

// HealthConfig はヘルスチェック設定
type HealthConfig struct {
	Schedule string `yaml:"schedule"` // cron式。空なら起動時のみ実行
}

// CronConfig はスケジューラ設定
type CronConfig struct {
	StorePath string `yaml:"store_path" env:"PERSONACLAW_CRON_STORE"`
}

// LineConfig はLINE Messaging API設定。
// シークレットとトークンが揃っているときだけWebhookサーバーを起動する
type LineConfig struct {
	ChannelSecret string `yaml:"channel_secret" env:"LINE_CHANNEL_SECRET"`
	AccessToken   string `yaml:"access_token" env:"LINE_CHANNEL_ACCESS_TOKEN"`
	BotUserID     string `yaml:"bot_user_id"`                           // グループでのメンション判定用
	OwnerID       string `yaml:"owner_id" env:"PERSONACLAW_LINE_OWNER"` // 定期通知のプッシュ先
	Addr          string `yaml:"addr"`
}

// Enabled はLINEアダプターを起動すべきかを返す
func (l LineConfig) Enabled() bool {
	return l.ChannelSecret != "" && l.AccessToken != ""
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" env:"PERSONACLAW_LOG_LEVEL"`
}

// LoadConfig は設定を読み込む。優先順位は 環境変数 > ファイル > デフォルト。
// ファイルが存在しない場合はデフォルトと環境変数のみで構成する
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	// デフォルト値設定
	cfg.setDefaults()

	// 環境変数で上書き
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults はデフォルト値を設定
func (c *Config) setDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}

	if c.Ollama.Model == "" {
		c.Ollama.Model = "llama3.2"
	}

	if c.Claude.Model == "" {
		c.Claude.Model = "claude-sonnet-4-20250514"
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}

	if c.DeepSeek.Model == "" {
		c.DeepSeek.Model = "deepseek-chat"
	}

	if len(c.Tools.Servers) == 0 {
		c.Tools.Servers = []ToolServerConfig{
			{Name: "filesystem", Command: "./personaclaw-fs", Description: "Sandboxed file operations"},
			{Name: "web_search", Command: "./personaclaw-search", Description: "DuckDuckGo web search"},
		}
	}

	if c.Session.StorageDir == "" {
		c.Session.StorageDir = "./data/sessions"
	}

	if c.Session.HistoryWindow == 0 {
		c.Session.HistoryWindow = 10
	}

	if c.Cron.StorePath == "" {
		c.Cron.StorePath = "./data/cron.json"
	}

	if c.Line.Addr == "" {
		c.Line.Addr = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate は設定の妥当性を検証
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama":
		if c.Ollama.BaseURL == "" {
			return fmt.Errorf("ollama base_url is required")
		}
		if c.Ollama.Model == "" {
			return fmt.Errorf("ollama model is required")
		}
	case "claude":
		if c.Claude.APIKey == "" {
			return fmt.Errorf("claude provider selected but ANTHROPIC_API_KEY is not set")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("openai provider selected but OPENAI_API_KEY is not set")
		}
	case "deepseek":
		if c.DeepSeek.APIKey == "" {
			return fmt.Errorf("deepseek provider selected but DEEPSEEK_API_KEY is not set")
		}
	default:
		return fmt.Errorf("unknown llm provider: %s (must be ollama, claude, openai or deepseek)", c.LLM.Provider)
	}

	for _, server := range c.Tools.Servers {
		if server.Name == "" {
			return fmt.Errorf("tool server name is required")
		}
		if server.Command == "" {
			return fmt.Errorf("tool server %s: command is required", server.Name)
		}
	}

	if c.Session.StorageDir == "" {
		return fmt.Errorf("session storage_dir is required")
	}

	if c.Session.HistoryWindow < 0 {
		return fmt.Errorf("session history_window must not be negative")
	}

	if c.Health.Schedule != "" && !gronx.New().IsValid(c.Health.Schedule) {
		return fmt.Errorf("invalid health schedule: %s", c.Health.Schedule)
	}

	// LINEはシークレットとトークンの片方だけでは動かない
	if (c.Line.ChannelSecret == "") != (c.Line.AccessToken == "") {
		return fmt.Errorf("line channel_secret and access_token must be set together")
	}

	return nil
}
