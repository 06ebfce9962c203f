package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Nyukimin/personaclaw/pkg/logger"
	wire "github.com/Nyukimin/personaclaw/pkg/mcp"
)

const (
	clientName    = "personaclaw-mcp-client"
	clientVersion = "1.0.0"

	// initializedPause は initialized 通知後にサーバーへ与える猶予
	initializedPause = 100 * time.Millisecond

	// stderrLimit は起動診断用に保持する標準エラー出力の上限バイト数
	stderrLimit = 8 * 1024
)

// ServerConfig はツールサーバープロセスの起動設定
type ServerConfig struct {
	Name    string   `json:"name" yaml:"name"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args" yaml:"args"`
	Env     []string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Validate は設定の妥当性を検証
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

// Options はトランスポートの時間パラメータ
type Options struct {
	// SettleDelay は起動直後にプロセスの生死を観察する待ち時間
	SettleDelay time.Duration
	// CallTimeout は1回の応答待ちの上限
	CallTimeout time.Duration
	// TerminateGrace は SIGTERM から SIGKILL までの猶予
	TerminateGrace time.Duration
}

// DefaultOptions は既定の時間パラメータを返す
func DefaultOptions() Options {
	return Options{
		SettleDelay:    500 * time.Millisecond,
		CallTimeout:    5 * time.Second,
		TerminateGrace: 3 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SettleDelay <= 0 {
		o.SettleDelay = d.SettleDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.TerminateGrace <= 0 {
		o.TerminateGrace = d.TerminateGrace
	}
	return o
}

// Client は1つのツールサーバープロセスを所有し、標準入出力上で
// 改行区切り JSON-RPC を話すトランスポートクライアント。
// 呼び出しはミューテックスで直列化され、リクエストIDは1から単調増加する
type Client struct {
	config ServerConfig
	opts   Options

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	lines       chan string
	done        chan struct{}
	quit        chan struct{}
	stderr      *boundedBuffer
	nextID      int64
	initialized bool
}

// NewClient はトランスポートクライアントを作成（起動は Start で行う）
func NewClient(config ServerConfig, opts Options) *Client {
	return &Client{config: config, opts: opts.withDefaults()}
}

// Start はサーバープロセスを起動し、初期化ハンドシェイクを完了する。
// 起動直後に死んだプロセスは標準エラー出力を添えて失敗を報告する
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("tool server %s is already running", c.config.Name)
	}
	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	cmd := exec.Command(c.config.Command, c.config.Args...)
	if c.config.Dir != "" {
		cmd.Dir = c.config.Dir
	}
	if len(c.config.Env) > 0 {
		cmd.Env = append(os.Environ(), c.config.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe for %s: %w", c.config.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe for %s: %w", c.config.Name, err)
	}
	stderr := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start tool server %s: %w", c.config.Name, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stderr = stderr
	c.lines = make(chan string, 16)
	c.done = make(chan struct{})
	c.quit = make(chan struct{})
	c.nextID = 0

	go c.readLines(stdout)
	done := c.done
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-time.After(c.opts.SettleDelay):
	case <-c.done:
	case <-ctx.Done():
		c.teardownLocked()
		return ctx.Err()
	}

	select {
	case <-c.done:
		msg := strings.TrimSpace(c.stderr.String())
		if msg == "" {
			msg = "no error output"
		}
		c.teardownLocked()
		return fmt.Errorf("server process died immediately: %s", msg)
	default:
	}

	if err := c.initializeSession(ctx); err != nil {
		c.teardownLocked()
		return fmt.Errorf("failed to initialize %s session: %w", c.config.Name, err)
	}
	c.initialized = true
	logger.InfoCF("mcp", "tool server connected", map[string]interface{}{
		"server":  c.config.Name,
		"command": c.config.Command,
	})
	return nil
}

// initializeSession は initialize/initialized のハンドシェイクを実行する。
// 呼び出し側で c.mu を保持していること
func (c *Client) initializeSession(ctx context.Context) error {
	c.nextID++
	req := wire.NewRequest(c.nextID, "initialize", map[string]interface{}{
		"protocolVersion": wire.ProtocolVersion,
		"capabilities": map[string]interface{}{
			"tools": map[string]interface{}{},
		},
		"clientInfo": map[string]interface{}{
			"name":    clientName,
			"version": clientVersion,
		},
	})
	if err := c.sendLocked(req); err != nil {
		return fmt.Errorf("failed to send initialize request: %w", err)
	}
	resp := c.readResponse(ctx, c.opts.CallTimeout)
	if resp == nil {
		return fmt.Errorf("no response to initialize request")
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize rejected: %s", resp.Error.Message)
	}
	if resp.Result == nil {
		return fmt.Errorf("initialize response has no result")
	}
	if _, ok := resp.Result["protocolVersion"]; !ok {
		return fmt.Errorf("initialize response missing protocolVersion")
	}
	if err := c.sendLocked(wire.NewNotification("notifications/initialized", nil)); err != nil {
		return fmt.Errorf("failed to send initialized notification: %w", err)
	}
	time.Sleep(initializedPause)
	return nil
}

// CallTool はツールを1回呼び出し、分類付きの結果を返す
func (c *Client) CallTool(ctx context.Context, toolName string, args map[string]interface{}) CallResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.cmd == nil {
		return Errorf(KindNotInitialized, "Error: MCP client not initialized")
	}

	c.nextID++
	req := wire.NewRequest(c.nextID, "tools/call", map[string]interface{}{
		"name":      toolName,
		"arguments": args,
	})
	if err := c.sendLocked(req); err != nil {
		logger.WarnCF("mcp", "failed to send tool request", map[string]interface{}{
			"server": c.config.Name,
			"tool":   toolName,
			"error":  err.Error(),
		})
		return Errorf(KindSendFailed, "Error: Failed to send tool request for %s", toolName)
	}

	resp := c.readResponse(ctx, c.opts.CallTimeout)
	if resp == nil {
		return Errorf(KindNoResponse, "Error: No response for tool call %s", toolName)
	}
	switch {
	case resp.Result != nil:
		return Ok(extractText(resp.Result))
	case resp.Error != nil:
		return Errorf(KindToolError, "Tool error: %s", resp.Error.Message)
	default:
		raw, _ := json.Marshal(resp)
		return Errorf(KindUnexpected, "Unexpected response format: %s", raw)
	}
}

// ListTools はサーバーが公開するツール名の一覧を返す。失敗時は空
func (c *Client) ListTools(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized || c.cmd == nil {
		return nil
	}
	c.nextID++
	if err := c.sendLocked(wire.NewRequest(c.nextID, "tools/list", map[string]interface{}{})); err != nil {
		return nil
	}
	resp := c.readResponse(ctx, c.opts.CallTimeout)
	if resp == nil || resp.Result == nil {
		return nil
	}
	items, ok := resp.Result["tools"].([]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		tool, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if name, ok := tool["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// Initialized は初期化済みかどうかを返す
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Name はサーバー名を返す
func (c *Client) Name() string {
	return c.config.Name
}

// Close はサーバープロセスを停止する。SIGTERM 後、猶予を超えたら SIGKILL。
// 何度呼んでも安全
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	return nil
}

// teardownLocked はプロセスと入出力を破棄する。呼び出し側で c.mu を保持していること
func (c *Client) teardownLocked() {
	if c.cmd == nil {
		c.initialized = false
		return
	}
	close(c.quit)
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	select {
	case <-c.done:
	default:
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-c.done:
		case <-time.After(c.opts.TerminateGrace):
			_ = c.cmd.Process.Kill()
			<-c.done
		}
	}
	logger.InfoCF("mcp", "tool server stopped", map[string]interface{}{
		"server": c.config.Name,
	})
	c.cmd = nil
	c.stdin = nil
	c.initialized = false
}

// sendLocked はリクエストを1行のJSONとして書き込む。呼び出し側で c.mu を保持していること
func (c *Client) sendLocked(req wire.MCPRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to write request: %w", err)
	}
	return nil
}

// readResponse は次の1行を読み、JSONとして解釈する。
// タイムアウト・EOF・不正なJSONはすべて「応答なし」として nil を返す
func (c *Client) readResponse(ctx context.Context, timeout time.Duration) *wire.MCPResponse {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var line string
	select {
	case l, ok := <-c.lines:
		if !ok {
			return nil
		}
		line = l
	case <-timer.C:
		logger.WarnCF("mcp", "timed out waiting for response", map[string]interface{}{
			"server":  c.config.Name,
			"timeout": timeout.String(),
		})
		return nil
	case <-ctx.Done():
		return nil
	case <-c.done:
		// プロセス終了直前に書かれた行が残っていることがある
		select {
		case l, ok := <-c.lines:
			if !ok {
				return nil
			}
			line = l
		default:
			return nil
		}
	}

	var resp wire.MCPResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		logger.WarnCF("mcp", "discarding invalid response line", map[string]interface{}{
			"server": c.config.Name,
			"line":   truncate(line, 100),
		})
		return nil
	}
	return &resp
}

// readLines は標準出力を行単位で読み、チャネルへ送る
func (c *Client) readLines(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.quit:
			return
		}
	}
	close(c.lines)
}

// extractText は tools/call の結果から先頭のテキストコンテンツを取り出す
func extractText(result map[string]interface{}) string {
	content, ok := result["content"].([]interface{})
	if ok && len(content) > 0 {
		if item, ok := content[0].(map[string]interface{}); ok {
			if text, ok := item["text"].(string); ok {
				return text
			}
			return fmt.Sprintf("%v", item)
		}
		return fmt.Sprintf("%v", content[0])
	}
	return fmt.Sprintf("%v", result)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// boundedBuffer は上限付きの並行安全なバッファ。起動診断用の stderr 捕捉に使う
type boundedBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if remain := b.limit - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
