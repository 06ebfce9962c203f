package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nyukimin/personaclaw/pkg/logger"
)

// defaultRestartBackoff は再起動前の待ち時間
const defaultRestartBackoff = 1 * time.Second

// ToolClient は Manager が扱うトランスポートクライアントの抽象
type ToolClient interface {
	Start(ctx context.Context) error
	CallTool(ctx context.Context, toolName string, args map[string]interface{}) CallResult
	ListTools(ctx context.Context) []string
	Initialized() bool
	Close() error
}

// ClientFactory は起動設定からトランスポートクライアントを作成する
type ClientFactory func(config ServerConfig) ToolClient

// Manager は複数のツールサーバー接続を名前で管理する。
// 起動に失敗したサーバーは登録されず、その名前への呼び出しは未初期化として扱う。
// 通信経路の異常による失敗は、1回だけサーバーを再起動して再試行する
type Manager struct {
	mu          sync.RWMutex
	table       []ServerConfig
	clients     map[string]ToolClient
	factory     ClientFactory
	backoff     time.Duration
	initialized bool
}

// NewManager は既定のトランスポートクライアントを使う Manager を作成
func NewManager(servers []ServerConfig, opts Options) *Manager {
	factory := func(config ServerConfig) ToolClient {
		return NewClient(config, opts)
	}
	return NewManagerWithFactory(servers, factory, defaultRestartBackoff)
}

// NewManagerWithFactory はクライアント生成と再起動待ち時間を差し替え可能な Manager を作成
func NewManagerWithFactory(servers []ServerConfig, factory ClientFactory, backoff time.Duration) *Manager {
	return &Manager{
		table:   append([]ServerConfig(nil), servers...),
		clients: make(map[string]ToolClient),
		factory: factory,
		backoff: backoff,
	}
}

// InitializeServers は設定済みのサーバーを順に起動する。
// 一部の起動失敗は記録するだけで続行し、2回目以降の呼び出しは何もしない
func (m *Manager) InitializeServers(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return
	}
	for _, config := range m.table {
		client := m.factory(config)
		if err := client.Start(ctx); err != nil {
			logger.WarnCF("mcp", "failed to start tool server", map[string]interface{}{
				"server": config.Name,
				"error":  err.Error(),
			})
			continue
		}
		m.clients[config.Name] = client
	}
	m.initialized = true
	logger.InfoCF("mcp", "tool server initialization finished", map[string]interface{}{
		"started":    len(m.clients),
		"configured": len(m.table),
	})
}

// CallTool は指定サーバーのツールを呼び出す。
// 通信経路の異常で失敗した場合はサーバーを1回だけ再起動して再試行する
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) CallResult {
	m.mu.RLock()
	client := m.clients[serverName]
	m.mu.RUnlock()

	if client == nil {
		return Errorf(KindNotInitialized, "Error: Server %s not initialized", serverName)
	}

	result := client.CallTool(ctx, toolName, args)
	if result.OK() || !result.ChannelFault() {
		return result
	}

	logger.WarnCF("mcp", "tool call failed, restarting server", map[string]interface{}{
		"server": serverName,
		"tool":   toolName,
		"kind":   string(result.Kind()),
	})
	restarted, err := m.restartServer(ctx, serverName)
	if err != nil {
		return Errorf(KindTransport, "Tool call failed and restart failed: %v", err)
	}
	return restarted.CallTool(ctx, toolName, args)
}

// CallToolSync は CallTool を独立したゴルーチンで実行し、表示文字列を返す。
// パニックも文字列として回収する
func (m *Manager) CallToolSync(serverName, toolName string, args map[string]interface{}) string {
	ch := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- fmt.Sprintf("Error: %v", r)
			}
		}()
		ch <- m.CallTool(context.Background(), serverName, toolName, args).Display()
	}()
	return <-ch
}

// ListTools は指定サーバーのツール名一覧を返す。未登録・失敗時は空
func (m *Manager) ListTools(ctx context.Context, serverName string) []string {
	m.mu.RLock()
	client := m.clients[serverName]
	m.mu.RUnlock()

	if client == nil {
		return nil
	}
	return client.ListTools(ctx)
}

// ServerNames は設定されたサーバー名を設定順で返す
func (m *Manager) ServerNames() []string {
	names := make([]string, 0, len(m.table))
	for _, config := range m.table {
		names = append(names, config.Name)
	}
	return names
}

// Connected は指定サーバーが起動済みかどうかを返す
func (m *Manager) Connected(serverName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client := m.clients[serverName]
	return client != nil && client.Initialized()
}

// Close はすべての接続を閉じる。2回目以降の呼び出しも安全
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			logger.WarnCF("mcp", "failed to close tool server", map[string]interface{}{
				"server": name,
				"error":  err.Error(),
			})
		}
	}
	m.clients = make(map[string]ToolClient)
	m.initialized = false
}

// restartServer は既存接続を破棄し、待ち時間の後にサーバーを再起動する
func (m *Manager) restartServer(ctx context.Context, serverName string) (ToolClient, error) {
	config, ok := m.lookupConfig(serverName)
	if !ok {
		return nil, fmt.Errorf("unknown server: %s", serverName)
	}

	m.mu.Lock()
	if old := m.clients[serverName]; old != nil {
		_ = old.Close()
		delete(m.clients, serverName)
	}
	m.mu.Unlock()

	if m.backoff > 0 {
		select {
		case <-time.After(m.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	client := m.factory(config)
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to restart %s: %w", serverName, err)
	}

	m.mu.Lock()
	m.clients[serverName] = client
	m.mu.Unlock()

	logger.InfoCF("mcp", "tool server restarted", map[string]interface{}{
		"server": serverName,
	})
	return client, nil
}

func (m *Manager) lookupConfig(serverName string) (ServerConfig, bool) {
	for _, config := range m.table {
		if config.Name == serverName {
			return config, true
		}
	}
	return ServerConfig{}, false
}
