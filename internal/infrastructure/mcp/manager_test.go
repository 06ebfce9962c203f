package mcp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// fakeToolClient は結果を順に返すテスト用クライアント。
// results を使い切った後は最後の結果を繰り返す
type fakeToolClient struct {
	mu       sync.Mutex
	name     string
	startErr error
	started  bool
	closed   int
	calls    int
	results  []CallResult
	tools    []string
	panicMsg string
}

func (f *fakeToolClient) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeToolClient) CallTool(ctx context.Context, toolName string, args map[string]interface{}) CallResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.calls++
	if len(f.results) == 0 {
		return Ok("done")
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r
}

func (f *fakeToolClient) ListTools(ctx context.Context) []string {
	return f.tools
}

func (f *fakeToolClient) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started && f.closed == 0
}

func (f *fakeToolClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// fakeClientFactory は生成したクライアントを全て記録する
type fakeClientFactory struct {
	mu      sync.Mutex
	made    []*fakeToolClient
	prepare func(n int, config ServerConfig) *fakeToolClient
}

func (ff *fakeClientFactory) new(config ServerConfig) ToolClient {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	c := ff.prepare(len(ff.made), config)
	c.name = config.Name
	ff.made = append(ff.made, c)
	return c
}

func (ff *fakeClientFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.made)
}

func singleServer(name string) []ServerConfig {
	return []ServerConfig{{Name: name, Command: "fake"}}
}

func TestManager_InitializeServers_PartialFailure(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			c := &fakeToolClient{}
			if config.Name == "bad" {
				c.startErr = errors.New("spawn failed")
			}
			return c
		},
	}
	servers := []ServerConfig{
		{Name: "bad", Command: "fake"},
		{Name: "good", Command: "fake"},
	}
	m := NewManagerWithFactory(servers, factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "good", "ping", nil)
	if !result.OK() {
		t.Errorf("call to started server failed: %s", result.Display())
	}

	result = m.CallTool(context.Background(), "bad", "ping", nil)
	if got, want := result.Display(), "Error: Server bad not initialized"; got != want {
		t.Errorf("display = %q, want %q", got, want)
	}
	if result.Kind() != KindNotInitialized {
		t.Errorf("kind = %q, want %q", result.Kind(), KindNotInitialized)
	}
}

func TestManager_InitializeServers_Idempotent(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient { return &fakeToolClient{} },
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)

	m.InitializeServers(context.Background())
	m.InitializeServers(context.Background())

	if factory.count() != 1 {
		t.Errorf("expected 1 client, got %d", factory.count())
	}
}

func TestManager_CallTool_UnknownServer(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient { return &fakeToolClient{} },
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "ghost", "ping", nil)
	if got, want := result.Display(), "Error: Server ghost not initialized"; got != want {
		t.Errorf("display = %q, want %q", got, want)
	}
}

func TestManager_CallTool_RestartsExactlyOnce(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			if n == 0 {
				// 最初の接続は経路異常で失敗し続ける
				return &fakeToolClient{results: []CallResult{
					Errorf(KindNoResponse, "Error: No response for tool call ping"),
				}}
			}
			return &fakeToolClient{results: []CallResult{Ok("recovered")}}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "fs", "ping", nil)
	if !result.OK() || result.Display() != "recovered" {
		t.Fatalf("want recovered result, got ok=%v %q", result.OK(), result.Display())
	}

	if factory.count() != 2 {
		t.Fatalf("expected exactly one restart (2 clients), got %d clients", factory.count())
	}
	first, second := factory.made[0], factory.made[1]
	if first.calls != 1 {
		t.Errorf("first client calls = %d, want 1", first.calls)
	}
	if first.closed == 0 {
		t.Error("failed client should be closed before the restart")
	}
	if second.calls != 1 {
		t.Errorf("second client calls = %d, want 1", second.calls)
	}
}

func TestManager_CallTool_NoSecondRestart(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			return &fakeToolClient{results: []CallResult{
				Errorf(KindNoResponse, "Error: No response for tool call ping"),
			}}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "fs", "ping", nil)
	if result.OK() {
		t.Fatal("call should fail when the retry also fails")
	}
	if got, want := result.Display(), "Error: No response for tool call ping"; got != want {
		t.Errorf("display = %q, want %q", got, want)
	}
	// 再起動は1回だけ。再試行の失敗でさらに再起動してはならない
	if factory.count() != 2 {
		t.Errorf("expected 2 clients (one restart), got %d", factory.count())
	}
}

func TestManager_CallTool_RestartStartFailure(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			if n == 0 {
				return &fakeToolClient{results: []CallResult{
					Errorf(KindSendFailed, "Error: Failed to send tool request for ping"),
				}}
			}
			return &fakeToolClient{startErr: errors.New("spawn failed")}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "fs", "ping", nil)
	if result.OK() {
		t.Fatal("call should fail when the restart fails")
	}
	if result.Kind() != KindTransport {
		t.Errorf("kind = %q, want %q", result.Kind(), KindTransport)
	}
	if !strings.HasPrefix(result.Display(), "Tool call failed and restart failed:") {
		t.Errorf("display = %q, want restart failure message", result.Display())
	}
	if !strings.Contains(result.Display(), "spawn failed") {
		t.Errorf("display should carry the start error: %q", result.Display())
	}
}

func TestManager_CallTool_ToolErrorDoesNotRestart(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			return &fakeToolClient{results: []CallResult{
				Errorf(KindToolError, "Tool error: unknown tool: bogus"),
			}}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	result := m.CallTool(context.Background(), "fs", "bogus", nil)
	if got, want := result.Display(), "Tool error: unknown tool: bogus"; got != want {
		t.Errorf("display = %q, want %q", got, want)
	}
	if factory.count() != 1 {
		t.Errorf("a server-reported error must not trigger a restart, got %d clients", factory.count())
	}
}

func TestManager_CallToolSync(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			return &fakeToolClient{results: []CallResult{Ok("sync result")}}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	if got := m.CallToolSync("fs", "ping", nil); got != "sync result" {
		t.Errorf("CallToolSync = %q, want %q", got, "sync result")
	}
}

func TestManager_CallToolSync_RecoversPanic(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			return &fakeToolClient{panicMsg: "boom"}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	if got := m.CallToolSync("fs", "ping", nil); got != "Error: boom" {
		t.Errorf("CallToolSync = %q, want %q", got, "Error: boom")
	}
}

func TestManager_Close(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient { return &fakeToolClient{} },
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())
	if !m.Connected("fs") {
		t.Fatal("server should be connected after initialization")
	}

	m.Close()
	m.Close()

	if m.Connected("fs") {
		t.Error("server should not be connected after Close")
	}
	if factory.made[0].closed == 0 {
		t.Error("client should be closed")
	}

	result := m.CallTool(context.Background(), "fs", "ping", nil)
	if result.Kind() != KindNotInitialized {
		t.Errorf("kind after Close = %q, want %q", result.Kind(), KindNotInitialized)
	}

	// Close 後は再初期化できる
	m.InitializeServers(context.Background())
	if !m.Connected("fs") {
		t.Error("server should reconnect after re-initialization")
	}
}

func TestManager_ListTools(t *testing.T) {
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient {
			return &fakeToolClient{tools: []string{"read_file", "write_file"}}
		},
	}
	m := NewManagerWithFactory(singleServer("fs"), factory.new, 0)
	m.InitializeServers(context.Background())

	tools := m.ListTools(context.Background(), "fs")
	if len(tools) != 2 || tools[0] != "read_file" {
		t.Errorf("tools = %v", tools)
	}
	if tools := m.ListTools(context.Background(), "ghost"); len(tools) != 0 {
		t.Errorf("unknown server should list no tools, got %v", tools)
	}
}

func TestManager_ServerNames(t *testing.T) {
	servers := []ServerConfig{
		{Name: "filesystem", Command: "fake"},
		{Name: "web_search", Command: "fake"},
	}
	factory := &fakeClientFactory{
		prepare: func(n int, config ServerConfig) *fakeToolClient { return &fakeToolClient{} },
	}
	m := NewManagerWithFactory(servers, factory.new, 0)

	names := m.ServerNames()
	if len(names) != 2 || names[0] != "filesystem" || names[1] != "web_search" {
		t.Errorf("ServerNames = %v", names)
	}
}
