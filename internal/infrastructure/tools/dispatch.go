package tools

import (
	"context"
	"slices"
	"strings"

	"github.com/Nyukimin/personaclaw/internal/domain/agent"
	"github.com/Nyukimin/personaclaw/internal/domain/task"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

const (
	// ServerFilesystem はファイル操作サーバーの登録名
	ServerFilesystem = "filesystem"
	// ServerWebSearch はウェブ検索サーバーの登録名
	ServerWebSearch = "web_search"

	// CapabilityWebSearch はペルソナに割り当てるウェブ検索権限
	CapabilityWebSearch = agent.ToolWebSearch
	// CapabilityFileSystem はペルソナに割り当てるファイル操作権限
	CapabilityFileSystem = agent.ToolFileSystem
)

// guidanceMessage はファイル操作の対象を特定できなかったときの案内
const guidanceMessage = "File system tools available for code operations. Use specific commands like 'read filename' or 'list directory'."

// searchKeywords はウェブ検索を起動する語。順序はそのまま判定順
var searchKeywords = []string{
	"search", "find", "what is", "tell me about", "research",
	"explain", "define", "how does", "latest", "news",
}

// fileKeywords はファイル操作を起動する語
var fileKeywords = []string{
	"file", "read", "write", "code", "save", "load",
	"create", "edit", "directory", "folder", "show", "display", "open",
}

// AvailableTools はペルソナが使えるツール権限を返す。未知のペルソナは空
func AvailableTools(personaName string) []string {
	p, ok := agent.LookupPersona(personaName)
	if !ok {
		return nil
	}
	return p.Tools
}

// ShouldUseWebSearch はメッセージがウェブ検索を要するかを判定する
func ShouldUseWebSearch(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range searchKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ShouldUseFileSystem はメッセージがファイル操作を要するかを判定する
func ShouldUseFileSystem(message string) bool {
	lower := strings.ToLower(message)
	for _, keyword := range fileKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// searchVariant はメッセージの内容で検索ツールを選ぶ
func searchVariant(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "define") || strings.Contains(lower, "definition"):
		return "search_definitions"
	case strings.Contains(lower, "how to"):
		return "search_how_to"
	default:
		return "web_search"
	}
}

// searchArgs はツールごとの引数名に合わせてクエリを包む
func searchArgs(variant, message string) map[string]interface{} {
	switch variant {
	case "search_definitions":
		return map[string]interface{}{"term": message}
	case "search_how_to":
		return map[string]interface{}{"topic": message}
	default:
		return map[string]interface{}{"query": message}
	}
}

// Dispatcher はペルソナとメッセージからツール実行を決定する
type Dispatcher struct {
	caller   ToolCaller
	resolver *Resolver
}

// NewDispatcher はディスパッチャを作成
func NewDispatcher(caller ToolCaller, resolver *Resolver) *Dispatcher {
	return &Dispatcher{caller: caller, resolver: resolver}
}

// Execute はペルソナに許可されたツールをメッセージに応じて実行し、実行順の結果を返す。
// ツールが不要または未許可なら空を返す
func (d *Dispatcher) Execute(ctx context.Context, personaName, message string) []task.ToolResult {
	available := AvailableTools(personaName)
	if len(available) == 0 {
		return nil
	}

	var results []task.ToolResult

	if slices.Contains(available, CapabilityWebSearch) && ShouldUseWebSearch(message) {
		variant := searchVariant(message)
		logger.InfoCF("tools", "executing web search", map[string]interface{}{
			"tool":  variant,
			"query": clip(message, 50),
		})
		result := d.caller.CallTool(ctx, ServerWebSearch, variant, searchArgs(variant, message))
		results = append(results, task.ToolResult{Name: CapabilityWebSearch, Output: result.Display()})
	}

	if slices.Contains(available, CapabilityFileSystem) && ShouldUseFileSystem(message) {
		results = append(results, task.ToolResult{Name: CapabilityFileSystem, Output: d.runFileTools(ctx, message)})
	}

	return results
}

// runFileTools はファイル操作の対象を特定して実行する
func (d *Dispatcher) runFileTools(ctx context.Context, message string) string {
	filename := ExtractFilename(message)
	lower := strings.ToLower(message)

	switch {
	case filename != "":
		pathContext := ExtractPathContext(message)
		if pathContext != "" && !strings.HasPrefix(filename, pathContext) {
			// 手がかりとファイル名を繋いだ直接パスを先に試す
			fullPath := strings.TrimRight(pathContext, "/") + "/" + filename
			logger.InfoCF("tools", "reading file", map[string]interface{}{"path": fullPath})
			result := d.caller.CallTool(ctx, ServerFilesystem, "read_file", map[string]interface{}{
				"file_path": fullPath,
			})
			display := result.Display()
			if strings.Contains(display, "Error:") ||
				(strings.Contains(display, "File") && strings.Contains(display, "does not exist")) {
				return d.resolver.Resolve(ctx, filename, message)
			}
			return display
		}
		logger.InfoCF("tools", "reading file", map[string]interface{}{"path": filename})
		return d.resolver.Resolve(ctx, filename, message)

	case strings.Contains(lower, "list") || strings.Contains(lower, "directory"):
		logger.InfoCF("tools", "listing directory", map[string]interface{}{"path": "."})
		result := d.caller.CallTool(ctx, ServerFilesystem, "list_directory", map[string]interface{}{
			"dir_path": ".",
		})
		return result.Display()

	default:
		return guidanceMessage
	}
}

// ReadFile はファイルを読み取る
func (d *Dispatcher) ReadFile(ctx context.Context, path string) string {
	result := d.caller.CallTool(ctx, ServerFilesystem, "read_file", map[string]interface{}{
		"file_path": path,
	})
	return result.Display()
}

// WriteFile はファイルへ書き込む
func (d *Dispatcher) WriteFile(ctx context.Context, path, content string) string {
	result := d.caller.CallTool(ctx, ServerFilesystem, "write_file", map[string]interface{}{
		"file_path": path,
		"content":   content,
	})
	return result.Display()
}

// ListDirectory はディレクトリの内容を一覧する
func (d *Dispatcher) ListDirectory(ctx context.Context, dir string) string {
	result := d.caller.CallTool(ctx, ServerFilesystem, "list_directory", map[string]interface{}{
		"dir_path": dir,
	})
	return result.Display()
}

// WebSearch は指定した検索ツールで検索する
func (d *Dispatcher) WebSearch(ctx context.Context, query, variant string) string {
	if variant == "" {
		variant = "web_search"
	}
	result := d.caller.CallTool(ctx, ServerWebSearch, variant, searchArgs(variant, query))
	return result.Display()
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
