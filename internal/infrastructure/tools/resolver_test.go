package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Nyukimin/personaclaw/internal/infrastructure/mcp"
)

// fakeCaller は記録付きのツール呼び出しスタブ
type fakeCaller struct {
	calls []fakeCall
	fn    func(serverName, toolName string, args map[string]interface{}) mcp.CallResult
}

type fakeCall struct {
	server string
	tool   string
	args   map[string]interface{}
}

func (f *fakeCaller) CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) mcp.CallResult {
	f.calls = append(f.calls, fakeCall{server: serverName, tool: toolName, args: args})
	if f.fn == nil {
		return mcp.Ok("ok")
	}
	return f.fn(serverName, toolName, args)
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// serverNotFound はサーバーが返す「ファイルなし」のテキスト
func serverNotFound(name string) mcp.CallResult {
	return mcp.Ok(fmt.Sprintf("Error: File '%s' does not exist", name))
}

func TestResolver_DirectHitReturnsServerText(t *testing.T) {
	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		return mcp.Ok("File: main.py\nSize: 5 characters\n\nContent:\nhello")
	}}
	r := NewResolver(caller, t.TempDir())

	got := r.Resolve(context.Background(), "main.py", "read main.py")
	if !strings.Contains(got, "Content:\nhello") {
		t.Errorf("unexpected result: %q", got)
	}
	if len(caller.calls) != 1 {
		t.Errorf("expected a single read, got %d calls", len(caller.calls))
	}
}

func TestResolver_ServerDownFallsBackToLocalRead(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.py", "hello")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		return mcp.Errorf(mcp.KindNotInitialized, "Error: Server filesystem not initialized")
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "main.py", "read main.py")
	want := "File: main.py\nSize: 5 characters\n\nContent:\nhello"
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolver_ScanFindsSingleMatch(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/config.py", "value = 1")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		if path == "src/config.py" {
			return mcp.Ok("File: src/config.py\nSize: 9 characters\n\nContent:\nvalue = 1")
		}
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "config.py", "read config.py")
	if !strings.Contains(got, "Content:\nvalue = 1") {
		t.Errorf("unexpected result: %q", got)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("expected direct read then resolved read, got %d calls", len(caller.calls))
	}
	if got := caller.calls[1].args["file_path"]; got != "src/config.py" {
		t.Errorf("second read path = %v, want src/config.py", got)
	}
}

func TestResolver_PathContextDisambiguates(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/config.py", "src version")
	writeProjectFile(t, root, "tests/config.py", "test version")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		if path == "src/config.py" {
			return mcp.Ok("File: src/config.py\nSize: 11 characters\n\nContent:\nsrc version")
		}
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "config.py", "read config.py in the src folder")
	if !strings.Contains(got, "src version") {
		t.Errorf("path context should pick the src copy, got %q", got)
	}
}

func TestResolver_MultipleMatchesPrompt(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "src/config.py", "aaaa")
	writeProjectFile(t, root, "tests/config.py", "bb")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "config.py", "read config.py")
	if !strings.HasPrefix(got, "📁 Multiple files named 'config.py' found:\n") {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if !strings.Contains(got, "1. src/config.py (4 characters)\n") {
		t.Errorf("prompt should list src copy with size: %q", got)
	}
	if !strings.Contains(got, "2. tests/config.py (2 characters)\n") {
		t.Errorf("prompt should list tests copy with size: %q", got)
	}
	if !strings.HasSuffix(got, "\nPlease specify the full path or use a more specific query to disambiguate.") {
		t.Errorf("prompt should end with disambiguation guidance: %q", got)
	}
}

func TestResolver_SimilarSuggestions(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "main.py", "x")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "amin.py", "read amin.py")
	if !strings.HasPrefix(got, "❌ File 'amin.py' not found. Did you mean:\n") {
		t.Fatalf("unexpected prompt: %q", got)
	}
	if !strings.Contains(got, "1. main.py\n") {
		t.Errorf("suggestion should include main.py: %q", got)
	}
	if !strings.HasSuffix(got, "\nPlease specify the correct filename or full path.") {
		t.Errorf("prompt should end with correction guidance: %q", got)
	}
}

func TestResolver_NoMatches(t *testing.T) {
	root := t.TempDir()

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "ghost.py", "read ghost.py")
	want := "❌ File 'ghost.py' not found in project. Use 'list directory' to see available files."
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolver_ScanSkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "node_modules/lib.js", "shadow")
	writeProjectFile(t, root, "src/lib.js", "real")

	caller := &fakeCaller{fn: func(server, tool string, args map[string]interface{}) mcp.CallResult {
		path, _ := args["file_path"].(string)
		if path == "src/lib.js" {
			return mcp.Ok("File: src/lib.js\nSize: 4 characters\n\nContent:\nreal")
		}
		return serverNotFound(path)
	}}
	r := NewResolver(caller, root)

	got := r.Resolve(context.Background(), "lib.js", "read lib.js")
	if !strings.Contains(got, "Content:\nreal") {
		t.Errorf("scan must skip node_modules and use src copy, got %q", got)
	}
}

func TestResolver_DirectReadSandbox(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "inside.txt", "safe")
	r := NewResolver(&fakeCaller{}, root)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"Traversal outside root", "../../etc/passwd", "Error: Access denied - file outside project directory"},
		{"Absolute path outside root", "/etc/passwd", "Error: Access denied - file outside project directory"},
		{"Missing file", "nope.txt", "Error: File 'nope.txt' does not exist"},
		{"Inside file", "inside.txt", "File: inside.txt\nSize: 4 characters\n\nContent:\nsafe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.directRead(tt.path); got != tt.want {
				t.Errorf("directRead(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	t.Run("Directory is not a file", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Join(root, "subdir"), 0o755); err != nil {
			t.Fatal(err)
		}
		want := "Error: '" + "subdir" + "' is not a file"
		if got := r.directRead("subdir"); got != want {
			t.Errorf("directRead(subdir) = %q, want %q", got, want)
		}
	})
}

func TestFilterByPathContext(t *testing.T) {
	paths := []string{"src/config.py", "tests/config.py", "docs/config.py"}

	got := filterByPathContext(paths, "src")
	if len(got) != 1 || got[0] != "src/config.py" {
		t.Errorf("filterByPathContext = %v", got)
	}

	// 一致がなければ元の一覧を返す
	got = filterByPathContext(paths, "missing")
	if len(got) != 3 {
		t.Errorf("no-match filter should keep all paths, got %v", got)
	}

	got = filterByPathContext(paths, "")
	if len(got) != 3 {
		t.Errorf("empty context should keep all paths, got %v", got)
	}
}
