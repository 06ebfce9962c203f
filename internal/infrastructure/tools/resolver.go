package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Nyukimin/personaclaw/internal/infrastructure/mcp"
	"github.com/Nyukimin/personaclaw/pkg/logger"
)

const (
	// maxScanDepth はプロジェクト走査の深さ上限
	maxScanDepth = 12
	// maxScanFiles はプロジェクト走査で収集するファイル数の上限
	maxScanFiles = 5000
	// maxSuggestions は類似候補の提示数上限
	maxSuggestions = 5
)

// excludedPathParts は走査から外すパス断片（小文字で比較する）
var excludedPathParts = []string{
	".venv/", "venv/", "env/", ".env/",
	"node_modules/", "__pycache__/", ".git/",
	"site-packages/", "dist-packages/",
	".cache/", "build/", "dist/", ".tox/",
	".vscode/", ".idea/", ".vs/",
	".ds_store", "thumbs.db",
}

// ToolCaller は名前付きサーバーへのツール呼び出しを提供する
type ToolCaller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]interface{}) mcp.CallResult
}

// Resolver はファイル名をプロジェクト内の実ファイルへ解決する。
// サーバー経由の読み取りを最初に試し、接続がなければローカル読み取りへ、
// 見つからなければ境界付きの走査で候補を探す
type Resolver struct {
	caller ToolCaller
	root   string
}

// NewResolver はリゾルバを作成する。root が空ならカレントディレクトリを使う
func NewResolver(caller ToolCaller, root string) *Resolver {
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		} else {
			root = "."
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{caller: caller, root: root}
}

// Resolve はファイル名を解決して内容または案内文を返す
func (r *Resolver) Resolve(ctx context.Context, filename, userMessage string) string {
	result := r.caller.CallTool(ctx, ServerFilesystem, "read_file", map[string]interface{}{
		"file_path": filename,
	})

	serverDown := !result.OK() && result.Kind() == mcp.KindNotInitialized
	notFound := result.OK() &&
		strings.Contains(result.Text(), "Error: File") &&
		strings.Contains(result.Text(), "does not exist")

	if !serverDown && !notFound {
		return result.Display()
	}

	if serverDown {
		if direct := r.directRead(filename); !strings.HasPrefix(direct, "Error:") {
			return direct
		}
	}

	pathContext := ""
	if userMessage != "" {
		pathContext = ExtractPathContext(userMessage)
	}
	logger.InfoCF("tools", "searching project for file", map[string]interface{}{
		"filename":     filename,
		"path_context": pathContext,
	})

	exact, similar, sizes := r.scanProject(filename, pathContext)

	switch {
	case len(exact) == 1:
		found := exact[0]
		logger.InfoCF("tools", "resolved file", map[string]interface{}{"path": found})
		remote := r.caller.CallTool(ctx, ServerFilesystem, "read_file", map[string]interface{}{
			"file_path": found,
		})
		if !remote.OK() && remote.Kind() == mcp.KindNotInitialized {
			return r.directRead(found)
		}
		return remote.Display()

	case len(exact) > 1:
		var b strings.Builder
		fmt.Fprintf(&b, "📁 Multiple files named '%s' found:\n", filename)
		for i, path := range exact {
			if size, ok := sizes[path]; ok {
				fmt.Fprintf(&b, "%d. %s (%d characters)\n", i+1, path, size)
			} else {
				fmt.Fprintf(&b, "%d. %s\n", i+1, path)
			}
		}
		b.WriteString("\nPlease specify the full path or use a more specific query to disambiguate.")
		return b.String()

	case len(similar) > 0:
		var b strings.Builder
		fmt.Fprintf(&b, "❌ File '%s' not found. Did you mean:\n", filename)
		for i, path := range similar {
			if i == maxSuggestions {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, path)
		}
		b.WriteString("\nPlease specify the correct filename or full path.")
		return b.String()

	default:
		return fmt.Sprintf("❌ File '%s' not found in project. Use 'list directory' to see available files.", filename)
	}
}

// directRead はプロジェクトルート配下に限定したローカル読み取り
func (r *Resolver) directRead(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "Error: Access denied - file outside project directory"
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Sprintf("Error: File '%s' does not exist", path)
	}
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: '%s' is not a file", path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", path, err)
	}
	content := string(data)
	return fmt.Sprintf("File: %s\nSize: %d characters\n\nContent:\n%s", path, utf8.RuneCountInString(content), content)
}

// scanProject はルート配下を走査して完全一致と類似候補を集める。
// 深さとファイル数に上限を設け、仮想環境などの生成物ディレクトリは飛ばす
func (r *Resolver) scanProject(filename, pathContext string) (exact, similar []string, sizes map[string]int) {
	sizes = make(map[string]int)

	type entry struct {
		name string
		path string
	}
	var all []entry
	count := 0

	_ = filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(r.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if strings.Count(rel, "/") >= maxScanDepth {
				return fs.SkipDir
			}
			if shouldExcludePath(rel + "/") {
				return fs.SkipDir
			}
			return nil
		}
		if shouldExcludePath(rel) {
			return nil
		}
		count++
		if count > maxScanFiles {
			return fs.SkipAll
		}

		size := 0
		if info, infoErr := d.Info(); infoErr == nil {
			size = int(info.Size())
		}
		all = append(all, entry{name: d.Name(), path: rel})
		sizes[rel] = size
		if d.Name() == filename {
			exact = append(exact, rel)
		}
		return nil
	})

	if pathContext != "" {
		exact = filterByPathContext(exact, pathContext)
	}
	if len(exact) == 0 {
		for _, e := range all {
			if isSimilarFilename(filename, e.name) {
				similar = append(similar, e.path)
			}
		}
		if pathContext != "" {
			similar = filterByPathContext(similar, pathContext)
		}
	}
	return exact, similar, sizes
}

func shouldExcludePath(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range excludedPathParts {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// filterByPathContext は手がかりを含むパスだけに絞る。全滅する場合は絞らない
func filterByPathContext(paths []string, pathContext string) []string {
	if pathContext == "" {
		return paths
	}
	context := strings.ToLower(strings.TrimRight(pathContext, "/"))
	var filtered []string
	for _, p := range paths {
		lower := strings.ToLower(p)
		if strings.Contains(lower, context) || strings.HasPrefix(lower, context+"/") {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return paths
	}
	return filtered
}

// isSimilarFilename は拡張子を除いた部分で緩い類似判定を行う
func isSimilarFilename(target, candidate string) bool {
	targetBase := stripExtension(strings.ToLower(target))
	candidateBase := stripExtension(strings.ToLower(candidate))

	if strings.Contains(candidateBase, targetBase) || strings.Contains(targetBase, candidateBase) {
		return true
	}

	diff := len(targetBase) - len(candidateBase)
	if diff >= -2 && diff <= 2 {
		mismatches := 0
		n := min(len(targetBase), len(candidateBase))
		for i := 0; i < n; i++ {
			if targetBase[i] != candidateBase[i] {
				mismatches++
			}
		}
		if mismatches <= 2 {
			return true
		}
	}

	return strings.HasPrefix(candidateBase, targetBase) || strings.HasPrefix(targetBase, candidateBase)
}

func stripExtension(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
