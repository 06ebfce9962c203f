// Package fs はプロジェクトディレクトリ内に閉じたファイル操作ツールを提供する。
// パスはすべてルート基準で解決し、ルート外へのアクセスは拒否する。
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Nyukimin/personaclaw/pkg/mcp"
)

var errAccessDenied = errors.New("Access denied: Path outside project directory")

// Service はルート配下に制限したファイルシステムツール群
type Service struct {
	root string
}

// NewService はルートを絶対パスに解決してServiceを作成
func NewService(root string) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	return &Service{root: abs}, nil
}

// Root は解決済みのルートディレクトリを返す
func (s *Service) Root() string {
	return s.root
}

// Register は全ツールをサーバーに登録する
func (s *Service) Register(srv *mcp.Server) {
	srv.Register(mcp.Tool{
		Name:        "read_file",
		Description: "Read contents of a file within the project directory",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"file_path": mcp.StringProperty("Path to the file to read (relative to project root or absolute)"),
		}, []string{"file_path"}),
	}, s.readFile)

	srv.Register(mcp.Tool{
		Name:        "write_file",
		Description: "Write content to a file within the project directory",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"file_path": mcp.StringProperty("Path to the file to write (relative to project root or absolute)"),
			"content":   mcp.StringProperty("Content to write to the file"),
		}, []string{"file_path", "content"}),
	}, s.writeFile)

	srv.Register(mcp.Tool{
		Name:        "list_directory",
		Description: "List contents of a directory within the project",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"dir_path": mcp.StringProperty("Path to the directory to list (relative to project root or absolute)"),
		}, nil),
	}, s.listDirectory)

	srv.Register(mcp.Tool{
		Name:        "file_exists",
		Description: "Check if a file or directory exists within the project",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"file_path": mcp.StringProperty("Path to check (relative to project root or absolute)"),
		}, []string{"file_path"}),
	}, s.fileExists)

	srv.Register(mcp.Tool{
		Name:        "get_project_info",
		Description: "Get information about the current project directory",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{}, nil),
	}, s.getProjectInfo)
}

// resolvePath は相対パスをルート基準で解決し、ルート外を拒否する
func (s *Service) resolvePath(p string) (string, error) {
	var candidate string
	if filepath.IsAbs(p) {
		candidate = filepath.Clean(p)
	} else {
		candidate = filepath.Join(s.root, p)
	}

	if candidate != s.root && !strings.HasPrefix(candidate, s.root+string(filepath.Separator)) {
		return "", errAccessDenied
	}
	return candidate, nil
}

func (s *Service) readFile(args map[string]interface{}) string {
	filePath, _ := args["file_path"].(string)

	path, err := s.resolvePath(filePath)
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", filePath, err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: File '%s' does not exist", filePath)
	}
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", filePath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: '%s' is not a file", filePath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error reading file '%s': %v", filePath, err)
	}

	content := string(data)
	return fmt.Sprintf("File: %s\nSize: %d characters\n\nContent:\n%s", filePath, utf8.RuneCountInString(content), content)
}

func (s *Service) writeFile(args map[string]interface{}) string {
	filePath, _ := args["file_path"].(string)
	content, _ := args["content"].(string)

	path, err := s.resolvePath(filePath)
	if err != nil {
		return fmt.Sprintf("Error writing to file '%s': %v", filePath, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Sprintf("Error writing to file '%s': %v", filePath, err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Sprintf("Error writing to file '%s': %v", filePath, err)
	}

	return fmt.Sprintf("Successfully wrote %d characters to '%s'", utf8.RuneCountInString(content), filePath)
}

func (s *Service) listDirectory(args map[string]interface{}) string {
	dirPath, _ := args["dir_path"].(string)
	if dirPath == "" {
		dirPath = "."
	}

	path, err := s.resolvePath(dirPath)
	if err != nil {
		return fmt.Sprintf("Error listing directory '%s': %v", dirPath, err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: Directory '%s' does not exist", dirPath)
	}
	if err != nil {
		return fmt.Sprintf("Error listing directory '%s': %v", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a directory", dirPath)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Sprintf("Error listing directory '%s': %v", dirPath, err)
	}

	var items []string
	for _, entry := range entries {
		// シンボリックリンクは参照先の種別で表示する
		fi, err := os.Stat(filepath.Join(path, entry.Name()))
		switch {
		case err != nil:
			items = append(items, fmt.Sprintf("🔗 %s", entry.Name()))
		case fi.Mode().IsRegular():
			items = append(items, fmt.Sprintf("📄 %s (%d bytes)", entry.Name(), fi.Size()))
		case fi.IsDir():
			items = append(items, fmt.Sprintf("📁 %s/", entry.Name()))
		default:
			items = append(items, fmt.Sprintf("🔗 %s", entry.Name()))
		}
	}

	if len(items) == 0 {
		return fmt.Sprintf("Directory '%s' is empty", dirPath)
	}

	return fmt.Sprintf("Directory listing for '%s':\n%s", dirPath, strings.Join(items, "\n"))
}

func (s *Service) fileExists(args map[string]interface{}) string {
	filePath, _ := args["file_path"].(string)

	path, err := s.resolvePath(filePath)
	if err != nil {
		return fmt.Sprintf("Error checking path '%s': %v", filePath, err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Path '%s' does not exist", filePath)
	}
	if err != nil {
		return fmt.Sprintf("Error checking path '%s': %v", filePath, err)
	}

	switch {
	case info.Mode().IsRegular():
		return fmt.Sprintf("File '%s' exists (%d bytes)", filePath, info.Size())
	case info.IsDir():
		return fmt.Sprintf("Directory '%s' exists", filePath)
	default:
		return fmt.Sprintf("Path '%s' exists (special file type)", filePath)
	}
}

func (s *Service) getProjectInfo(args map[string]interface{}) string {
	var totalFiles, totalDirs int
	var totalSize int64

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // 読めない場所はスキップ
		}
		if d.IsDir() {
			if path != s.root {
				totalDirs++
			}
			return nil
		}
		if d.Type().IsRegular() {
			totalFiles++
			if fi, err := d.Info(); err == nil {
				totalSize += fi.Size()
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Sprintf("Error getting project info: %v", err)
	}

	return fmt.Sprintf("Project Information:\nRoot Directory: %s\nTotal Files: %d\nTotal Directories: %d\nTotal Size: %s bytes\n",
		s.root, totalFiles, totalDirs, groupDigits(totalSize))
}

// groupDigits は 1234567 を 1,234,567 の形式にする
func groupDigits(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
