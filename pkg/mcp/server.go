package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Nyukimin/personaclaw/pkg/logger"
)

// ToolFunc はツール1つの実装。結果は表示可能なテキストとして返す
type ToolFunc func(args map[string]interface{}) string

// Server は標準入出力上で MCP プロトコルを話すツールサーバー
type Server struct {
	name     string
	version  string
	tools    []Tool
	handlers map[string]ToolFunc
}

// NewServer は新しいツールサーバーを作成
func NewServer(name, version string) *Server {
	return &Server{
		name:     name,
		version:  version,
		handlers: make(map[string]ToolFunc),
	}
}

// Register はツールを登録（登録順が tools/list の順になる）
func (s *Server) Register(tool Tool, fn ToolFunc) {
	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = fn
}

// Serve は r からリクエストを1行ずつ読み、w にレスポンスを書く。
// r が EOF になるまでブロックする。診断情報は標準エラーに出る。
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.WarnCF("mcpserver", "invalid request line", map[string]interface{}{
				"server": s.name,
				"error":  err.Error(),
			})
			continue
		}

		resp, reply := s.dispatch(req)
		if !reply {
			continue
		}

		if err := writeLine(out, resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	return nil
}

// dispatch はメソッド別にリクエストを処理。reply=false は通知（応答なし）
func (s *Server) dispatch(req MCPRequest) (MCPResponse, bool) {
	switch req.Method {
	case "initialize":
		return MCPResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Result: map[string]interface{}{
				"protocolVersion": ProtocolVersion,
				"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
				"serverInfo":      map[string]interface{}{"name": s.name, "version": s.version},
			},
		}, true

	case "notifications/initialized":
		return MCPResponse{}, false

	case "tools/list":
		return MCPResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Result:  map[string]interface{}{"tools": s.tools},
		}, true

	case "tools/call":
		return s.callTool(req), true

	default:
		// 未知の通知は無視、未知のリクエストにはエラーを返す
		if req.ID == nil {
			return MCPResponse{}, false
		}
		return MCPResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &MCPError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)},
		}, true
	}
}

func (s *Server) callTool(req MCPRequest) MCPResponse {
	name, _ := req.Params["name"].(string)
	args, _ := req.Params["arguments"].(map[string]interface{})

	fn, ok := s.handlers[name]
	if !ok {
		return MCPResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &MCPError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", name)},
		}
	}

	text, err := s.runTool(name, fn, args)
	if err != nil {
		return MCPResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &MCPError{Code: CodeInternalError, Message: err.Error()},
		}
	}

	return MCPResponse{
		JSONRPC: JSONRPCVersion,
		ID:      req.ID,
		Result:  map[string]interface{}{"content": []map[string]interface{}{TextContent(text)}},
	}
}

// runTool はツール関数の panic を回復してエラーに変換
func (s *Server) runTool(name string, fn ToolFunc, args map[string]interface{}) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", name, r)
		}
	}()
	return fn(args), nil
}

func writeLine(out *bufio.Writer, resp MCPResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return err
	}
	return out.Flush()
}
