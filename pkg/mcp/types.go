package mcp

// JSONRPCVersion は JSON-RPC のバージョン文字列
const JSONRPCVersion = "2.0"

// ProtocolVersion は MCP プロトコルバージョン
const ProtocolVersion = "2024-11-05"

// MCPRequest は MCP サーバーへのリクエスト（1行1オブジェクトで送信）
type MCPRequest struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *int64                 `json:"id,omitempty"` // 通知の場合は nil
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// MCPResponse は MCP サーバーからのレスポンス（1行1オブジェクト）
type MCPResponse struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *int64                 `json:"id,omitempty"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *MCPError              `json:"error,omitempty"`
}

// MCPError は MCP エラー
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 標準エラーコード
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Tool は MCP ツール定義
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ToolListResponse は tools/list のレスポンス
type ToolListResponse struct {
	Tools []Tool `json:"tools"`
}

// ToolCallRequest は tools/call のリクエスト
type ToolCallRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse は tools/call のレスポンス
type ToolCallResponse struct {
	Content []map[string]interface{} `json:"content"`
}

// ClientInfo は initialize リクエストのクライアント情報
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewRequest は id 付きリクエストを作成
func NewRequest(id int64, method string, params map[string]interface{}) MCPRequest {
	return MCPRequest{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification は id なしの通知を作成
func NewNotification(method string, params map[string]interface{}) MCPRequest {
	return MCPRequest{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// TextContent は text 型のコンテンツ項目を作成
func TextContent(text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "text",
		"text": text,
	}
}

// ObjectSchema は object 型の入力スキーマを作成
func ObjectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty は説明付きの string プロパティを作成
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}
