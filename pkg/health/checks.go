package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaCheck はOllamaサーバの疎通を確認する
func OllamaCheck(baseURL string, timeout time.Duration) CheckFunc {
	client := &http.Client{Timeout: timeout}
	return func() (bool, string) {
		resp, err := client.Get(baseURL)
		if err != nil {
			return false, fmt.Sprintf("unreachable: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Sprintf("status %d", resp.StatusCode)
		}
		return true, "ok"
	}
}

// ModelRequirement はロード済みモデルに求める条件
type ModelRequirement struct {
	Name       string // モデル名（例: llama3.2:latest）
	MinContext int    // 0でなければこの値未満はNG
	MaxContext int    // 0でなければこの値超過はNG
}

// violation はコンテキスト長が条件を満たさない場合に診断文字列を返す。
// 満たしていれば空文字列
func (r ModelRequirement) violation(ctxLen int) string {
	if r.MinContext > 0 && ctxLen < r.MinContext {
		return fmt.Sprintf("%s(ctx=%d,want>=%d)", r.Name, ctxLen, r.MinContext)
	}
	if r.MaxContext > 0 && ctxLen > r.MaxContext {
		return fmt.Sprintf("%s(ctx=%d,want<=%d)", r.Name, ctxLen, r.MaxContext)
	}
	return ""
}

type loadedModel struct {
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}

type ollamaPsResponse struct {
	Models []loadedModel `json:"models"`
}

// OllamaModelsCheck は必要なモデルがロード済みで、コンテキスト長が条件を
// 満たしているかを /api/ps で確認する
func OllamaModelsCheck(baseURL string, timeout time.Duration, required []ModelRequirement) CheckFunc {
	client := &http.Client{Timeout: timeout}
	psURL := strings.TrimSuffix(baseURL, "/") + "/api/ps"

	return func() (bool, string) {
		resp, err := client.Get(psURL)
		if err != nil {
			return false, fmt.Sprintf("unreachable: %v", err)
		}
		defer resp.Body.Close()

		var ps ollamaPsResponse
		if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
			return false, fmt.Sprintf("decode error: %v", err)
		}

		loaded := make(map[string]int, len(ps.Models))
		for _, m := range ps.Models {
			loaded[m.Name] = m.ContextLength
		}

		var missing, badCtx []string
		for _, req := range required {
			ctxLen, ok := loaded[req.Name]
			if !ok {
				missing = append(missing, req.Name)
				continue
			}
			if v := req.violation(ctxLen); v != "" {
				badCtx = append(badCtx, v)
			}
		}

		if len(missing) > 0 {
			return false, "not loaded: " + strings.Join(missing, ", ")
		}
		if len(badCtx) > 0 {
			return false, "context mismatch: " + strings.Join(badCtx, ", ")
		}
		return true, fmt.Sprintf("%d/%d models ok", len(required), len(required))
	}
}

// ToolLister はツールサーバのツール一覧を取得できるもの
type ToolLister interface {
	ListTools(ctx context.Context, serverName string) []string
}

// ToolServerCheck はツールサーバが少なくとも1つのツールを公開しているか確認する
func ToolServerCheck(lister ToolLister, serverName string, timeout time.Duration) CheckFunc {
	return func() (bool, string) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		tools := lister.ListTools(ctx, serverName)
		if len(tools) == 0 {
			return false, "no tools available"
		}
		return true, fmt.Sprintf("%d tools", len(tools))
	}
}
