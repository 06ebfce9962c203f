// Package websearch は DuckDuckGo Instant Answer API を使った検索ツールを提供する。
// APIキー不要。レート制限つきで問い合わせ、即答が無いときは定型文を返す。
package websearch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nyukimin/personaclaw/pkg/logger"
	"github.com/Nyukimin/personaclaw/pkg/mcp"
)

const (
	defaultBaseURL    = "https://api.duckduckgo.com/"
	userAgent         = "PersonaClaw-MCP/1.0 (Educational Purpose)"
	requestTimeout    = 10 * time.Second
	maxQueryRunes     = 500
	defaultMaxResults = 5
	topicTextRunes    = 100
)

// Searcher は DuckDuckGo への問い合わせと結果整形を担当
type Searcher struct {
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	lastReq time.Time
	minGap  time.Duration
}

// NewSearcher は新しいSearcherを作成
func NewSearcher() *Searcher {
	return &Searcher{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
		minGap:  time.Second,
	}
}

// Register は検索ツール群をサーバーに登録する
func (s *Searcher) Register(srv *mcp.Server) {
	srv.Register(mcp.Tool{
		Name:        "web_search",
		Description: "Search the web using DuckDuckGo",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"query": mcp.StringProperty("Search query string"),
		}, []string{"query"}),
	}, s.webSearch)

	srv.Register(mcp.Tool{
		Name:        "search_with_filters",
		Description: "Search the web with additional filtering options",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"query": mcp.StringProperty("Search query string"),
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of results to return (1-10)",
			},
		}, []string{"query"}),
	}, s.searchWithFilters)

	srv.Register(mcp.Tool{
		Name:        "search_definitions",
		Description: "Search for definitions of a specific term",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"term": mcp.StringProperty("Term to define"),
		}, []string{"term"}),
	}, s.searchDefinitions)

	srv.Register(mcp.Tool{
		Name:        "search_how_to",
		Description: "Search for how-to information on a specific topic",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{
			"topic": mcp.StringProperty("Topic to search how-to information for"),
		}, []string{"topic"}),
	}, s.searchHowTo)

	srv.Register(mcp.Tool{
		Name:        "get_search_info",
		Description: "Get information about the web search capabilities",
		InputSchema: mcp.ObjectSchema(map[string]interface{}{}, nil),
	}, s.getSearchInfo)
}

func (s *Searcher) webSearch(args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: Please provide a search query"
	}
	return s.Search(strings.TrimSpace(query), defaultMaxResults)
}

func (s *Searcher) searchWithFilters(args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "Error: Please provide a search query"
	}

	maxResults := defaultMaxResults
	if v, ok := args["max_results"].(float64); ok {
		maxResults = int(v)
	}
	return s.Search(strings.TrimSpace(query), maxResults)
}

func (s *Searcher) searchDefinitions(args map[string]interface{}) string {
	term, _ := args["term"].(string)
	if strings.TrimSpace(term) == "" {
		return "Error: Please provide a term to define"
	}
	return s.Search("define "+strings.TrimSpace(term), defaultMaxResults)
}

func (s *Searcher) searchHowTo(args map[string]interface{}) string {
	topic, _ := args["topic"].(string)
	if strings.TrimSpace(topic) == "" {
		return "Error: Please provide a topic"
	}
	return s.Search("how to "+strings.TrimSpace(topic), defaultMaxResults)
}

func (s *Searcher) getSearchInfo(args map[string]interface{}) string {
	return searchInfoText
}

// Search はクエリを検索して整形済みテキストを返す。
// maxResults は 1〜10 に丸める
func (s *Searcher) Search(query string, maxResults int) string {
	s.rateLimit()

	clean := strings.TrimSpace(query)
	if clean == "" {
		return "Error: Empty search query"
	}
	clean = truncateRunes(clean, maxQueryRunes)

	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 10 {
		maxResults = 10
	}

	if result, ok := s.instantAnswer(clean, maxResults); ok {
		return result
	}
	return fallbackResult(clean)
}

// rateLimit は連続リクエストの間隔を minGap 以上に保つ
func (s *Searcher) rateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elapsed := time.Since(s.lastReq); elapsed < s.minGap {
		time.Sleep(s.minGap - elapsed)
	}
	s.lastReq = time.Now()
}

type instantAnswerResponse struct {
	Abstract         string          `json:"Abstract"`
	AbstractSource   string          `json:"AbstractSource"`
	Definition       string          `json:"Definition"`
	DefinitionSource string          `json:"DefinitionSource"`
	Answer           string          `json:"Answer"`
	AnswerType       string          `json:"AnswerType"`
	RelatedTopics    []relatedTopic  `json:"RelatedTopics"`
	Infobox          json.RawMessage `json:"Infobox"`
}

type relatedTopic struct {
	Text string `json:"Text"`
}

type infobox struct {
	Content []infoboxItem `json:"content"`
}

type infoboxItem struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
}

// instantAnswer は即答APIを叩いて整形する。即答が無い・失敗した場合は ok=false
func (s *Searcher) instantAnswer(query string, maxResults int) (string, bool) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL, nil)
	if err != nil {
		return "", false
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		logger.WarnCF("websearch", "duckduckgo request failed", map[string]interface{}{"error": err.Error()})
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.WarnCF("websearch", "duckduckgo returned an error status", map[string]interface{}{"status": resp.StatusCode})
		return "", false
	}

	var data instantAnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		logger.WarnCF("websearch", "failed to decode duckduckgo response", map[string]interface{}{"error": err.Error()})
		return "", false
	}

	var parts []string

	if data.Abstract != "" {
		parts = append(parts, fmt.Sprintf("📄 **Answer**: %s", data.Abstract))
		if data.AbstractSource != "" {
			parts = append(parts, fmt.Sprintf("   Source: %s", data.AbstractSource))
		}
	}

	if data.Definition != "" {
		parts = append(parts, fmt.Sprintf("📖 **Definition**: %s", data.Definition))
		if data.DefinitionSource != "" {
			parts = append(parts, fmt.Sprintf("   Source: %s", data.DefinitionSource))
		}
	}

	if data.Answer != "" {
		parts = append(parts, fmt.Sprintf("💡 **Direct Answer**: %s", data.Answer))
		if data.AnswerType != "" {
			parts = append(parts, fmt.Sprintf("   Type: %s", data.AnswerType))
		}
	}

	if topics := data.RelatedTopics; len(topics) > 0 {
		if len(topics) > maxResults {
			topics = topics[:maxResults]
		}
		parts = append(parts, "\n🔗 **Related Topics**:")
		for i, topic := range topics {
			if topic.Text == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("   %d. %s...", i+1, truncateRunes(topic.Text, topicTextRunes)))
		}
	}

	if len(data.Infobox) > 0 {
		var box infobox
		// Infobox は空のとき文字列で返ることがあるため、読めなければ無視する
		if err := json.Unmarshal(data.Infobox, &box); err == nil && len(box.Content) > 0 {
			parts = append(parts, "\n📋 **Key Information**:")
			items := box.Content
			if len(items) > maxResults {
				items = items[:maxResults]
			}
			for _, item := range items {
				if item.Label == "" || item.Value == nil {
					continue
				}
				value := fmt.Sprintf("%v", item.Value)
				if value == "" {
					continue
				}
				parts = append(parts, fmt.Sprintf("   • %s: %s", item.Label, value))
			}
		}
	}

	if len(parts) == 0 {
		return "", false
	}

	header := fmt.Sprintf("🔍 **Search Results for: \"%s\"**\n", query)
	return header + strings.Join(parts, "\n"), true
}

// fallbackResult は即答が得られなかったときの定型文
func fallbackResult(query string) string {
	return fmt.Sprintf(`🔍 **Search Results for: "%s"**

📄 **Web Search Executed**: Your query has been processed using DuckDuckGo search.

💡 **Suggested Information**:
   • This appears to be a query about: %s
   • For more detailed information, you might want to refine your search terms
   • Try asking more specific questions about the topic

🔗 **Search Tips**:
   • Use specific keywords related to your topic
   • Try asking "What is..." or "How does..." questions
   • Include context or domain-specific terms

**Note**: This search used DuckDuckGo's free API. For comprehensive results, consider using multiple search terms or more specific queries.`, query, query)
}

const searchInfoText = `🔍 **Web Search Server Information**

**Search Provider**: DuckDuckGo Instant Answer API
**Features**:
   • Free web search (no API key required)
   • Instant answers and definitions
   • Related topics and key information
   • Rate limiting for responsible usage
   • Support for various query types

**Available Tools**:
   • web_search: Basic web search
   • search_with_filters: Search with result limits
   • search_definitions: Term definitions
   • search_how_to: How-to information

**Rate Limiting**: 1 request per second to respect DuckDuckGo's terms
**Query Limits**: Maximum 500 characters per query
**Privacy**: No tracking, uses DuckDuckGo's privacy-focused search
`

// truncateRunes は文字数（ルーン数）で切り詰める
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
