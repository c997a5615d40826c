package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	applog "hybridrag/internal/platform/log"
)

// noResultsMessage 无结果时返回的单条占位文本
const noResultsMessage = "No web results found for your query."

// Client DuckDuckGo HTML 搜索客户端。
// 走 html.duckduckgo.com 的无 JS 页面，用 goquery 解析结果列表。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config 搜索客户端配置
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// NewClient 创建搜索客户端
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Search 搜索并返回已格式化的结果片段，最多 maxResults 条。
// 传输层失败返回错误；请求成功但无结果返回单条占位文本。
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	endpoint := c.baseURL + "/html/?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	// 不带 UA 会被挡
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []string
	doc.Find("div.result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}

		link := sel.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())

		results = append(results, fmt.Sprintf("[%d] %s\n%s\nSource: %s",
			len(results)+1, title, snippet, resolveRedirect(href)))
		return true
	})

	applog.Debug("[WebSearch] Search completed", "query", query, "results", len(results))

	if len(results) == 0 {
		return []string{noResultsMessage}, nil
	}
	return results, nil
}

// resolveRedirect 解出 DuckDuckGo 跳转链接里的真实地址（uddg 参数）
func resolveRedirect(href string) string {
	if href == "" {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
