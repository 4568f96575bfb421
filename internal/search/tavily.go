// Package search реализует поисковый инструмент агента на базе Tavily.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.tavily.com"

// trustedDomains — фиксированный белый список источников. Поиск ограничен
// этими сайтами: смесь английских и китайских сообществ по кредитным картам.
var trustedDomains = []string{
	"doctorofcredit.com",
	"uscreditcardguide.com",
	"uscardforum.com",
	"thepointsguy.com",
	"reddit.com",
	"frequentmiler.com",
}

// ErrAPIKeyMissing возвращается конструктором, если ключ Tavily не задан.
var ErrAPIKeyMissing = errors.New("tavily api key is missing")

// Tool инкапсулирует HTTP-взаимодействие с Tavily и форматирование результатов
// в текстовый блок для LLM.
type Tool struct {
	apiKey  string
	baseURL string
	client  *retryablehttp.Client
	logger  *zap.Logger
}

// NewTool создаёт поисковый инструмент. Отсутствие ключа — ошибка
// конфигурации, она должна останавливать запуск сервиса.
func NewTool(apiKey string, logger *zap.Logger) (*Tool, error) {
	return newTool(apiKey, defaultBaseURL, logger)
}

func newTool(apiKey, baseURL string, logger *zap.Logger) (*Tool, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAPIKeyMissing
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	client.HTTPClient.Timeout = 15 * time.Second

	return &Tool{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeAnswer  bool     `json:"include_answer"`
	IncludeDomains []string `json:"include_domains"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search выполняет запрос к Tavily и возвращает единый текстовый блок.
// Любая ошибка провайдера превращается в текст с описанием ошибки:
// для слоя вызова инструментов это корректный результат, а не сбой диалога.
func (t *Tool) Search(ctx context.Context, query string) string {
	t.logger.Info("searching with tavily", zap.String("query", query))

	text, err := t.search(ctx, query)
	if err != nil {
		t.logger.Error("tavily search failed", zap.Error(err))
		return fmt.Sprintf("Error searching web: %v", err)
	}
	return text
}

func (t *Tool) search(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:         t.apiKey,
		Query:          query,
		SearchDepth:    "advanced",
		MaxResults:     5,
		IncludeAnswer:  true,
		IncludeDomains: trustedDomains,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", payload)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return formatResults(result), nil
}

// formatResults собирает текстовый блок для LLM: необязательный прямой ответ
// и блоки источников, помеченные как китайские или английские по URL.
func formatResults(result searchResponse) string {
	var b strings.Builder
	b.WriteString("Search Results from Trusted Community (USCreditCardGuide/DoC/Reddit):\n\n")

	if result.Answer != "" {
		fmt.Fprintf(&b, "Direct Answer: %s\n\n", result.Answer)
	}

	for _, res := range result.Results {
		fmt.Fprintf(&b, "--- Source %s: [%s](%s) ---\n", sourceTag(res.URL), res.Title, res.URL)
		fmt.Fprintf(&b, "Content: %s\n\n", res.Content)
	}

	return b.String()
}

// sourceTag эвристически определяет язык источника по URL.
func sourceTag(url string) string {
	if strings.Contains(url, "uscard") || strings.Contains(url, "guide") {
		return "[CN]"
	}
	return "[EN]"
}
