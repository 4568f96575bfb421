// Package gemini предоставляет клиент Gemini API с поддержкой вызова
// поискового инструмента.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// SearchToolName — имя поисковой функции, которую модель может вызывать.
const SearchToolName = "search_credit_card_info"

// maxToolRounds ограничивает число циклов вызова инструмента в одном ответе.
const maxToolRounds = 4

// ErrRateLimited возвращается при исчерпании квоты API (HTTP 429 или
// статус RESOURCE_EXHAUSTED). Оркестратор повторяет такие запросы.
var ErrRateLimited = errors.New("gemini: rate limited")

// Message — одна реплика диалога. Role: "user" или "model".
type Message struct {
	Role string
	Text string
}

// SearchFunc выполняет поисковый запрос инструмента и возвращает текстовый
// блок результатов. Ошибки провайдера уже свёрнуты в текст.
type SearchFunc func(ctx context.Context, query string) string

// Client инкапсулирует HTTP-взаимодействие с Gemini API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создаёт клиент Gemini для указанной модели.
func NewClient(apiKey, model string) *Client {
	return newClient(apiKey, model, defaultBaseURL)
}

func newClient(apiKey, model, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	Tools             []toolDeclaration `json:"tools,omitempty"`
}

type toolDeclaration struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *schema `json:"parameters,omitempty"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// searchToolDeclaration описывает поисковый инструмент для модели.
var searchToolDeclaration = toolDeclaration{
	FunctionDeclarations: []functionDeclaration{{
		Name: SearchToolName,
		Description: "Search for real-time credit card benefits, quarterly categories and latest data points. " +
			"Searches both English sources (Doctor of Credit, Reddit) and Chinese sources (USCreditCardGuide, USCardForum).",
		Parameters: &schema{
			Type: "object",
			Properties: map[string]schema{
				"query": {Type: "string"},
			},
			Required: []string{"query"},
		},
	}},
}

// GenerateContent отправляет системную инструкцию и упорядоченные реплики
// диалога в модель. Если search не nil, модели доступен поисковый инструмент:
// вызовы функции выполняются синхронно, результат возвращается модели, цикл
// повторяется до текстового ответа либо до лимита раундов.
func (c *Client) GenerateContent(ctx context.Context, systemInstruction string, turns []Message, search SearchFunc) (string, error) {
	contents := make([]content, 0, len(turns))
	for _, turn := range turns {
		role := turn.Role
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: turn.Text}},
		})
	}

	req := generateRequest{Contents: contents}
	if systemInstruction != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}
	if search != nil {
		req.Tools = []toolDeclaration{searchToolDeclaration}
	}

	for round := 0; round <= maxToolRounds; round++ {
		candidate, err := c.generate(ctx, &req)
		if err != nil {
			return "", err
		}

		call := findFunctionCall(candidate)
		if call == nil || search == nil {
			return collectText(candidate), nil
		}

		query, _ := call.Args["query"].(string)
		result := search(ctx, query)

		req.Contents = append(req.Contents, candidate, content{
			Role: "user",
			Parts: []part{{
				FunctionResponse: &functionResponse{
					Name:     call.Name,
					Response: map[string]any{"result": result},
				},
			}},
		})
	}

	return "", fmt.Errorf("gemini: tool call limit of %d rounds exceeded", maxToolRounds)
}

// generate выполняет один HTTP-запрос generateContent и классифицирует ошибки.
func (c *Client) generate(ctx context.Context, req *generateRequest) (content, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return content{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return content{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return content{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return content{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		_ = json.Unmarshal(body, &apiErr)

		if resp.StatusCode == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
			return content{}, fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error.Message)
		}
		if apiErr.Error.Message != "" {
			return content{}, fmt.Errorf("gemini api error %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return content{}, fmt.Errorf("gemini api: unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return content{}, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Candidates) == 0 {
		return content{}, errors.New("gemini api: empty candidates")
	}

	return result.Candidates[0].Content, nil
}

func findFunctionCall(c content) *functionCall {
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			return p.FunctionCall
		}
	}
	return nil
}

func collectText(c content) string {
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}
