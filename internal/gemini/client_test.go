package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			}},
		},
	}
}

func TestGenerateContent_Text(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/models/gemini-flash-latest:generateContent" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Fatalf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "system text" {
			t.Fatalf("system instruction not passed: %+v", req.SystemInstruction)
		}
		if len(req.Contents) != 3 {
			t.Fatalf("contents = %d, want 3", len(req.Contents))
		}
		if req.Contents[1].Role != "model" {
			t.Fatalf("assistant turn must map to model role, got %q", req.Contents[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(textResponse("Use the Amex.")); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := newClient("test-key", "gemini-flash-latest", ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	turns := []Message{
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "hello"},
		{Role: "user", Text: "which card for dining?"},
	}

	got, err := client.GenerateContent(ctx, "system text", turns, nil)
	if err != nil {
		t.Fatalf("GenerateContent error: %v", err)
	}
	if got != "Use the Amex." {
		t.Fatalf("text = %q, want %q", got, "Use the Amex.")
	}
}

func TestGenerateContent_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer ts.Close()

	client := newClient("test-key", "gemini-flash-latest", ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GenerateContent(ctx, "", []Message{{Role: "user", Text: "hi"}}, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerateContent_ResourceExhaustedWithoutHTTP429(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"out of quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer ts.Close()

	client := newClient("test-key", "gemini-flash-latest", ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GenerateContent(ctx, "", []Message{{Role: "user", Text: "hi"}}, nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestGenerateContent_OtherErrorNotRetriable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`))
	}))
	defer ts.Close()

	client := newClient("test-key", "gemini-flash-latest", ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GenerateContent(ctx, "", []Message{{Role: "user", Text: "hi"}}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrRateLimited) {
		t.Fatalf("400 must not classify as rate limit: %v", err)
	}
}

func TestGenerateContent_ToolCallLoop(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")

		if calls == 1 {
			if len(req.Tools) != 1 {
				t.Fatalf("tools not declared: %+v", req.Tools)
			}
			resp := map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{
						"role": "model",
						"parts": []map[string]any{
							{"functionCall": map[string]any{
								"name": SearchToolName,
								"args": map[string]any{"query": "freedom flex q1 categories"},
							}},
						},
					}},
				},
			}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				t.Fatalf("encode: %v", err)
			}
			return
		}

		// Второй запрос должен содержать functionCall модели и functionResponse.
		last := req.Contents[len(req.Contents)-1]
		if last.Parts[0].FunctionResponse == nil {
			t.Fatalf("missing function response in follow-up request: %+v", last)
		}
		if last.Parts[0].FunctionResponse.Name != SearchToolName {
			t.Fatalf("function response name = %q", last.Parts[0].FunctionResponse.Name)
		}

		if err := json.NewEncoder(w).Encode(textResponse("Groceries this quarter.")); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := newClient("test-key", "gemini-flash-latest", ts.URL)

	var searchedQuery string
	search := func(ctx context.Context, query string) string {
		searchedQuery = query
		return "Search Results: groceries"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := client.GenerateContent(ctx, "system", []Message{{Role: "user", Text: "q1?"}}, search)
	if err != nil {
		t.Fatalf("GenerateContent error: %v", err)
	}
	if got != "Groceries this quarter." {
		t.Fatalf("text = %q", got)
	}
	if searchedQuery != "freedom flex q1 categories" {
		t.Fatalf("search query = %q", searchedQuery)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
