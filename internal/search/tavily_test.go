package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestTool(t *testing.T, baseURL string) *Tool {
	t.Helper()

	tool, err := newTool("test-key", baseURL, zap.NewNop())
	if err != nil {
		t.Fatalf("new tool: %v", err)
	}
	return tool
}

func TestNewTool_MissingKey(t *testing.T) {
	if _, err := NewTool("", zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing api key")
	}
	if _, err := NewTool("   ", zap.NewNop()); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}

func TestSearch_FormatsResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Fatalf("path = %s, want /search", r.URL.Path)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SearchDepth != "advanced" {
			t.Fatalf("search_depth = %q, want advanced", req.SearchDepth)
		}
		if req.MaxResults != 5 {
			t.Fatalf("max_results = %d, want 5", req.MaxResults)
		}
		if !req.IncludeAnswer {
			t.Fatalf("include_answer must be true")
		}
		if len(req.IncludeDomains) != len(trustedDomains) {
			t.Fatalf("include_domains = %v, want trusted allowlist", req.IncludeDomains)
		}

		resp := map[string]any{
			"answer": "Use the Freedom Flex.",
			"results": []map[string]string{
				{"title": "Q1 Categories", "url": "https://doctorofcredit.com/q1", "content": "Groceries and gas."},
				{"title": "美卡指南", "url": "https://uscreditcardguide.com/flex", "content": "第一季度类别。"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	tool := newTestTool(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := tool.Search(ctx, "Chase Freedom quarterly categories")

	if !strings.Contains(got, "Direct Answer: Use the Freedom Flex.") {
		t.Fatalf("missing direct answer:\n%s", got)
	}
	if !strings.Contains(got, "--- Source [EN]: [Q1 Categories](https://doctorofcredit.com/q1) ---") {
		t.Fatalf("missing EN source block:\n%s", got)
	}
	if !strings.Contains(got, "--- Source [CN]: [美卡指南](https://uscreditcardguide.com/flex) ---") {
		t.Fatalf("missing CN source block:\n%s", got)
	}
}

func TestSearch_NoAnswerTwoSources(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"results": []map[string]string{
				{"title": "Thread", "url": "https://uscardforum.com/t/1", "content": "DP inside."},
				{"title": "Churning", "url": "https://reddit.com/r/churning", "content": "Weekly thread."},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	tool := newTestTool(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := tool.Search(ctx, "travel bank trick")

	if strings.Contains(got, "Direct Answer") {
		t.Fatalf("unexpected Direct Answer line:\n%s", got)
	}
	if n := strings.Count(got, "--- Source"); n != 2 {
		t.Fatalf("source blocks = %d, want 2:\n%s", n, got)
	}
	if !strings.Contains(got, "--- Source [CN]: [Thread](https://uscardforum.com/t/1) ---") {
		t.Fatalf("uscardforum must be tagged [CN]:\n%s", got)
	}
	if !strings.Contains(got, "--- Source [EN]: [Churning](https://reddit.com/r/churning) ---") {
		t.Fatalf("reddit must be tagged [EN]:\n%s", got)
	}
}

func TestSearch_ProviderErrorReturnedAsText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	tool := newTestTool(t, ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := tool.Search(ctx, "anything")

	if !strings.HasPrefix(got, "Error searching web:") {
		t.Fatalf("provider error must become text, got:\n%s", got)
	}
	if !strings.Contains(got, "401") {
		t.Fatalf("error text should mention status, got:\n%s", got)
	}
}
