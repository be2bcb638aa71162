package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sipboard/sipboard/internal/config"
	"github.com/sipboard/sipboard/pkg/models"
)

func sampleFacts() models.SummaryFacts {
	return models.SummaryFacts{
		SourceCount: 3, CategoryCount: 2, ItemCount: 1,
		ConsistentItems: 1, DivergentItems: 0, NewDirectionCount: 1,
		TopShifts:      []models.CategoryShift{{Category: "CN Equity", From: 0.40, To: 0.25, Delta: -0.15}},
		TopDivergences: []models.DivergenceFact{{Kind: models.KindCategory, Key: "CN Equity", Spread: 0.30}},
	}
}

// ────────────────────────────────────────────────────────────────────
// Facts summarizer
// ────────────────────────────────────────────────────────────────────

func TestFactsSummarizerContent(t *testing.T) {
	got, err := FactsSummarizer{}.Summarize(context.Background(), "2026-08-25", sampleFacts())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := "Consensus 2026-08-25: 3 sources, 2 categories, 1/1 items consistent. " +
		"New directions: 1. " +
		"Top shift: CN Equity -15.00% (0.4000 to 0.2500). " +
		"Widest split: CN Equity (spread 30.00%)."
	if got != want {
		t.Errorf("narration:\ngot  %q\nwant %q", got, want)
	}
}

func TestFactsSummarizerDeterministic(t *testing.T) {
	ctx := context.Background()
	a, _ := FactsSummarizer{}.Summarize(ctx, "2026-08-25", sampleFacts())
	b, _ := FactsSummarizer{}.Summarize(ctx, "2026-08-25", sampleFacts())
	if a != b {
		t.Errorf("same facts produced different narration:\n%q\n%q", a, b)
	}
}

func TestFactsSummarizerMinimal(t *testing.T) {
	got, err := FactsSummarizer{}.Summarize(context.Background(), "2026-08-25", models.SummaryFacts{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	want := "Consensus 2026-08-25: 0 sources, 0 categories, 0/0 items consistent."
	if got != want {
		t.Errorf("narration = %q, want %q", got, want)
	}
}

func TestBound(t *testing.T) {
	if got := Bound("  short  "); got != "short" {
		t.Errorf("Bound trims whitespace: %q", got)
	}
	long := strings.Repeat("x", MaxNarrationChars+50)
	got := Bound(long)
	if n := len([]rune(got)); n != MaxNarrationChars {
		t.Errorf("bounded length = %d, want %d", n, MaxNarrationChars)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated narration should end with ellipsis: %q", got[len(got)-10:])
	}
}

// ────────────────────────────────────────────────────────────────────
// HTTP summarizer
// ────────────────────────────────────────────────────────────────────

func TestHTTPSummarizerRequiresKey(t *testing.T) {
	_, err := NewHTTPSummarizer("http://localhost", "")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("want ErrNoAPIKey, got %v", err)
	}
}

func TestHTTPSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test-123456" {
			t.Fatal("missing auth header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatal("missing content type")
		}

		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "test-model" {
			t.Fatalf("unexpected model: %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "2026-08-25") || !strings.Contains(user, `"source_count":3`) {
			t.Fatalf("facts not in prompt: %s", user)
		}

		resp := chatResponse{Choices: []chatChoice{{
			Message: chatMessage{Role: "assistant", Content: "  All sources agree today.  "},
		}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s, err := NewHTTPSummarizer(server.URL, "sk-test-123456",
		WithModel("test-model"), WithMaxTokens(128), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("NewHTTPSummarizer: %v", err)
	}

	got, err := s.Summarize(context.Background(), "2026-08-25", sampleFacts())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "All sources agree today." {
		t.Errorf("narration = %q", got)
	}
}

func TestHTTPSummarizeAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		var resp errorResponse
		resp.Error.Message = "bad key"
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s, err := NewHTTPSummarizer(server.URL, "sk-test-123456")
	if err != nil {
		t.Fatalf("NewHTTPSummarizer: %v", err)
	}
	_, err = s.Summarize(context.Background(), "2026-08-25", sampleFacts())
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("want ErrNoAPIKey, got %v", err)
	}
}

func TestHTTPSummarizeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	s, err := NewHTTPSummarizer(server.URL, "sk-test-123456")
	if err != nil {
		t.Fatalf("NewHTTPSummarizer: %v", err)
	}
	_, err = s.Summarize(context.Background(), "2026-08-25", sampleFacts())
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("want empty-response error, got %v", err)
	}
}

// ────────────────────────────────────────────────────────────────────
// Config wiring
// ────────────────────────────────────────────────────────────────────

func TestFromConfig(t *testing.T) {
	if s, err := FromConfig(config.SummarizerConfig{Mode: "none"}); err != nil || s != nil {
		t.Errorf("none mode: %v, %v", s, err)
	}
	if s, err := FromConfig(config.SummarizerConfig{Mode: "facts"}); err != nil || s == nil || s.Name() != "facts" {
		t.Errorf("facts mode: %v, %v", s, err)
	}
	s, err := FromConfig(config.SummarizerConfig{Mode: "openai", Endpoint: "http://localhost", APIKey: "sk-abcdefgh"})
	if err != nil || s == nil || s.Name() != "openai" {
		t.Errorf("openai mode: %v, %v", s, err)
	}
	if _, err := FromConfig(config.SummarizerConfig{Mode: "openai"}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("openai without key: %v", err)
	}
	if _, err := FromConfig(config.SummarizerConfig{Mode: "telegraph"}); err == nil {
		t.Error("unknown mode accepted")
	}
}
