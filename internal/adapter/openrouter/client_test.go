package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/avesafe/taskpilot/internal/config"
	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/port/oracle"
	"github.com/avesafe/taskpilot/internal/resilience"
)

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func contains(s, sub string) bool { return strings.Contains(s, sub) }

func testClient(url string) *Client {
	return NewClient(config.Oracle{
		URL:         url,
		APIKey:      "test-key",
		Model:       "mistralai/mistral-7b-instruct",
		Temperature: 0.1,
		MaxTokens:   4000,
	})
}

// chatServer returns an httptest server that responds with the given
// message content wrapped in a chat-completions envelope.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		writeTestJSON(t, w, resp)
	}))
}

func TestClassifyParsesJudgment(t *testing.T) {
	srv := chatServer(t, "Here you go:\n```json\n"+
		`{"reorderedTasks":[{"id":"17","priority":"High","confidence":88,"reason":"Due soon."}],"summary":"One urgent task."}`+
		"\n```")
	defer srv.Close()

	c := testClient(srv.URL)
	j, err := c.Classify(context.Background(), []oracle.TaskContext{{ID: 17, Title: "Ship it"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(j.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(j.Entries))
	}
	if j.Entries[0].ID != 17 {
		t.Fatalf("expected id 17, got %d", j.Entries[0].ID)
	}
	if j.Entries[0].Confidence != 88 {
		t.Fatalf("expected confidence 88, got %d", j.Entries[0].Confidence)
	}
	if j.Summary != "One urgent task." {
		t.Fatalf("unexpected summary %q", j.Summary)
	}
}

func TestClassifyMissingKeyIsConfigurationError(t *testing.T) {
	c := NewClient(config.Oracle{URL: "http://localhost:0"})
	_, err := c.Classify(context.Background(), nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestClassifyUpstreamErrorCarriesOracleMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Insufficient credits"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Classify(context.Background(), nil)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if got := err.Error(); !contains(got, "Insufficient credits") {
		t.Fatalf("expected oracle message in error, got %q", got)
	}
}

func TestClassifyNoBracesIsParseError(t *testing.T) {
	srv := chatServer(t, "I could not produce JSON today.")
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Classify(context.Background(), nil)
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestClassifyBreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.SetBreaker(resilience.NewBreaker(2, 0))

	_, _ = c.Classify(context.Background(), nil)
	_, _ = c.Classify(context.Background(), nil)
	_, err := c.Classify(context.Background(), nil)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream from open circuit, got %v", err)
	}
}

func TestExtractParsesDrafts(t *testing.T) {
	srv := chatServer(t,
		`{"tasks":[{"title":"Renew lease","description":"Contact landlord","deadline":"2026-10-01"},{"title":"File report","description":"","deadline":null}]}`)
	defer srv.Close()

	c := testClient(srv.URL)
	drafts, err := c.Extract(context.Background(), "lease expires October 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	if drafts[0].Deadline != "2026-10-01" {
		t.Fatalf("expected deadline, got %q", drafts[0].Deadline)
	}
	if drafts[1].Deadline != "" {
		t.Fatalf("expected empty deadline for null, got %q", drafts[1].Deadline)
	}
}

func TestExtractPromptTruncatesText(t *testing.T) {
	long := make([]byte, extractTextLimit+500)
	for i := range long {
		long[i] = 'x'
	}
	prompt := extractPrompt(string(long))
	if len(prompt) > extractTextLimit+len(extractTemplate) {
		t.Fatalf("prompt not truncated: %d chars", len(prompt))
	}
}

func TestExtractPromptCutsOnRuneBoundary(t *testing.T) {
	// A 3-byte rune starts one byte before the limit so a naive byte cut
	// would split it.
	text := strings.Repeat("x", extractTextLimit-1) + "語あと"
	prompt := extractPrompt(text)
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains a split rune")
	}
	if strings.Contains(prompt, "語") {
		t.Fatal("rune past the limit must not survive truncation")
	}
}
