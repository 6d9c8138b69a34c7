package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/feedbackd/internal/sentiment"
	"github.com/kalambet/feedbackd/internal/storage"
	"github.com/kalambet/feedbackd/internal/trend"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store := setupStore(t)
	return MCPDeps{
		Responder: sentiment.New(store, nil, "", 0),
		Reviews:   store,
		Trends:    trend.NewService(store, nil, trend.WithClock(func() time.Time { return today })),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatalf("no TextContent in result: %#v", result.Content)
	return ""
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_SubmitFeedback(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpSubmitFeedback(deps)

	req := makeCallToolRequest("submit_feedback", map[string]interface{}{
		"text": "Terrible, the broth was cold and the waiter was rude.",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp sentiment.Response
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Sentiment != storage.Negative {
		t.Errorf("sentiment = %q, want negative", resp.Sentiment)
	}
	if resp.Reply == "" {
		t.Error("empty reply")
	}

	stored, err := store.GetReview(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("review not stored: %v", err)
	}
	if stored.Sentiment != resp.Sentiment {
		t.Errorf("stored sentiment = %q, want %q", stored.Sentiment, resp.Sentiment)
	}
}

func TestMCPTool_SubmitFeedback_Invalid(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpSubmitFeedback(deps)

	for _, args := range []map[string]interface{}{{}, {"text": "   "}} {
		result, err := handler(context.Background(), makeCallToolRequest("submit_feedback", args))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}

	reviews, err := store.RecentReviews(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 0 {
		t.Errorf("stored %d reviews, want 0", len(reviews))
	}
}

func TestMCPTool_SentimentTrend(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedReviews(t, store)
	handler := mcpSentimentTrend(deps)

	req := makeCallToolRequest("sentiment_trend", map[string]interface{}{
		"prompt": "last 7 days",
		"chart":  "bar",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if len(result.Content) != 2 {
		t.Fatalf("expected image and table content, got %d items", len(result.Content))
	}

	img, ok := result.Content[0].(mcp.ImageContent)
	if !ok {
		t.Fatalf("expected ImageContent first, got %T", result.Content[0])
	}
	if img.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", img.MIMEType)
	}
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil || !bytes.HasPrefix(data, pngMagic) {
		t.Errorf("image data is not a base64 PNG (err %v)", err)
	}

	var table TrendResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &table); err != nil {
		t.Fatalf("failed to parse table: %v", err)
	}
	if table.Chart != "bar" || len(table.Rows) != 2 {
		t.Errorf("table = %+v", table)
	}
	if table.ImageBase64 != "" {
		t.Error("table repeats the image")
	}
}

func TestMCPTool_SentimentTrend_AutoChart(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSentimentTrend(deps)

	req := makeCallToolRequest("sentiment_trend", map[string]interface{}{
		"prompt": "show a bar chart for yesterday",
		"chart":  "auto",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var table TrendResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &table); err != nil {
		t.Fatalf("failed to parse table: %v", err)
	}
	if table.Chart != "bar" {
		t.Errorf("chart = %q, want bar from the heuristic", table.Chart)
	}
	// "yesterday" inside a sentence is not a date on its own.
	if table.Start != "2024-06-13" || table.End != "2024-06-20" {
		t.Errorf("interval = %s..%s, want the default window", table.Start, table.End)
	}
}

func TestMCPTool_SentimentTrend_MissingPrompt(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSentimentTrend(deps)

	result, err := handler(context.Background(), makeCallToolRequest("sentiment_trend", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCPTool_SentimentTrend_GeneratorError(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Trends = failingTrends{}
	handler := mcpSentimentTrend(deps)

	result, err := handler(context.Background(), makeCallToolRequest("sentiment_trend", map[string]interface{}{"prompt": "today"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "scan failed") {
		t.Fatalf("expected tool error mentioning cause, got %+v", result)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedReviews(t, store)
	long := strings.Repeat("ü", 250)
	if _, err := store.InsertReview(context.Background(), long, storage.Neutral, today); err != nil {
		t.Fatal(err)
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), makeReadResourceRequest("reviews://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "reviews://recent" || tc.MIMEType != "application/json" {
		t.Errorf("resource = %s %s", tc.URI, tc.MIMEType)
	}

	var items []struct {
		ID        int64  `json:"id"`
		Sentiment string `json:"sentiment"`
		Text      string `json:"text"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &items); err != nil {
		t.Fatalf("parsing resource: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("got %d reviews, want 4", len(items))
	}
	if items[0].ID != 4 {
		t.Errorf("first item id = %d, want newest (4)", items[0].ID)
	}
	if got := []rune(items[0].Text); len(got) != 203 || !strings.HasSuffix(items[0].Text, "...") {
		t.Errorf("long text not truncated: %d runes", len(got))
	}
}

func TestNewMCPServer_ListsTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps)

	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, name := range []string{"submit_feedback", "sentiment_trend"} {
		if !strings.Contains(string(b), `"name":"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, b)
		}
	}
}
