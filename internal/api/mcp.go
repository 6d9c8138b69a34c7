package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/feedbackd/internal/storage"
)

const recentResourceLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Responder Responder
	Reviews   ReviewReader
	Trends    TrendGenerator
	Version   string
}

// NewMCPServer creates an MCP server with the feedback tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"feedbackd",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("feedbackd: submit customer feedback and chart sentiment trends over natural-language date ranges."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("submit_feedback",
			mcp.WithDescription("Classify a customer review, draft a reply and store it."),
			mcp.WithString("text", mcp.Description("The review text"), mcp.Required()),
		),
		mcpSubmitFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("sentiment_trend",
			mcp.WithDescription("Render a sentiment trend chart for a date range such as \"last 7 days\" or \"June 1 to June 15\"."),
			mcp.WithString("prompt", mcp.Description("Date range and chart request in plain English"), mcp.Required()),
			mcp.WithString("chart", mcp.Description("Chart kind override"), mcp.Enum("auto", "bar", "line")),
		),
		mcpSentimentTrend(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"reviews://recent",
			"Recent Reviews",
			mcp.WithResourceDescription(fmt.Sprintf("Last %d stored reviews", recentResourceLimit)),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpSubmitFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		resp, err := deps.Responder.Respond(ctx, text)
		if errors.Is(err, storage.ErrValidation) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save review: %v", err)), nil
		}

		b, err := json.Marshal(resp)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSentimentTrend(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		override := req.GetString("chart", "")
		if override == "auto" {
			override = ""
		}

		res, err := deps.Trends.GeneratePlot(ctx, prompt, override)
		if err != nil {
			return mcpError(fmt.Sprintf("trend failed: %v", err)), nil
		}

		table := newTrendResponse(res)
		table.ImageBase64 = ""
		b, err := json.Marshal(table)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal table: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewImageContent(base64.StdEncoding.EncodeToString(res.Image), "image/png"),
				mcp.TextContent{Type: "text", Text: string(b)},
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		reviews, err := deps.Reviews.RecentReviews(ctx, recentResourceLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent reviews: %w", err)
		}

		type reviewSummary struct {
			ID        int64  `json:"id"`
			CreatedAt string `json:"created_at"`
			Sentiment string `json:"sentiment"`
			Text      string `json:"text"`
		}

		summaries := make([]reviewSummary, len(reviews))
		for i, rv := range reviews {
			text := rv.Text
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = reviewSummary{
				ID:        rv.ID,
				CreatedAt: rv.CreatedAt.Format(time.RFC3339),
				Sentiment: string(rv.Sentiment),
				Text:      text,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reviews: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
