package chartkind

import "github.com/kalambet/feedbackd/internal/engine"

const systemPrompt = `You are a data visualization assistant. Given a user prompt about customer sentiment trends, choose "bar" or "line" for the chart and produce a short title. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Guidance:
- Prefer "bar" when the user asks to compare days or mentions bars or columns.
- Prefer "line" when the user asks about a trend, evolution or change over time.
- Keep the title under eight words and do not repeat the date range.`

// BuildPrompt constructs the chat messages for a chart decision.
func BuildPrompt(userPrompt string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}
