package sentiment

import "github.com/kalambet/feedbackd/internal/engine"

// BusinessName appears in prompts and templated replies.
const BusinessName = "SteamNoodles"

const systemPrompt = `You are a helpful customer support agent for ` + BusinessName + ` (a modern restaurant). Determine the sentiment of the review as one of: positive, neutral, negative. Then craft a short, polite, context-aware reply. Be concise (at most 2 sentences). Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.`

// BuildPrompt constructs the chat messages for classifying one review.
func BuildPrompt(review string) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: "Customer review: " + review},
	}
}
