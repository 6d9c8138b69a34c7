package sentiment

import "github.com/kalambet/feedbackd/internal/storage"

var templatedReplies = map[storage.Sentiment]string{
	storage.Positive: "Thanks for the wonderful feedback! We're thrilled you enjoyed your experience at " +
		BusinessName + ". We hope to welcome you back soon!",
	storage.Negative: "We're sorry to hear about your experience. Thank you for letting us know; our team will " +
		"review this and work to make things right. We hope you'll give us another chance.",
	storage.Neutral: "Thank you for sharing your thoughts. We appreciate your feedback and will use it to keep improving.",
}

// TemplatedReply is the canned reply used when no LLM answered.
func TemplatedReply(s storage.Sentiment) string {
	if r, ok := templatedReplies[s]; ok {
		return r
	}
	return templatedReplies[storage.Neutral]
}
