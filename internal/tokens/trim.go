package tokens

import "github.com/MikeSquared-Agency/scribe/internal/llm"

// TrimToBudget returns the longest suffix of messages whose summed content
// cost fits in maxTokens. It walks newest to oldest and stops before the first
// message that would overflow, so the result may be empty. The input is not modified.
func TrimToBudget(est Estimator, messages []llm.Message, maxTokens int) []llm.Message {
	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := est.Count(messages[i].Content)
		if total+cost > maxTokens {
			break
		}
		total += cost
		start = i
	}

	out := make([]llm.Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}
