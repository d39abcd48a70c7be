package summarizer

import (
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/tokens"
)

// Chunk is a contiguous run of messages and their summed token cost.
type Chunk struct {
	Messages []llm.Message
	Tokens   int
}

// ChunkMessages splits a conversation into token-bounded chunks.
// It accumulates forward and closes the current chunk when the next message
// would push it past chunkSize. A message larger than chunkSize on its own
// lands alone in its chunk; messages are never dropped or split.
func ChunkMessages(est tokens.Estimator, msgs []llm.Message, chunkSize int) []Chunk {
	if len(msgs) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []llm.Message
	currentTokens := 0

	for _, msg := range msgs {
		cost := est.Count(msg.Content)

		if currentTokens+cost > chunkSize && len(current) > 0 {
			chunks = append(chunks, buildChunk(current, currentTokens))
			current = nil
			currentTokens = 0
		}

		current = append(current, msg)
		currentTokens += cost
	}

	// Flush remaining.
	if len(current) > 0 {
		chunks = append(chunks, buildChunk(current, currentTokens))
	}

	return chunks
}

func buildChunk(msgs []llm.Message, tokens int) Chunk {
	c := Chunk{
		Messages: make([]llm.Message, len(msgs)),
		Tokens:   tokens,
	}
	copy(c.Messages, msgs)
	return c
}

// FormatChunk renders messages as "User:"/"Assistant:" turns separated by blank lines.
func FormatChunk(msgs []llm.Message) string {
	parts := make([]string, len(msgs))
	for i, msg := range msgs {
		role := "Assistant"
		if msg.Role == llm.RoleUser {
			role = "User"
		}
		parts[i] = role + ": " + msg.Content
	}
	return strings.Join(parts, "\n\n")
}
