// Package tokens estimates model-context cost and trims history to a budget.
package tokens

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Estimator maps text to a token count. Implementations must return 0 for "".
type Estimator interface {
	Count(text string) int
}

// Counter counts tokens with a tiktoken encoding, falling back to a
// character heuristic when the encoding cannot be loaded (e.g. offline).
type Counter struct {
	encoder  *tiktoken.Tiktoken
	encoding string
	mu       sync.Mutex
}

// NewCounter picks the encoding for model and loads it.
func NewCounter(model string) *Counter {
	name := encodingForModel(model)
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return &Counter{encoding: name}
	}
	return &Counter{encoder: enc, encoding: name}
}

// Heuristic returns a Counter that never touches tiktoken.
func Heuristic() *Counter {
	return &Counter{encoding: "heuristic"}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoder == nil {
		return heuristicCount(text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

// Precise reports whether counts come from a real BPE encoding.
func (c *Counter) Precise() bool {
	return c.encoder != nil
}

func (c *Counter) Encoding() string {
	return c.encoding
}

// heuristicCount assumes ~4 ASCII chars per token and ~1.5 tokens per CJK rune.
func heuristicCount(text string) int {
	cjk, other := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	estimate := int(float64(cjk)*1.5 + float64(other)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func encodingForModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
