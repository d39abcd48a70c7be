package summarizer

import (
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/llm"
)

const (
	MaxTitleLen       = 80
	DefaultTitle      = "Chat Session"
	EmptySessionTitle = "Empty Session"
)

// TitleFromMessages derives a title from the first user message, or DefaultTitle.
func TitleFromMessages(msgs []llm.Message) string {
	text := DefaultTitle
	for _, m := range msgs {
		if m.Role == llm.RoleUser {
			text = m.Content
			break
		}
	}
	return TitleFromText(text)
}

// TitleFromText truncates text to MaxTitleLen runes (77 + "..."), collapses
// newlines to spaces and trims surrounding whitespace.
func TitleFromText(text string) string {
	title := Truncate(text)
	title = strings.ReplaceAll(title, "\n", " ")
	return strings.TrimSpace(title)
}

// TitleFromMarkdown returns the text of the first "# " heading, or DefaultTitle.
func TitleFromMarkdown(markdown string) string {
	if title, ok := headingTitle(markdown); ok {
		return title
	}
	return DefaultTitle
}

// headingTitle reports the first level-1 heading's text. ok is false when there
// is no such heading or its text is blank.
func headingTitle(markdown string) (string, bool) {
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(line, "# ") {
			title := Truncate(strings.TrimSpace(line[2:]))
			return title, title != ""
		}
	}
	return "", false
}

// Truncate caps s at MaxTitleLen runes, reserving three for an ellipsis when it cuts.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxTitleLen {
		return s
	}
	return string(r[:MaxTitleLen-3]) + "..."
}
