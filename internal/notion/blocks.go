// Package notion converts summary markdown into Notion blocks and uploads them
// as a child page of a configured parent page.
package notion

import (
	"encoding/json"
	"strings"
)

type BlockType string

const (
	Heading1         BlockType = "heading_1"
	Heading2         BlockType = "heading_2"
	BulletedListItem BlockType = "bulleted_list_item"
	Code             BlockType = "code"
	Paragraph        BlockType = "paragraph"
)

// CodeLanguage is recorded on every code block; fence language tags are dropped.
const CodeLanguage = "plain text"

// InlineSpan is a run of text with its formatting flags.
type InlineSpan struct {
	Text string
	Bold bool
	Code bool
}

// Block is one Notion content block.
type Block struct {
	Type     BlockType
	Spans    []InlineSpan
	Language string // code blocks only
}

// Text returns the block's spans concatenated without formatting.
func (b Block) Text() string {
	var sb strings.Builder
	for _, s := range b.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

type richText struct {
	Type        string       `json:"type"`
	Text        textContent  `json:"text"`
	Annotations *annotations `json:"annotations,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
}

type annotations struct {
	Bold bool `json:"bold,omitempty"`
	Code bool `json:"code,omitempty"`
}

// MaxTextLen is the longest content Notion accepts in one rich_text item.
const MaxTextLen = 2000

// splitText cuts s into pieces of at most MaxTextLen runes.
func splitText(s string) []string {
	r := []rune(s)
	if len(r) <= MaxTextLen {
		return []string{s}
	}
	var parts []string
	for len(r) > MaxTextLen {
		parts = append(parts, string(r[:MaxTextLen]))
		r = r[MaxTextLen:]
	}
	return append(parts, string(r))
}

func plainText(s string) []richText {
	return toRichText([]InlineSpan{{Text: s}})
}

// toRichText emits one item per span, splitting spans longer than MaxTextLen
// into consecutive items with the same annotations.
func toRichText(spans []InlineSpan) []richText {
	out := make([]richText, 0, len(spans))
	for _, s := range spans {
		var ann *annotations
		if s.Bold || s.Code {
			ann = &annotations{Bold: s.Bold, Code: s.Code}
		}
		for _, part := range splitText(s.Text) {
			out = append(out, richText{Type: "text", Text: textContent{Content: part}, Annotations: ann})
		}
	}
	return out
}

// MarshalJSON encodes the block in the Notion API's block object shape.
func (b Block) MarshalJSON() ([]byte, error) {
	body := map[string]any{"rich_text": toRichText(b.Spans)}
	if b.Type == Code {
		body["language"] = b.Language
	}
	return json.Marshal(map[string]any{
		"object":       "block",
		"type":         b.Type,
		string(b.Type): body,
	})
}

// ToBlocks converts the supported markdown subset into blocks, in line order.
// Headings are plain text; bullets and paragraphs are inline-parsed. A fence
// with no closing delimiter captures to the end of input, and a fence with no
// lines inside emits nothing.
func ToBlocks(markdown string) []Block {
	lines := strings.Split(markdown, "\n")
	var blocks []Block

	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, "# "):
			blocks = append(blocks, Block{Type: Heading1, Spans: []InlineSpan{{Text: line[2:]}}})
		case strings.HasPrefix(line, "## "):
			blocks = append(blocks, Block{Type: Heading2, Spans: []InlineSpan{{Text: line[3:]}}})
		case strings.HasPrefix(line, "- "):
			blocks = append(blocks, Block{Type: BulletedListItem, Spans: ParseInline(line[2:])})
		case strings.HasPrefix(line, "```"):
			var code []string
			for i+1 < len(lines) {
				next := strings.TrimRight(lines[i+1], " \t\r")
				i++
				if strings.HasPrefix(next, "```") {
					break
				}
				code = append(code, next)
			}
			if len(code) > 0 {
				blocks = append(blocks, Block{
					Type:     Code,
					Spans:    []InlineSpan{{Text: strings.Join(code, "\n")}},
					Language: CodeLanguage,
				})
			}
		default:
			blocks = append(blocks, Block{Type: Paragraph, Spans: ParseInline(line)})
		}
	}
	return blocks
}

// ParseInline splits text into literal runs and **bold** / `code` runs, left to
// right. Markers do not nest, and a marker pair with nothing between it stays
// literal. Text without markers yields a single plain span.
func ParseInline(text string) []InlineSpan {
	var (
		spans   []InlineSpan
		literal strings.Builder
	)
	flush := func() {
		if literal.Len() > 0 {
			spans = append(spans, InlineSpan{Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(text); {
		switch {
		case strings.HasPrefix(text[i:], "**"):
			end := strings.Index(text[i+2:], "**")
			if end < 0 {
				literal.WriteString("**")
				i += 2
				continue
			}
			if end == 0 {
				literal.WriteString("****")
				i += 4
				continue
			}
			flush()
			spans = append(spans, InlineSpan{Text: text[i+2 : i+2+end], Bold: true})
			i += end + 4
		case text[i] == '`':
			end := strings.IndexByte(text[i+1:], '`')
			if end <= 0 {
				literal.WriteByte('`')
				i++
				continue
			}
			flush()
			spans = append(spans, InlineSpan{Text: text[i+1 : i+1+end], Code: true})
			i += end + 2
		default:
			literal.WriteByte(text[i])
			i++
		}
	}
	flush()

	if len(spans) == 0 {
		return []InlineSpan{{Text: text}}
	}
	return spans
}
