package summarizer

// chunkPrompt takes the formatted transcript of one chunk.
const chunkPrompt = `Summarize the following conversation chunk concisely, preserving key points, action items, and important details:

%s

Provide a structured summary with:
- Main topics discussed
- Key decisions or conclusions
- Action items (if any)
- Important technical details or code snippets`

// combinePrompt takes the title suggestion and the chunk summaries joined by rules.
const combinePrompt = `Based on these conversation summaries, create a final structured markdown document.

Title suggestion: %s

Summaries:
%s

Create a markdown document with EXACTLY these sections (all sections must be present even if empty):

# [Title - max 80 characters]

## TL;DR
[1-2 bullet points summarizing the entire conversation]

## Key Points
[Main discussion points as bullet list]

## Action Items
[Bullet list of action items. Include "Owner:" and "Due:" ONLY if explicitly mentioned in the conversation]

## Notes
[Any important links, code snippets, or additional context]

Requirements:
- Use only basic Markdown: #, ##, -, **bold**, ` + "`code`" + `
- Be faithful to the source material
- Do not add information not present in the conversation
- Keep sections even if they would be empty (use "None" or "N/A" if needed)`

const summarySeparator = "\n\n---\n\n"

// EmptySessionMarkdown is returned for a session with no messages.
const EmptySessionMarkdown = `# Empty Session

## TL;DR
- No messages in session

## Key Points
- N/A

## Action Items
- N/A

## Notes
- N/A`
