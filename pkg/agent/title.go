package agent

import (
	"context"
	"fmt"
	"strings"
)

const titlePromptTemplate = `Generate a short, descriptive title (3-6 words) for a conversation that starts with:

User: %q
%s
Rules:
- Keep it under 50 characters
- Make it specific and descriptive
- Don't use quotes
- Focus on the main topic or intent
- Examples: "Quantum Computing Research", "Python Data Analysis Help", "Literature Review Methods"

Title:`

const defaultTitle = "Research Conversation"

// TextModel generates plain text from a single prompt. The title path
// uses a smaller, cheaper model than the agent loop.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GenerateTitle produces a concise conversation title from the opening
// exchange. It never fails: any model error falls back to a title built
// from the first message's leading words.
func GenerateTitle(ctx context.Context, model TextModel, firstMessage, response string) string {
	if model == nil {
		return FallbackTitle(firstMessage)
	}

	assistantPart := ""
	if response != "" {
		excerpt := response
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		assistantPart = fmt.Sprintf("Assistant: %q\n", excerpt)
	}

	raw, err := model.Generate(ctx, fmt.Sprintf(titlePromptTemplate, firstMessage, assistantPart))
	if err != nil {
		return FallbackTitle(firstMessage)
	}

	title := strings.TrimSpace(raw)
	title = strings.ReplaceAll(title, `"`, "")
	title = strings.ReplaceAll(title, "'", "")
	title = strings.TrimSpace(title)
	if len(title) > 50 {
		title = title[:47] + "..."
	}
	if title == "" {
		return defaultTitle
	}
	return title
}

// FallbackTitle builds a deterministic title from the first words of the
// opening message.
func FallbackTitle(firstMessage string) string {
	words := strings.Fields(firstMessage)
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) == 0 {
		return defaultTitle
	}
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(w string) string {
	w = strings.ToLower(w)
	r := []rune(w)
	if len(r) == 0 {
		return w
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
