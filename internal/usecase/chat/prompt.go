package chat

import (
	"fmt"
	"strings"

	"github.com/atlas-chat/atlas/internal/domain"
)

// systemPersona is the assistant's fixed instruction set.
const systemPersona = `You are Atlas, a helpful study assistant. Answer the ` +
	`user's question using the reference material when it is provided. Be ` +
	`concise and accurate. If the reference material does not cover the ` +
	`question, say so and answer from general knowledge.`

// buildPrompt assembles the generation prompt from retrieved passages, the
// formatted conversation history, and the current question.
func buildPrompt(hits []domain.SearchResult, historyText, question string) string {
	var b strings.Builder

	if len(hits) > 0 {
		b.WriteString("Reference material:\n")
		for i, hit := range hits {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(hit.Content))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No reference material was found for this question. " +
			"Answer from general knowledge and say that the knowledge base " +
			"did not cover it.\n\n")
	}

	if historyText != "" {
		b.WriteString("Conversation so far:\n")
		b.WriteString(historyText)
	}

	fmt.Fprintf(&b, "User: %s\nAssistant:", question)
	return b.String()
}
