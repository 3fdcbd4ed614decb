package rag

import (
	"fmt"
	"strings"

	"document-chat/internal/models"
)

// BuildPrompt assembles the grounded prompt text: role instructions, the command
// protocol, the retrieved context, prior turns and the current question. It has no
// side effects and never truncates its inputs.
func BuildPrompt(history []models.Message, context models.RetrievedContext, query string) string {
	var sb strings.Builder

	sb.WriteString(models.RoleInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(models.CommandProtocol)
	sb.WriteString("\n\n")

	sb.WriteString("Context from the document:\n")
	if len(context) == 0 {
		sb.WriteString(models.NoContextPhrase)
		sb.WriteString("\n")
	}
	for i, c := range context {
		fmt.Fprintf(&sb, "[Context %d - Page %d]: %s (Coordinates: %s)\n", i+1, c.PageNumber, c.Text, coordinates(c.BoundingBoxes))
	}

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, msg := range history {
			fmt.Fprintf(&sb, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	sb.WriteString("\nCurrent question: ")
	sb.WriteString(query)
	return sb.String()
}

// AssemblePrompt wraps BuildPrompt into the completion input: the prompt text as the
// system prompt and the question as the only turn.
func AssemblePrompt(history []models.Message, context models.RetrievedContext, query string) models.Prompt {
	return models.Prompt{
		System: BuildPrompt(history, context, query),
		Turns:  []models.Message{{Role: models.RoleUser, Content: query}},
	}
}

func coordinates(boxes []models.BoundingBox) string {
	if len(boxes) == 0 {
		return "no coordinates"
	}
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = b.String()
	}
	return strings.Join(parts, "; ")
}
