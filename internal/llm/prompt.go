package llm

import (
	"context"
	"strings"
)

// Generator produces an answer to question using only the given context.
type Generator interface {
	GenerateAnswer(ctx context.Context, systemPrompt, question, docContext string) (string, error)
}

const SystemPrompt = "You are a helpful assistant that answers questions based on the provided PDF content. " +
	"Only use the information from the PDF to answer questions. " +
	"If the answer cannot be found in the PDF, say so clearly."

// BuildUserPrompt frames the question and the selected document excerpt as a
// single user turn.
func BuildUserPrompt(question, docContext string) string {
	var sb strings.Builder
	sb.WriteString("Based on the following PDF content, please answer this question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nPDF CONTENT:\n")
	sb.WriteString(docContext)
	return sb.String()
}
