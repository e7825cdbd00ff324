// Package generation turns retrieved passages and a question into an answer.
package generation

import (
	"context"
	"fmt"
	"strings"
)

// Passage is one retrieved unit of grounding context.
type Passage struct {
	DocName string
	Page    int
	Text    string
}

// Prompt is what a Generator receives. System and User are ready to send to
// a chat model; Question is kept separately for generators that rank text
// locally.
type Prompt struct {
	System   string
	User     string
	Question string
}

// Generator produces an answer grounded in the supplied passages.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt, passages []Passage) (string, error)
}

const systemPrompt = "You answer questions about a document using only the numbered excerpts provided. " +
	"Cite page numbers in square brackets like [p. 3]. " +
	"If the excerpts do not contain the answer, say you could not find it in the document."

// BuildPrompt formats passages in retrieval order under the question.
func BuildPrompt(question string, passages []Passage) Prompt {
	var b strings.Builder
	b.WriteString("Excerpts:\n")
	for i, p := range passages {
		label := fmt.Sprintf("[%d] p. %d", i+1, p.Page)
		if p.DocName != "" {
			label += " (" + p.DocName + ")"
		}
		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return Prompt{System: systemPrompt, User: b.String(), Question: question}
}
