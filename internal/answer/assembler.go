package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coursebot/course-rag/internal/oracle"
	"github.com/coursebot/course-rag/internal/retrieval"
	"github.com/coursebot/course-rag/pkg/models"
)

// Oracle is the answer-generation service boundary.
type Oracle interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

// FallbackAnswer replaces empty or failed oracle responses. The caller
// always gets an answer; availability wins over completeness here.
const FallbackAnswer = "No answer found."

const systemPrompt = "You are a virtual teaching assistant for the Tools in Data Science course. " +
	"Answer student questions clearly, concisely, factually and calculate if necessary. " +
	"If the answer requires more information, mention that."

const userPromptFormat = `Use the following context to answer the question:

%s

Question: %s
Provide a concise answer, and use the context provided to support your response. If the answer requires more information, mention that. Use SPARTAN TONE.`

// Assembler turns retrieved evidence and a question into a final
// answer by delegating to the oracle.
type Assembler struct {
	oracle Oracle
}

// New creates an answer assembler over the given oracle.
func New(o Oracle) *Assembler {
	return &Assembler{oracle: o}
}

// Answer builds the prompt from the evidence context and the question,
// asks the oracle, and post-processes the raw output. Oracle failures
// and blank responses degrade to FallbackAnswer instead of erroring.
func (a *Assembler) Answer(ctx context.Context, evidence *retrieval.Evidence, question string) models.AnswerResult {
	messages := []oracle.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(userPromptFormat, evidence.Context, question)},
	}

	raw, err := a.oracle.Complete(ctx, messages)
	if err != nil {
		slog.Warn("oracle call failed", "error", err)
		raw = ""
	}

	answer := strings.TrimSpace(raw)
	if answer == "" {
		answer = FallbackAnswer
	}

	links := evidence.Links
	if links == nil {
		links = []models.Link{}
	}

	return models.AnswerResult{Answer: answer, Links: links}
}
