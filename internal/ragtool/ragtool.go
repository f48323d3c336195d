// Package ragtool exposes the retrieval engine as a callable tool for the
// agent loop.
package ragtool

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"

	"seju-chat/internal/models"
)

const (
	// ToolName is the operation name offered to the model.
	ToolName = "rag_query"

	toolDescription = "Searches the user's private document collection and returns the passages most relevant to a question. The input is the user's question; the output is the retrieved content. Call this only when the documents are likely to hold the answer."

	// NoContentSentinel distinguishes "no knowledge" from a transport error
	// for the calling agent.
	NoContentSentinel = "No relevant content was found in the knowledge base."

	resultSeparator = "\n\n-----\n\n"
)

// Retriever is the slice of the retrieval engine the tool depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedResult, error)
	DefaultK() int
}

// Tool implements tools.Tool over a Retriever. Failures are rendered as
// human-readable strings, never returned as errors: the agent loop has no
// structured error channel for tool calls.
type Tool struct {
	retriever Retriever
}

var _ tools.Tool = (*Tool)(nil)

func New(retriever Retriever) *Tool {
	return &Tool{retriever: retriever}
}

func (t *Tool) Name() string { return ToolName }

func (t *Tool) Description() string { return toolDescription }

// Call runs a retrieval for the question and formats the ranked results as
// "[source p.page] text" blocks.
func (t *Tool) Call(ctx context.Context, question string) (string, error) {
	log.Debug().Str("question", question).Msg("rag_query called")

	results, err := t.retriever.Retrieve(ctx, question, t.retriever.DefaultK())
	if err != nil {
		log.Error().Err(err).Msg("rag_query retrieval failed")
		return fmt.Sprintf("Error while searching the knowledge base: %v", err), nil
	}
	if len(results) == 0 {
		return NoContentSentinel, nil
	}

	rendered := make([]string, len(results))
	for i, r := range results {
		rendered[i] = formatResult(r)
	}
	return strings.Join(rendered, resultSeparator), nil
}

func formatResult(r models.RetrievedResult) string {
	source := r.Metadata[models.MetaSource]
	if source == "" {
		return r.Text
	}
	if page := r.Metadata[models.MetaPage]; page != "" {
		return fmt.Sprintf("[%s p.%s] %s", source, page, r.Text)
	}
	return fmt.Sprintf("[%s] %s", source, r.Text)
}

// Definition is the function-call schema handed to the model.
func Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        ToolName,
			Description: toolDescription,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The user's question or query.",
					},
				},
				"required": []string{"question"},
			},
		},
	}
}
