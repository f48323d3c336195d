// Package agent drives the tool-calling conversation loop and publishes
// its progress as cumulative snapshots.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"

	"seju-chat/internal/config"
	"seju-chat/internal/models"
	"seju-chat/internal/ragtool"
	"seju-chat/internal/stream"
)

const defaultMaxRounds = 5

// ChatMessage is one inbound conversation turn from the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Agent holds the model and the retrieval tool for one deployment.
type Agent struct {
	llm       llms.Model
	tool      tools.Tool
	maxRounds int
}

// New builds the agent over an OpenAI-compatible chat endpoint.
func New(cfg *config.LLMConfig, tool tools.Tool) (*Agent, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, tool), nil
}

// NewWithModel wires an already constructed model, mainly for tests.
func NewWithModel(llm llms.Model, tool tools.Tool) *Agent {
	return &Agent{llm: llm, tool: tool, maxRounds: defaultMaxRounds}
}

// Run executes the agent loop for one request, sending a snapshot for
// every observable step: each streamed assistant increment carries the
// cumulative assistant text so far, and each tool result is surfaced as a
// tool message. snaps is closed when the loop ends, normally or not.
// Snapshots are sent in order; the caller must consume them in order.
func (a *Agent) Run(ctx context.Context, history []ChatMessage, snaps chan<- stream.Snapshot) error {
	defer close(snaps)

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
	}
	convo := make([]stream.Message, 0, len(history)+2)
	for _, m := range history {
		role := stream.RoleFromString(m.Role)
		llmRole := llms.ChatMessageTypeHuman
		if role == stream.RoleAssistant {
			llmRole = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(llmRole, m.Content))
		convo = append(convo, stream.Message{Role: role, Content: stream.PlainText(m.Content)})
	}

	emit := func() bool {
		snapshot := stream.Snapshot{Messages: append([]stream.Message(nil), convo...)}
		select {
		case snaps <- snapshot:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// one cumulative assistant transcript per request, so snapshot text is
	// monotonically non-decreasing across tool rounds
	var transcript strings.Builder
	assistantIdx := -1
	appendAssistant := func(text string) {
		transcript.WriteString(text)
		if assistantIdx < 0 || assistantIdx != len(convo)-1 {
			convo = append(convo, stream.Message{Role: stream.RoleAssistant})
			assistantIdx = len(convo) - 1
		}
		convo[assistantIdx].Content = stream.PlainText(transcript.String())
	}

	streamFn := func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		appendAssistant(string(chunk))
		if !emit() {
			return ctx.Err()
		}
		return nil
	}

	toolDefs := []llms.Tool{ragtool.Definition()}
	for round := 0; round < a.maxRounds; round++ {
		resp, err := a.llm.GenerateContent(ctx, msgs,
			llms.WithTools(toolDefs),
			llms.WithStreamingFunc(streamFn),
		)
		if err != nil {
			return fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("model returned no choices")
		}
		choice := resp.Choices[0]

		// providers that ignore the streaming func still deliver the full
		// text here; only the unseen part is appended
		if choice.Content != "" && !strings.HasSuffix(transcript.String(), choice.Content) {
			appendAssistant(choice.Content)
			emit()
		}

		if len(choice.ToolCalls) == 0 {
			return nil
		}

		assistantParts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		msgs = append(msgs, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: assistantParts})

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			output := a.dispatch(ctx, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
			convo = append(convo, stream.Message{Role: stream.RoleTool, Content: stream.PlainText(output)})
			if !emit() {
				return ctx.Err()
			}
			msgs = append(msgs, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       tc.FunctionCall.Name,
					Content:    output,
				}},
			})
		}
	}

	return fmt.Errorf("agent exceeded %d tool rounds", a.maxRounds)
}

// dispatch runs one tool call. Tool failures come back as text: the model
// has no structured error channel, it can only read tool output.
func (a *Agent) dispatch(ctx context.Context, name, arguments string) string {
	if name != a.tool.Name() {
		return fmt.Sprintf("unknown tool: %s", name)
	}

	var args struct {
		Question string `json:"question"`
	}
	question := arguments
	if err := json.Unmarshal([]byte(arguments), &args); err == nil && args.Question != "" {
		question = args.Question
	}

	output, err := a.tool.Call(ctx, question)
	if err != nil {
		log.Error().Err(err).Str("tool", name).Msg("tool call failed")
		return fmt.Sprintf("tool %s failed: %v", name, err)
	}
	return output
}
