package agent

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"seju-chat/internal/stream"
)

type scriptedStep struct {
	chunks []string
	choice *llms.ContentChoice
	err    error
}

// scriptedModel plays one scripted step per GenerateContent call and
// records the message lists it was given.
type scriptedModel struct {
	steps    []scriptedStep
	call     int
	received [][]llms.MessageContent
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.received = append(m.received, messages)
	step := m.steps[m.call]
	m.call++
	if step.err != nil {
		return nil, step.err
	}

	opts := &llms.CallOptions{}
	for _, opt := range options {
		opt(opts)
	}
	if opts.StreamingFunc != nil {
		for _, chunk := range step.chunks {
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{step.choice}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

type recordingTool struct {
	question string
	output   string
	err      error
}

func (t *recordingTool) Name() string        { return "rag_query" }
func (t *recordingTool) Description() string { return "test tool" }
func (t *recordingTool) Call(_ context.Context, input string) (string, error) {
	t.question = input
	return t.output, t.err
}

func collectRun(t *testing.T, a *Agent, history []ChatMessage) ([]stream.Snapshot, error) {
	t.Helper()
	snaps := make(chan stream.Snapshot, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(context.Background(), history, snaps)
	}()

	var got []stream.Snapshot
	for snap := range snaps {
		got = append(got, snap)
	}
	return got, <-errc
}

func TestRun_StreamsCumulativeText(t *testing.T) {
	model := &scriptedModel{steps: []scriptedStep{
		{chunks: []string{"Hi", " there"}, choice: &llms.ContentChoice{Content: "Hi there"}},
	}}
	a := NewWithModel(model, &recordingTool{})

	snaps, err := collectRun(t, a, []ChatMessage{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	last := func(s stream.Snapshot) stream.Message { return s.Messages[len(s.Messages)-1] }
	assert.Equal(t, stream.RoleAssistant, last(snaps[0]).Role)
	assert.Equal(t, "Hi", stream.Flatten(last(snaps[0]).Content))
	assert.Equal(t, "Hi there", stream.Flatten(last(snaps[1]).Content))

	// snapshots carry the whole transcript, history included
	assert.Equal(t, stream.RoleHuman, snaps[0].Messages[0].Role)
}

func TestRun_FeedsAssemblerWithoutDuplication(t *testing.T) {
	model := &scriptedModel{steps: []scriptedStep{
		{chunks: []string{"Hi", " there"}, choice: &llms.ContentChoice{Content: "Hi there"}},
	}}
	a := NewWithModel(model, &recordingTool{})

	snaps := make(chan stream.Snapshot, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(context.Background(), []ChatMessage{{Role: "user", Content: "hello"}}, snaps)
	}()

	var buf bytes.Buffer
	asm := stream.NewAssembler(&buf)
	require.NoError(t, asm.Consume(snaps))
	require.NoError(t, <-errc)
	assert.Equal(t, "Hi there", buf.String())
}

func TestRun_ToolCallRound(t *testing.T) {
	model := &scriptedModel{steps: []scriptedStep{
		{choice: &llms.ContentChoice{ToolCalls: []llms.ToolCall{{
			ID:   "call-1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "rag_query",
				Arguments: `{"question": "what is seju?"}`,
			},
		}}}},
		{chunks: []string{"Answer"}, choice: &llms.ContentChoice{Content: "Answer"}},
	}}
	tool := &recordingTool{output: "[doc.txt] seju is a chat app"}
	a := NewWithModel(model, tool)

	snaps, err := collectRun(t, a, []ChatMessage{{Role: "user", Content: "what is seju?"}})
	require.NoError(t, err)
	assert.Equal(t, "what is seju?", tool.question)

	var sawTool bool
	for _, snap := range snaps {
		msg := snap.Messages[len(snap.Messages)-1]
		if msg.Role == stream.RoleTool {
			sawTool = true
			assert.Equal(t, tool.output, stream.Flatten(msg.Content))
		}
	}
	assert.True(t, sawTool)

	// second round carries the tool call and its response back to the model
	require.Equal(t, 2, model.call)
	secondRound := model.received[1]
	assert.Greater(t, len(secondRound), len(model.received[0]))
}

func TestRun_ModelFailure(t *testing.T) {
	model := &scriptedModel{steps: []scriptedStep{
		{err: errors.New("upstream 500")},
	}}
	a := NewWithModel(model, &recordingTool{})

	snaps, err := collectRun(t, a, []ChatMessage{{Role: "user", Content: "hello"}})
	require.Error(t, err)
	assert.Empty(t, snaps)
}

func TestRun_UnknownToolName(t *testing.T) {
	model := &scriptedModel{steps: []scriptedStep{
		{choice: &llms.ContentChoice{ToolCalls: []llms.ToolCall{{
			ID:           "call-1",
			FunctionCall: &llms.FunctionCall{Name: "launch_rockets", Arguments: `{}`},
		}}}},
		{choice: &llms.ContentChoice{Content: "done"}},
	}}
	a := NewWithModel(model, &recordingTool{})

	snaps, err := collectRun(t, a, []ChatMessage{{Role: "user", Content: "hello"}})
	require.NoError(t, err)

	var toolOutput string
	for _, snap := range snaps {
		msg := snap.Messages[len(snap.Messages)-1]
		if msg.Role == stream.RoleTool {
			toolOutput = stream.Flatten(msg.Content)
		}
	}
	assert.Contains(t, toolOutput, "unknown tool")
}
