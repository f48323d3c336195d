package ragtool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seju-chat/internal/models"
)

type fakeRetriever struct {
	results  []models.RetrievedResult
	err      error
	gotQuery string
	gotK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]models.RetrievedResult, error) {
	f.gotQuery = query
	f.gotK = k
	return f.results, f.err
}

func (f *fakeRetriever) DefaultK() int { return 4 }

func TestTool_Identity(t *testing.T) {
	tool := New(&fakeRetriever{})
	assert.Equal(t, "rag_query", tool.Name())
	assert.NotEmpty(t, tool.Description())
}

func TestCall_FormatsResults(t *testing.T) {
	retriever := &fakeRetriever{results: []models.RetrievedResult{
		{Text: "paged text", Metadata: map[string]string{models.MetaSource: "manual.pdf", models.MetaPage: "3"}},
		{Text: "unpaged text", Metadata: map[string]string{models.MetaSource: "notes.txt"}},
		{Text: "bare text"},
	}}
	tool := New(retriever)

	out, err := tool.Call(context.Background(), "how do I reset it?")
	require.NoError(t, err)

	blocks := strings.Split(out, "\n\n-----\n\n")
	require.Len(t, blocks, 3)
	assert.Equal(t, "[manual.pdf p.3] paged text", blocks[0])
	assert.Equal(t, "[notes.txt] unpaged text", blocks[1])
	assert.Equal(t, "bare text", blocks[2])

	assert.Equal(t, "how do I reset it?", retriever.gotQuery)
	assert.Equal(t, 4, retriever.gotK)
}

func TestCall_NoResultsSentinel(t *testing.T) {
	tool := New(&fakeRetriever{})

	out, err := tool.Call(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, NoContentSentinel, out)
}

func TestCall_SwallowsRetrievalFailure(t *testing.T) {
	tool := New(&fakeRetriever{err: errors.New("index unreachable")})

	out, err := tool.Call(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "Error while searching the knowledge base")
	assert.Contains(t, out, "index unreachable")
}

func TestDefinition(t *testing.T) {
	def := Definition()
	assert.Equal(t, "function", def.Type)
	require.NotNil(t, def.Function)
	assert.Equal(t, ToolName, def.Function.Name)
}
