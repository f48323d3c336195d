package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)

	_, err = New(100, 100)
	assert.Error(t, err)

	_, err = New(100, -1)
	assert.Error(t, err)

	c, err := New(100, 20)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestSplit_Empty(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)
	assert.Nil(t, c.Split(""))
}

func TestSplit_ShortInputSingleChunk(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 11, chunks[0].End)
}

func TestSplit_HardCutSpans(t *testing.T) {
	// 2500 boundary-free bytes with size 1000 / overlap 200 must produce
	// exactly the spans [0,1000), [800,1800), [1600,2500).
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(strings.Repeat("a", 2500))
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 1000, chunks[0].End)
	assert.Equal(t, 800, chunks[1].Start)
	assert.Equal(t, 1800, chunks[1].End)
	assert.Equal(t, 1600, chunks[2].Start)
	assert.Equal(t, 2500, chunks[2].End)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, ch.End-ch.Start, len(ch.Text))
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	text := strings.Repeat("x", 400) + "\n\n" + strings.Repeat("y", 600)
	c, err := New(500, 100)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	// first cut lands just after the paragraph break, not at the hard limit
	assert.Equal(t, 402, chunks[0].End)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"))
}

func TestSplit_FallsBackToWordBoundary(t *testing.T) {
	text := strings.Repeat("word ", 300) // 1500 bytes, spaces only
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.True(t, len(chunks) >= 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, " "))
	assert.LessOrEqual(t, chunks[0].End, 1000)
}

func TestSplit_CoverageReconstructsInput(t *testing.T) {
	inputs := []string{
		strings.Repeat("a", 2500),
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60),
		"para one\n\n" + strings.Repeat("body text ", 200) + "\n\nfinal para",
		strings.Repeat("word ", 123) + "tail",
	}
	c, err := New(300, 60)
	require.NoError(t, err)

	for _, input := range inputs {
		chunks := c.Split(input)
		var b strings.Builder
		for i, ch := range chunks {
			if i == 0 {
				b.WriteString(ch.Text)
				continue
			}
			b.WriteString(ch.Text[60:])
		}
		assert.Equal(t, input, b.String())
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentence one. Sentence two.\n\nAnd a paragraph. ", 40)
	c, err := New(250, 50)
	require.NoError(t, err)

	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplit_NoGapsAndFixedOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 100)
	c, err := New(400, 80)
	require.NoError(t, err)

	chunks := c.Split(text)
	require.True(t, len(chunks) > 1)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].End-80, chunks[i].Start)
	}
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}
