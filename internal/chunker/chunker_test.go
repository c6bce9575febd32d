package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileSlug = "local/test:src/sample.cpp"

func TestChunksEmptyContent(t *testing.T) {
	assert.Empty(t, Chunks(fileSlug, "", nil))
	assert.Empty(t, Chunks(fileSlug, "", []int{0}))
}

func TestChunksWhitespaceOnlyContent(t *testing.T) {
	assert.Empty(t, Chunks(fileSlug, "\n\n  \n", []int{0}))
}

func TestChunksSingleChunk(t *testing.T) {
	content := "x=1\ny=2\nz=3"
	chunks := Chunks(fileSlug, content, []int{0})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, fileSlug+"|0@1-3", chunks[0].SlugID)
}

func TestChunksOutOfRangeFallback(t *testing.T) {
	content := "a\nb\nc\nd\ne"
	chunks := Chunks(fileSlug, content, []int{100})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 5, chunks[0].EndLine)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, fileSlug+"|0", chunks[0].SlugID)
}

func TestChunksDuplicateUnsortedSlices(t *testing.T) {
	content := "a\nb\nc\nd\ne"
	chunks := Chunks(fileSlug, content, []int{3, 0, 3})
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, "a\nb\nc\n", chunks[0].Content)
	assert.Equal(t, 4, chunks[1].StartLine)
	assert.Equal(t, 5, chunks[1].EndLine)
	assert.Equal(t, "d\ne", chunks[1].Content)
}

func TestChunksCoverEveryLineWithoutOverlap(t *testing.T) {
	content := "l0\nl1\nl2\nl3\nl4\nl5\nl6\n"
	chunks := Chunks(fileSlug, content, []int{0, 2, 5})
	require.Len(t, chunks, 3)

	covered := make(map[int]int)
	for _, c := range chunks {
		for line := c.StartLine; line <= c.EndLine; line++ {
			covered[line]++
		}
	}
	for line := 1; line <= 7; line++ {
		assert.Equal(t, 1, covered[line], "line %d must be covered exactly once", line)
	}

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Content)
	}
	assert.Equal(t, content, joined.String())
}

func TestChunksIdempotent(t *testing.T) {
	content := "alpha\nbeta\ngamma\ndelta\n"
	first := Chunks(fileSlug, content, []int{0, 2})
	second := Chunks(fileSlug, content, []int{0, 2})
	assert.Equal(t, first, second)
}

func TestChunksNoTrailingNewline(t *testing.T) {
	content := "one\ntwo\nthree"
	chunks := Chunks(fileSlug, content, []int{0, 1})
	require.Len(t, chunks, 2)
	assert.Equal(t, "one\n", chunks[0].Content)
	assert.Equal(t, "two\nthree", chunks[1].Content)
	assert.Equal(t, 3, chunks[1].EndLine)
}
