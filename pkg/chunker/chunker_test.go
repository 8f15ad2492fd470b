package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyText(t *testing.T) {
	assert.Nil(t, Chunk("", DefaultOptions()))
	assert.Nil(t, Chunk("   \n\t  ", DefaultOptions()))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	text := "a short document"
	chunks := Chunk(text, DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkExactSizes(t *testing.T) {
	text := strings.Repeat("x", 2000)
	opts := Options{Size: 800, Overlap: 150}
	chunks := Chunk(text, opts)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks[:len(chunks)-1] {
		assert.Len(t, []rune(c), 800, "chunk %d", i)
	}
	last := []rune(chunks[len(chunks)-1])
	assert.LessOrEqual(t, len(last), 800)
	assert.Greater(t, len(last), 150, "tail must extend past the overlap region")
}

func TestChunkOverlapRegion(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("word ")
	}
	opts := Options{Size: 200, Overlap: 50}
	chunks := Chunk(sb.String(), opts)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-opts.Overlap:])
		head := string(cur[:opts.Overlap])
		assert.Equal(t, tail, head, "boundary %d", i)
	}
}

// Dropping the first Overlap runes of every chunk after the first must
// reconstruct the original text.
func TestChunkRoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("abcdefghij", 300),
		"Zażółć gęślą jaźń. " + strings.Repeat("Чебурашка идёт домой. ", 120),
		strings.Repeat("short sentences. ", 97),
	}
	opts := Options{Size: 300, Overlap: 60}

	for _, text := range texts {
		text = strings.TrimSpace(text)
		chunks := Chunk(text, opts)
		require.NotEmpty(t, chunks)

		var sb strings.Builder
		sb.WriteString(chunks[0])
		for _, c := range chunks[1:] {
			sb.WriteString(string([]rune(c)[opts.Overlap:]))
		}
		assert.Equal(t, text, sb.String())
	}
}

func TestChunkIsRestartable(t *testing.T) {
	text := strings.Repeat("deterministic input ", 200)
	a := Chunk(text, DefaultOptions())
	b := Chunk(text, DefaultOptions())
	assert.Equal(t, a, b)
}

func TestChunkDegenerateOptions(t *testing.T) {
	text := strings.Repeat("y", 100)

	// Overlap >= size must not loop forever.
	chunks := Chunk(text, Options{Size: 10, Overlap: 10})
	assert.NotEmpty(t, chunks)

	// Non-positive size falls back to the default.
	chunks = Chunk(text, Options{Size: 0, Overlap: 0})
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}
