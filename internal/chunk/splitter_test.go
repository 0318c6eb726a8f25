package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// CleanLines
// ============================================================================

func TestCleaner_CleanLines_CollapsesWhitespace(t *testing.T) {
	c := MustNewCleaner(nil)

	out := c.CleanLines([]string{"  hola\t\t mundo  ", "", "   ", "otra\nlinea"})

	assert.Equal(t, []string{"hola mundo", "otra linea"}, out)
}

func TestCleaner_CleanLines_DropsNoise(t *testing.T) {
	c := MustNewCleaner(nil)

	noise := []string{
		"www.jdperon.gov.ar",
		"Austria 2593",
		"1425 Buenos Aires",
		"Instituto Nacional Juan Domingo Perón",
		"Tlfs. 4802-0000",
		"12",
		"12.",
		"a.",
		"XIV.",
		"Art.",
		"Registro N.",
		"Documento N",
		"Cit.",
		"cit., pp.",
	}
	kept := "El pueblo argentino"

	out := c.CleanLines(append(noise, kept))

	assert.Equal(t, []string{kept}, out)
}

func TestCleaner_CleanLines_KeepsNumbersInsideText(t *testing.T) {
	c := MustNewCleaner(nil)

	out := c.CleanLines([]string{"En 1946 comenzó", "Art. 14 bis"})

	assert.Len(t, out, 2)
}

func TestNewCleaner_InvalidPattern(t *testing.T) {
	_, err := NewCleaner([]string{"("})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid noise pattern")
}

func TestNewCleaner_EmptyPatternsKeepsEverything(t *testing.T) {
	c := MustNewCleaner([]string{})

	assert.Equal(t, []string{"12"}, c.CleanLines([]string{"12"}))
}

// ============================================================================
// ChunkLines
// ============================================================================

func line(n int) string {
	return strings.Repeat("x", n)
}

func TestSplitter_ChunkLines_MergesShortLines(t *testing.T) {
	s := NewSplitter()

	chunks := s.ChunkLines([]string{line(50), line(50)})

	require.Len(t, chunks, 1)
	assert.Equal(t, 101, len(chunks[0]))
}

func TestSplitter_ChunkLines_EmitsWhenFull(t *testing.T) {
	// Given: lines that overflow MaxChars once the buffer passed MinChars
	s := NewSplitter()
	lines := []string{line(500), line(300), line(200)}

	// When
	chunks := s.ChunkLines(lines)

	// Then: first two lines fill a chunk (801), third starts a new one
	require.Len(t, chunks, 2)
	assert.Equal(t, 801, len(chunks[0]))
	assert.Equal(t, 200, len(chunks[1]))
}

func TestSplitter_ChunkLines_GrowsPastMaxWhenBufferSmall(t *testing.T) {
	// Given: a small buffer followed by a long line
	s := NewSplitter()

	// When: the buffer is below MinChars it absorbs the line anyway
	chunks := s.ChunkLines([]string{line(100), line(950)})

	// Then: one oversized chunk
	require.Len(t, chunks, 1)
	assert.Equal(t, 1051, len(chunks[0]))
}

func TestSplitter_ChunkLines_DropsShortTail(t *testing.T) {
	s := NewSplitter()

	chunks := s.ChunkLines([]string{line(600), line(400), line(79)})

	// 600+400 overflows; 400 then absorbs 79 -> 480
	require.Len(t, chunks, 2)
	assert.Equal(t, 480, len(chunks[1]))

	tail := s.ChunkLines([]string{line(79)})
	assert.Empty(t, tail)

	exact := s.ChunkLines([]string{line(80)})
	assert.Len(t, exact, 1)
}

func TestSplitter_ChunkLines_CountsCharactersNotBytes(t *testing.T) {
	s := &Splitter{MaxChars: 10, MinChars: 5, MinFinalChars: 1}

	// "ñññññ" is 5 characters but 10 bytes
	chunks := s.ChunkLines([]string{"ñññññ", "ñññññ"})

	require.Len(t, chunks, 2)
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[0]))
}

func TestSplitter_ChunkLines_Bounds(t *testing.T) {
	// Every chunk is >= MinFinalChars and only exceeds MaxChars when a
	// single input line does.
	s := NewSplitter()
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, line(20+(i*37)%300))
	}

	chunks := s.ChunkLines(lines)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		n := utf8.RuneCountInString(c)
		assert.GreaterOrEqual(t, n, DefaultMinFinalChars)
		assert.LessOrEqual(t, n, DefaultMaxChars)
	}
}

func TestSplitter_ChunkLines_Empty(t *testing.T) {
	assert.Empty(t, NewSplitter().ChunkLines(nil))
}
