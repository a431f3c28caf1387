package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
)

func newTestSplitter(t *testing.T, opts Options) *Splitter {
	t.Helper()
	s, err := NewSplitter(opts)
	require.NoError(t, err)
	return s
}

// reconstruct rebuilds a document from its chunks using offsets: the first
// chunk verbatim, then each chunk minus the part already covered.
func reconstruct(chunks []Chunk) string {
	var b strings.Builder
	covered := 0
	for _, c := range chunks {
		if c.Start >= covered {
			b.WriteString(c.Text)
		} else {
			b.WriteString(c.Text[covered-c.Start:])
		}
		covered = c.End
	}
	return b.String()
}

func TestNewSplitter_RejectsOverlapAtOrAboveMaxSize(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{MaxSize: 100, MinSize: 10, Overlap: 20, Enabled: true}, false},
		{"overlap equals max", Options{MaxSize: 100, MinSize: 10, Overlap: 100, Enabled: true}, true},
		{"overlap above max", Options{MaxSize: 100, MinSize: 10, Overlap: 150, Enabled: true}, true},
		{"negative overlap", Options{MaxSize: 100, MinSize: 10, Overlap: -1, Enabled: true}, true},
		{"zero max size", Options{MaxSize: 0, MinSize: 0, Overlap: 0, Enabled: true}, true},
		{"min above max", Options{MaxSize: 100, MinSize: 200, Overlap: 10, Enabled: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ragerr.ErrCodeConfigInvalid, ragerr.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplit_EmptyDocumentYieldsNoChunks(t *testing.T) {
	s := newTestSplitter(t, DefaultOptions())
	assert.Nil(t, s.Split("doc1", ""))
}

func TestSplit_DisabledYieldsSingleChunk(t *testing.T) {
	s := newTestSplitter(t, Options{MaxSize: 10, MinSize: 2, Overlap: 1, Enabled: false})
	text := strings.Repeat("long text well past max size. ", 20)

	chunks := s.Split("doc1", text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len(text), chunks[0].End)
	assert.Equal(t, "doc1#chunk-0", chunks[0].ID)
}

func TestSplit_ShortDocumentYieldsSingleChunk(t *testing.T) {
	s := newTestSplitter(t, DefaultOptions())
	chunks := s.Split("doc1", "a short document")

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
}

func TestSplit_SentenceBoundariesWithOverlap(t *testing.T) {
	// "A. B. C." with max 5, min 2, overlap 1 splits at sentence ends and
	// repeats one byte of overlap at each continuation.
	s := newTestSplitter(t, Options{MaxSize: 5, MinSize: 2, Overlap: 1, Enabled: true})
	text := "A. B. C."

	chunks := s.Split("doc1", text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "A. ", chunks[0].Text)
	assert.Equal(t, " B. ", chunks[1].Text)
	assert.Equal(t, " C.", chunks[2].Text)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 3, chunks[0].End)
	assert.Equal(t, 2, chunks[1].Start)
	assert.Equal(t, 6, chunks[1].End)
	assert.Equal(t, 5, chunks[2].Start)
	assert.Equal(t, 8, chunks[2].End)

	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_OffsetsAlwaysSliceOriginal(t *testing.T) {
	s := newTestSplitter(t, Options{MaxSize: 40, MinSize: 10, Overlap: 8, Enabled: true})
	text := "First sentence here. Second sentence follows. Third one too. And a fourth sentence."

	chunks := s.Split("doc1", text)

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, text[c.Start:c.End], c.Text, "chunk %d text must match its offsets", i)
		assert.Equal(t, i, c.Sequence)
		assert.Equal(t, ChunkID("doc1", i), c.ID)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_OverlapIsRepeatedAtChunkStart(t *testing.T) {
	s := newTestSplitter(t, Options{MaxSize: 30, MinSize: 5, Overlap: 6, Enabled: true})
	text := strings.Repeat("alpha beta gamma delta. ", 10)

	chunks := s.Split("doc1", text)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Equal(t, prev.End-s.Options().Overlap, cur.Start,
			"chunk %d must start overlap bytes before the previous end", i)
		shared := text[cur.Start:prev.End]
		assert.True(t, strings.HasPrefix(cur.Text, shared))
		assert.True(t, strings.HasSuffix(prev.Text, shared))
	}
}

func TestSplit_HardCutWhenNoBoundary(t *testing.T) {
	s := newTestSplitter(t, Options{MaxSize: 10, MinSize: 2, Overlap: 2, Enabled: true})
	text := strings.Repeat("x", 35)

	chunks := s.Split("doc1", text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 10, len(chunks[0].Text))
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_TrailingFragmentMergedIntoPrevious(t *testing.T) {
	// Force a final fragment shorter than MinSize and verify it folds into
	// the previous chunk instead of standing alone.
	s := newTestSplitter(t, Options{MaxSize: 10, MinSize: 4, Overlap: 0, Enabled: true})
	text := strings.Repeat("x", 22) // 10 + 10 + 2, trailing 2 < MinSize 4

	chunks := s.Split("doc1", text)

	require.Len(t, chunks, 2)
	last := chunks[len(chunks)-1]
	assert.Equal(t, len(text), last.End)
	assert.GreaterOrEqual(t, last.End-last.Start, s.Options().MinSize)
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	text := "First paragraph content here.\n\nSecond paragraph content follows after the break."
	s := newTestSplitter(t, Options{MaxSize: 50, MinSize: 10, Overlap: 0, Enabled: true})

	chunks := s.Split("doc1", text)

	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"),
		"first chunk should end at the paragraph break, got %q", chunks[0].Text)
}

func TestSplit_Deterministic(t *testing.T) {
	s := newTestSplitter(t, DefaultOptions())
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)

	first := s.Split("doc1", text)
	second := s.Split("doc1", text)

	assert.Equal(t, first, second)
}

func TestSplit_MultibyteRunesStayIntact(t *testing.T) {
	s := newTestSplitter(t, Options{MaxSize: 10, MinSize: 2, Overlap: 0, Enabled: true})
	text := strings.Repeat("héllo wörld ", 5)

	chunks := s.Split("doc1", text)

	for i, c := range chunks {
		assert.True(t, strings.ToValidUTF8(c.Text, "") == c.Text,
			"chunk %d should not split a rune", i)
	}
	assert.Equal(t, text, reconstruct(chunks))
}

func TestSplit_OverlapStartsOnRuneBoundary(t *testing.T) {
	// An overlap of 3 bytes lands mid-rune on 2-byte characters; the
	// rewind must back off to the previous rune start.
	s := newTestSplitter(t, Options{MaxSize: 10, MinSize: 2, Overlap: 3, Enabled: true})
	text := strings.Repeat("é", 20)

	chunks := s.Split("doc1", text)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.True(t, utf8.ValidString(c.Text),
			"chunk %d starts mid-rune: %q", i, c.Text)
	}
	assert.Equal(t, text, reconstruct(chunks))
}
