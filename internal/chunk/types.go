// Package chunk splits documents into overlapping, offset-addressed chunks.
package chunk

import "fmt"

// Defaults for chunking options.
const (
	DefaultMaxSize = 1000
	DefaultMinSize = 200
	DefaultOverlap = 100
)

// Options controls how a document is split.
type Options struct {
	// MaxSize is the maximum chunk length in bytes.
	MaxSize int
	// MinSize is the minimum chunk length in bytes. A trailing fragment
	// shorter than this is merged into the previous chunk.
	MinSize int
	// Overlap is the number of bytes repeated from the end of one chunk
	// at the start of the next. Must be smaller than MaxSize.
	Overlap int
	// Enabled controls whether splitting happens at all. When false the
	// whole document becomes a single chunk.
	Enabled bool
}

// DefaultOptions returns the standard chunking options.
func DefaultOptions() Options {
	return Options{
		MaxSize: DefaultMaxSize,
		MinSize: DefaultMinSize,
		Overlap: DefaultOverlap,
		Enabled: true,
	}
}

// Chunk is a retrievable unit of a document.
// Text is always exactly the original document sliced at [Start, End), so a
// document can be reconstructed from its chunks by dropping each chunk's
// leading overlap.
type Chunk struct {
	// ID is the stable chunk identifier, DocumentID + "#chunk-" + Sequence.
	ID string
	// DocumentID identifies the source document.
	DocumentID string
	// Sequence is the 0-based position of the chunk within the document.
	Sequence int
	// Text is the chunk content including any leading overlap.
	Text string
	// Start and End are byte offsets into the original document.
	Start int
	End   int
}

// ChunkID builds the canonical chunk identifier for a document and sequence.
func ChunkID(documentID string, sequence int) string {
	return fmt.Sprintf("%s#chunk-%d", documentID, sequence)
}
