package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
)

// sentenceMarkers are boundary markers in preference order after paragraphs.
// A boundary position is the offset just past the marker, so the punctuation
// stays with the chunk it ends.
var sentenceMarkers = []string{". ", "! ", "? ", "\n"}

// paragraphMarker separates paragraphs and is the preferred split point.
const paragraphMarker = "\n\n"

// Splitter turns documents into overlapping chunks.
// Splitting is deterministic: the same text and options always produce the
// same chunks.
type Splitter struct {
	opts Options
}

// NewSplitter creates a Splitter, validating the options.
// Overlap equal to or larger than MaxSize can never make progress and is
// rejected as a configuration error.
func NewSplitter(opts Options) (*Splitter, error) {
	if opts.MaxSize <= 0 {
		return nil, ragerr.ConfigError("max chunk size must be positive", nil)
	}
	if opts.MinSize < 0 || opts.MinSize > opts.MaxSize {
		return nil, ragerr.ConfigError(
			fmt.Sprintf("min chunk size %d must be within [0, %d]", opts.MinSize, opts.MaxSize), nil)
	}
	if opts.Overlap < 0 {
		return nil, ragerr.ConfigError("chunk overlap must not be negative", nil)
	}
	if opts.Overlap >= opts.MaxSize {
		return nil, ragerr.ConfigError(
			fmt.Sprintf("chunk overlap %d must be smaller than max chunk size %d",
				opts.Overlap, opts.MaxSize), nil)
	}
	return &Splitter{opts: opts}, nil
}

// Options returns the splitter's options.
func (s *Splitter) Options() Options {
	return s.opts
}

// Split chunks a document. An empty document yields no chunks. With
// splitting disabled the whole document becomes a single chunk.
func (s *Splitter) Split(documentID, text string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	if !s.opts.Enabled || len(text) <= s.opts.MaxSize {
		return []Chunk{{
			ID:         ChunkID(documentID, 0),
			DocumentID: documentID,
			Sequence:   0,
			Text:       text,
			Start:      0,
			End:        len(text),
		}}
	}

	var chunks []Chunk
	pos := 0
	for pos < len(text) {
		end := s.chunkEnd(text, pos)

		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, len(chunks)),
			DocumentID: documentID,
			Sequence:   len(chunks),
			Text:       text[pos:end],
			Start:      pos,
			End:        end,
		})

		if end == len(text) {
			break
		}

		next := end - s.opts.Overlap
		// The overlap counts bytes, so back off to the previous rune start
		// rather than begin a chunk mid-rune.
		for next > 0 && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= pos {
			// Overlap would revisit the same window; drop it for this step.
			next = end
		}
		pos = next
	}

	return s.mergeTrailingFragment(text, chunks)
}

// chunkEnd finds where the chunk starting at pos should end.
// Paragraph breaks are preferred, then sentence boundaries, searched within
// (pos+MinSize, pos+MaxSize]. Without any boundary the chunk is cut hard at
// MaxSize, backed off to a rune start so multibyte characters stay intact.
func (s *Splitter) chunkEnd(text string, pos int) int {
	limit := pos + s.opts.MaxSize
	if limit >= len(text) {
		return len(text)
	}

	floor := pos + s.opts.MinSize
	window := text[pos:limit]

	if idx := strings.LastIndex(window, paragraphMarker); idx >= 0 {
		end := pos + idx + len(paragraphMarker)
		if end > floor {
			return end
		}
	}

	best := -1
	for _, marker := range sentenceMarkers {
		if idx := strings.LastIndex(window, marker); idx >= 0 {
			end := pos + idx + len(marker)
			if end > floor && end > best {
				best = end
			}
		}
	}
	if best > 0 {
		return best
	}

	// Hard cut; keep runes whole.
	end := limit
	for end > pos && !utf8.RuneStart(text[end]) {
		end--
	}
	if end == pos {
		end = limit
	}
	return end
}

// mergeTrailingFragment folds a final chunk shorter than MinSize into the
// previous chunk so no undersized fragment escapes.
func (s *Splitter) mergeTrailingFragment(text string, chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	last := chunks[len(chunks)-1]
	if last.End-last.Start >= s.opts.MinSize {
		return chunks
	}

	prev := &chunks[len(chunks)-2]
	prev.End = last.End
	prev.Text = text[prev.Start:prev.End]
	return chunks[:len(chunks)-1]
}
