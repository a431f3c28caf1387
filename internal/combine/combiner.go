// Package combine merges retrieved chunks of the same document into
// contiguous context blocks, deduplicating chunk overlap via offsets.
package combine

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/chunk"
	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/search"
)

// gapSeparator joins non-adjacent chunks of the same document.
const gapSeparator = "\n\n"

// ContextBlock is a unit of context handed to the caller (and ultimately
// the generation prompt). With combining enabled a block spans every
// retrieved chunk of one document; disabled, one block wraps one chunk.
type ContextBlock struct {
	// DocumentID identifies the source document.
	DocumentID string

	// Text is the merged content. Overlapping chunk regions appear once.
	Text string

	// ChunkIDs lists the member chunks in document order.
	ChunkIDs []string

	// Rank is the best (lowest) fused rank of any member, 1-indexed.
	Rank int

	// Score is the best fused score of any member.
	Score float64
}

// Lookup resolves chunk IDs to stored chunks. Satisfied by store.ChunkStore.
type Lookup interface {
	GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error)
}

// Combiner builds context blocks from fused results.
type Combiner struct {
	lookup Lookup
	logger *slog.Logger
}

// member pairs a fused result with its resolved chunk and 1-indexed rank.
type member struct {
	res   *search.FusedResult
	rank  int
	chunk *chunk.Chunk
}

// NewCombiner creates a Combiner reading chunk content from lookup.
func NewCombiner(lookup Lookup, logger *slog.Logger) *Combiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Combiner{lookup: lookup, logger: logger}
}

// Combine resolves the fused results and builds context blocks.
//
// A fused ID missing from the store is dropped with a warning and reported
// in the returned missing slice; the remaining results still produce
// blocks. Only a failed lookup aborts.
func (c *Combiner) Combine(
	ctx context.Context,
	fused []*search.FusedResult,
	enabled bool,
) ([]ContextBlock, []string, error) {
	if len(fused) == 0 {
		return []ContextBlock{}, nil, nil
	}

	ids := make([]string, len(fused))
	for i, r := range fused {
		ids[i] = r.ChunkID
	}

	chunks, err := c.lookup.GetChunks(ctx, ids)
	if err != nil {
		return nil, nil, ragerr.Wrap(ragerr.ErrCodeInternal, err)
	}

	byID := make(map[string]*chunk.Chunk, len(chunks))
	for _, ch := range chunks {
		byID[ch.ID] = ch
	}

	// Pair each resolvable result with its chunk, preserving fused order.
	members := make([]member, 0, len(fused))
	var missing []string
	for i, r := range fused {
		ch, ok := byID[r.ChunkID]
		if !ok {
			missing = append(missing, r.ChunkID)
			c.logger.Warn("ranked chunk missing from store, dropping",
				slog.String("chunk_id", r.ChunkID),
				slog.String("error", ragerr.LookupMiss(r.ChunkID).Error()))
			continue
		}
		members = append(members, member{res: r, rank: i + 1, chunk: ch})
	}

	if len(members) == 0 {
		return []ContextBlock{}, missing, nil
	}

	if !enabled {
		blocks := make([]ContextBlock, len(members))
		for i, m := range members {
			blocks[i] = ContextBlock{
				DocumentID: m.chunk.DocumentID,
				Text:       m.chunk.Text,
				ChunkIDs:   []string{m.chunk.ID},
				Rank:       m.rank,
				Score:      m.res.Score,
			}
		}
		return blocks, missing, nil
	}

	// Group members by document, tracking each group's best fused rank.
	groups := make(map[string][]member)
	var docOrder []string
	for _, m := range members {
		docID := m.chunk.DocumentID
		if _, seen := groups[docID]; !seen {
			docOrder = append(docOrder, docID)
		}
		groups[docID] = append(groups[docID], m)
	}

	blocks := make([]ContextBlock, 0, len(groups))
	for _, docID := range docOrder {
		blocks = append(blocks, c.mergeGroup(docID, groups[docID]))
	}

	// Block order follows the best member rank; docOrder already reflects
	// fused order so equal ranks cannot occur, but keep the sort stable.
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Rank < blocks[j].Rank
	})

	return blocks, missing, nil
}

// mergeGroup merges one document's chunks in sequence order. Overlapping
// regions (next chunk starting at or before the previous end) are emitted
// once; genuine gaps are joined with a blank line.
func (c *Combiner) mergeGroup(docID string, group []member) ContextBlock {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].chunk.Sequence < group[j].chunk.Sequence
	})

	block := ContextBlock{
		DocumentID: docID,
		Rank:       group[0].rank,
		Score:      group[0].res.Score,
	}

	var b strings.Builder
	prevEnd := -1
	for _, m := range group {
		ch := m.chunk
		block.ChunkIDs = append(block.ChunkIDs, ch.ID)
		if m.rank < block.Rank {
			block.Rank = m.rank
		}
		if m.res.Score > block.Score {
			block.Score = m.res.Score
		}

		switch {
		case prevEnd < 0:
			b.WriteString(ch.Text)
		case ch.Start <= prevEnd:
			// Touching chunks (Start == prevEnd, overlap zero) are
			// contiguous text, not a gap.
			overlap := prevEnd - ch.Start
			if overlap < len(ch.Text) {
				b.WriteString(ch.Text[overlap:])
			}
		default:
			b.WriteString(gapSeparator)
			b.WriteString(ch.Text)
		}
		if ch.End > prevEnd {
			prevEnd = ch.End
		}
	}
	block.Text = b.String()
	return block
}
