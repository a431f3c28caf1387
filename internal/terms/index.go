// Package terms maintains the domain vocabulary extracted from the indexed
// corpus. The query classifier matches incoming queries against this
// vocabulary to decide whether the corpus can answer them.
package terms

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

// Config controls term extraction.
type Config struct {
	// MaxTerms caps the vocabulary size (default: 200).
	MaxTerms int

	// MinDocFreq is the minimum number of chunks a term must occur in
	// (default: 2). Terms seen once are usually noise.
	MinDocFreq int

	// UseLLM enables LLM-assisted extraction with statistical fallback.
	UseLLM bool
}

// DefaultConfig returns the standard extraction configuration.
func DefaultConfig() Config {
	return Config{MaxTerms: 200, MinDocFreq: 2}
}

// Extractor proposes domain terms from a corpus sample. Implemented by the
// generation client; failures fall back to statistical extraction.
type Extractor interface {
	ExtractTerms(ctx context.Context, sample string) ([]string, error)
}

// Snapshot is an immutable view of the extracted vocabulary.
// Lookups run lock-free against whichever snapshot was current when the
// query arrived; Refresh swaps in a new one atomically.
type Snapshot struct {
	// Terms is the vocabulary ordered by descending score.
	Terms []string

	// BuiltAt records when this snapshot was extracted.
	BuiltAt time.Time

	// ChunkCount is the corpus size the snapshot was built from.
	ChunkCount int

	unigrams map[string]struct{}
	bigrams  map[string]struct{}
}

// emptySnapshot is the zero vocabulary used before the first Refresh.
var emptySnapshot = &Snapshot{
	unigrams: map[string]struct{}{},
	bigrams:  map[string]struct{}{},
}

// Index holds the current vocabulary snapshot.
type Index struct {
	cfg       Config
	extractor Extractor
	snapshot  atomic.Pointer[Snapshot]
	logger    *slog.Logger
}

// NewIndex creates an empty term index. extractor may be nil; it is only
// consulted when cfg.UseLLM is set.
func NewIndex(cfg Config, extractor Extractor, logger *slog.Logger) *Index {
	if cfg.MaxTerms <= 0 {
		cfg.MaxTerms = DefaultConfig().MaxTerms
	}
	if cfg.MinDocFreq <= 0 {
		cfg.MinDocFreq = DefaultConfig().MinDocFreq
	}
	if logger == nil {
		logger = slog.Default()
	}

	idx := &Index{cfg: cfg, extractor: extractor, logger: logger}
	idx.snapshot.Store(emptySnapshot)
	return idx
}

// Snapshot returns the current vocabulary view.
func (i *Index) Snapshot() *Snapshot {
	return i.snapshot.Load()
}

// Refresh rebuilds the vocabulary from the given chunk texts and swaps it
// in atomically. In-flight queries keep using the previous snapshot.
func (i *Index) Refresh(ctx context.Context, corpus []string) error {
	start := time.Now()

	var terms []string
	if i.cfg.UseLLM && i.extractor != nil {
		llmTerms, err := i.extractor.ExtractTerms(ctx, sampleCorpus(corpus))
		if err != nil || len(llmTerms) == 0 {
			i.logger.Warn("llm term extraction failed, using statistical extraction",
				slog.Any("error", err))
			terms = i.extractStatistical(corpus)
		} else {
			terms = normalizeTerms(llmTerms, i.cfg.MaxTerms)
		}
	} else {
		terms = i.extractStatistical(corpus)
	}

	snap := newSnapshot(terms, len(corpus))
	i.snapshot.Store(snap)

	i.logger.Info("domain terms refreshed",
		slog.Int("terms", len(terms)),
		slog.Int("chunks", len(corpus)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// Clear drops the vocabulary, used after the corpus is wiped.
func (i *Index) Clear() {
	i.snapshot.Store(emptySnapshot)
}

// MatchTerms reports which vocabulary terms occur in the query.
// Matching is whole-word and case-insensitive; bigram terms must appear as
// consecutive query words. Lookups probe the snapshot's sets, so cost
// scales with the query, not the vocabulary.
func (i *Index) MatchTerms(query string) []string {
	snap := i.Snapshot()
	if len(snap.Terms) == 0 {
		return nil
	}

	words := tokenize(query)
	if len(words) == 0 {
		return nil
	}

	var matched []string
	seen := make(map[string]struct{}, len(words))
	for j, w := range words {
		if _, ok := snap.unigrams[w]; ok {
			if _, dup := seen[w]; !dup {
				seen[w] = struct{}{}
				matched = append(matched, w)
			}
		}
		if j+1 < len(words) {
			bg := w + " " + words[j+1]
			if _, ok := snap.bigrams[bg]; ok {
				if _, dup := seen[bg]; !dup {
					seen[bg] = struct{}{}
					matched = append(matched, bg)
				}
			}
		}
	}
	return matched
}

// extractStatistical scores unigrams and bigrams by chunk frequency against
// the background vocabulary. Bigrams are weighted double since a recurring
// two-word phrase is a much stronger domain signal than a single word.
func (i *Index) extractStatistical(corpus []string) []string {
	type candidate struct {
		term  string
		score float64
	}

	uniFreq := make(map[string]int)
	biFreq := make(map[string]int)

	for _, text := range corpus {
		words := tokenize(text)

		seenUni := make(map[string]struct{})
		for _, w := range words {
			if len(w) < 3 || isBackground(w) || isNumeric(w) {
				continue
			}
			if _, dup := seenUni[w]; !dup {
				seenUni[w] = struct{}{}
				uniFreq[w]++
			}
		}

		seenBi := make(map[string]struct{})
		for j := 0; j+1 < len(words); j++ {
			a, b := words[j], words[j+1]
			if len(a) < 3 || len(b) < 3 || isBackground(a) || isBackground(b) ||
				isNumeric(a) || isNumeric(b) {
				continue
			}
			bg := a + " " + b
			if _, dup := seenBi[bg]; !dup {
				seenBi[bg] = struct{}{}
				biFreq[bg]++
			}
		}
	}

	candidates := make([]candidate, 0, len(uniFreq)+len(biFreq))
	for term, freq := range uniFreq {
		if freq >= i.cfg.MinDocFreq {
			candidates = append(candidates, candidate{term, float64(freq)})
		}
	}
	for term, freq := range biFreq {
		if freq >= i.cfg.MinDocFreq {
			candidates = append(candidates, candidate{term, 2.0 * float64(freq)})
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].term < candidates[b].term
	})

	if len(candidates) > i.cfg.MaxTerms {
		candidates = candidates[:i.cfg.MaxTerms]
	}

	terms := make([]string, len(candidates))
	for j, c := range candidates {
		terms[j] = c.term
	}
	return terms
}

// newSnapshot builds the lookup sets for a term list.
func newSnapshot(terms []string, chunkCount int) *Snapshot {
	snap := &Snapshot{
		Terms:      terms,
		BuiltAt:    time.Now(),
		ChunkCount: chunkCount,
		unigrams:   make(map[string]struct{}, len(terms)),
		bigrams:    make(map[string]struct{}),
	}
	for _, t := range terms {
		if strings.Contains(t, " ") {
			snap.bigrams[t] = struct{}{}
		} else {
			snap.unigrams[t] = struct{}{}
		}
	}
	return snap
}

// normalizeTerms lowercases, dedups, and caps an extractor-provided list.
func normalizeTerms(terms []string, max int) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || isBackground(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return out
}

// sampleCorpus concatenates corpus texts up to a budget suitable for a
// single LLM prompt.
func sampleCorpus(corpus []string) string {
	const budget = 8000
	var b strings.Builder
	for _, text := range corpus {
		if b.Len() >= budget {
			break
		}
		remaining := budget - b.Len()
		if len(text) > remaining {
			text = text[:remaining]
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

var wordPattern = regexp.MustCompile(`[a-z0-9][a-z0-9_-]*`)

// tokenize lowercases and splits text into word tokens.
func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// isNumeric reports whether a token is all digits.
func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
