// Package index provides cross-store consistency checking. The chunk store
// is the source of truth; the lexical and vector indexes must carry exactly
// its chunk IDs.
package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanLexical is a lexical entry with no stored chunk.
	InconsistencyOrphanLexical InconsistencyType = iota
	// InconsistencyOrphanVector is a vector entry with no stored chunk.
	InconsistencyOrphanVector
	// InconsistencyMissingLexical is a stored chunk absent from the
	// lexical index.
	InconsistencyMissingLexical
	// InconsistencyMissingVector is a stored chunk absent from the vector
	// store.
	InconsistencyMissingVector
)

// String returns the issue name.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanLexical:
		return "orphan_lexical"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingLexical:
		return "missing_lexical"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
}

// CheckResult is the outcome of one consistency check.
type CheckResult struct {
	// Checked is the number of stored chunks verified.
	Checked int

	// Inconsistencies lists every detected issue.
	Inconsistencies []Inconsistency

	// Duration is how long the check took.
	Duration time.Duration
}

// Consistent reports whether the stores agree.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// ConsistencyChecker compares the three stores' chunk ID sets.
type ConsistencyChecker struct {
	chunks  store.ChunkStore
	lexical store.LexicalIndex
	vectors store.VectorStore
	logger  *slog.Logger
}

// NewConsistencyChecker creates a checker over the given stores.
func NewConsistencyChecker(chunks store.ChunkStore, lexical store.LexicalIndex, vectors store.VectorStore, logger *slog.Logger) *ConsistencyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyChecker{
		chunks:  chunks,
		lexical: lexical,
		vectors: vectors,
		logger:  logger,
	}
}

// Check scans all stores. O(n) in total entries.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	storedIDs, err := c.chunks.AllChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}

	lexicalIDs, err := c.lexical.AllIDs()
	if err != nil {
		c.logger.Warn("failed to list lexical ids for consistency check",
			slog.String("error", err.Error()))
	}
	vectorIDs := c.vectors.AllIDs()

	var issues []Inconsistency

	inLexical := make(map[string]bool, len(lexicalIDs))
	for _, id := range lexicalIDs {
		inLexical[id] = true
		if !stored[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanLexical, ChunkID: id})
		}
	}

	inVector := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		inVector[id] = true
		if !stored[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanVector, ChunkID: id})
		}
	}

	for _, id := range storedIDs {
		if !inLexical[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingLexical, ChunkID: id})
		}
		if !inVector[id] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, ChunkID: id})
		}
	}

	result := &CheckResult{
		Checked:         len(storedIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}

	if !result.Consistent() {
		c.logger.Warn("store inconsistency detected",
			slog.Int("checked", result.Checked),
			slog.Int("issues", len(issues)))
	}
	return result, nil
}

// Repair removes orphaned index entries. Missing entries require a
// reingest, which repair does not attempt: it only ever deletes derived
// data, never the source of truth.
func (c *ConsistencyChecker) Repair(ctx context.Context, result *CheckResult) (int, error) {
	var lexOrphans, vecOrphans []string
	for _, issue := range result.Inconsistencies {
		switch issue.Type {
		case InconsistencyOrphanLexical:
			lexOrphans = append(lexOrphans, issue.ChunkID)
		case InconsistencyOrphanVector:
			vecOrphans = append(vecOrphans, issue.ChunkID)
		}
	}

	if len(lexOrphans) > 0 {
		if err := c.lexical.Delete(ctx, lexOrphans); err != nil {
			return 0, err
		}
	}
	if len(vecOrphans) > 0 {
		if err := c.vectors.Delete(ctx, vecOrphans); err != nil {
			return len(lexOrphans), err
		}
	}

	repaired := len(lexOrphans) + len(vecOrphans)
	if repaired > 0 {
		c.logger.Info("orphaned index entries removed",
			slog.Int("lexical", len(lexOrphans)),
			slog.Int("vector", len(vecOrphans)))
	}
	return repaired, nil
}
