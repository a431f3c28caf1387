package terms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus() []string {
	return []string{
		"DuploCloud tenants isolate workloads. Each tenant owns its infrastructure.",
		"Create a tenant before deploying services. The tenant controls access.",
		"DuploCloud infrastructure provisioning uses tenants for isolation.",
		"Service deployment happens inside a tenant. DuploCloud manages the infrastructure.",
	}
}

func TestRefresh_ExtractsRecurringDomainTerms(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	snap := idx.Snapshot()
	assert.Contains(t, snap.Terms, "tenant")
	assert.Contains(t, snap.Terms, "duplocloud")
	assert.Contains(t, snap.Terms, "infrastructure")
	assert.Equal(t, 4, snap.ChunkCount)
}

func TestRefresh_BackgroundWordsNeverQualify(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	for _, term := range idx.Snapshot().Terms {
		for _, word := range strings.Fields(term) {
			assert.False(t, isBackground(word), "background word %q leaked into terms", word)
		}
	}
}

func TestRefresh_RespectsMinDocFreq(t *testing.T) {
	idx := NewIndex(Config{MaxTerms: 100, MinDocFreq: 3}, nil, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	// "tenant" appears in all four chunks, "provisioning" in one.
	snap := idx.Snapshot()
	assert.Contains(t, snap.Terms, "tenant")
	assert.NotContains(t, snap.Terms, "provisioning")
}

func TestRefresh_CapsAtMaxTerms(t *testing.T) {
	idx := NewIndex(Config{MaxTerms: 2, MinDocFreq: 2}, nil, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	assert.LessOrEqual(t, len(idx.Snapshot().Terms), 2)
}

func TestMatchTerms_WholeWordCaseInsensitive(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)
	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	matched := idx.MatchTerms("How do I configure a TENANT in DuploCloud?")
	assert.Contains(t, matched, "tenant")
	assert.Contains(t, matched, "duplocloud")

	// Substring occurrences must not match: "tenants" is a different token
	// than "tenant" only when the corpus never produced the plural; the
	// guarantee under test is that "multitenant" does not match "tenant".
	matched = idx.MatchTerms("multitenant architectures")
	assert.NotContains(t, matched, "tenant")
}

func TestMatchTerms_RepeatedQueryWordsMatchOnce(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)
	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	matched := idx.MatchTerms("tenant tenant tenant")

	assert.Equal(t, []string{"tenant"}, matched)
}

func TestMatchTerms_EmptyIndexMatchesNothing(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)
	assert.Nil(t, idx.MatchTerms("duplocloud tenant"))
}

func TestClear_DropsVocabulary(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)
	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))
	require.NotEmpty(t, idx.Snapshot().Terms)

	idx.Clear()

	assert.Empty(t, idx.Snapshot().Terms)
	assert.Nil(t, idx.MatchTerms("tenant"))
}

type fakeExtractor struct {
	terms []string
	err   error
}

func (f *fakeExtractor) ExtractTerms(_ context.Context, _ string) ([]string, error) {
	return f.terms, f.err
}

func TestRefresh_LLMTermsUsedWhenAvailable(t *testing.T) {
	extractor := &fakeExtractor{terms: []string{"Kubernetes", "helm chart", "kubernetes"}}
	idx := NewIndex(Config{MaxTerms: 10, MinDocFreq: 2, UseLLM: true}, extractor, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	// Lowercased and deduplicated.
	assert.Equal(t, []string{"kubernetes", "helm chart"}, idx.Snapshot().Terms)
}

func TestRefresh_LLMFailureFallsBackToStatistical(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("model not loaded")}
	idx := NewIndex(Config{MaxTerms: 100, MinDocFreq: 2, UseLLM: true}, extractor, nil)

	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	assert.Contains(t, idx.Snapshot().Terms, "tenant")
}

func TestRefresh_SwapIsAtomicUnderConcurrentReads(t *testing.T) {
	idx := NewIndex(DefaultConfig(), nil, nil)
	require.NoError(t, idx.Refresh(context.Background(), testCorpus()))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = idx.MatchTerms("duplocloud tenant infrastructure")
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Refresh(context.Background(), testCorpus()))
	}
	close(stop)
	wg.Wait()
}

func TestMatchTerms_BigramsRequireAdjacency(t *testing.T) {
	corpus := []string{
		"helm chart deployment steps", "install the helm chart first",
		"helm chart values reference",
	}
	idx := NewIndex(Config{MaxTerms: 50, MinDocFreq: 2}, nil, nil)
	require.NoError(t, idx.Refresh(context.Background(), corpus))
	require.Contains(t, idx.Snapshot().Terms, "helm chart")

	assert.Contains(t, idx.MatchTerms("upgrade my helm chart"), "helm chart")
	assert.NotContains(t, idx.MatchTerms("helm and a chart"), "helm chart")
}
