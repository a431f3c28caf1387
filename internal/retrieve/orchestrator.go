// Package retrieve orchestrates a query end to end: routing, parallel
// source fetches, rank fusion, chunk combination, and web supplementation.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/combine"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/embed"
	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/search"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/store"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/websearch"
)

// overFetchFactor widens the fused candidate pool when combining is on:
// merging collapses same-document chunks, so fetching only NResults would
// often leave fewer blocks than requested.
const overFetchFactor = 3

// Options tunes a single orchestrator.
type Options struct {
	// NResults is how many context blocks the caller wants (default: 3).
	NResults int

	// CombineChunks merges same-document chunks into one block.
	CombineChunks bool

	// Weights are the fusion weights for the two document sources.
	Weights search.Weights

	// WebResultsCount caps appended web results (default: 5).
	WebResultsCount int

	// Timeout bounds the whole retrieval (default: 30s).
	Timeout time.Duration
}

// DefaultOptions returns the standard retrieval options.
func DefaultOptions() Options {
	return Options{
		NResults:        3,
		CombineChunks:   true,
		Weights:         search.DefaultWeights(),
		WebResultsCount: 5,
		Timeout:         30 * time.Second,
	}
}

// SourceFailure records a source that errored during retrieval while the
// response still carries results from the others.
type SourceFailure struct {
	// Source names the failed source: "vector", "lexical", or "web".
	Source string

	// Err is the failure, kept for logging and diagnostics.
	Err error
}

// Response is the outcome of one retrieval.
type Response struct {
	// Query is the original query text.
	Query string

	// Decision is the routing outcome the response was built under.
	Decision search.Decision

	// Blocks are the document context blocks in rank order.
	Blocks []combine.ContextBlock

	// WebResults are appended web hits. Never rank-mixed with Blocks.
	WebResults []websearch.Result

	// MissingChunks lists ranked chunk IDs absent from the chunk store.
	MissingChunks []string

	// Failures lists sources that errored; empty on a clean retrieval.
	Failures []SourceFailure
}

// Degraded reports whether any selected source failed.
func (r *Response) Degraded() bool {
	return len(r.Failures) > 0
}

// Orchestrator wires the retrieval pipeline together.
type Orchestrator struct {
	classifier *search.Classifier
	fusion     *search.RRFFusion
	combiner   *combine.Combiner
	embedder   embed.Embedder
	vectors    store.VectorStore
	lexical    store.LexicalIndex
	web        websearch.Searcher
	opts       Options
	logger     *slog.Logger
}

// NewOrchestrator builds the pipeline. web may be nil when web search is
// disabled; the classifier must then also be built with web disabled.
func NewOrchestrator(
	classifier *search.Classifier,
	fusion *search.RRFFusion,
	combiner *combine.Combiner,
	embedder embed.Embedder,
	vectors store.VectorStore,
	lexical store.LexicalIndex,
	web websearch.Searcher,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.NResults <= 0 {
		opts.NResults = DefaultOptions().NResults
	}
	if opts.WebResultsCount <= 0 {
		opts.WebResultsCount = DefaultOptions().WebResultsCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		classifier: classifier,
		fusion:     fusion,
		combiner:   combiner,
		embedder:   embedder,
		vectors:    vectors,
		lexical:    lexical,
		web:        web,
		opts:       opts,
		logger:     logger,
	}
}

// Retrieve answers a query with ranked context. Individual source failures
// degrade the response; only all selected sources failing is an error.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) (*Response, error) {
	if query == "" {
		return nil, ragerr.New(ragerr.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	decision := o.classifier.Classify(query)
	o.logger.Debug("query classified",
		slog.String("query", query),
		slog.Bool("use_documents", decision.UseDocuments),
		slog.Bool("use_web", decision.UseWeb),
		slog.Float64("confidence", decision.Confidence),
		slog.Any("matched_terms", decision.MatchedTerms))

	retrieveCount := o.opts.NResults
	if o.opts.CombineChunks {
		retrieveCount = o.opts.NResults * overFetchFactor
	}

	var (
		vecResults []*store.VectorResult
		lexResults []*store.LexicalResult
		webResults []websearch.Result
		vecErr     error
		lexErr     error
		webErr     error
	)

	// Sub-errors are captured, not returned: one failed source must not
	// cancel the others.
	g, gctx := errgroup.WithContext(ctx)

	if decision.UseDocuments {
		g.Go(func() error {
			vecResults, vecErr = o.searchVectors(gctx, query, retrieveCount)
			return nil
		})
		g.Go(func() error {
			lexResults, lexErr = o.lexical.Search(gctx, query, retrieveCount)
			return nil
		})
	}
	if decision.UseWeb && o.web != nil {
		g.Go(func() error {
			webResults, webErr = o.web.Search(gctx, query, o.opts.WebResultsCount)
			return nil
		})
	}

	_ = g.Wait()

	resp := &Response{Query: query, Decision: decision}

	if decision.UseDocuments {
		if vecErr != nil {
			resp.Failures = append(resp.Failures, SourceFailure{Source: "vector", Err: vecErr})
			o.logger.Warn("vector search failed, continuing with remaining sources",
				slog.String("error", vecErr.Error()))
		}
		if lexErr != nil {
			resp.Failures = append(resp.Failures, SourceFailure{Source: "lexical", Err: lexErr})
			o.logger.Warn("lexical search failed, continuing with remaining sources",
				slog.String("error", lexErr.Error()))
		}
	}
	if decision.UseWeb && o.web != nil && webErr != nil {
		resp.Failures = append(resp.Failures, SourceFailure{Source: "web", Err: webErr})
		o.logger.Warn("web search failed, continuing with remaining sources",
			slog.String("error", webErr.Error()))
	}

	if o.allSelectedFailed(decision, vecErr, lexErr, webErr) {
		return nil, ragerr.AllSourcesFailed(firstError(vecErr, lexErr, webErr))
	}

	if decision.UseDocuments {
		fused := o.fusion.Fuse(vecResults, lexResults, o.opts.Weights, retrieveCount)

		blocks, missing, err := o.combiner.Combine(ctx, fused, o.opts.CombineChunks)
		if err != nil {
			return nil, err
		}
		if len(blocks) > o.opts.NResults {
			blocks = blocks[:o.opts.NResults]
		}
		resp.Blocks = blocks
		resp.MissingChunks = missing
	}

	// Web results ride along after the document blocks; they carry no
	// comparable score so they are never fused.
	resp.WebResults = webResults

	o.logger.Info("retrieval completed",
		slog.String("query", query),
		slog.Int("blocks", len(resp.Blocks)),
		slog.Int("web_results", len(resp.WebResults)),
		slog.Bool("degraded", resp.Degraded()))
	return resp, nil
}

// searchVectors embeds the query and searches the vector store. An
// embedding failure counts as the vector source failing.
func (o *Orchestrator) searchVectors(ctx context.Context, query string, limit int) ([]*store.VectorResult, error) {
	vector, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return o.vectors.Search(ctx, vector, limit)
}

// allSelectedFailed reports whether every source the decision selected
// errored.
func (o *Orchestrator) allSelectedFailed(decision search.Decision, vecErr, lexErr, webErr error) bool {
	docsFailed := !decision.UseDocuments || (vecErr != nil && lexErr != nil)
	webSelected := decision.UseWeb && o.web != nil
	webFailed := !webSelected || webErr != nil

	// At least one source is always selected (routing totality), so this
	// cannot trip on a query that selected nothing.
	return docsFailed && webFailed && (decision.UseDocuments || webSelected)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
