package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/output"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/retrieve"
)

// queryOptions holds the query command flags.
type queryOptions struct {
	nResults  int
	noCombine bool
	web       bool
	answer    bool
	explain   bool
	jsonOut   bool
}

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve context for a question",
		Long: `Run hybrid retrieval for a question.

The question is routed against the indexed domain vocabulary: matching
queries search the document stores, unmatched or recency-cued queries
also hit web search when configured. Document results come from BM25 and
semantic search fused by reciprocal rank; web results are appended after
them, never mixed in.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.nResults, "results", "n", 0, "Number of context blocks (default from config)")
	cmd.Flags().BoolVar(&opts.noCombine, "no-combine", false, "Return raw chunks instead of merged document blocks")
	cmd.Flags().BoolVar(&opts.web, "web", false, "Allow web search for this query (requires an API key)")
	cmd.Flags().BoolVar(&opts.answer, "answer", false, "Generate an answer from the retrieved context")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show how the query was classified")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output the raw response as JSON")

	return cmd
}

// queryResponse is the JSON shape for --json output.
type queryResponse struct {
	Query        string   `json:"query"`
	UseDocuments bool     `json:"use_documents"`
	UseWeb       bool     `json:"use_web"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	Confidence   float64  `json:"confidence"`
	Blocks       []struct {
		DocumentID string  `json:"document_id"`
		Text       string  `json:"text"`
		Score      float64 `json:"score"`
	} `json:"blocks"`
	WebResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		URL     string `json:"url"`
	} `json:"web_results,omitempty"`
	Degraded bool   `json:"degraded"`
	Answer   string `json:"answer,omitempty"`
}

func runQuery(ctx context.Context, question string, opts queryOptions) error {
	out := output.New(os.Stdout)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.nResults > 0 {
		cfg.Retrieval.NResults = opts.nResults
	}
	if opts.noCombine {
		cfg.Retrieval.CombineChunks = false
	}
	if opts.web {
		cfg.WebSearch.Enabled = true
		if !cfg.WebSearchAvailable() {
			return fmt.Errorf("web search requires an API key (set RAGCORE_SERPER_API_KEY)")
		}
	}

	a, err := openAppWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.orchestrator(ctx)
	if err != nil {
		return err
	}

	resp, err := orch.Retrieve(ctx, question)
	if err != nil {
		return err
	}

	answer := ""
	if opts.answer {
		if a.generator == nil {
			return fmt.Errorf("answer generation is not configured")
		}
		answer, err = a.generator.Answer(ctx, question, resp.Blocks, resp.WebResults)
		if err != nil {
			return err
		}
	}

	if opts.jsonOut {
		return printJSON(resp, answer)
	}

	if opts.explain {
		printDecision(out, resp)
	}
	printResponse(out, resp, answer)
	return nil
}

func printDecision(out *output.Writer, resp *retrieve.Response) {
	d := resp.Decision
	out.Statusf("🧭", "routing: documents=%v web=%v (confidence %.2f)",
		d.UseDocuments, d.UseWeb, d.Confidence)
	if len(d.MatchedTerms) > 0 {
		out.Detailf("matched terms: %s", strings.Join(d.MatchedTerms, ", "))
	} else {
		out.Detail("no domain terms matched")
	}
	if d.RecencyCue {
		out.Detail("recency cue detected")
	}
	out.Newline()
}

func printJSON(resp *retrieve.Response, answer string) error {
	jr := queryResponse{
		Query:        resp.Query,
		UseDocuments: resp.Decision.UseDocuments,
		UseWeb:       resp.Decision.UseWeb,
		MatchedTerms: resp.Decision.MatchedTerms,
		Confidence:   resp.Decision.Confidence,
		Degraded:     resp.Degraded(),
		Answer:       answer,
	}
	for _, b := range resp.Blocks {
		jr.Blocks = append(jr.Blocks, struct {
			DocumentID string  `json:"document_id"`
			Text       string  `json:"text"`
			Score      float64 `json:"score"`
		}{b.DocumentID, b.Text, b.Score})
	}
	for _, w := range resp.WebResults {
		jr.WebResults = append(jr.WebResults, struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			URL     string `json:"url"`
		}{w.Title, w.Snippet, w.URL})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}

func printResponse(out *output.Writer, resp *retrieve.Response, answer string) {
	if resp.Decision.UseWeb && !resp.Decision.UseDocuments {
		out.Detail("query routed to web search only")
	}
	for _, f := range resp.Failures {
		out.Warningf("%s search failed: %v", f.Source, f.Err)
	}

	if len(resp.Blocks) == 0 && len(resp.WebResults) == 0 {
		out.Status("", "No results.")
		return
	}

	for i, block := range resp.Blocks {
		out.Statusf("📄", "[%d] %s (score %.3f, %d chunk(s))",
			i+1, block.DocumentID, block.Score, len(block.ChunkIDs))
		out.Code(block.Text)
	}

	if len(resp.WebResults) > 0 {
		out.Status("🌐", "Web results:")
		for _, w := range resp.WebResults {
			out.Statusf("", "%s - %s", w.Title, w.URL)
			if w.Snippet != "" {
				out.Detail(w.Snippet)
			}
		}
	}

	if len(resp.MissingChunks) > 0 {
		out.Warningf("%d ranked chunk(s) missing from the chunk store; run 'ragcore status' to check consistency", len(resp.MissingChunks))
	}

	if answer != "" {
		out.Newline()
		out.Status("💬", "Answer:")
		out.Code(answer)
	}
}
