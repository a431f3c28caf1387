// Package generate produces grounded answers from retrieved context via a
// local Ollama chat model. It also backs LLM-assisted domain term
// extraction.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/combine"
	ragerr "github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/errors"
	"github.com/JoeLorenzoMontano/duplocloud-take-home-test/internal/websearch"
)

// Defaults for the generation client.
const (
	DefaultHost    = "http://localhost:11434"
	DefaultModel   = "qwen3:8b"
	DefaultTimeout = 120 * time.Second
)

// Config configures the Ollama generation client.
type Config struct {
	// Host is the Ollama base URL (default: http://localhost:11434).
	Host string

	// Model is the chat model name (default: qwen3:8b).
	Model string

	// Timeout bounds each generation request (default: 120s).
	Timeout time.Duration
}

// OllamaGenerator calls Ollama's /api/generate endpoint.
type OllamaGenerator struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewOllamaGenerator creates the client.
func NewOllamaGenerator(cfg Config, logger *slog.Logger) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaGenerator{
		config: cfg,
		client: &http.Client{},
		logger: logger,
	}
}

// generateRequest is the non-streaming /api/generate body.
type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// thinkPattern strips the reasoning traces some models emit before the
// actual answer.
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking removes <think>...</think> blocks and trims the remainder.
func stripThinking(text string) string {
	return strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
}

// Answer generates a grounded answer to the query from the retrieved
// context blocks and optional web results.
func (g *OllamaGenerator) Answer(
	ctx context.Context,
	query string,
	blocks []combine.ContextBlock,
	webResults []websearch.Result,
) (string, error) {
	prompt := buildAnswerPrompt(query, blocks, webResults)
	return g.generate(ctx, prompt)
}

// ExtractTerms asks the model for domain-specific terms found in a corpus
// sample. Satisfies the term index's Extractor interface.
func (g *OllamaGenerator) ExtractTerms(ctx context.Context, sample string) ([]string, error) {
	prompt := "Extract the domain-specific technical terms from the following documentation. " +
		"Return ONLY a JSON array of lowercase strings, nothing else. " +
		"Include recurring product names, features, and technical concepts. " +
		"Exclude generic English words.\n\nDocumentation:\n" + sample

	raw, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Models wrap JSON in prose or fences often enough to dig for the array.
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var terms []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &terms); err != nil {
		return nil, fmt.Errorf("parse term list: %w", err)
	}
	return terms, nil
}

// Available checks that the server responds.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// generate runs one non-streaming completion and strips reasoning traces.
func (g *OllamaGenerator) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.config.Host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", ragerr.SourceUnavailable("generation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", ragerr.SourceUnavailable("generation",
			fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(snippet)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return stripThinking(result.Response), nil
}

// buildAnswerPrompt assembles the strict-context prompt. The model is told
// to answer only from the provided material so retrieval quality, not model
// memory, determines the answer.
func buildAnswerPrompt(query string, blocks []combine.ContextBlock, webResults []websearch.Result) string {
	var b strings.Builder
	b.WriteString("You are a documentation assistant. Answer the question using ONLY the context below. ")
	b.WriteString("If the context does not contain the answer, say so. Do not invent information.\n\n")

	if len(blocks) > 0 {
		b.WriteString("## Documentation context\n\n")
		for i, block := range blocks {
			fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n\n", i+1, block.DocumentID, block.Text)
		}
	}

	if len(webResults) > 0 {
		b.WriteString("## Web results\n\n")
		for _, r := range webResults {
			fmt.Fprintf(&b, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Question\n\n")
	b.WriteString(query)
	b.WriteString("\n\n## Answer\n")
	return b.String()
}
