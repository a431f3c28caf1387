package search

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultConfidenceThreshold is the corpus confidence above which a query is
// served from documents alone (no web supplement).
const DefaultConfidenceThreshold = 0.6

// decisionCacheSize bounds the classification cache. Decisions are tiny;
// this mostly saves repeated term scans for hot queries.
const decisionCacheSize = 512

// TermMatcher reports which domain terms occur in a query.
// Matching is whole-word and case-insensitive.
type TermMatcher interface {
	MatchTerms(query string) []string
}

// recencyPattern matches cues that the user wants fresh information:
// explicit words and bare four-digit years from this century.
var recencyPattern = regexp.MustCompile(`(?i)\b(latest|current|today|now|recent|recently|news|this (week|month|year)|update[ds]?)\b|\b20\d{2}\b`)

// Classifier routes queries to the document stores, web search, or both,
// based on domain term matches and recency cues.
//
// The routing policy is total: a query that matches nothing and has web
// search disabled still goes to the documents.
type Classifier struct {
	matcher    TermMatcher
	webEnabled bool
	threshold  float64
	cache      *lru.Cache[string, Decision]
}

// NewClassifier creates a classifier over the given term matcher.
// webEnabled should already account for credential availability; the
// classifier never routes to web when it is false.
func NewClassifier(matcher TermMatcher, webEnabled bool) *Classifier {
	cache, _ := lru.New[string, Decision](decisionCacheSize)
	return &Classifier{
		matcher:    matcher,
		webEnabled: webEnabled,
		threshold:  DefaultConfidenceThreshold,
		cache:      cache,
	}
}

// SetThreshold overrides the confidence threshold. Values outside (0, 1]
// are ignored.
func (c *Classifier) SetThreshold(t float64) {
	if t > 0 && t <= 1 {
		c.threshold = t
		c.cache.Purge()
	}
}

// Classify decides where to route a query.
func (c *Classifier) Classify(query string) Decision {
	key := strings.ToLower(strings.TrimSpace(query))
	if d, ok := c.cache.Get(key); ok {
		return d
	}

	d := c.classify(query)
	c.cache.Add(key, d)
	return d
}

func (c *Classifier) classify(query string) Decision {
	matched := c.matcher.MatchTerms(query)
	recency := recencyPattern.MatchString(query)

	// Confidence grows with the number of distinct domain terms matched:
	// one term is a weak signal, three or more is conclusive.
	confidence := 0.0
	if len(matched) > 0 {
		confidence = 0.4 + 0.3*float64(len(matched)-1)
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	d := Decision{
		MatchedTerms: matched,
		RecencyCue:   recency,
		Confidence:   confidence,
		UseDocuments: len(matched) > 0,
	}

	if c.webEnabled {
		switch {
		case len(matched) == 0:
			// Nothing ties the query to the corpus.
			d.UseWeb = true
		case recency || confidence < c.threshold:
			// Weak corpus signal or explicit freshness request: supplement.
			d.UseWeb = true
		}
	}

	// Totality: never return a decision that selects no source.
	if !d.UseDocuments && !d.UseWeb {
		d.UseDocuments = true
	}

	return d
}
