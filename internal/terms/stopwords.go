package terms

// backgroundWords are common English words that never qualify as domain
// terms regardless of corpus frequency. The list covers function words plus
// generic verbs and nouns that dominate any prose corpus.
var backgroundWords = map[string]struct{}{}

func init() {
	words := []string{
		"the", "a", "an", "and", "or", "but", "if", "then", "else", "when",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "to",
		"from", "up", "down", "in", "out", "on", "off", "over", "under",
		"again", "further", "once", "here", "there", "all", "any", "both",
		"each", "few", "more", "most", "other", "some", "such", "no", "nor",
		"not", "only", "own", "same", "so", "than", "too", "very", "can",
		"will", "just", "should", "now", "this", "that", "these", "those",
		"is", "are", "was", "were", "be", "been", "being", "have", "has",
		"had", "having", "do", "does", "did", "doing", "would", "could",
		"may", "might", "must", "shall", "it", "its", "they", "them",
		"their", "what", "which", "who", "whom", "you", "your", "yours",
		"we", "our", "ours", "he", "she", "his", "her", "of", "as", "also",
		"use", "used", "using", "uses", "one", "two", "new", "like", "make",
		"makes", "made", "get", "gets", "set", "sets", "see", "way", "well",
		"need", "needs", "example", "following", "section", "page", "note",
		"information", "data", "value", "values", "number", "time", "first",
		"second", "important", "different", "available", "provides",
		"include", "includes", "including", "based", "within", "without",
		"however", "therefore", "because", "where", "while", "how", "why",
	}
	for _, w := range words {
		backgroundWords[w] = struct{}{}
	}
}

// isBackground reports whether a word is too common to be a domain term.
func isBackground(word string) bool {
	_, ok := backgroundWords[word]
	return ok
}
