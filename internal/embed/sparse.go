package embed

import (
	"context"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/turnsearch/turnsearch/internal/pkg/hash"
)

// DefaultStopWords holds common English stop words filtered out before
// term weighting; not exhaustive, tuned for conversational/code content.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will",
	"with", "i", "you", "he", "she", "we", "do", "does", "did", "can", "could",
}

// buildStopWordSet converts a stop-word slice into a lookup set.
func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// bleveSparseEmbedder tokenizes with bleve's unicode tokenizer, lowercases
// and strips stop words, then weights surviving terms by frequency. Term
// identity is collapsed to a fixed index space by hashing the term, since
// there is no fixed vocabulary (stand-in for a learned SPLADE head).
type bleveSparseEmbedder struct {
	tokenizer analysis.Tokenizer
	lower     analysis.TokenFilter
	stopWords map[string]struct{}
	topK      int
	vocabSize uint32
}

// NewBleveSparseEmbedder creates a sparse embedder. topK bounds how many
// distinct terms a single document keeps; vocabSize bounds the hashed index
// space terms are folded into.
func NewBleveSparseEmbedder(topK int, vocabSize uint32) SparseEmbedder {
	if topK <= 0 {
		topK = 256
	}
	if vocabSize == 0 {
		vocabSize = 1 << 20
	}
	return &bleveSparseEmbedder{
		tokenizer: unicode.NewUnicodeTokenizer(),
		lower:     lowercase.NewLowerCaseFilter(),
		stopWords: buildStopWordSet(DefaultStopWords),
		topK:      topK,
		vocabSize: vocabSize,
	}
}

func (e *bleveSparseEmbedder) EmbedQuery(ctx context.Context, text string) (SparseVector, error) {
	return e.encode(text), nil
}

func (e *bleveSparseEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([]SparseVector, error) {
	out := make([]SparseVector, len(texts))
	for i, t := range texts {
		out[i] = e.encode(t)
	}
	return out, nil
}

func (e *bleveSparseEmbedder) Close() error { return nil }

func (e *bleveSparseEmbedder) encode(text string) SparseVector {
	if strings.TrimSpace(text) == "" {
		return SparseVector{}
	}

	tokens := e.tokenizer.Tokenize([]byte(text))
	tokens = e.lower.Filter(tokens)

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		term := string(tok.Term)
		if _, isStop := e.stopWords[term]; isStop {
			continue
		}
		counts[term]++
	}

	type termCount struct {
		term  string
		count int
	}
	ordered := make([]termCount, 0, len(counts))
	for term, c := range counts {
		ordered = append(ordered, termCount{term, c})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].term < ordered[j].term
	})
	if len(ordered) > e.topK {
		ordered = ordered[:e.topK]
	}

	var maxCount int
	for _, tc := range ordered {
		if tc.count > maxCount {
			maxCount = tc.count
		}
	}

	indices := make([]uint32, 0, len(ordered))
	values := make([]float32, 0, len(ordered))
	for _, tc := range ordered {
		idx := e.termIndex(tc.term)
		indices = append(indices, idx)
		values = append(values, float32(tc.count)/float32(maxCount))
	}

	return SparseVector{Indices: indices, Values: values}
}

func (e *bleveSparseEmbedder) termIndex(term string) uint32 {
	digest := hash.SHA256String(term)
	v := hexChunkToUint32(digest[:8])
	return v % e.vocabSize
}
