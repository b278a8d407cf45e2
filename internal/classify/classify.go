// Package classify implements the query classifier (§4.3): a purely
// lexical, deterministic, side-effect-free feature extractor and strategy
// selector. No model, no I/O.
package classify

import (
	"regexp"
	"strings"
)

// Strategy is the retrieval strategy the core should dispatch to.
type Strategy string

const (
	StrategyDense  Strategy = "dense"
	StrategySparse Strategy = "sparse"
	StrategyHybrid Strategy = "hybrid"
)

// Complexity buckets a query's estimated difficulty for tier auto-selection.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Features are the purely lexical signals extracted from query text.
type Features struct {
	HasQuotes  bool
	IsQuestion bool
	HasCode    bool
	TokenCount int
}

// Result is the classifier's output.
type Result struct {
	Strategy   Strategy
	Complexity Complexity
	Features   Features
}

var (
	interrogativeLead = regexp.MustCompile(`(?i)^(what|why|how|when|where|who|which|is|are|can|could|should|would|do|does|did)\b`)
	camelCasePattern  = regexp.MustCompile(`[a-z][A-Z]`)
	functionCallShape = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\(`)
	fencedCodeMarker  = "```"
	symbolChars       = "{}[]();=<>+-*/%&|^~"
)

// Classify extracts features and picks a strategy and complexity bucket for
// query text. Deterministic: same input always yields the same output.
func Classify(text string) Result {
	features := extractFeatures(text)
	return Result{
		Strategy:   selectStrategy(features),
		Complexity: selectComplexity(features),
		Features:   features,
	}
}

func extractFeatures(text string) Features {
	tokens := strings.Fields(text)

	return Features{
		HasQuotes:  hasMatchedQuotes(text),
		IsQuestion: isQuestion(text),
		HasCode:    hasCode(text, tokens),
		TokenCount: len(tokens),
	}
}

func hasMatchedQuotes(text string) bool {
	count := strings.Count(text, `"`)
	return count >= 2 && count%2 == 0
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	return interrogativeLead.MatchString(trimmed)
}

func hasCode(text string, tokens []string) bool {
	if strings.Contains(text, fencedCodeMarker) {
		return true
	}
	if functionCallShape.MatchString(text) {
		return true
	}
	for _, tok := range tokens {
		if len(tok) >= 4 && camelCasePattern.MatchString(tok) {
			return true
		}
	}
	return symbolDensity(text) > 0.15
}

func symbolDensity(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var symbolCount int
	for _, r := range text {
		if strings.ContainsRune(symbolChars, r) {
			symbolCount++
		}
	}
	return float64(symbolCount) / float64(len(text))
}

// selectStrategy applies the tie-break policy: quoted phrases bias sparse;
// unquoted questions bias dense-leaning hybrid; default is hybrid.
func selectStrategy(f Features) Strategy {
	switch {
	case f.HasQuotes:
		return StrategySparse
	case f.IsQuestion:
		return StrategyHybrid
	default:
		return StrategyHybrid
	}
}

func selectComplexity(f Features) Complexity {
	switch {
	case f.HasCode:
		return ComplexityComplex
	case f.TokenCount <= 4:
		return ComplexitySimple
	case f.TokenCount <= 12:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}
