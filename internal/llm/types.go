// Package llm provides the LLM-backed building blocks used by the llm
// reranker tier and the multi-query retriever's query expansion: a thin
// wrapper over github.com/sashabaranov/go-openai with robust, tolerant
// parsing of the structured responses both callers expect back.
package llm

// Usage reports token and estimated cost accounting for a single call, so
// callers can feed rate limiters and budget counters.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostCents        float64
}

// ScoreResult is the outcome of a listwise rerank call.
type ScoreResult struct {
	Scores []int // one per input document, in [0,100]
	Usage  Usage
}

// ExpansionResult is the outcome of a query-expansion call.
type ExpansionResult struct {
	Queries []string
	Usage   Usage
}
