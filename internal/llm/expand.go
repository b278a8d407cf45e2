package llm

import (
	"context"
	"fmt"
	"strings"
)

const expandSystemPrompt = `You rewrite search queries for a hybrid semantic/lexical retrieval system. ` +
	`Given a query and a requested set of rewrite strategies, produce that many alternative phrasings of ` +
	`the query that would help surface relevant results a literal match might miss. Respond with nothing ` +
	`but a JSON object of the shape {"queries": ["...", "..."]}.`

// strategyHints documents each expansion strategy's intent to the model.
var strategyHints = map[string]string{
	"paraphrase": "paraphrase: reword using different vocabulary, same meaning",
	"keyword":    "keyword: strip to the essential keywords, drop filler words",
	"stepback":   "stepback: ask a more general question the original is an instance of",
	"decompose":  "decompose: split into a narrower sub-question the original implies",
}

// Expand asks the LLM for numVariations rewrites of text honoring the
// requested strategies. On any failure (transport, parse, empty) it returns
// an error; callers fall back to [original] per §4.6.
func (c *Client) Expand(ctx context.Context, text string, numVariations int, strategies []string) (ExpansionResult, error) {
	if numVariations <= 0 {
		numVariations = 3
	}

	var hints strings.Builder
	for _, s := range strategies {
		if hint, ok := strategyHints[s]; ok {
			hints.WriteString("- " + hint + "\n")
		}
	}
	if hints.Len() == 0 {
		hints.WriteString("- " + strategyHints["paraphrase"] + "\n")
	}

	userPrompt := fmt.Sprintf(
		"Original query: %s\n\nProduce exactly %d rewrites using these strategies:\n%s",
		text, numVariations, hints.String(),
	)

	content, usage, err := c.chatOnce(ctx, expandSystemPrompt, userPrompt)
	if err != nil {
		return ExpansionResult{}, err
	}

	queries, ok := parseQueries(content)
	if !ok || len(queries) == 0 {
		return ExpansionResult{Usage: usage}, fmt.Errorf("llm: could not parse query expansion response")
	}

	if len(queries) > numVariations {
		queries = queries[:numVariations]
	}

	return ExpansionResult{Queries: queries, Usage: usage}, nil
}
