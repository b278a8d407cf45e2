package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const rerankSystemPrompt = `You are a relevance judge. Given a query and a numbered list of candidate ` +
	`documents, score every candidate's relevance to the query from 0 (irrelevant) to 100 (perfectly ` +
	`relevant). Respond with nothing but a JSON array of integers, one per candidate, in the same order ` +
	`as the input list.`

// Score runs the listwise LLM rerank prompt over documents and returns one
// score per document, same order, robustly parsed per §4.4's llm tier.
func (c *Client) Score(ctx context.Context, query string, documents []string) (ScoreResult, error) {
	if len(documents) == 0 {
		return ScoreResult{}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nCandidates:\n", query)
	for i, doc := range documents {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(doc, 2000))
	}

	content, usage, err := c.chatOnce(ctx, rerankSystemPrompt, b.String())
	if err != nil {
		return ScoreResult{}, err
	}

	return ScoreResult{
		Scores: parseScores(content, len(documents)),
		Usage:  usage,
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated, " + strconv.Itoa(len(s)-max) + " more chars]"
}
