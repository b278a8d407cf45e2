package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var intArrayPattern = regexp.MustCompile(`\[[\s\d,.\-]*\]`)

// parseScores extracts an integer array from raw LLM prose, tolerating
// leading/trailing commentary around the array, clamping every value to
// [0,100]. On any parse failure it returns a uniform-50 array of length n,
// per §4.4's llm tier contract.
func parseScores(raw string, n int) []int {
	match := intArrayPattern.FindString(raw)
	if match == "" {
		return uniformScores(n, 50)
	}

	var floats []float64
	if err := json.Unmarshal([]byte(match), &floats); err != nil {
		return uniformScores(n, 50)
	}
	if len(floats) != n {
		return uniformScores(n, 50)
	}

	scores := make([]int, n)
	for i, f := range floats {
		scores[i] = clampScore(int(f))
	}
	return scores
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func uniformScores(n, v int) []int {
	scores := make([]int, n)
	for i := range scores {
		scores[i] = v
	}
	return scores
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseQueries extracts a {"queries": [...]} object embedded in raw LLM
// prose, tolerating surrounding commentary and markdown code fences.
func parseQueries(raw string) ([]string, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	match := jsonObjectPattern.FindString(cleaned)
	if match == "" {
		return nil, false
	}

	var parsed struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, false
	}

	return parsed.Queries, true
}
