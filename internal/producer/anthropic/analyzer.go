package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marktoda/astrotask/internal/producer"
	"github.com/marktoda/astrotask/internal/types"
)

const analysisSystemPrompt = `You estimate the priority of a single engineering task on a 0-100 scale ` +
	`(0 = trivial/someday, 100 = critical/urgent). Reply with ONLY a JSON object, no other text:
{"priority_score": 0-100, "reasoning": "one sentence"}`

type analysisResult struct {
	PriorityScore int    `json:"priority_score"`
	Reasoning     string `json:"reasoning"`
}

// Analyzer scores a task's priority via the Messages API.
type Analyzer struct {
	client *Client
}

// NewAnalyzer wraps client as a producer.TaskAnalyzer.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

var _ producer.TaskAnalyzer = (*Analyzer)(nil)

// Analyze asks the model to score t's priority and returns the
// suggestion as a TaskUpdate touching only PriorityScore. The caller
// decides whether and how to apply it; the suggestion is never applied
// directly.
func (a *Analyzer) Analyze(ctx context.Context, t types.Task) (types.TaskUpdate, error) {
	prompt := fmt.Sprintf("Title: %s\nDescription: %s\nPRD excerpt: %s", t.Title, t.Description,
		a.client.truncateToBudget(t.PRD))

	text, err := a.client.runText(ctx, analysisSystemPrompt, prompt)
	if err != nil {
		return types.TaskUpdate{}, err
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return types.TaskUpdate{}, fmt.Errorf("astrotask/producer/anthropic: no JSON object found in model response")
	}
	var result analysisResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return types.TaskUpdate{}, fmt.Errorf("astrotask/producer/anthropic: unmarshal analysis: %w", err)
	}
	if result.PriorityScore < 0 || result.PriorityScore > 100 {
		return types.TaskUpdate{}, types.NewValidation("anthropic analyzer: priority score %d out of range [0,100]", result.PriorityScore)
	}

	score := result.PriorityScore
	return types.TaskUpdate{PriorityScore: &score}, nil
}
