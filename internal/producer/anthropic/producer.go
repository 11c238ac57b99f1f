package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marktoda/astrotask/internal/producer"
	"github.com/marktoda/astrotask/internal/types"
)

const decompositionSystemPrompt = `You break a product requirements document into a tree of concrete, ` +
	`actionable engineering tasks. Reply with ONLY a JSON array, no other text, using this shape:
[
  {"title": "...", "description": "...", "priority": 0-100, "children": [ ... same shape ... ]}
]
Guidelines:
- title is required and short; description explains the acceptance criteria.
- priority is optional; omit it to accept the default.
- Nest subtasks under children only when they are genuinely part of the parent's scope.
- Do not invent dependencies between sibling tasks; this array is a hierarchy, not a dependency graph.`

// decomposedNode mirrors the JSON shape requested in
// decompositionSystemPrompt.
type decomposedNode struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    int              `json:"priority"`
	Children    []decomposedNode `json:"children"`
}

// Producer decomposes a PRD into a task subtree via the Messages API.
type Producer struct {
	client *Client
}

// NewProducer wraps client as a producer.TaskProducer.
func NewProducer(client *Client) *Producer {
	return &Producer{client: client}
}

var _ producer.TaskProducer = (*Producer)(nil)

// Produce asks the model to decompose prd into a task tree and flattens
// the result into a producer.Subtree with uuid-tagged provisional ids.
func (p *Producer) Produce(ctx context.Context, prd string) (producer.Subtree, error) {
	text, err := p.client.runText(ctx, decompositionSystemPrompt, p.client.truncateToBudget(prd))
	if err != nil {
		return producer.Subtree{}, err
	}

	roots, err := parseDecomposition(text)
	if err != nil {
		return producer.Subtree{}, err
	}
	if len(roots) == 0 {
		return producer.Subtree{}, types.NewValidation("anthropic producer: model returned no tasks")
	}

	var tasks []types.Task
	var flatten func(n decomposedNode, parentID string) string
	flatten = func(n decomposedNode, parentID string) string {
		id := "tmp-" + uuid.New().String()
		priority := n.Priority
		if priority == 0 {
			priority = types.DefaultPriorityScore
		}
		tasks = append(tasks, types.Task{
			ID:            id,
			ParentID:      parentID,
			Title:         n.Title,
			Description:   n.Description,
			Status:        types.StatusPending,
			PriorityScore: priority,
		})
		for _, child := range n.Children {
			flatten(child, id)
		}
		return id
	}

	// A decomposition that returns several sibling roots is wrapped under
	// a single synthetic umbrella node so Subtree always has one root,
	// matching the "subtree to attach under parentID" contract.
	if len(roots) == 1 {
		root := flatten(roots[0], "")
		return producer.Subtree{Root: root, Tasks: tasks}, nil
	}
	umbrellaID := "tmp-" + uuid.New().String()
	tasks = append(tasks, types.Task{
		ID:            umbrellaID,
		Title:         "Decomposed work",
		Status:        types.StatusPending,
		PriorityScore: types.DefaultPriorityScore,
	})
	for _, r := range roots {
		flatten(r, umbrellaID)
	}
	return producer.Subtree{Root: umbrellaID, Tasks: tasks}, nil
}

// parseDecomposition extracts the JSON array from text (the model is
// asked for ONLY JSON but may still wrap it in prose) and decodes it.
func parseDecomposition(text string) ([]decomposedNode, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("astrotask/producer/anthropic: no JSON array found in model response")
	}
	var nodes []decomposedNode
	if err := json.Unmarshal([]byte(text[start:end+1]), &nodes); err != nil {
		return nil, fmt.Errorf("astrotask/producer/anthropic: unmarshal decomposition: %w", err)
	}
	return nodes, nil
}
