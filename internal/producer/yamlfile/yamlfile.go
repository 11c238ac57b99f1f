// Package yamlfile implements a static, network-free producer.TaskProducer
// that builds a subtree from a YAML document rather than an LLM call.
// Useful for tests and for static templates checked into a repository.
package yamlfile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/marktoda/astrotask/internal/producer"
	"github.com/marktoda/astrotask/internal/types"
)

// node is the YAML shape for one task in the document. Id is optional —
// when absent, Producer assigns a uuid-tagged provisional id.
type node struct {
	ID            string  `yaml:"id"`
	Title         string  `yaml:"title"`
	Description   string  `yaml:"description"`
	PriorityScore int     `yaml:"priority,omitempty"`
	Children      []*node `yaml:"children,omitempty"`
}

// Document is the top-level YAML shape: a single subtree root plus its
// descendants.
type Document struct {
	Root *node `yaml:"root"`
}

// Producer builds a producer.Subtree by parsing a fixed YAML document.
// It never changes between calls to Produce; the prd argument is
// accepted to satisfy producer.TaskProducer but is ignored.
type Producer struct {
	doc Document
}

// Parse decodes a YAML document into a Producer.
func Parse(data []byte) (*Producer, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlfile: parse document: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("yamlfile: document has no root")
	}
	return &Producer{doc: doc}, nil
}

var _ producer.TaskProducer = (*Producer)(nil)

// Produce returns the document's subtree, assigning a fresh uuid-tagged
// provisional id to every node that did not carry an explicit one so
// repeated calls never collide.
func (p *Producer) Produce(ctx context.Context, prd string) (producer.Subtree, error) {
	var tasks []types.Task
	var flatten func(n *node, parentID string) string
	flatten = func(n *node, parentID string) string {
		id := n.ID
		if id == "" {
			id = "tmp-" + uuid.New().String()
		}
		priority := n.PriorityScore
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
	root := flatten(p.doc.Root, "")
	return producer.Subtree{Root: root, Tasks: tasks}, nil
}
