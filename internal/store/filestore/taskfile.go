package filestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marktoda/astrotask/internal/types"
)

// taskFile is the on-disk representation of a task, one JSON file per
// task under <baseDir>/tasks/<id>.json. Flat fields with independent
// timestamps keep conflicting external edits resolvable by last-write-
// wins on UpdatedAt, the same convention the reference sync daemon this
// package is modeled on uses for its task files.
type taskFile struct {
	ID            string    `json:"id"`
	ParentID      string    `json:"parent_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	PriorityScore int       `json:"priority_score"`
	PRD           string    `json:"prd,omitempty"`
	ContextDigest string    `json:"context_digest,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func fromTask(t types.Task) taskFile {
	return taskFile{
		ID:            t.ID,
		ParentID:      t.ParentID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        string(t.Status),
		PriorityScore: t.PriorityScore,
		PRD:           t.PRD,
		ContextDigest: t.ContextDigest,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (f taskFile) toTask() types.Task {
	return types.Task{
		ID:            f.ID,
		ParentID:      f.ParentID,
		Title:         f.Title,
		Description:   f.Description,
		Status:        types.Status(f.Status),
		PriorityScore: f.PriorityScore,
		PRD:           f.PRD,
		ContextDigest: f.ContextDigest,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func (f taskFile) filename() string {
	return fmt.Sprintf("%s.json", f.ID)
}

func (f taskFile) marshal() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}

func unmarshalTaskFile(data []byte) (taskFile, error) {
	var f taskFile
	if err := json.Unmarshal(data, &f); err != nil {
		return taskFile{}, err
	}
	return f, nil
}

// depFile is the on-disk representation of a dependency edge, one file
// per edge named "<dependent>--<dependency>.json" under
// <baseDir>/deps/.
type depFile struct {
	Dependent  string `json:"dependent"`
	Dependency string `json:"dependency"`
}

func depFilename(dependent, dependency string) string {
	return fmt.Sprintf("%s--%s.json", dependent, dependency)
}
