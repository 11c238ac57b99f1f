package depgraph

import "github.com/marktoda/astrotask/internal/types"

// Tracking wraps an immutable Graph with a batch of pending edge
// operations. Reads see the base graph overlaid with pending
// edges; Flush hands the batch to the caller and returns a new Tracking
// with an empty pending list over the updated base.
type Tracking struct {
	base    *Graph
	pending []types.PendingOperation
	seq     *types.SeqCounter
}

// NewTracking wraps g for optimistic edge mutation. seq is shared with
// any tracking task tree over the same logical document so operations
// from both interleave in a single monotonic order.
func NewTracking(g *Graph, seq *types.SeqCounter) *Tracking {
	return &Tracking{base: g, seq: seq}
}

// Snapshot returns the graph reflecting base plus every pending edge
// operation applied in order.
func (t *Tracking) Snapshot() *Graph {
	g := t.base
	for _, op := range t.pending {
		switch o := op.(type) {
		case types.DependencyAddOp:
			g = g.WithDependency(o.Dependent, o.Dependency)
		case types.DependencyRemoveOp:
			g = g.WithoutDependency(o.Dependent, o.Dependency)
		}
	}
	return g
}

// PendingOperations returns the recorded, not-yet-flushed operations in
// recording order.
func (t *Tracking) PendingOperations() []types.PendingOperation {
	return append([]types.PendingOperation{}, t.pending...)
}

// HasPendingChanges reports whether any operation is queued.
func (t *Tracking) HasPendingChanges() bool {
	return len(t.pending) > 0
}

// WithDependency queues a dependency addition. It refuses to queue an
// edge that would create a cycle in the resulting snapshot.
func (t *Tracking) WithDependency(dependent, dependency string) (*Tracking, error) {
	snap := t.Snapshot()
	if report := snap.WouldCreateCycle(dependent, dependency); report.HasCycles {
		return nil, types.NewValidation("adding dependency %s -> %s would create a cycle", dependent, dependency)
	}
	cp := t.clone()
	cp.pending = append(cp.pending, types.NewDependencyAddOp(t.nextSeq(), dependent, dependency))
	return cp, nil
}

// WithoutDependency queues a dependency removal.
func (t *Tracking) WithoutDependency(dependent, dependency string) *Tracking {
	cp := t.clone()
	cp.pending = append(cp.pending, types.NewDependencyRemoveOp(t.nextSeq(), dependent, dependency))
	return cp
}

func (t *Tracking) nextSeq() uint64 {
	if t.seq == nil {
		t.seq = &types.SeqCounter{}
	}
	return t.seq.Next()
}

func (t *Tracking) clone() *Tracking {
	cp := &Tracking{base: t.base, seq: t.seq}
	cp.pending = append(cp.pending, t.pending...)
	return cp
}

// Flush returns the operations recorded since the last flush, along with
// a new Tracking whose base is updated to next (the graph the caller
// persisted those operations into) and whose pending list is empty.
func (t *Tracking) Flush(next *Graph) ([]types.PendingOperation, *Tracking) {
	ops := t.PendingOperations()
	return ops, &Tracking{base: next, seq: t.seq}
}

// ApplyIDMappings rewrites every pending operation's endpoints through a
// provisional-to-stable id remapping, leaving ids absent from the
// mapping unchanged. This is the hand-off point after a task-tree flush
// assigns stable ids to freshly added nodes.
func (t *Tracking) ApplyIDMappings(mapping map[string]string) *Tracking {
	remap := func(id string) string {
		if stable, ok := mapping[id]; ok {
			return stable
		}
		return id
	}
	cp := &Tracking{base: t.base, seq: t.seq}
	for _, op := range t.pending {
		switch o := op.(type) {
		case types.DependencyAddOp:
			o.Dependent = remap(o.Dependent)
			o.Dependency = remap(o.Dependency)
			cp.pending = append(cp.pending, o)
		case types.DependencyRemoveOp:
			o.Dependent = remap(o.Dependent)
			o.Dependency = remap(o.Dependency)
			cp.pending = append(cp.pending, o)
		default:
			cp.pending = append(cp.pending, op)
		}
	}
	return cp
}
