package types

import "fmt"

// transitions enumerates the allowed next statuses for each status,
// independent of dependency blocking.
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusPending, StatusCancelled},
	StatusDone:       {StatusInProgress},
	StatusCancelled:  {StatusPending},
	StatusArchived:   {},
}

// TransitionResult is the outcome of validating a status transition.
type TransitionResult struct {
	Allowed   bool
	Reason    string
	BlockedBy []string
}

// ValidateStatusTransition checks whether moving from `from` to `to` is
// permitted. A transition to in-progress is rejected if the task is
// blocked (non-empty blockedBy), regardless of what the plain transition
// table allows. The rejection message lists the allowed transitions or
// enumerates the blocking ids.
func ValidateStatusTransition(from, to Status, isBlocked bool, blockedBy []string) TransitionResult {
	allowedNext, known := transitions[from]
	if !known {
		return TransitionResult{Allowed: false, Reason: fmt.Sprintf("unknown status %q", from)}
	}

	allowed := false
	for _, s := range allowedNext {
		if s == to {
			allowed = true
			break
		}
	}

	if !allowed {
		return TransitionResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot transition from %q to %q; allowed: %v", from, to, allowedNext),
		}
	}

	if to == StatusInProgress && isBlocked {
		return TransitionResult{
			Allowed:   false,
			Reason:    fmt.Sprintf("task is blocked by %v", blockedBy),
			BlockedBy: blockedBy,
		}
	}

	return TransitionResult{Allowed: true}
}
