package nffg

// Status is the lifecycle state of a graph record
type Status string

const (
	// StatusPending means the graph is accepted but not yet realized
	StatusPending Status = "PENDING"
	// StatusActive means the graph is realized in the controller
	StatusActive Status = "ACTIVE"
	// StatusDeleting means teardown has been requested and is in progress
	StatusDeleting Status = "DELETING"
	// StatusDeleted is terminal; the record is retained per retention policy
	StatusDeleted Status = "DELETED"
	// StatusFailed is terminal; validation or realization failed
	StatusFailed Status = "FAILED"
)

// transitions lists the allowed lifecycle moves. Failed back to Pending
// is only reachable when the failed-resubmit policy is enabled; the
// engine guards that separately.
var transitions = map[Status][]Status{
	StatusPending:  {StatusActive, StatusFailed, StatusDeleting},
	StatusActive:   {StatusDeleting},
	StatusDeleting: {StatusDeleted},
	StatusFailed:   {StatusPending, StatusDeleting},
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further realization work can happen
func (s Status) IsTerminal() bool {
	return s == StatusDeleted || s == StatusFailed
}

// IsMutating reports whether an operation is currently in flight for
// the record; a second mutation must not start while this holds.
func (s Status) IsMutating() bool {
	return s == StatusPending || s == StatusDeleting
}
