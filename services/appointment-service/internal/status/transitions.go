package status

import "github.com/avik-sarkar/autoshop/services/appointment-service/internal/model"

// transitions is the legal state graph for the shop board. COMPLETED is
// terminal and has no outgoing edges.
var transitions = map[model.Status][]model.Status{
	model.StatusScheduled:  {model.StatusInProgress, model.StatusNoShow},
	model.StatusInProgress: {model.StatusReady, model.StatusCompleted, model.StatusScheduled},
	model.StatusReady:      {model.StatusCompleted, model.StatusInProgress},
	model.StatusCompleted:  {},
	model.StatusNoShow:     {model.StatusScheduled},
}

// CanTransition reports whether moving an appointment from one status to
// another is legal. A same-status move is allowed so that reordering within
// a board column is not an error.
func CanTransition(from, to model.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
