package picogen

import "fmt"

// State is the client-side view of a job's lifecycle.
//
//	Submitted -> Running | Completed | Error
//	Running   -> Running | Completed | Error
//
// Completed and Error are terminal.
type State int

const (
	StateSubmitted State = iota
	StateRunning
	StateCompleted
	StateError
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further polls are needed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Transition returns the state reached from `from` after observing item.
// Any status other than completed or error (queued, running, or a status this
// client does not know) keeps the job running.
func Transition(from State, item StatusItem) (State, error) {
	if from.Terminal() {
		return from, fmt.Errorf("job %s already %s, got status %q", item.ID, from, item.Status)
	}

	switch item.Status {
	case StatusCompleted:
		return StateCompleted, nil
	case StatusError:
		return StateError, nil
	case "":
		return from, fmt.Errorf("job %s snapshot has no status", item.ID)
	default:
		return StateRunning, nil
	}
}
