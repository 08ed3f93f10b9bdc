package lifecycle

import "github.com/Kluncker/rockville-cg-app/internal/models"

type Transition int

const (
	AssigneeChanged Transition = iota + 1
	StatusConfirmed
	StatusDeclined
)

func (t Transition) String() string {
	switch t {
	case AssigneeChanged:
		return "assignee_changed"
	case StatusConfirmed:
		return "status_confirmed"
	case StatusDeclined:
		return "status_declined"
	default:
		return "unknown"
	}
}

// DetectTransitions lists the changes between two versions of a task that
// carry side effects, in the order they should be handled.
func DetectTransitions(before, after models.Task) []Transition {
	var out []Transition
	if before.AssignedTo != after.AssignedTo {
		out = append(out, AssigneeChanged)
	}
	if before.Status != models.StatusConfirmed && after.Status == models.StatusConfirmed {
		out = append(out, StatusConfirmed)
	}
	if before.Status != models.StatusDeclined && after.Status == models.StatusDeclined {
		out = append(out, StatusDeclined)
	}
	return out
}
