package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

func TestDetectTransitions(t *testing.T) {
	pending := models.Task{AssignedTo: "a", Status: models.StatusPending}

	tests := []struct {
		name   string
		before models.Task
		after  models.Task
		want   []Transition
	}{
		{"no change", pending, pending, nil},
		{"first assignment", models.Task{Status: models.StatusPending}, pending, []Transition{AssigneeChanged}},
		{"reassigned", pending, models.Task{AssignedTo: "b", Status: models.StatusPending}, []Transition{AssigneeChanged}},
		{"confirmed", pending, models.Task{AssignedTo: "a", Status: models.StatusConfirmed}, []Transition{StatusConfirmed}},
		{"declined", pending, models.Task{AssignedTo: "a", Status: models.StatusDeclined}, []Transition{StatusDeclined}},
		{"still confirmed", models.Task{Status: models.StatusConfirmed}, models.Task{Status: models.StatusConfirmed}, nil},
		{
			"reassigned and confirmed",
			pending,
			models.Task{AssignedTo: "b", Status: models.StatusConfirmed},
			[]Transition{AssigneeChanged, StatusConfirmed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTransitions(tt.before, tt.after))
		})
	}
}

func TestTransitionString(t *testing.T) {
	assert.Equal(t, "assignee_changed", AssigneeChanged.String())
	assert.Equal(t, "unknown", Transition(0).String())
}
