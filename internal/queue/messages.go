package queue

import (
	"encoding/json"
	"errors"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

// TaskChangeMessage carries a stored task change to the worker. Before is nil
// for created tasks.
type TaskChangeMessage struct {
	TaskID string       `json:"task_id"`
	Kind   string       `json:"kind"` // created | updated
	Before *models.Task `json:"before,omitempty"`
	After  *models.Task `json:"after"`
	SentAt int64        `json:"sent_at"` // epoch ms
}

var ErrInvalidMessage = errors.New("invalid task change message")

// DecodeTaskChange parses and checks a message body.
func DecodeTaskChange(b []byte) (TaskChangeMessage, error) {
	var m TaskChangeMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return TaskChangeMessage{}, errors.Join(ErrInvalidMessage, err)
	}
	if m.TaskID == "" || m.After == nil {
		return TaskChangeMessage{}, ErrInvalidMessage
	}
	switch m.Kind {
	case "created":
	case "updated":
		if m.Before == nil {
			return TaskChangeMessage{}, ErrInvalidMessage
		}
	default:
		return TaskChangeMessage{}, ErrInvalidMessage
	}
	return m, nil
}
