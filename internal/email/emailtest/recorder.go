// Package emailtest provides an in-memory email.Sender for tests.
package emailtest

import (
	"context"
	"sync"

	"github.com/Kluncker/rockville-cg-app/internal/email"
)

// Recorder keeps every message it is asked to send. Setting Err makes every
// send fail without recording.
type Recorder struct {
	mu   sync.Mutex
	sent []email.Message

	Err error
}

func (r *Recorder) Send(_ context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if len(msg.To) == 0 {
		return email.ErrNoRecipients
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []email.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]email.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
