package queue

import (
	"context"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kgo.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})
	return &Consumer{reader: r}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// ReadTaskChange blocks until a message arrives. Call the returned commit
// after the message has been handled.
func (c *Consumer) ReadTaskChange(ctx context.Context) (TaskChangeMessage, func(context.Context) error, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return TaskChangeMessage{}, nil, err
	}

	tm, err := DecodeTaskChange(m.Value)
	if err != nil {
		// commit bad messages so the group does not stall on them
		_ = c.reader.CommitMessages(ctx, m)
		return TaskChangeMessage{}, nil, err
	}

	commit := func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return c.reader.CommitMessages(cctx, m)
	}
	return tm, commit, nil
}
