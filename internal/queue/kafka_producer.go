package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/Kluncker/rockville-cg-app/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

type Producer struct {
	writer  messageWriter
	timeout time.Duration
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("KAFKA_TOPIC_TASKS is required")
	}
	if len(brokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{}, // one partition per task keeps its changes in order
		RequiredAcks: kgo.RequireOne,
	}
	return &Producer{writer: w, timeout: 3 * time.Second}, nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// PublishTaskChange implements lifecycle.ChangePublisher.
func (p *Producer) PublishTaskChange(ctx context.Context, kind string, before, after *models.Task) error {
	if after == nil {
		return errors.New("publish task change: nil task")
	}
	msg := TaskChangeMessage{
		TaskID: after.ID,
		Kind:   kind,
		Before: before,
		After:  after,
		SentAt: time.Now().UnixMilli(),
	}
	return p.publishJSON(ctx, after.ID, msg)
}

func (p *Producer) publishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}
