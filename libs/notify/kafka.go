package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/decorstudio/platform/libs/kafkax"
)

const (
	Topic     = "notifications.email.requested.v1"
	EventType = "notification.email.requested"
)

// MessageWriter is the part of *kafka.Writer the transport needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaTransport publishes messages for notification-service. Messages are
// keyed by recipient so one client's mails stay ordered.
type KafkaTransport struct {
	w MessageWriter
}

func NewKafkaTransport(w MessageWriter) *KafkaTransport {
	return &KafkaTransport{w: w}
}

func (t *KafkaTransport) Deliver(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", msg.ID, err)
	}
	km := kafkax.NewMessage(ctx, msg.To.Email, msg.ID, EventType, payload)
	if err := t.w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("publish notification %s: %w", msg.ID, err)
	}
	return nil
}

// Decode parses a message published by KafkaTransport.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}
