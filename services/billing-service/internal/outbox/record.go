// Package outbox makes billing notifications durable: they are written to
// the notification_outbox table and relayed to Kafka by Publisher.
package outbox

import "time"

// Record is one row of notification_outbox.
type Record struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	Traceparent string
	Tracestate  string
	CreatedAt   time.Time
}
