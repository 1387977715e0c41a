package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/propagation"

	"github.com/decorstudio/platform/libs/db"
	"github.com/decorstudio/platform/libs/notify"
)

var traceContext = propagation.TraceContext{}

// Transport is a notify.Transport that stores messages for the publisher.
type Transport struct {
	db   db.DBTX
	repo *Repository
}

func NewTransport(conn db.DBTX, repo *Repository) *Transport {
	return &Transport{db: conn, repo: repo}
}

func (t *Transport) Deliver(ctx context.Context, msg notify.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", msg.ID, err)
	}
	carrier := propagation.MapCarrier{}
	traceContext.Inject(ctx, carrier)
	err = t.repo.Insert(ctx, t.db, Record{
		EventID:     msg.ID,
		AggregateID: msg.To.Email,
		EventType:   notify.EventType,
		Payload:     payload,
		Traceparent: carrier.Get("traceparent"),
		Tracestate:  carrier.Get("tracestate"),
	})
	if err != nil {
		return fmt.Errorf("store notification %s: %w", msg.ID, err)
	}
	return nil
}

// contextWithTrace restores the trace context captured at Deliver time.
func contextWithTrace(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	return traceContext.Extract(ctx, propagation.MapCarrier{
		"traceparent": traceparent,
		"tracestate":  tracestate,
	})
}
