package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// scriptReader hands out msgs in order and cancels the run once drained.
type scriptReader struct {
	msgs      []kafka.Message
	cancel    context.CancelFunc
	committed []int64
	closed    bool
}

func (r *scriptReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptReader) Close() error {
	r.closed = true
	return nil
}

type memInbox struct {
	mu     sync.Mutex
	seen   map[string]bool
	forgot int
}

func (i *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seen == nil {
		i.seen = map[string]bool{}
	}
	if i.seen[id] {
		return false, nil
	}
	i.seen[id] = true
	return true, nil
}

func (i *memInbox) Forget(_ context.Context, id string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, id)
	i.forgot++
	return nil
}

func message(offset int64, eventID string) kafka.Message {
	return kafka.Message{
		Topic:  "notifications.email.requested.v1",
		Offset: offset,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("notification.email.requested")},
		},
	}
}

func run(t *testing.T, msgs []kafka.Message, inbox Inbox, handler Handler) *scriptReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptReader{msgs: msgs, cancel: cancel}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(r, inbox, logger, Config{MaxAttempts: 3, Backoff: time.Millisecond}, handler)

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	return r
}

func TestDuplicateEventsAreHandledOnce(t *testing.T) {
	var handled []string
	r := run(t,
		[]kafka.Message{message(1, "evt-1"), message(2, "evt-1"), message(3, "evt-2")},
		&memInbox{},
		func(_ context.Context, msg kafka.Message) error {
			handled = append(handled, string(msg.Headers[0].Value))
			return nil
		},
	)

	require.Equal(t, []string{"evt-1", "evt-2"}, handled)
	require.Equal(t, []int64{1, 2, 3}, r.committed)
	require.True(t, r.closed)
}

func TestFailedHandlerIsRetriedAfterInboxRelease(t *testing.T) {
	inbox := &memInbox{}
	calls := 0
	r := run(t, []kafka.Message{message(7, "evt-7")}, inbox, func(context.Context, kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("db unavailable")
		}
		return nil
	})

	require.Equal(t, 2, calls)
	require.Equal(t, 1, inbox.forgot)
	require.Equal(t, []int64{7}, r.committed)
}

func TestPersistentFailureIsDroppedAfterMaxAttempts(t *testing.T) {
	calls := 0
	r := run(t, []kafka.Message{message(9, "evt-9"), message(10, "evt-10")}, &memInbox{}, func(_ context.Context, msg kafka.Message) error {
		calls++
		if msg.Offset == 9 {
			return errors.New("boom")
		}
		return nil
	})

	require.Equal(t, 4, calls)
	require.Equal(t, []int64{9, 10}, r.committed)
}

type brokenInbox struct{ memInbox }

func (*brokenInbox) Record(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestInboxFailureSkipsHandler(t *testing.T) {
	calls := 0
	run(t, []kafka.Message{message(1, "evt-1")}, &brokenInbox{}, func(context.Context, kafka.Message) error {
		calls++
		return nil
	})
	require.Zero(t, calls)
}
