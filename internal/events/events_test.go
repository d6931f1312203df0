package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

// mockReader hands out queued messages and then blocks until the context ends.
type mockReader struct {
	msgs   chan kafka.Message
	closed bool
}

func newMockReader(msgs ...kafka.Message) *mockReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &mockReader{msgs: ch}
}

func (r *mockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) Close() error {
	r.closed = true
	return nil
}

type mockClearer struct {
	m       sync.Mutex
	cleared []string
	err     error
}

func (c *mockClearer) ClearCart(_ context.Context, shopperID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.err != nil {
		return c.err
	}
	c.cleared = append(c.cleared, shopperID)
	return nil
}

func (c *mockClearer) get() []string {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]string(nil), c.cleared...)
}

func message(t *testing.T, e Event) kafka.Message {
	t.Helper()
	v, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Topic: TopicSession, Value: v}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), TopicCheckout, Event{
		Type:       TypeCheckoutCompleted,
		ShopperID:  "u1",
		CheckoutID: "co-1",
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, TopicCheckout, msg.Topic)
	assert.Equal(t, "co-1", string(msg.Key))
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte(TypeCheckoutCompleted)}}, msg.Headers)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "u1", decoded.ShopperID)
}

func TestKafkaPublisher_KeysByShopperWithoutCheckout(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), TopicSession, Event{Type: TypeSessionExpired, ShopperID: "u9"}))
	assert.Equal(t, "u9", string(w.msgs[0].Key))
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &mockWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), TopicSession, Event{Type: TypeSessionExpired})
	assert.ErrorContains(t, err, "broker down")
}

func TestPoller_ClearsOnKnownEvents(t *testing.T) {
	reader := newMockReader(
		message(t, Event{Type: TypeSessionExpired, ShopperID: "u1"}),
		message(t, Event{Type: "product.updated", ShopperID: "u2"}),
		kafka.Message{Value: []byte("{garbage")},
		message(t, Event{Type: TypeUserLoggedOut}),
		message(t, Event{Type: TypeCheckoutCompleted, ShopperID: "u3"}),
	)
	clearer := &mockClearer{}
	p := newPoller(reader, clearer, nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(clearer.get()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"u1", "u3"}, clearer.get())
	p.Close()
	assert.True(t, reader.closed)
}

func TestKafkaPublisher_StampsOrigin(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w, origin: "cartd-1"}

	require.NoError(t, p.Publish(context.Background(), TopicCheckout, Event{Type: TypeCheckoutCompleted, ShopperID: "u1"}))
	assert.Contains(t, w.msgs[0].Headers, kafka.Header{Key: HeaderOrigin, Value: []byte("cartd-1")})
}

func TestPoller_SkipsOwnCheckout(t *testing.T) {
	w := &mockWriter{}
	own := &KafkaPublisher{writer: w, origin: "cartd-1"}
	other := &KafkaPublisher{writer: w, origin: "cartd-2"}

	ctx := context.Background()
	require.NoError(t, own.Publish(ctx, TopicCheckout, Event{Type: TypeCheckoutCompleted, ShopperID: "u1"}))
	require.NoError(t, other.Publish(ctx, TopicCheckout, Event{Type: TypeCheckoutCompleted, ShopperID: "u2"}))
	require.NoError(t, own.Publish(ctx, TopicSession, Event{Type: TypeUserLoggedOut, ShopperID: "u3"}))

	clearer := &mockClearer{}
	p := newPoller(newMockReader(), clearer, nil, "cartd-1")
	for _, m := range w.msgs {
		p.handle(ctx, m)
	}

	// the local checkout already cleared u1; anything added since must stay
	assert.Equal(t, []string{"u2", "u3"}, clearer.get())
}

func TestPoller_LogsClearFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	clearer := &mockClearer{err: errors.New("slot unavailable")}
	p := newPoller(newMockReader(), clearer, zap.New(core), "")

	p.handle(context.Background(), message(t, Event{Type: TypeSessionExpired, ShopperID: "u1"}))
	assert.Equal(t, 1, logs.FilterMessage("failed to clear cart").Len())
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := LogPublisher{Logger: zap.New(core)}

	require.NoError(t, p.Publish(context.Background(), TopicCheckout, Event{Type: TypeCheckoutCompleted, ShopperID: "u1"}))
	assert.Equal(t, 1, logs.Len())
}
