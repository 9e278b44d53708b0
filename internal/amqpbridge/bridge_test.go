package amqpbridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hsiuhsiu/zenoh-go/internal/amqpbridge"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/loopback"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	msgs []published
	fail error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		err := c.fail
		c.fail = nil
		return err
	}
	c.msgs = append(c.msgs, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) got() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b/c", "a.b.c"},
		{"demo/**", "demo.#"},
		{"a/*/c", "a.*.c"},
		{"single", "single"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, amqpbridge.RoutingKey(tt.in), tt.in)
	}
}

func TestMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := amqpbridge.Message(zenoh.Received{
		KeyExpr:    "a/b",
		Payload:    []byte("hello"),
		Encoding:   "text/plain;charset=utf-8",
		ReceivedAt: at,
	})
	assert.Equal(t, "text/plain", msg.ContentType)
	assert.Equal(t, at, msg.Timestamp)
	assert.Equal(t, "a/b", msg.Headers[amqpbridge.HeaderKeyExpr])
	assert.Equal(t, []byte("hello"), msg.Body)
	_, err := uuid.Parse(msg.MessageId)
	require.NoError(t, err)

	raw := amqpbridge.Message(zenoh.Received{KeyExpr: "a", Encoding: zenoh.EncodingBytes})
	assert.Equal(t, "application/octet-stream", raw.ContentType)
}

func TestForwarderPublishesSubscribedSamples(t *testing.T) {
	engine := loopback.New()
	t.Cleanup(func() { _ = engine.Shutdown() })
	lib, err := zenoh.NewLibrary(zenoh.WithEngine(engine))
	require.NoError(t, err)
	sess, err := lib.Open(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	ch := &fakeChannel{fail: errors.New("broker hiccup")}
	fwd := amqpbridge.NewForwarder(ch, "zenoh", amqpbridge.WithBufferSize(16))

	subKE, err := lib.KeyExpr("demo/**")
	require.NoError(t, err)
	defer subKE.Close()
	sub, err := sess.DeclareSubscriber(subKE, fwd, nil)
	require.NoError(t, err)

	var g errgroup.Group
	g.Go(func() error { return fwd.Run(context.Background()) })

	pubKE, err := lib.KeyExpr("demo/sensor/temp")
	require.NoError(t, err)
	defer pubKE.Close()
	pub, err := sess.DeclarePublisher(pubKE, nil)
	require.NoError(t, err)
	for _, p := range []string{"1", "2", "3"} {
		require.NoError(t, pub.PutString(p))
	}

	require.Eventually(t, func() bool {
		sent, failed, _ := fwd.Stats()
		return sent+failed == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Close())
	require.NoError(t, sub.Close())
	<-sub.Done()
	require.NoError(t, g.Wait())

	sent, failed, dropped := fwd.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Equal(t, uint64(1), failed)
	assert.Zero(t, dropped)

	msgs := ch.got()
	require.Len(t, msgs, 2)
	for i, m := range msgs {
		assert.Equal(t, "zenoh", m.exchange)
		assert.Equal(t, "demo.sensor.temp", m.key)
		assert.Equal(t, []string{"2", "3"}[i], string(m.msg.Body))
	}
}

func TestForwarderRunStopsOnCancel(t *testing.T) {
	fwd := amqpbridge.NewForwarder(&fakeChannel{}, "zenoh")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, fwd.Run(ctx), context.Canceled)
}
