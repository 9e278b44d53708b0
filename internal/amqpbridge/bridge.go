// Package amqpbridge forwards zenoh samples to an AMQP exchange.
//
// A Forwarder is a zenoh subscription handler. HandleSample copies the
// sample into a bounded queue on the engine's thread and never blocks it;
// Run drains the queue on the caller's goroutine and publishes each sample
// with its key expression mapped to a routing key.
package amqpbridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

// Channel is the part of *amqp.Channel the forwarder publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Header names set on every forwarded message.
const (
	HeaderKeyExpr = "zenoh-key-expr"
)

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithBufferSize sets how many samples may wait for the broker.
func WithBufferSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.size = n
		}
	}
}

// WithPublishTimeout bounds each publish.
func WithPublishTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.publishTimeout = d
		}
	}
}

// WithMandatory sets the mandatory flag on every publish.
func WithMandatory(m bool) Option {
	return func(f *Forwarder) { f.mandatory = m }
}

// WithLogger sets the forwarder's logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.log = l
		}
	}
}

// Forwarder publishes received samples to an exchange.
type Forwarder struct {
	ch             Channel
	exchange       string
	size           int
	publishTimeout time.Duration
	mandatory      bool
	log            *zap.Logger

	queue    chan zenoh.Received
	once     sync.Once
	dropped  atomic.Uint64
	sent     atomic.Uint64
	failures atomic.Uint64
}

// NewForwarder creates a forwarder publishing to exchange over ch.
func NewForwarder(ch Channel, exchange string, opts ...Option) *Forwarder {
	f := &Forwarder{
		ch:             ch,
		exchange:       exchange,
		size:           256,
		publishTimeout: 5 * time.Second,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.queue = make(chan zenoh.Received, f.size)
	return f
}

// HandleSample queues a copy of s, or counts it as dropped when the queue
// is full.
func (f *Forwarder) HandleSample(s *zenoh.Sample) {
	select {
	case f.queue <- s.Copy():
	default:
		if n := f.dropped.Add(1); n == 1 || n%1000 == 0 {
			f.log.Warn("forward queue full; dropping samples", zap.Uint64("dropped", n))
		}
	}
}

// Drop closes the queue. Run returns once the remaining samples are sent.
func (f *Forwarder) Drop() {
	f.once.Do(func() { close(f.queue) })
}

// Run publishes queued samples until the subscription is dropped or ctx is
// cancelled. A failed publish is logged and counted; it does not stop Run.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-f.queue:
			if !ok {
				return nil
			}
			if err := f.publish(ctx, r); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				f.failures.Add(1)
				f.log.Error("forward sample", zap.String("key_expr", r.KeyExpr), zap.Error(err))
				continue
			}
			f.sent.Add(1)
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, r zenoh.Received) error {
	ctx, cancel := context.WithTimeout(ctx, f.publishTimeout)
	defer cancel()

	msg := Message(r)
	key := RoutingKey(r.KeyExpr)
	if err := f.ch.PublishWithContext(ctx, f.exchange, key, f.mandatory, false, msg); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", f.exchange, key, err)
	}
	f.log.Debug("forwarded sample", zap.String("routing_key", key), zap.String("message_id", msg.MessageId))
	return nil
}

// Stats reports sent, failed and dropped sample counts.
func (f *Forwarder) Stats() (sent, failed, dropped uint64) {
	return f.sent.Load(), f.failures.Load(), f.dropped.Load()
}

// Message builds the AMQP publishing for a received sample.
func Message(r zenoh.Received) amqp.Publishing {
	ts := r.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		MessageId:    uuid.NewString(),
		Timestamp:    ts,
		ContentType:  contentType(r.Encoding),
		DeliveryMode: amqp.Transient,
		Headers:      amqp.Table{HeaderKeyExpr: r.KeyExpr},
		Body:         r.Payload,
	}
}

// RoutingKey maps a key expression to an AMQP topic routing key: chunk
// separators become dots and "**" becomes "#".
func RoutingKey(keyExpr string) string {
	chunks := strings.Split(keyExpr, "/")
	for i, c := range chunks {
		if c == "**" {
			chunks[i] = "#"
		}
	}
	return strings.Join(chunks, ".")
}

// contentType drops the zenoh encoding schema suffix, if any.
func contentType(enc string) string {
	if i := strings.IndexByte(enc, ';'); i >= 0 {
		enc = enc[:i]
	}
	if enc == "" || enc == zenoh.EncodingBytes {
		return "application/octet-stream"
	}
	return enc
}
