package amqpbridge

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Conn is a broker connection with one channel and a declared topic
// exchange.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to url and declares exchange as a durable topic exchange.
func Dial(url, exchange string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &Conn{conn: conn, ch: ch}, nil
}

// Channel returns the publishing channel.
func (c *Conn) Channel() Channel {
	return c.ch
}

// NotifyClose reports broker-initiated connection closure.
func (c *Conn) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		c.ch = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}
