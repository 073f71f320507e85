package invalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Event is the message body published for every invalidated scope
type Event struct {
	Scope      string    `json:"scope"`
	OccurredAt time.Time `json:"occurred_at"`
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	IsClosed() bool
	Close() error
}

type amqpConn interface {
	openChannel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type brokerConn struct {
	*amqp091.Connection
}

func (c brokerConn) openChannel() (amqpChannel, error) {
	ch, err := c.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// AMQPHook publishes invalidation events to a durable topic exchange.
// A dropped channel is reopened and a dropped connection is redialled on the
// next publish.
type AMQPHook struct {
	mu       sync.Mutex
	dial     func() (amqpConn, error)
	conn     amqpConn
	channel  amqpChannel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPHook dials the broker and declares exchange
func NewAMQPHook(amqpURL, exchange string) (*AMQPHook, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	h := &AMQPHook{
		exchange: exchange,
		dial: func() (amqpConn, error) {
			conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
			if err != nil {
				return nil, err
			}
			return brokerConn{conn}, nil
		},
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ensureChannel(); err != nil {
		h.closeLocked()
		return nil, err
	}
	return h, nil
}

// RoutingKey maps a scope such as "accounts/<id>" to "invalidate.accounts.<id>"
func RoutingKey(scope string) string {
	return "invalidate." + strings.ReplaceAll(scope, "/", ".")
}

func (h *AMQPHook) Invalidate(ctx context.Context, scope string) error {
	body, err := json.Marshal(Event{Scope: scope, OccurredAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := h.ensureChannel(); err != nil {
			lastErr = err
			continue
		}
		err := h.channel.PublishWithContext(ctx, h.exchange, RoutingKey(scope), false, false, msg)
		if err == nil {
			return nil
		}
		lastErr = err
		h.channel.Close()
		h.channel = nil
	}
	return fmt.Errorf("amqp publish %q: %w", scope, lastErr)
}

// ensureChannel redials a closed connection and reopens a closed channel.
// Callers hold h.mu.
func (h *AMQPHook) ensureChannel() error {
	if h.conn == nil || h.conn.IsClosed() {
		if h.conn != nil {
			log.Warn().Str("exchange", h.exchange).Msg("AMQP connection lost, redialling")
		}
		h.channel = nil
		conn, err := h.dial()
		if err != nil {
			h.conn = nil
			return fmt.Errorf("amqp dial: %w", err)
		}
		h.conn = conn
	}

	if h.channel != nil && !h.channel.IsClosed() {
		return nil
	}

	ch, err := h.conn.openChannel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(h.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("amqp declare %q: %w", h.exchange, err)
	}
	h.channel = ch
	return nil
}

// Close closes the channel and connection
func (h *AMQPHook) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *AMQPHook) closeLocked() {
	if h.channel != nil {
		h.channel.Close()
		h.channel = nil
	}
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
}
