package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Email is the payload consumed by the mail worker.
type Email struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	RequestID string    `json:"requestId"`
	Kind      string    `json:"kind"`
	SentAt    time.Time `json:"sentAt"`
}

type Notifier interface {
	Notify(ctx context.Context, email Email) error
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes e-mail jobs on a subject. Delivery is at most once.
type NATSNotifier struct {
	pub     publisher
	conn    *nats.Conn
	subject string
}

func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("visionmatch-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSNotifier{pub: conn, conn: conn, subject: subject}, nil
}

func (n *NATSNotifier) Notify(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if email.SentAt.IsZero() {
		email.SentAt = time.Now().UTC()
	}
	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

// Close drains pending publishes before closing the connection.
func (n *NATSNotifier) Close() {
	if n.conn != nil {
		_ = n.conn.Drain()
	}
}

// Noop discards notifications. Used when NATS is not configured.
type Noop struct{}

func (Noop) Notify(context.Context, Email) error { return nil }
