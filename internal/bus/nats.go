// Package bus publishes analysis events to NATS.
package bus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/miradorstack/mirador-netlog/internal/models"
)

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

// Publisher sends JSON payloads to a fixed subject.
type Publisher struct {
	conn    conn
	subject string
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, subject string) (*Publisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("alert subject not configured")
	}
	nc, err := nats.Connect(url, nats.Name("mirador-netlog"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: nc, subject: subject}, nil
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}

// Publish marshals payload and sends it on the publisher's subject.
func (p *Publisher) Publish(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}

// PublishAbnormal announces one abnormal row.
func (p *Publisher) PublishAbnormal(evt models.AbnormalRowEvent) error {
	if err := p.Publish(evt); err != nil {
		return fmt.Errorf("publish abnormal row %d: %w", evt.Row, err)
	}
	return nil
}
