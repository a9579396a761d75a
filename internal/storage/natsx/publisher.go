// Package natsx streams engine events to NATS subjects.
package natsx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"

	"liquidityEngine/internal/model"
)

const defaultPublishTimeout = 5 * time.Second

// Config captures the runtime parameters for the publisher.
type Config struct {
	URL            string
	SubjectRoot    string
	PublishTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SubjectRoot:    "engine.events",
		PublishTimeout: defaultPublishTimeout,
	}
}

// Validate ensures required fields are populated and durations are sane.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("NATS URL is required")
	}
	if c.SubjectRoot == "" {
		return fmt.Errorf("subject root cannot be empty")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("publish timeout must be positive")
	}
	return nil
}

// Subject is the subject an event is published on: <root>.<event name>.
func (c Config) Subject(name model.EventName) string {
	return strings.TrimSuffix(c.SubjectRoot, ".") + "." + string(name)
}

// Publisher emits one message per event carrying its EventRecord.
type Publisher struct {
	cfg  Config
	conn *nats.Conn
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("liquidity-engine"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{cfg: cfg, conn: conn}, nil
}

// WriteEvents publishes a batch and flushes it to the server.
func (p *Publisher) WriteEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		msg, err := Message(p.cfg, ev)
		if err != nil {
			return err
		}
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("publish to %s: %w", msg.Subject, err)
		}
	}
	flushCtx, cancel := p.WithTimeout(ctx)
	defer cancel()
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Message renders the NATS message of an event.
func Message(cfg Config, ev model.Event) (*nats.Msg, error) {
	record, err := ev.Record()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal event %d: %w", ev.Seq, err)
	}
	msg := nats.NewMsg(cfg.Subject(ev.Name))
	msg.Data = data
	// JetStream dedup key
	msg.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%d", ev.Seq))
	return msg, nil
}

// WithTimeout returns a context with the publisher's timeout applied.
func (p *Publisher) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(parent, timeout)
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
