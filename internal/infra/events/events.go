// Package events publishes allocator events to NATS subjects so that other
// services (digests, dashboards) can follow reading progress.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	SubjectPagesAssigned  = "khatm.pages.assigned"
	SubjectCycleCompleted = "khatm.cycle.completed"
)

// PagesAssigned is published for every committed assignment.
type PagesAssigned struct {
	KhatmID    string    `json:"khatm_id"`
	Slug       string    `json:"slug"`
	StartPage  int       `json:"start_page"`
	EndPage    int       `json:"end_page"`
	Requested  int       `json:"requested"`
	Cycle      int       `json:"cycle"`
	AssignedAt time.Time `json:"assigned_at"`
}

// CycleCompleted is published when an assignment reaches the last page.
type CycleCompleted struct {
	KhatmID     string    `json:"khatm_id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Cycle       int       `json:"cycle"`
	CompletedAt time.Time `json:"completed_at"`
}

// Publisher sends an event payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// NATSPublisher publishes JSON-encoded events on a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
}

// ConnectNATS dials url and logs connection state changes.
func ConnectNATS(url string, logger *logrus.Entry) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("khatm-bot"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("Failed to drain NATS connection")
		p.conn.Close()
	}
}
