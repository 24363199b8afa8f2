package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/lplace/internal/core/domain"
)

// SubjectPrefix roots every canvas subject: lplace.canvas.<owner>.
const SubjectPrefix = "lplace.canvas."

// envelope tags an event with the relay instance that accepted it.
type envelope struct {
	Origin string       `json:"origin"`
	Event  domain.Event `json:"event"`
}

// Publisher implements ports.EventPublisher on core NATS. There is no
// JetStream stream behind it: events missed while disconnected are gone.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// PublishEvent sends ev on the owner's canvas subject.
func (p *Publisher) PublishEvent(ctx context.Context, origin string, ev domain.Event) error {
	data, err := json.Marshal(envelope{Origin: origin, Event: ev})
	if err != nil {
		return err
	}
	return p.conn.Publish(Subject(ev.Owner), data)
}

// Conn exposes the connection for subscribers and health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Subject returns the canvas subject for owner. Characters NATS reserves
// for subject syntax are replaced.
func Subject(owner string) string {
	return SubjectPrefix + subjectToken(owner)
}

var tokenReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_", "\t", "_", "\r", "_", "\n", "_")

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return tokenReplacer.Replace(s)
}

// RawConn creates a plain NATS connection that keeps reconnecting.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("lplace-relay"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
