// Package bus publishes service events to NATS JetStream. The API runs fine
// without a broker: a nil *Bus swallows publishes, so event emission is
// always fire-and-forget from the caller's point of view.
package bus

import (
	"github.com/nats-io/nats.go"
)

// Bus wraps a NATS JetStream connection for publishing events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect dials the NATS endpoint and opens a JetStream context. An empty
// url returns a nil Bus, which is valid to publish to.
func Connect(url string, opts ...nats.Option) (*Bus, error) {
	if url == "" {
		return nil, nil
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

// Close drains the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish sends data to the given subject. Publishing to a nil Bus is a
// no-op.
func (b *Bus) Publish(subject string, data []byte) error {
	if b == nil {
		return nil
	}
	_, err := b.js.Publish(subject, data)
	return err
}
