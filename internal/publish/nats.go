package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type natsPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to url. An empty url means nats.DefaultURL.
func NewNATSPublisher(ctx context.Context, url string) (Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{
		nats.Name("modgraph"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &natsPublisher{nc: nc}, nil
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := p.nc.Publish(subject, payload); err != nil {
		return err
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages before closing the connection.
func (p *natsPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
