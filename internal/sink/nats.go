package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/voice"
	"github.com/nats-io/nats.go"
)

// NATSConfig NATS 投递配置
type NATSConfig struct {
	URL     string
	Subject string
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher 事件发布到 <subject>.<eventName>
type NATSPublisher struct {
	subject string
	conn    natsConn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("orion-voice"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warnf("NATS: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Infof("NATS: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newNATSPublisher(cfg.Subject, nc), nil
}

func newNATSPublisher(subject string, conn natsConn) *NATSPublisher {
	if subject == "" {
		subject = "orion.voice"
	}
	return &NATSPublisher{subject: subject, conn: conn}
}

func (p *NATSPublisher) Name() string {
	return "nats"
}

// Subject 事件对应的 subject
func (p *NATSPublisher) Subject(event voice.EventName) string {
	return p.subject + "." + string(event)
}

func (p *NATSPublisher) Publish(ctx context.Context, event voice.EventName, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(event), data)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
