package sink

import (
	"context"
	"errors"

	"github.com/liuscraft/orion-voice/internal/config"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/voice"
)

// Set 按配置打开的所有投递通道
type Set struct {
	WebSocket  *WebSocketHub
	publishers []Publisher
	detach     []func()
}

// Open 按配置连接外部通道并挂到事件总线。任一通道连接失败会关闭已打开的通道。
func Open(ctx context.Context, cfg config.SinksConfig, bus *voice.EventBus) (*Set, error) {
	set := &Set{}

	if cfg.WebSocket.Enable {
		set.WebSocket = NewWebSocketHub()
		set.add(bus, set.WebSocket)
	}
	if cfg.MQTT.Enable {
		p, err := NewMQTTPublisher(MQTTConfig{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err != nil {
			return nil, errors.Join(err, set.Close())
		}
		set.add(bus, p)
	}
	if cfg.NATS.Enable {
		p, err := NewNATSPublisher(NATSConfig{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject})
		if err != nil {
			return nil, errors.Join(err, set.Close())
		}
		set.add(bus, p)
	}
	if cfg.Redis.Enable {
		p, err := NewRedisPublisher(ctx, RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			return nil, errors.Join(err, set.Close())
		}
		set.add(bus, p)
	}
	return set, nil
}

func (s *Set) add(bus *voice.EventBus, p Publisher) {
	s.publishers = append(s.publishers, p)
	s.detach = append(s.detach, Attach(bus, p))
}

// Names 已启用的通道
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.publishers))
	for _, p := range s.publishers {
		names = append(names, p.Name())
	}
	return names
}

// Close 取消订阅并关闭所有通道
func (s *Set) Close() error {
	for _, detach := range s.detach {
		detach()
	}
	s.detach = nil

	var errs []error
	for _, p := range s.publishers {
		if err := p.Close(); err != nil {
			logging.Warnf("Sink: close %s failed: %v", p.Name(), err)
			errs = append(errs, err)
		}
	}
	s.publishers = nil
	return errors.Join(errs...)
}
