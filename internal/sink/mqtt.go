package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/voice"
)

// MQTTConfig MQTT 投递配置
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher 事件发布到 <prefix>/events/<eventName>
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqttClient
}

var _ Publisher = (*MQTTPublisher)(nil)

// NewMQTTPublisher 连接 broker，断线自动重连
func NewMQTTPublisher(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt broker url is required")
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.Warnf("MQTT: connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logging.Infof("MQTT: connected to %s", cfg.BrokerURL)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(15*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newMQTTPublisher(cfg, client), nil
}

func newMQTTPublisher(cfg MQTTConfig, client mqttClient) *MQTTPublisher {
	cfg.TopicPrefix = strings.TrimRight(cfg.TopicPrefix, "/")
	return &MQTTPublisher{cfg: cfg, client: client}
}

func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// Topic 事件对应的主题
func (p *MQTTPublisher) Topic(event voice.EventName) string {
	if p.cfg.TopicPrefix == "" {
		return "events/" + string(event)
	}
	return p.cfg.TopicPrefix + "/events/" + string(event)
}

func (p *MQTTPublisher) Publish(ctx context.Context, event voice.EventName, data []byte) error {
	token := p.client.Publish(p.Topic(event), p.cfg.QoS, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
