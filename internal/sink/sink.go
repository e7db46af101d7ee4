// Package sink 把归一化后的识别事件投递到外部通道：WebSocket、MQTT、NATS、Redis。
// 每个通道作为 EventBus 的一个订阅者，顺序投递，失败只记录日志。
package sink

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/voice"
)

const publishTimeout = 5 * time.Second

// Envelope 对外事件的线上格式
type Envelope struct {
	Event     voice.EventName `json:"event"`
	SessionID string          `json:"sessionId,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   any             `json:"payload"`
}

// NewEnvelope 包装事件，时间戳为毫秒
func NewEnvelope(event voice.Event) Envelope {
	return Envelope{
		Event:     event.Name(),
		SessionID: event.SessionID(),
		Timestamp: event.Timestamp().UnixMilli(),
		Payload:   event.Payload(),
	}
}

// Encode 序列化事件
func Encode(event voice.Event) ([]byte, error) {
	return json.Marshal(NewEnvelope(event))
}

// Publisher 外部投递通道
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event voice.EventName, data []byte) error
	Close() error
}

// Attach 把 publisher 挂到事件总线上，返回取消订阅函数
func Attach(bus *voice.EventBus, p Publisher) func() {
	logging.Infof("Sink: %s attached", p.Name())
	return bus.SubscribeAll(func(event voice.Event) {
		data, err := Encode(event)
		if err != nil {
			logging.Errorf("Sink: encode %s failed: %v", event.Name(), err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, event.Name(), data); err != nil {
			logging.Warnf("Sink: %s publish %s failed: %v", p.Name(), event.Name(), err)
		}
	})
}
