package voice

import (
	"sync"

	"github.com/liuscraft/orion-voice/internal/logging"
)

// Sink 事件出口，只管发送，不回报投递结果。
// Emit 在会话锁内被调用，实现不能同步回调 Controller 的生命周期方法。
type Sink interface {
	Emit(event Event)
}

// SinkFunc 函数适配
type SinkFunc func(event Event)

func (f SinkFunc) Emit(event Event) {
	f(event)
}

// Recorder 同步记录所有事件，测试和诊断用
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events 返回事件副本
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names 按顺序返回事件名
func (r *Recorder) Names() []EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]EventName, len(r.events))
	for i, event := range r.events {
		names[i] = event.Name()
	}
	return names
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// EventHandler 事件处理器
type EventHandler func(event Event)

const defaultSubscriberBuffer = 64

// EventBus 事件总线。每个订阅者一个投递协程，保证单个订阅者看到的顺序与发出顺序一致，
// 订阅者内部可以安全地回调 Controller。
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscription
	nextID      uint64
	buffer      int
	closed      bool
}

type subscription struct {
	name    EventName
	handler EventHandler
	queue   chan Event
	done    chan struct{}
}

func NewEventBus() *EventBus {
	return NewEventBusWithBuffer(defaultSubscriberBuffer)
}

func NewEventBusWithBuffer(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &EventBus{
		subscribers: make(map[uint64]*subscription),
		buffer:      buffer,
	}
}

// Subscribe 订阅指定事件，返回取消订阅函数
func (eb *EventBus) Subscribe(name EventName, handler EventHandler) func() {
	return eb.subscribe(name, handler)
}

// SubscribeAll 订阅所有事件
func (eb *EventBus) SubscribeAll(handler EventHandler) func() {
	return eb.subscribe("", handler)
}

func (eb *EventBus) subscribe(name EventName, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return func() {}
	}

	sub := &subscription{
		name:    name,
		handler: handler,
		queue:   make(chan Event, eb.buffer),
		done:    make(chan struct{}),
	}
	id := eb.nextID
	eb.nextID++
	eb.subscribers[id] = sub
	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			eb.mu.Lock()
			_, ok := eb.subscribers[id]
			delete(eb.subscribers, id)
			eb.mu.Unlock()
			if ok {
				close(sub.queue)
				<-sub.done
			}
		})
	}
}

// Emit 发布事件
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		logging.Debugf("EventBus: closed, dropping %s", event.Name())
		return
	}
	for _, sub := range eb.subscribers {
		if sub.name != "" && sub.name != event.Name() {
			continue
		}
		sub.queue <- event
	}
}

// Close 停止接收事件，等待已排队的事件投递完成
func (eb *EventBus) Close() {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return
	}
	eb.closed = true
	subs := make([]*subscription, 0, len(eb.subscribers))
	for id, sub := range eb.subscribers {
		subs = append(subs, sub)
		delete(eb.subscribers, id)
	}
	eb.mu.Unlock()

	for _, sub := range subs {
		close(sub.queue)
		<-sub.done
	}
}

func (s *subscription) run() {
	defer close(s.done)
	for event := range s.queue {
		s.deliver(event)
	}
}

func (s *subscription) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("EventBus: handler for %s panicked: %v", event.Name(), r)
		}
	}()
	s.handler(event)
}
