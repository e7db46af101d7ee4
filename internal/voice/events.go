package voice

import (
	"time"
)

// EventName 对外事件名，名称固定
type EventName string

const (
	EventSpeechStart          EventName = "onSpeechStart"
	EventSpeechRecognized     EventName = "onSpeechRecognized"
	EventSpeechPartialResults EventName = "onSpeechPartialResults"
	EventSpeechResults        EventName = "onSpeechResults"
	EventSpeechEnd            EventName = "onSpeechEnd"
	EventSpeechError          EventName = "onSpeechError"
)

// Event 归一化后的识别事件
type Event interface {
	Name() EventName
	SessionID() string
	Timestamp() time.Time
	// Payload 事件内容，可直接 JSON 序列化
	Payload() any
}

// BaseEvent 事件公共字段
type BaseEvent struct {
	name      EventName
	sessionID string
	timestamp time.Time
}

func newBaseEvent(name EventName, sessionID string) BaseEvent {
	return BaseEvent{name: name, sessionID: sessionID, timestamp: time.Now()}
}

func (e *BaseEvent) Name() EventName {
	return e.name
}

func (e *BaseEvent) SessionID() string {
	return e.sessionID
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.timestamp
}

// MessagePayload onSpeechStart / onSpeechRecognized 的内容
type MessagePayload struct {
	Message string `json:"message"`
}

// ValuePayload 识别文本列表
type ValuePayload struct {
	Value []string `json:"value"`
}

// EndPayload 正常结束带 sessionId，异常结束带 error
type EndPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SpeechErrorPayload 引擎错误
type SpeechErrorPayload struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SpeechStartEvent 引擎开始识别
type SpeechStartEvent struct {
	BaseEvent
	Message string
}

func NewSpeechStartEvent(sessionID, message string) *SpeechStartEvent {
	return &SpeechStartEvent{
		BaseEvent: newBaseEvent(EventSpeechStart, sessionID),
		Message:   message,
	}
}

func (e *SpeechStartEvent) Payload() any {
	return MessagePayload{Message: e.Message}
}

// SpeechRecognizedEvent 检测到语音
type SpeechRecognizedEvent struct {
	BaseEvent
	Message string
}

func NewSpeechRecognizedEvent(sessionID, message string) *SpeechRecognizedEvent {
	return &SpeechRecognizedEvent{
		BaseEvent: newBaseEvent(EventSpeechRecognized, sessionID),
		Message:   message,
	}
}

func (e *SpeechRecognizedEvent) Payload() any {
	return MessagePayload{Message: e.Message}
}

// PartialResultsEvent 中间结果，最终结果也会先以中间结果发出
type PartialResultsEvent struct {
	BaseEvent
	Value []string
}

func NewPartialResultsEvent(sessionID string, value ...string) *PartialResultsEvent {
	return &PartialResultsEvent{
		BaseEvent: newBaseEvent(EventSpeechPartialResults, sessionID),
		Value:     value,
	}
}

func (e *PartialResultsEvent) Payload() any {
	return ValuePayload{Value: e.Value}
}

// ResultsEvent 最终结果
type ResultsEvent struct {
	BaseEvent
	Value []string
}

func NewResultsEvent(sessionID string, value ...string) *ResultsEvent {
	return &ResultsEvent{
		BaseEvent: newBaseEvent(EventSpeechResults, sessionID),
		Value:     value,
	}
}

func (e *ResultsEvent) Payload() any {
	return ValuePayload{Value: e.Value}
}

// SpeechEndEvent 会话结束
type SpeechEndEvent struct {
	BaseEvent
	Err string
}

func NewSpeechEndEvent(sessionID string) *SpeechEndEvent {
	return &SpeechEndEvent{BaseEvent: newBaseEvent(EventSpeechEnd, sessionID)}
}

func NewSpeechEndErrorEvent(sessionID, errPayload string) *SpeechEndEvent {
	return &SpeechEndEvent{
		BaseEvent: newBaseEvent(EventSpeechEnd, sessionID),
		Err:       errPayload,
	}
}

func (e *SpeechEndEvent) Payload() any {
	if e.Err != "" {
		return EndPayload{Error: e.Err}
	}
	return EndPayload{SessionID: e.sessionID}
}

// SpeechErrorEvent 引擎错误回调
type SpeechErrorEvent struct {
	BaseEvent
	Code    int
	Message string
}

func NewSpeechErrorEvent(sessionID string, code int, message string) *SpeechErrorEvent {
	return &SpeechErrorEvent{
		BaseEvent: newBaseEvent(EventSpeechError, sessionID),
		Code:      code,
		Message:   message,
	}
}

func (e *SpeechErrorEvent) Payload() any {
	return SpeechErrorPayload{Message: e.Message, Code: e.Code}
}
