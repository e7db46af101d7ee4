package voice

import (
	"sync"

	"github.com/liuscraft/orion-voice/internal/engine"
)

// Session 一次识别会话，持有当前引擎。同一时刻 Controller 只有一个 Session。
type Session struct {
	ID     string
	engine engine.Engine

	mu    sync.Mutex
	ended bool
}

func newSession(id string, eng engine.Engine) *Session {
	return &Session{ID: id, engine: eng}
}

// Ended 会话是否已经发出结束信号
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// emit 会话未结束时执行 apply 并发出事件
func (s *Session) emit(sink Sink, event Event, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	if apply != nil {
		apply()
	}
	sink.Emit(event)
	return true
}

// end 标记会话结束，只有第一次调用会执行 apply 并发出 event（event 可为 nil）
func (s *Session) end(sink Sink, event Event, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	if apply != nil {
		apply()
	}
	if event != nil {
		sink.Emit(event)
	}
	return true
}
