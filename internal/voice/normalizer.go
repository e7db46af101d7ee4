package voice

import (
	"sync/atomic"

	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
)

// sessionObserver 会话自然结束时通知控制器
type sessionObserver interface {
	sessionCompleted(session *Session)
}

// Normalizer 把引擎回调转换为固定的对外事件，绑定到一个 Session。
// 非本会话的回调、以及会话结束后的回调都会被丢弃。
type Normalizer struct {
	session     *Session
	sink        Sink
	recognizing *atomic.Bool
	observer    sessionObserver
}

var _ engine.Listener = (*Normalizer)(nil)

func newNormalizer(session *Session, sink Sink, recognizing *atomic.Bool, observer sessionObserver) *Normalizer {
	return &Normalizer{
		session:     session,
		sink:        sink,
		recognizing: recognizing,
		observer:    observer,
	}
}

func (n *Normalizer) owns(sessionID, callback string) bool {
	if sessionID != n.session.ID {
		logging.Warnf("Normalizer: %s for foreign session %s dropped (current %s)", callback, sessionID, n.session.ID)
		return false
	}
	return true
}

func (n *Normalizer) OnStart(sessionID, message string) {
	logging.Infof("Normalizer: onStart, sessionId: %s eventMessage: %s", sessionID, message)
	if !n.owns(sessionID, "onStart") {
		return
	}
	n.session.emit(n.sink, NewSpeechStartEvent(sessionID, message), func() {
		n.recognizing.Store(true)
	})
}

func (n *Normalizer) OnEvent(sessionID string, code int, message string) {
	logging.Infof("Normalizer: onEvent, sessionId: %s eventCode: %d eventMessage: %s", sessionID, code, message)
	if code != engine.EventCodeSpeechDetected {
		return
	}
	if !n.owns(sessionID, "onEvent") {
		return
	}
	n.session.emit(n.sink, NewSpeechRecognizedEvent(sessionID, message), nil)
}

func (n *Normalizer) OnResult(sessionID string, result engine.Result) {
	logging.Infof("Normalizer: onResult, sessionId: %s text: %q final: %v", sessionID, result.Text, result.IsFinal)
	if !n.owns(sessionID, "onResult") {
		return
	}
	if !n.session.emit(n.sink, NewPartialResultsEvent(sessionID, result.Text), func() { n.recognizing.Store(true) }) {
		return
	}
	if result.IsFinal {
		n.session.emit(n.sink, NewResultsEvent(sessionID, result.Text), nil)
	}
}

func (n *Normalizer) OnComplete(sessionID, message string) {
	logging.Infof("Normalizer: onComplete, sessionId: %s eventMessage: %s", sessionID, message)
	if !n.owns(sessionID, "onComplete") {
		return
	}
	ended := n.session.end(n.sink, NewSpeechEndEvent(sessionID), func() {
		n.recognizing.Store(false)
	})
	if ended && n.observer != nil {
		n.observer.sessionCompleted(n.session)
	}
}

func (n *Normalizer) OnError(sessionID string, code int, message string) {
	logging.Errorf("Normalizer: onError, sessionId: %s errorCode: %d errorMessage: %s", sessionID, code, message)
	if !n.owns(sessionID, "onError") {
		return
	}
	n.session.emit(n.sink, NewSpeechErrorEvent(sessionID, code, message), nil)
}
