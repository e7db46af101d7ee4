// Package voice 管理语音识别会话的生命周期：权限校验、引擎创建与替换、
// 开始/停止/取消/销毁，以及把引擎回调规整为固定的对外事件。
package voice

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
	"github.com/liuscraft/orion-voice/internal/permission"
)

// Option Controller 可选项
type Option func(*Controller)

// WithIDGenerator 替换会话 ID 生成器，默认 uuid
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithLocaleResolver 替换 locale 解析，默认固定为 zh-CN
func WithLocaleResolver(resolve func(locale string) string) Option {
	return func(c *Controller) {
		if resolve != nil {
			c.resolveLocale = resolve
		}
	}
}

// Controller 会话控制器，同一时刻最多持有一个引擎和一个会话。
// 生命周期操作互相串行；IsRecognizing 不加锁。
type Controller struct {
	factory engine.Factory
	gate    *permission.Gate
	sink    Sink

	newID         func() string
	resolveLocale func(locale string) string

	// opMu 串行化 start/stop/cancel/destroy
	opMu sync.Mutex

	mu      sync.Mutex
	sm      *StateMachine
	session *Session

	recognizing atomic.Bool
}

func NewController(factory engine.Factory, gate *permission.Gate, sink Sink, opts ...Option) *Controller {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}
	c := &Controller{
		factory:       factory,
		gate:          gate,
		sink:          sink,
		newID:         uuid.NewString,
		resolveLocale: func(string) string { return engine.LanguageZhCN },
		sm:            NewStateMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sm.GetCurrentState()
}

// SessionID 当前会话 ID，没有会话时为空
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// IsRecognizing 是否正在识别
func (c *Controller) IsRecognizing() bool {
	return c.recognizing.Load()
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(to)
}

func (c *Controller) transitionLocked(to State) {
	from := c.sm.GetCurrentState()
	if !c.sm.Transition(to) {
		logging.Warnf("Controller: invalid transition %s -> %s", from, to)
		return
	}
	logging.Debugf("Controller: %s -> %s", from, to)
}

// StartSpeech 申请权限后创建新引擎并开始识别。已有引擎会先被关闭。
func (c *Controller) StartSpeech(ctx context.Context, locale string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	params := engine.NewParams(c.resolveLocale(locale))
	logging.Infof("Controller: startSpeech locale=%q resolved=%s/%s", locale, params.Language, params.Region)

	c.mu.Lock()
	prev := c.sm.GetCurrentState()
	c.transitionLocked(StateCreating)
	c.mu.Unlock()

	outcome := c.gate.RequestMicrophoneAccess(ctx)
	if !outcome.Granted {
		c.mu.Lock()
		if prev == StateListening && c.session != nil && !c.session.Ended() {
			c.transitionLocked(StateListening)
		} else {
			c.transitionLocked(StateIdle)
		}
		c.mu.Unlock()

		logging.Warnf("Controller: microphone permission denied: %s", outcome.Reason())
		permErr := &Error{Kind: KindPermissionDenied, Op: "start", Err: outcome.Err}
		if outcome.Err == nil {
			permErr.Details = outcome.Details
		}
		return permErr
	}

	c.discardSession()

	eng, err := c.factory.CreateEngine(ctx, params)
	if err != nil {
		c.transition(StateIdle)
		logging.Errorf("Controller: create engine failed: %v", err)
		return &Error{Kind: KindEngineCreationFailed, Op: "start", Err: err}
	}

	session := newSession(c.newID(), eng)
	eng.SetListener(newNormalizer(session, c.sink, &c.recognizing, c))

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	seq := logging.StartSession(session.ID)
	logging.Infof("Controller: engine created, session=%s seq=%d", session.ID, seq)

	if err := eng.StartListening(engine.NewStartParams(session.ID)); err != nil {
		logging.Errorf("Controller: start listening failed: %v", err)
		code, message := 0, err.Error()
		if engineErr, ok := engine.AsError(err); ok {
			code, message = engineErr.Code, engineErr.Message
		}
		session.emit(c.sink, NewSpeechErrorEvent(session.ID, code, message), nil)
		session.end(c.sink, nil, func() { c.recognizing.Store(false) })
		if shutdownErr := eng.Shutdown(); shutdownErr != nil {
			logging.Warnf("Controller: shutdown after failed start: %v", shutdownErr)
		}

		c.mu.Lock()
		if c.session == session {
			c.session = nil
		}
		c.transitionLocked(StateIdle)
		c.mu.Unlock()
		logging.EndSession()
		return &Error{Kind: KindEngineCreationFailed, Op: "start", Err: err}
	}

	c.mu.Lock()
	if c.session == session && !session.Ended() {
		c.transitionLocked(StateListening)
	} else {
		c.transitionLocked(StateIdle)
	}
	c.mu.Unlock()
	return nil
}

// discardSession 关闭并丢弃当前会话的引擎，被替换的会话不再产生任何事件
func (c *Controller) discardSession() {
	c.mu.Lock()
	old := c.session
	c.session = nil
	c.mu.Unlock()
	if old == nil {
		return
	}

	old.end(c.sink, nil, func() { c.recognizing.Store(false) })
	c.recognizing.Store(false)
	if err := old.engine.Shutdown(); err != nil {
		logging.Warnf("Controller: shutdown replaced engine (session=%s): %v", old.ID, err)
	}
	logging.Infof("Controller: replaced engine released, session=%s", old.ID)
}

// StopSpeech 结束当前会话，引擎输出剩余结果后发出 onSpeechEnd
func (c *Controller) StopSpeech(ctx context.Context) error {
	return c.endSpeech(ctx, "stop", func(eng engine.Engine, id string) error {
		return eng.Finish(id)
	})
}

// CancelSpeech 立即中止当前会话，不等待最终结果
func (c *Controller) CancelSpeech(ctx context.Context) error {
	return c.endSpeech(ctx, "cancel", func(eng engine.Engine, id string) error {
		return eng.Cancel(id)
	})
}

func (c *Controller) endSpeech(_ context.Context, op string, call func(engine.Engine, string) error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	session := c.session
	if session != nil {
		c.transitionLocked(StateStopping)
	}
	c.mu.Unlock()

	if session == nil {
		c.recognizing.Store(false)
		opErr := &Error{Kind: KindEngineOperationFailed, Op: op, Err: ErrNoEngine}
		logging.Warnf("Controller: %s without active engine", op)
		c.sink.Emit(NewSpeechEndErrorEvent("", opErr.Payload()))
		return opErr
	}

	err := c.safeCall(op, func() error { return call(session.engine, session.ID) })
	c.recognizing.Store(false)
	c.transition(StateIdle)

	if err != nil {
		opErr := &Error{Kind: KindEngineOperationFailed, Op: op, Err: err}
		logging.Errorf("Controller: %s session=%s failed: %v", op, session.ID, err)
		session.end(c.sink, NewSpeechEndErrorEvent(session.ID, opErr.Payload()), func() { c.recognizing.Store(false) })
		logging.EndSession()
		return opErr
	}
	session.end(c.sink, NewSpeechEndEvent(session.ID), func() { c.recognizing.Store(false) })
	logging.Infof("Controller: %s session=%s done", op, session.ID)
	logging.EndSession()
	return nil
}

// DestroySpeech 无条件释放引擎并清除识别标志
func (c *Controller) DestroySpeech(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.recognizing.Store(false)
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.transitionLocked(StateDestroyed)
	c.mu.Unlock()

	if session == nil {
		logging.Warnf("Controller: destroy without active engine")
		return &Error{Kind: KindEngineOperationFailed, Op: "destroy", Err: ErrNoEngine}
	}

	session.end(c.sink, nil, func() { c.recognizing.Store(false) })
	err := c.safeCall("destroy", session.engine.Shutdown)
	logging.EndSession()
	if err != nil {
		logging.Errorf("Controller: destroy session=%s failed: %v", session.ID, err)
		return &Error{Kind: KindEngineOperationFailed, Op: "destroy", Err: err}
	}
	logging.Infof("Controller: engine destroyed, session=%s", session.ID)
	return nil
}

// IsSpeechAvailable 查询识别能力，查询异常时返回 false 和错误
func (c *Controller) IsSpeechAvailable(ctx context.Context) (available bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			available = false
			err = &Error{Kind: KindCapabilityQueryFailed, Op: "available", Err: fmt.Errorf("capability query panicked: %v", r)}
		}
	}()

	ok, queryErr := c.factory.Available(ctx)
	if queryErr != nil {
		logging.Warnf("Controller: capability query failed: %v", queryErr)
		return false, &Error{Kind: KindCapabilityQueryFailed, Op: "available", Err: queryErr}
	}
	return ok, nil
}

// safeCall 调用引擎方法，panic 转为错误
func (c *Controller) safeCall(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine %s panicked: %v", op, r)
		}
	}()
	return fn()
}

// sessionCompleted 引擎自然结束会话
func (c *Controller) sessionCompleted(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return
	}
	if c.sm.GetCurrentState() == StateListening {
		c.transitionLocked(StateIdle)
	}
	logging.Infof("Controller: session=%s completed", session.ID)
	logging.EndSession()
}
