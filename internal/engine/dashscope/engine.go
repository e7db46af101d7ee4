// Package dashscope 基于 DashScope 实时识别 WebSocket 接口实现识别引擎。
package dashscope

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
)

const (
	DefaultEndpoint = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"
	DefaultModel    = "fun-asr-realtime"

	defaultStartTimeout  = 10 * time.Second
	defaultFinishTimeout = 10 * time.Second
)

// Config DashScope 引擎配置
type Config struct {
	APIKey        string
	Endpoint      string
	Model         string
	LanguageHints []string
	VADThreshold  float64
	StartTimeout  time.Duration
	FinishTimeout time.Duration
}

// Factory 创建 DashScope 引擎，同一时刻只允许一个存活实例
type Factory struct {
	cfg    Config
	source audio.SourceFactory
	dialer *websocket.Dialer

	mu   sync.Mutex
	live *Engine
}

var _ engine.Factory = (*Factory)(nil)

func NewFactory(cfg Config, source audio.SourceFactory) *Factory {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if len(cfg.LanguageHints) == 0 {
		cfg.LanguageHints = []string{"zh"}
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = defaultStartTimeout
	}
	if cfg.FinishTimeout <= 0 {
		cfg.FinishTimeout = defaultFinishTimeout
	}
	return &Factory{
		cfg:    cfg,
		source: source,
		dialer: websocket.DefaultDialer,
	}
}

// Available API Key 和音频源都已配置时可用
func (f *Factory) Available(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return f.cfg.APIKey != "" && f.source != nil, nil
}

func (f *Factory) CreateEngine(ctx context.Context, params engine.Params) (engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.NewError(engine.CodeCreateFailed, "create canceled: "+err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if f.cfg.APIKey == "" {
		return nil, engine.NewError(engine.CodeCreateFailed, "DASHSCOPE_API_KEY is required")
	}
	if f.source == nil {
		return nil, engine.NewError(engine.CodeCreateFailed, "audio source not configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live != nil {
		return nil, engine.NewError(engine.CodeBusy, "engine busy")
	}
	e := &Engine{factory: f, params: params, listener: engine.NopListener{}}
	f.live = e
	logging.Infof("DashScope: engine created, model=%s language=%s", f.cfg.Model, params.Language)
	return e, nil
}

func (f *Factory) release(e *Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == e {
		f.live = nil
	}
}

// Engine DashScope 识别引擎实例，每次 StartListening 建立一条 WebSocket 任务
type Engine struct {
	factory *Factory
	params  engine.Params

	mu       sync.Mutex
	listener engine.Listener
	task     *task
	closed   bool
}

var _ engine.Engine = (*Engine)(nil)

func (e *Engine) SetListener(listener engine.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if listener == nil {
		listener = engine.NopListener{}
	}
	e.listener = listener
}

func (e *Engine) StartListening(params engine.StartParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.NewError(engine.CodeShuttingDown, "engine shutting down")
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if e.task != nil && !e.task.isDone() {
		return engine.NewError(engine.CodeBusy, "session "+e.task.sessionID+" still running")
	}
	if e.task != nil {
		e.task.abort()
		e.task = nil
	}

	cfg := e.factory.cfg
	ctx, cancel := context.WithTimeout(context.Background(), cfg.StartTimeout)
	defer cancel()

	source, err := e.factory.source()
	if err != nil {
		return engine.NewError(engine.CodeStartFailed, "open audio source: "+err.Error())
	}

	conn, err := e.dial(ctx)
	if err != nil {
		_ = source.Close()
		return engine.NewError(engine.CodeStartFailed, "connect: "+err.Error())
	}

	t := newTask(params.SessionID, conn, e.listener)
	t.run()
	if err := t.writeJSON(newRunTask(t.taskID, cfg.Model, cfg.LanguageHints, params)); err != nil {
		_ = source.Close()
		t.abort()
		return engine.NewError(engine.CodeStartFailed, "send run-task: "+err.Error())
	}

	select {
	case <-t.started:
	case <-t.done:
		_ = source.Close()
		t.abort()
		message := "task ended before start"
		if failure := t.err(); failure != nil {
			message = failure.Error()
		}
		return engine.NewError(engine.CodeStartFailed, message)
	case <-ctx.Done():
		_ = source.Close()
		t.abort()
		return engine.NewError(engine.CodeStartFailed, "init timeout")
	}

	t.startPump(source, audio.PumpConfig{
		ChunkSize:    engine.SendSize,
		VADThreshold: cfg.VADThreshold,
		Audio:        params.Audio,
		Options:      params.Options,
	})
	e.task = t
	logging.Infof("DashScope: listening, session=%s task=%s", params.SessionID, t.taskID)
	return nil
}

func (e *Engine) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg := e.factory.cfg
	header := http.Header{}
	header.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	conn, resp, err := e.factory.dialer.DialContext(ctx, cfg.Endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// activeTask 取出指定会话的任务，调用方持有 e.mu
func (e *Engine) activeTask(sessionID string, code int) (*task, error) {
	if e.closed {
		return nil, engine.NewError(engine.CodeShuttingDown, "engine shutting down")
	}
	if e.task == nil || e.task.sessionID != sessionID {
		return nil, engine.NewError(code, "no active session "+sessionID)
	}
	return e.task, nil
}

func (e *Engine) Finish(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.activeTask(sessionID, engine.CodeFinishFailed)
	if err != nil {
		return err
	}
	e.task = nil

	t.waitPump()
	if !t.isDone() {
		if err := t.sendFinish(); err != nil && !t.isDone() {
			t.abort()
			return engine.NewError(engine.CodeFinishFailed, "send finish-task: "+err.Error())
		}
	}

	timer := time.NewTimer(e.factory.cfg.FinishTimeout)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		t.abort()
		return engine.NewError(engine.CodeFinishFailed, "finish timeout")
	}
	_ = t.conn.Close()

	if failure := t.err(); failure != nil {
		return engine.NewError(engine.CodeFinishFailed, failure.Error())
	}
	logging.Infof("DashScope: finished, session=%s", sessionID)
	return nil
}

func (e *Engine) Cancel(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.activeTask(sessionID, engine.CodeCancelFailed)
	if err != nil {
		return err
	}
	e.task = nil
	t.abort()
	logging.Infof("DashScope: canceled, session=%s", sessionID)
	return nil
}

func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.NewError(engine.CodeShuttingDown, "engine shutting down")
	}
	e.closed = true
	if e.task != nil {
		e.task.abort()
		e.task = nil
	}
	e.factory.release(e)
	logging.Infof("DashScope: engine shut down")
	return nil
}
