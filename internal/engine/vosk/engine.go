// Package vosk 基于 Vosk 离线模型实现识别引擎。
// 默认构建不链接 libvosk，需要 -tags vosk 才能真正加载模型。
package vosk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/liuscraft/orion-voice/internal/audio"
	"github.com/liuscraft/orion-voice/internal/engine"
	"github.com/liuscraft/orion-voice/internal/logging"
)

// ErrNotCompiled 默认构建没有链接 libvosk
var ErrNotCompiled = errors.New("vosk support not compiled in, rebuild with -tags vosk")

type model interface {
	NewRecognizer(sampleRate float64) (recognizer, error)
	Free()
}

type recognizer interface {
	// AcceptWaveform 返回 true 表示一句话结束，可以取 Result
	AcceptWaveform(pcm []byte) bool
	Result() string
	PartialResult() string
	FinalResult() string
	Reset()
	Free()
}

// Config Vosk 引擎配置
type Config struct {
	ModelPath    string
	VADThreshold float64
}

// Factory 懒加载模型，模型在多个引擎实例之间共享，同一时刻只允许一个存活实例
type Factory struct {
	cfg    Config
	source audio.SourceFactory
	load   func(path string) (model, error)

	mu    sync.Mutex
	model model
	live  *Engine
}

var _ engine.Factory = (*Factory)(nil)

func NewFactory(cfg Config, source audio.SourceFactory) *Factory {
	return &Factory{cfg: cfg, source: source, load: loadModel}
}

// Available 模型路径已配置、音频源存在，且编译时带了 Vosk
func (f *Factory) Available(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.cfg.ModelPath == "" || f.source == nil {
		return false, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.ensureModel(); err != nil {
		if errors.Is(err, ErrNotCompiled) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ensureModel 调用方持有 f.mu
func (f *Factory) ensureModel() (model, error) {
	if f.model != nil {
		return f.model, nil
	}
	m, err := f.load(f.cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	f.model = m
	logging.Infof("Vosk: model loaded from %s", f.cfg.ModelPath)
	return m, nil
}

func (f *Factory) CreateEngine(ctx context.Context, params engine.Params) (engine.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.NewError(engine.CodeCreateFailed, "create canceled: "+err.Error())
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if f.cfg.ModelPath == "" {
		return nil, engine.NewError(engine.CodeCreateFailed, "vosk model path is required")
	}
	if f.source == nil {
		return nil, engine.NewError(engine.CodeCreateFailed, "audio source not configured")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live != nil {
		return nil, engine.NewError(engine.CodeBusy, "engine busy")
	}
	m, err := f.ensureModel()
	if err != nil {
		return nil, engine.NewError(engine.CodeCreateFailed, err.Error())
	}
	rec, err := m.NewRecognizer(engine.SampleRate)
	if err != nil {
		return nil, engine.NewError(engine.CodeCreateFailed, "create recognizer: "+err.Error())
	}
	e := &Engine{factory: f, rec: rec, listener: engine.NopListener{}}
	f.live = e
	return e, nil
}

// Close 释放模型，需在所有引擎 Shutdown 之后调用
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model != nil {
		f.model.Free()
		f.model = nil
	}
}

func (f *Factory) release(e *Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live == e {
		f.live = nil
	}
}

// Engine 本地识别引擎，所有回调都在会话 goroutine 中按顺序发出
type Engine struct {
	factory *Factory

	mu       sync.Mutex
	rec      recognizer
	listener engine.Listener
	run      *run
	closed   bool
}

var _ engine.Engine = (*Engine)(nil)

// run 一次识别会话
type run struct {
	sessionID string
	stop      context.CancelFunc
	done      chan struct{}
	canceled  atomic.Bool
	failed    atomic.Bool
}

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
	if e.run != nil {
		select {
		case <-e.run.done:
		default:
			return engine.NewError(engine.CodeBusy, "session "+e.run.sessionID+" still running")
		}
	}

	source, err := e.factory.source()
	if err != nil {
		return engine.NewError(engine.CodeStartFailed, "open audio source: "+err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{sessionID: params.SessionID, stop: cancel, done: make(chan struct{})}
	e.run = r
	e.rec.Reset()
	go e.listen(ctx, r, source, e.listener, audio.PumpConfig{
		ChunkSize:    engine.SendSize,
		VADThreshold: e.factory.cfg.VADThreshold,
		Audio:        params.Audio,
		Options:      params.Options,
	})
	return nil
}

func (e *Engine) listen(ctx context.Context, r *run, source audio.Source, listener engine.Listener, cfg audio.PumpConfig) {
	defer close(r.done)
	defer source.Close()

	id := r.sessionID
	emit := func(fn func()) {
		if !r.canceled.Load() {
			fn()
		}
	}
	emit(func() { listener.OnStart(id, "vosk listening") })

	var lastPartial string
	send := func(chunk []byte) error {
		if e.rec.AcceptWaveform(chunk) {
			lastPartial = ""
			if text := parseText(e.rec.Result()); text != "" {
				emit(func() { listener.OnResult(id, engine.Result{Text: text, IsFinal: true}) })
			}
			return nil
		}
		if partial := parsePartial(e.rec.PartialResult()); partial != "" && partial != lastPartial {
			lastPartial = partial
			emit(func() { listener.OnResult(id, engine.Result{Text: partial}) })
		}
		return nil
	}

	reason, err := audio.Pump(ctx, source, cfg, send, func(ev audio.EndpointEvent) {
		if ev == audio.EndpointSpeechStarted {
			emit(func() { listener.OnEvent(id, engine.EventCodeSpeechDetected, "speech detected") })
		}
	})
	if r.canceled.Load() {
		return
	}
	if err != nil && ctx.Err() == nil {
		r.failed.Store(true)
		logging.Errorf("Vosk: audio failed, session=%s: %v", id, err)
		emit(func() { listener.OnError(id, engine.CodeRecognitionFailed, "audio: "+err.Error()) })
	}
	logging.Infof("Vosk: session=%s ended, endpoint=%s", id, reason)

	if text := parseText(e.rec.FinalResult()); text != "" {
		emit(func() { listener.OnResult(id, engine.Result{Text: text, IsFinal: true}) })
	}
	emit(func() { listener.OnComplete(id, "vosk finished") })
}

// activeRun 调用方持有 e.mu
func (e *Engine) activeRun(sessionID string, code int) (*run, error) {
	if e.closed {
		return nil, engine.NewError(engine.CodeShuttingDown, "engine shutting down")
	}
	if e.run == nil || e.run.sessionID != sessionID {
		return nil, engine.NewError(code, "no active session "+sessionID)
	}
	return e.run, nil
}

// Finish 停止送音，输出最终结果后返回
func (e *Engine) Finish(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.activeRun(sessionID, engine.CodeFinishFailed)
	if err != nil {
		return err
	}
	e.run = nil
	r.stop()
	<-r.done
	if r.failed.Load() {
		return engine.NewError(engine.CodeFinishFailed, "audio source failed during session")
	}
	return nil
}

func (e *Engine) Cancel(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.activeRun(sessionID, engine.CodeCancelFailed)
	if err != nil {
		return err
	}
	e.run = nil
	r.canceled.Store(true)
	r.stop()
	<-r.done
	e.rec.Reset()
	return nil
}

func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return engine.NewError(engine.CodeShuttingDown, "engine shutting down")
	}
	e.closed = true
	if e.run != nil {
		e.run.canceled.Store(true)
		e.run.stop()
		<-e.run.done
		e.run = nil
	}
	e.rec.Free()
	e.factory.release(e)
	logging.Infof("Vosk: engine shut down")
	return nil
}

type voskText struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func parseText(raw string) string {
	var v voskText
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ""
	}
	return joinTokens(v.Text)
}

func parsePartial(raw string) string {
	var v voskText
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return ""
	}
	return joinTokens(v.Partial)
}

// joinTokens 中文模型按字词输出并以空格分隔
func joinTokens(text string) string {
	return strings.Join(strings.Fields(text), "")
}
